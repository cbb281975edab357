package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/puzpuzpuz/xsync/v3"
)

type roleKey struct {
	GuildID string
	RoleID  string
}

// RoleCache remembers each role's last seen permissions. discordgo updates
// its state before handlers run, so the previous value of a role update is
// only available from here.
type RoleCache struct {
	perms *xsync.MapOf[roleKey, int64]
}

func NewRoleCache() *RoleCache {
	return &RoleCache{perms: xsync.NewMapOf[roleKey, int64]()}
}

func (c *RoleCache) Seed(guildID string, roles []*discordgo.Role) {
	for _, r := range roles {
		c.perms.Store(roleKey{guildID, r.ID}, r.Permissions)
	}
}

// Swap stores perms and returns the previous value, if any.
func (c *RoleCache) Swap(guildID, roleID string, perms int64) (before int64, known bool) {
	return c.perms.LoadAndStore(roleKey{guildID, roleID}, perms)
}

func (c *RoleCache) Delete(guildID, roleID string) {
	c.perms.Delete(roleKey{guildID, roleID})
}

// DropGuild forgets every role of a guild the bot left.
func (c *RoleCache) DropGuild(guildID string) {
	c.perms.Range(func(k roleKey, _ int64) bool {
		if k.GuildID == guildID {
			c.perms.Delete(k)
		}
		return true
	})
}

func (c *RoleCache) Len() int {
	return c.perms.Size()
}
