package commands

import (
	"github.com/bwmarrin/discordgo"
)

// invocation is a slash command flattened to its guild, invoker and the
// options of the selected subcommand.
type invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Sub       string
	opts      map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func newInvocation(i *discordgo.InteractionCreate) invocation {
	inv := invocation{GuildID: i.GuildID, ChannelID: i.ChannelID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		inv.UserID = i.Member.User.ID
	case i.User != nil:
		inv.UserID = i.User.ID
	}
	inv.setOptions(i.ApplicationCommandData().Options)
	return inv
}

func (inv *invocation) setOptions(options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		inv.Sub = options[0].Name
		options = options[0].Options
	}
	inv.opts = make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, o := range options {
		inv.opts[o.Name] = o
	}
}

// str returns a string, user, role or channel option. Snowflake typed
// options carry their id as a string.
func (inv invocation) str(name string) string {
	o, ok := inv.opts[name]
	if !ok || o == nil {
		return ""
	}
	s, _ := o.Value.(string)
	return s
}

// integer returns an integer option. JSON decoding yields float64.
func (inv invocation) integer(name string) (int64, bool) {
	o, ok := inv.opts[name]
	if !ok || o == nil {
		return 0, false
	}
	switch v := o.Value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
