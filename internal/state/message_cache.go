package state

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

type channelKey struct {
	GuildID   string
	ChannelID string
}

// Snipe is the last deleted or edited message of a channel.
type Snipe struct {
	Message  models.MessageEvent
	Before   string
	EditedAt time.Time
	At       time.Time
}

// MessageCache remembers the most recent deleted and edited message per
// channel. Entries expire after ttl.
type MessageCache struct {
	deleted *expirable.LRU[channelKey, Snipe]
	edited  *expirable.LRU[channelKey, Snipe]
}

func NewMessageCache(size int, ttl time.Duration) *MessageCache {
	return &MessageCache{
		deleted: expirable.NewLRU[channelKey, Snipe](size, nil, ttl),
		edited:  expirable.NewLRU[channelKey, Snipe](size, nil, ttl),
	}
}

func (c *MessageCache) RecordDelete(msg models.MessageEvent, at time.Time) {
	if msg.Content == "" && len(msg.Attachments) == 0 {
		return
	}
	c.deleted.Add(channelKey{msg.GuildID, msg.ChannelID}, Snipe{Message: msg, At: at})
}

func (c *MessageCache) RecordEdit(before, after models.MessageEvent, at time.Time) {
	if before.Content == after.Content {
		return
	}
	c.edited.Add(channelKey{after.GuildID, after.ChannelID}, Snipe{Message: after, Before: before.Content, EditedAt: at, At: at})
}

func (c *MessageCache) LastDeleted(guildID, channelID string) (Snipe, bool) {
	return c.deleted.Get(channelKey{guildID, channelID})
}

func (c *MessageCache) LastEdited(guildID, channelID string) (Snipe, bool) {
	return c.edited.Get(channelKey{guildID, channelID})
}

func (c *MessageCache) Len() int {
	return c.deleted.Len() + c.edited.Len()
}
