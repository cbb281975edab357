package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

func TestMessageCache(t *testing.T) {
	c := NewMessageCache(16, time.Minute)
	now := time.Now()

	msg := models.MessageEvent{GuildID: "g", ChannelID: "c", AuthorID: "u", Content: "hello"}
	c.RecordDelete(msg, now)
	c.RecordDelete(models.MessageEvent{GuildID: "g", ChannelID: "c"}, now)

	s, ok := c.LastDeleted("g", "c")
	require.True(t, ok)
	assert.Equal(t, "hello", s.Message.Content, "empty messages are ignored")

	edited := msg
	edited.Content = "hello!"
	c.RecordEdit(msg, edited, now)
	c.RecordEdit(edited, edited, now)

	s, ok = c.LastEdited("g", "c")
	require.True(t, ok)
	assert.Equal(t, "hello", s.Before)
	assert.Equal(t, "hello!", s.Message.Content)

	_, ok = c.LastDeleted("g", "other")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMessageCacheExpires(t *testing.T) {
	c := NewMessageCache(16, 10*time.Millisecond)
	c.RecordDelete(models.MessageEvent{GuildID: "g", ChannelID: "c", Content: "x"}, time.Now())
	time.Sleep(50 * time.Millisecond)
	_, ok := c.LastDeleted("g", "c")
	assert.False(t, ok)
}
