package notifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, _ *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, channelID)
	return &discordgo.Message{}, f.err
}

func TestNotifyDestination(t *testing.T) {
	sender := &fakeSender{}
	lookup := func(guildID, name string) string {
		if name == "logs" {
			return "logs-channel"
		}
		return ""
	}
	d := NewDiscord(sender, lookup, 60)

	g := models.NewGuildSettings("g")
	require.NoError(t, d.Notify(context.Background(), g, &discordgo.MessageEmbed{Title: "x"}))
	g.LogChannelID = "configured"
	require.NoError(t, d.Notify(context.Background(), g, &discordgo.MessageEmbed{Title: "x"}))

	assert.Equal(t, []string{"logs-channel", "configured"}, sender.sent)
}

func TestNotifyWithoutDestinationIsNoop(t *testing.T) {
	sender := &fakeSender{}
	d := NewDiscord(sender, nil, 60)
	assert.NoError(t, d.Notify(context.Background(), models.NewGuildSettings("g"), &discordgo.MessageEmbed{}))
	assert.Empty(t, sender.sent)
}

func TestNotifyRoutineThrottlesPerGuild(t *testing.T) {
	sender := &fakeSender{}
	d := NewDiscord(sender, nil, 1)
	g := models.NewGuildSettings("g")
	g.LogChannelID = "c"

	var throttled int
	for i := 0; i < 10; i++ {
		if errors.Is(d.NotifyRoutine(context.Background(), g, &discordgo.MessageEmbed{}), ErrThrottled) {
			throttled++
		}
	}
	assert.Equal(t, 5, len(sender.sent), "burst")
	assert.Equal(t, 5, throttled)

	other := models.NewGuildSettings("h")
	other.LogChannelID = "c2"
	assert.NoError(t, d.NotifyRoutine(context.Background(), other, &discordgo.MessageEmbed{}))
}

func TestBreachNoticeNotThrottledByContentNotices(t *testing.T) {
	sender := &fakeSender{}
	d := NewDiscord(sender, nil, 1)
	g := models.NewGuildSettings("g")
	g.LogChannelID = "c"
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = d.NotifyRoutine(ctx, g, ContentBlockedEmbed("Image Blocked", "42", "general"))
	}
	require.ErrorIs(t, d.NotifyRoutine(ctx, g, ContentBlockedEmbed("Image Blocked", "42", "general")), ErrThrottled)

	b := models.Breach{GuildID: "g", ActorID: "42", Category: models.CategoryFlood, Reason: "Spam", Timestamp: time.Unix(0, 0)}
	require.NoError(t, d.Notify(ctx, g, BreachEmbed(b, time.Minute, []string{"timeout"})))
	assert.Len(t, sender.sent, 6)
}

func TestNotifyStudioLogsFallback(t *testing.T) {
	sender := &fakeSender{}
	lookup := func(guildID, name string) string {
		if name == "The Studio-logs" {
			return "studio-logs"
		}
		return ""
	}
	d := NewDiscord(sender, lookup, 60)
	require.NoError(t, d.Notify(context.Background(), models.NewGuildSettings("g"), &discordgo.MessageEmbed{}))
	assert.Equal(t, []string{"studio-logs"}, sender.sent)
}

func TestStateLookup(t *testing.T) {
	session := &discordgo.Session{State: discordgo.NewState()}
	require.NoError(t, session.State.GuildAdd(&discordgo.Guild{
		ID: "g",
		Channels: []*discordgo.Channel{
			{ID: "v", Name: "logs", Type: discordgo.ChannelTypeGuildVoice, GuildID: "g"},
			{ID: "t", Name: "logs", Type: discordgo.ChannelTypeGuildText, GuildID: "g"},
		},
	}))
	lookup := StateLookup(session)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = session.State.ChannelAdd(&discordgo.Channel{ID: fmt.Sprint("x", i), Name: "other", Type: discordgo.ChannelTypeGuildText, GuildID: "g"})
		}
	}()
	for i := 0; i < 50; i++ {
		assert.Equal(t, "t", lookup("g", "logs"))
	}
	<-done

	assert.Equal(t, "", lookup("g", "mod-log"))
	assert.Equal(t, "", lookup("missing", "logs"))
}

func TestNotifySendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	d := NewDiscord(sender, nil, 60)
	g := models.NewGuildSettings("g")
	g.LogChannelID = "c"
	assert.Error(t, d.Notify(context.Background(), g, &discordgo.MessageEmbed{}))
}

func TestBreachEmbed(t *testing.T) {
	b := models.Breach{ActorID: "42", Category: models.CategoryFlood, Reason: "Spam: 7/7 in 5s", Timestamp: time.Unix(0, 0)}
	e := BreachEmbed(b, time.Minute, []string{"timeout"})
	assert.Equal(t, "Anti-Nuke Triggered", e.Title)
	assert.Contains(t, e.Description, "Spam: 7/7 in 5s")
	assert.Equal(t, "`1m`", e.Fields[2].Value)
	assert.Equal(t, "timeout", e.Fields[3].Value)
}
