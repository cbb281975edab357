package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// ErrThrottled is returned by NotifyRoutine when a guild exceeded its
// routine notice budget.
var ErrThrottled = errors.New("notification throttled")

// FallbackChannelNames are tried in order when no log channel is configured.
var FallbackChannelNames = []string{"mod-log", "logs", "The Studio-logs"}

// Notifier delivers a notice to a guild's log destination. A guild without a
// destination is not an error.
//
// Notify is for enforcement and moderator records and is never throttled.
// NotifyRoutine is for high-volume notices such as blocked content and
// shares a per-guild budget.
type Notifier interface {
	Notify(ctx context.Context, settings models.GuildSettings, embed *discordgo.MessageEmbed) error
	NotifyRoutine(ctx context.Context, settings models.GuildSettings, embed *discordgo.MessageEmbed) error
}

// Sender is the subset of *discordgo.Session used to post embeds.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelLookup returns the id of a text channel with the given name, or "".
type ChannelLookup func(guildID, name string) string

type Discord struct {
	sender Sender
	lookup ChannelLookup

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func NewDiscord(sender Sender, lookup ChannelLookup, perMinute int) *Discord {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Discord{
		sender:   sender,
		lookup:   lookup,
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    5,
	}
}

// StateLookup resolves channel names from the session's state cache.
func StateLookup(session *discordgo.Session) ChannelLookup {
	return func(guildID, name string) string {
		g, err := session.State.Guild(guildID)
		if err != nil {
			return ""
		}
		session.State.RLock()
		defer session.State.RUnlock()
		for _, c := range g.Channels {
			if c.Type == discordgo.ChannelTypeGuildText && c.Name == name {
				return c.ID
			}
		}
		return ""
	}
}

// Destination resolves the configured log channel, then the fallbacks.
func (d *Discord) Destination(settings models.GuildSettings) string {
	if settings.LogChannelID != "" {
		return settings.LogChannelID
	}
	if d.lookup == nil {
		return ""
	}
	for _, name := range FallbackChannelNames {
		if id := d.lookup(settings.GuildID, name); id != "" {
			return id
		}
	}
	return ""
}

func (d *Discord) limiter(guildID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[guildID]
	if !ok {
		l = rate.NewLimiter(d.every, d.burst)
		d.limiters[guildID] = l
	}
	return l
}

func (d *Discord) Notify(ctx context.Context, settings models.GuildSettings, embed *discordgo.MessageEmbed) error {
	channelID := d.Destination(settings)
	if channelID == "" {
		return nil
	}
	return d.send(ctx, channelID, embed)
}

func (d *Discord) NotifyRoutine(ctx context.Context, settings models.GuildSettings, embed *discordgo.MessageEmbed) error {
	channelID := d.Destination(settings)
	if channelID == "" {
		return nil
	}
	if !d.limiter(settings.GuildID).Allow() {
		logging.Debug("Notification %q for guild %s throttled", embed.Title, settings.GuildID)
		return ErrThrottled
	}
	return d.send(ctx, channelID, embed)
}

func (d *Discord) send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}
	if _, err := d.sender.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send notification to %s: %w", channelID, err)
	}
	return nil
}
