package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

const eventTimeout = 15 * time.Second

// EventSink consumes translated gateway events.
type EventSink interface {
	OnMessage(ctx context.Context, ev models.MessageEvent)
	OnMessageDelete(ctx context.Context, ev models.MessageDeleteEvent)
	OnMessageEdit(ctx context.Context, ev models.MessageEditEvent)
	OnChannelDelete(ctx context.Context, ev models.ResourceDeleteEvent)
	OnRoleUpdate(ctx context.Context, ev models.PermissionChangeEvent)
}

// SetupEventHandlers translates discordgo events for sink. discordgo runs
// each handler on its own goroutine.
func (s *Session) SetupEventHandlers(sink EventSink) {
	logging.Info("Setting up Discord event handlers...")

	s.discord.AddHandler(s.onReadyEvent)
	s.discord.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		s.roles.Seed(g.ID, g.Roles)
		logging.Info("Guild available: %s (ID: %s, %d roles)", g.Name, g.ID, len(g.Roles))
	})
	s.discord.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildDelete) {
		if g.Unavailable {
			return
		}
		s.roles.DropGuild(g.ID)
		logging.Info("Removed from guild %s", g.ID)
	})
	s.discord.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleCreate) {
		s.roles.Swap(r.GuildID, r.Role.ID, r.Role.Permissions)
	})
	s.discord.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleDelete) {
		s.roles.Delete(r.GuildID, r.RoleID)
	})

	s.discord.AddHandler(func(sess *discordgo.Session, m *discordgo.MessageCreate) {
		ev, ok := s.messageEvent(sess.State, m.Message)
		if !ok {
			return
		}
		ctx, cancel := s.eventContext()
		defer cancel()
		sink.OnMessage(ctx, ev)
	})
	s.discord.AddHandler(func(sess *discordgo.Session, m *discordgo.MessageDelete) {
		ctx, cancel := s.eventContext()
		defer cancel()
		sink.OnMessageDelete(ctx, s.deleteEvent(sess.State, m))
	})
	s.discord.AddHandler(func(sess *discordgo.Session, m *discordgo.MessageUpdate) {
		ev, ok := s.editEvent(sess.State, m)
		if !ok {
			return
		}
		ctx, cancel := s.eventContext()
		defer cancel()
		sink.OnMessageEdit(ctx, ev)
	})
	s.discord.AddHandler(func(_ *discordgo.Session, c *discordgo.ChannelDelete) {
		if c.Channel == nil || c.GuildID == "" {
			return
		}
		ctx, cancel := s.eventContext()
		defer cancel()
		sink.OnChannelDelete(ctx, models.ResourceDeleteEvent{
			GuildID:    c.GuildID,
			ResourceID: c.ID,
			Name:       c.Name,
			Timestamp:  time.Now(),
		})
	})
	s.discord.AddHandler(func(_ *discordgo.Session, r *discordgo.GuildRoleUpdate) {
		ev, ok := s.roleEvent(r)
		if !ok {
			return
		}
		ctx, cancel := s.eventContext()
		defer cancel()
		sink.OnRoleUpdate(ctx, ev)
	})
}

func (s *Session) onReadyEvent(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	s.mu.Lock()
	s.botID = r.User.ID
	hooks := append([]func(string){}, s.onReady...)
	s.mu.Unlock()

	for _, g := range r.Guilds {
		s.roles.Seed(g.ID, g.Roles)
	}
	for _, fn := range hooks {
		fn(r.User.ID)
	}
	logging.Info("Logged in as %s (ID: %s) in %d guilds", r.User.Username, r.User.ID, len(r.Guilds))
}

func (s *Session) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.baseContext(), eventTimeout)
}

// channelNSFW reports the channel's age-restricted flag. Threads inherit
// it from their parent.
func channelNSFW(st *discordgo.State, channelID string) bool {
	if st == nil {
		return false
	}
	ch, err := st.Channel(channelID)
	if err != nil {
		return false
	}
	if ch.IsThread() && ch.ParentID != "" {
		if parent, err := st.Channel(ch.ParentID); err == nil {
			return parent.NSFW
		}
	}
	return ch.NSFW
}

func toMessageEvent(m *discordgo.Message, nsfw bool) models.MessageEvent {
	ev := models.MessageEvent{
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		Content:     m.Content,
		ChannelNSFW: nsfw,
		Timestamp:   m.Timestamp,
	}
	if m.Author != nil {
		ev.AuthorID = m.Author.ID
		ev.AuthorName = m.Author.Username
		ev.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		ev.Attachments = append(ev.Attachments, models.Attachment{Filename: a.Filename, ContentType: a.ContentType})
	}
	return ev
}

func (s *Session) messageEvent(st *discordgo.State, m *discordgo.Message) (models.MessageEvent, bool) {
	if m == nil || m.GuildID == "" || m.Author == nil {
		return models.MessageEvent{}, false
	}
	return toMessageEvent(m, channelNSFW(st, m.ChannelID)), true
}

func (s *Session) deleteEvent(st *discordgo.State, m *discordgo.MessageDelete) models.MessageDeleteEvent {
	ev := models.MessageDeleteEvent{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID}
	if m.BeforeDelete != nil && m.BeforeDelete.Author != nil {
		if m.BeforeDelete.GuildID == "" {
			m.BeforeDelete.GuildID = m.GuildID
		}
		cached := toMessageEvent(m.BeforeDelete, channelNSFW(st, m.ChannelID))
		ev.Cached = &cached
	}
	return ev
}

func (s *Session) editEvent(st *discordgo.State, m *discordgo.MessageUpdate) (models.MessageEditEvent, bool) {
	if m.Message == nil || m.GuildID == "" || m.Author == nil {
		return models.MessageEditEvent{}, false
	}
	nsfw := channelNSFW(st, m.ChannelID)
	ev := models.MessageEditEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		After:     toMessageEvent(m.Message, nsfw),
	}
	if m.BeforeUpdate != nil {
		before := toMessageEvent(m.BeforeUpdate, nsfw)
		ev.Before = &before
	}
	return ev, true
}

// roleEvent diffs a role update against the cached permissions. The first
// update seen for a role only primes the cache.
func (s *Session) roleEvent(r *discordgo.GuildRoleUpdate) (models.PermissionChangeEvent, bool) {
	if r.GuildRole == nil || r.Role == nil {
		return models.PermissionChangeEvent{}, false
	}
	before, known := s.roles.Swap(r.GuildID, r.Role.ID, r.Role.Permissions)
	if !known {
		logging.Debug("Role %s in guild %s seen for the first time", r.Role.ID, r.GuildID)
		return models.PermissionChangeEvent{}, false
	}
	if before == r.Role.Permissions {
		return models.PermissionChangeEvent{}, false
	}
	return models.PermissionChangeEvent{
		GuildID:   r.GuildID,
		RoleID:    r.Role.ID,
		RoleName:  r.Role.Name,
		Before:    before,
		After:     r.Role.Permissions,
		Timestamp: time.Now(),
	}, true
}
