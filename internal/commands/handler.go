package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/bot"
	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/database"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
)

const commandTimeout = 10 * time.Second

// usageError is a failure caused by the invoker's input. It is shown to
// the user but not logged as an error.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

type Jailer interface {
	Jail(ctx context.Context, guildID, memberID string, duration time.Duration, reason string) (models.QuarantineRecord, error)
	Unjail(ctx context.Context, guildID, memberID string) ([]string, error)
}

type Granter interface {
	Grant(ctx context.Context, guildID, memberID, roleID string, duration time.Duration, reason string) (time.Time, error)
	Pending() int
}

type AuditSink interface {
	Enqueue(models.AuditEntry) bool
}

// DirectMessenger opens DM channels. *discordgo.Session satisfies it.
type DirectMessenger interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Deps struct {
	Store      database.Store
	Profiles   *config.ProfileStore
	Quarantine Jailer
	TempGrants Granter
	Snipes     *state.MessageCache
	Tracker    *state.RateTracker
	Notifier   notifier.Notifier
	Audit      AuditSink
	DM         DirectMessenger
	Detection  config.DetectionConfig
}

// Handler routes slash command interactions.
type Handler struct {
	deps    Deps
	session *discordgo.Session
	ctx     context.Context
	routes  map[string]commandFunc
	started time.Time
}

type commandFunc func(ctx context.Context, inv invocation) (reply, error)

// reply is what a command answers with. Ephemeral replies are only shown
// to the invoker.
type reply struct {
	content   string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{deps: deps, ctx: context.Background(), started: time.Now()}
	h.routes = map[string]commandFunc{
		"jail":        h.handleJail,
		"unjail":      h.handleUnjail,
		"temprole":    h.handleTempRole,
		"warn":        h.handleWarn,
		"removewarn":  h.handleRemoveWarn,
		"infractions": h.handleInfractions,
		"clearwarns":  h.handleClearWarns,
		"whitelist":   h.handleWhitelist,
		"setlog":      h.handleSetLog,
		"setjail":     h.handleSetJail,
		"setantinuke": h.handleSetAntinuke,
		"status":      h.handleStatus,
		"snipe":       h.handleSnipe,
		"editsnipe":   h.handleEditSnipe,
		"stats":       h.handleStats,
		"ping":        h.handlePing,
	}
	return h
}

// Initialize registers the interaction handler and the command set.
// Interactions are served with contexts derived from ctx.
func (h *Handler) Initialize(ctx context.Context, session *bot.Session, appID, guildID string) error {
	h.ctx = ctx
	h.session = session.Discord()
	session.AddHandler(h.handleInteraction)

	commands := Definitions()
	if err := session.RegisterCommands(appID, guildID, commands); err != nil {
		return err
	}
	logging.Info("Command handler initialized with %d commands", len(commands))
	return nil
}

func (h *Handler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	if i.GuildID == "" {
		respond(s, i, reply{content: "❌ Commands only work inside a server.", ephemeral: true})
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, commandTimeout)
	defer cancel()

	r, err := h.dispatch(ctx, data.Name, newInvocation(i))
	if err != nil {
		respondError(s, i, err)
		return
	}
	respond(s, i, r)
}

// dispatch runs the named command and records its outcome.
func (h *Handler) dispatch(ctx context.Context, name string, inv invocation) (r reply, err error) {
	run, ok := h.routes[name]
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown", metrics.ResultFailed).Inc()
		return reply{}, fmt.Errorf("unknown command: %s", name)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("command panicked: %v", p)
		}
		result := metrics.ResultOK
		switch {
		case isUsage(err):
			result = metrics.ResultSkipped
		case err != nil:
			result = metrics.ResultFailed
			logging.Error("Command error [%s] in guild %s: %v", name, inv.GuildID, err)
		}
		metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	}()

	return run(ctx, inv)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, r reply) {
	data := &discordgo.InteractionResponseData{Content: r.content}
	if r.embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{r.embed}
	}
	if r.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		logging.Warn("Failed to respond to interaction %s: %v", i.ID, err)
	}
}

// respondError sends an ephemeral error message
func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	respond(s, i, errorReply(err))
}

func errorReply(err error) reply {
	return reply{content: "❌ Error: " + err.Error(), ephemeral: true}
}

// settings loads a guild document and refreshes the profile cache.
func (h *Handler) settings(ctx context.Context, guildID string) (models.GuildSettings, error) {
	s, err := h.deps.Store.Get(ctx, guildID)
	if err != nil {
		return models.GuildSettings{}, err
	}
	h.remember(s)
	return s, nil
}

func (h *Handler) patch(ctx context.Context, guildID string, fn database.PatchFunc) (models.GuildSettings, error) {
	s, err := h.deps.Store.Patch(ctx, guildID, fn)
	if err != nil {
		return models.GuildSettings{}, err
	}
	h.remember(s)
	return s, nil
}

func (h *Handler) remember(s models.GuildSettings) {
	if h.deps.Profiles != nil {
		h.deps.Profiles.Set(s)
	}
}

// notify posts to the guild's log channel. Failures never fail a command.
func (h *Handler) notify(ctx context.Context, guildID string, embed *discordgo.MessageEmbed) {
	if h.deps.Notifier == nil {
		return
	}
	s, err := h.deps.Store.Get(ctx, guildID)
	if err != nil {
		logging.Warn("Skipping log notice for guild %s: %v", guildID, err)
		return
	}
	if err := h.deps.Notifier.Notify(ctx, s, embed); err != nil && !errors.Is(err, notifier.ErrThrottled) {
		logging.Warn("Log notice for guild %s failed: %v", guildID, err)
	}
}

func (h *Handler) trail(inv invocation, targetID, action, reason, detail string) {
	if h.deps.Audit == nil {
		return
	}
	e := models.NewAuditEntry(inv.GuildID, targetID, action, reason)
	e.ActorID = inv.UserID
	e.Detail = detail
	h.deps.Audit.Enqueue(e)
}
