package detectors

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/decision"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/forensics"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
	"github.com/eryxsegithub/TheStudioBot/pkg/util"
)

// SettingsSource is the read side of the guild store.
type SettingsSource interface {
	Get(ctx context.Context, guildID string) (models.GuildSettings, error)
}

// ActorResolver attributes anonymous events through the audit log.
type ActorResolver interface {
	FindActor(ctx context.Context, guildID, resourceID string, action int, lookback time.Duration) (forensics.AuditMatch, bool)
	Claim(entryID string) bool
}

type Enforcer interface {
	Apply(ctx context.Context, b models.Breach, settings models.GuildSettings) decision.Outcome
}

type Deps struct {
	Store     SettingsSource
	Profiles  *config.ProfileStore
	Tracker   *state.RateTracker
	Snipes    *state.MessageCache
	Resolver  ActorResolver
	Enforcer  Enforcer
	Mutator   dispatcher.Mutator
	Notifier  notifier.Notifier
	Detection config.DetectionConfig
}

// Detector evaluates gateway events against each guild's limits and hands
// breaches to the enforcer. Handlers are safe for concurrent use.
type Detector struct {
	store     SettingsSource
	profiles  *config.ProfileStore
	tracker   *state.RateTracker
	snipes    *state.MessageCache
	resolver  ActorResolver
	enforcer  Enforcer
	mutator   dispatcher.Mutator
	notifier  notifier.Notifier
	detection config.DetectionConfig
	now       func() time.Time
}

func New(deps Deps) *Detector {
	profiles := deps.Profiles
	if profiles == nil {
		profiles = config.NewProfileStore()
	}
	return &Detector{
		store:     deps.Store,
		profiles:  profiles,
		tracker:   deps.Tracker,
		snipes:    deps.Snipes,
		resolver:  deps.Resolver,
		enforcer:  deps.Enforcer,
		mutator:   deps.Mutator,
		notifier:  deps.Notifier,
		detection: deps.Detection,
		now:       time.Now,
	}
}

// settings loads the guild document, falling back to the last good copy
// and then to defaults when the store is unavailable.
func (d *Detector) settings(ctx context.Context, guildID string) models.GuildSettings {
	s, err := d.store.Get(ctx, guildID)
	if err == nil {
		d.profiles.Set(s)
		return s
	}

	metrics.StoreErrorsTotal.WithLabelValues("get").Inc()
	if cached, ok := d.profiles.Get(guildID); ok {
		logging.Warn("Settings for guild %s unavailable, using last known: %v", guildID, err)
		return cached
	}
	logging.Warn("Settings for guild %s unavailable, using defaults: %v", guildID, err)
	return models.NewGuildSettings(guildID)
}

// track wraps one event: it counts it, times it and recovers a panic so
// the caller's event loop keeps running.
func (d *Detector) track(kind models.EventKind, guildID string) func() {
	sw := util.StartStopwatch()
	return func() {
		if r := recover(); r != nil {
			metrics.EventPanicsTotal.WithLabelValues(kind.String()).Inc()
			logging.Error("Recovered panic handling %s in guild %s: %v\n%s", kind, guildID, r, debug.Stack())
		}
		metrics.EventsTotal.WithLabelValues(kind.String()).Inc()
		metrics.DetectionDuration.WithLabelValues(kind.String()).Observe(sw.Seconds())
	}
}

func (d *Detector) enforce(ctx context.Context, b models.Breach, settings models.GuildSettings) {
	logging.Warn("Breach %s by %s in guild %s: %s", b.Category, b.ActorID, b.GuildID, b.Reason)
	d.enforcer.Apply(ctx, b, settings)
}

// OnMessageDelete feeds the snipe cache.
func (d *Detector) OnMessageDelete(_ context.Context, ev models.MessageDeleteEvent) {
	defer d.track(models.EventKindMessageDelete, ev.GuildID)()
	if ev.Cached == nil || ev.Cached.AuthorBot || d.snipes == nil {
		return
	}
	d.snipes.RecordDelete(*ev.Cached, d.now())
}

// OnMessageEdit feeds the edit snipe cache. Edits that only touched embeds
// are ignored.
func (d *Detector) OnMessageEdit(_ context.Context, ev models.MessageEditEvent) {
	defer d.track(models.EventKindMessageUpdate, ev.GuildID)()
	if ev.Before == nil || ev.After.AuthorBot || d.snipes == nil {
		return
	}
	if ev.Before.Content == ev.After.Content {
		return
	}
	d.snipes.RecordEdit(*ev.Before, ev.After, d.now())
}
