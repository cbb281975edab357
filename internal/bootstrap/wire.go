package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/bot"
	"github.com/eryxsegithub/TheStudioBot/internal/commands"
	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/database"
	"github.com/eryxsegithub/TheStudioBot/internal/decision"
	"github.com/eryxsegithub/TheStudioBot/internal/detectors"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/forensics"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/internal/server"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
	"github.com/eryxsegithub/TheStudioBot/internal/watchdog"
)

const (
	snipeCacheSize   = 4096
	watchdogInterval = 5 * time.Second
	// auditBeatGrace covers the writer's 30s idle heartbeat.
	auditBeatGrace = 90 * time.Second
)

// Component names registered with the watchdog.
const (
	componentTracker    = "rate_tracker"
	componentSweeper    = "quarantine_sweeper"
	componentAuditQueue = "audit_writer"
)

func Wire(ctx context.Context, b *Bootstrap) error {
	logging.Info("Wiring components...")
	cfg := b.Config
	det := cfg.Detection

	store, err := database.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logging.Info("Store opened (backend: %s)", cfg.Store.Backend)

	profiles := config.NewProfileStore()
	if n, err := database.WarmProfiles(ctx, store, profiles); err != nil {
		logging.Warn("Guild profile warmup incomplete: %v", err)
	} else {
		logging.Info("Warmed %d guild profiles", n)
	}

	audit := database.NewAuditWriter(store, cfg.Store.AuditQueueSize)
	tracker := state.NewRateTracker(time.Duration(models.MaxWindowSeconds) * time.Second)
	snipes := state.NewMessageCache(snipeCacheSize, det.SnipeTTL())

	session, err := bot.New(cfg.Bot.Token)
	if err != nil {
		store.Close()
		return err
	}
	dg := session.Discord()

	httpPool := dispatcher.NewHTTPPool(cfg.Network.HTTPPoolSize, cfg.Network.APIBaseURL)
	rateLimiter := dispatcher.NewRateLimitMonitor()
	timeouts := dispatcher.NewTimeoutExecutor(httpPool, rateLimiter, cfg.Bot.Token)
	mutator := dispatcher.NewDiscord(dg, timeouts)
	notify := notifier.NewDiscord(dg, notifier.StateLookup(dg), det.NotifyPerMinute)

	correlator := forensics.NewCorrelator(forensics.NewAuditLogFetcher(dg), "")
	session.OnReady(correlator.SetSelfID)

	engine := decision.NewEngine(mutator, notify, audit, det)
	quarantine := decision.NewQuarantine(store, mutator, audit, det.DefaultJail())
	grants := decision.NewTempGrants(mutator, audit)

	detector := detectors.New(detectors.Deps{
		Store:     store,
		Profiles:  profiles,
		Tracker:   tracker,
		Snipes:    snipes,
		Resolver:  correlator,
		Enforcer:  engine,
		Mutator:   mutator,
		Notifier:  notify,
		Detection: det,
	})
	session.SetupEventHandlers(detector)

	handler := commands.NewHandler(commands.Deps{
		Store:      store,
		Profiles:   profiles,
		Quarantine: quarantine,
		TempGrants: grants,
		Snipes:     snipes,
		Tracker:    tracker,
		Notifier:   notify,
		Audit:      audit,
		DM:         dg,
		Detection:  det,
	})

	wd := watchdog.NewWatchdog(watchdogInterval)
	wd.RegisterComponent(componentTracker, 3*det.ReaperInterval())
	wd.RegisterComponent(componentSweeper, 3*det.QuarantineSweep())
	wd.RegisterComponent(componentAuditQueue, auditBeatGrace)

	tracker.OnReap = func(removed int) {
		metrics.RateTrackerKeys.Set(float64(tracker.Len()))
		wd.Heartbeat(componentTracker)
		if removed > 0 {
			logging.Debug("Rate tracker reaped %d idle keys", removed)
		}
	}
	quarantine.OnSweep = wd.Beat(componentSweeper)
	audit.OnFlush = wd.Beat(componentAuditQueue)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Addr, wd)
	}

	b.Components = &Components{
		Store:       store,
		Profiles:    profiles,
		Audit:       audit,
		Tracker:     tracker,
		Snipes:      snipes,
		Session:     session,
		HTTPPool:    httpPool,
		RateLimiter: rateLimiter,
		Mutator:     mutator,
		Notifier:    notify,
		Correlator:  correlator,
		Engine:      engine,
		Quarantine:  quarantine,
		TempGrants:  grants,
		Detector:    detector,
		Commands:    handler,
		Watchdog:    wd,
		Server:      srv,
	}

	logging.Info("Component wiring complete")
	return nil
}

func StartAll(ctx context.Context, b *Bootstrap) error {
	logging.Info("Starting components...")
	c := b.Components
	det := b.Config.Detection

	// Start watchdog first to monitor other components
	c.Watchdog.Start(ctx)
	logging.Info("Watchdog started")

	c.Audit.Start()
	c.Tracker.Start(ctx, det.ReaperInterval())
	logging.Info("Audit writer and rate tracker reaper started")

	warmed := c.HTTPPool.Warmup()
	logging.Info("HTTP pool warmed (%d/%d connections)", warmed, c.HTTPPool.Size())

	if err := c.Session.Open(ctx); err != nil {
		return err
	}

	if err := c.Commands.Initialize(ctx, c.Session, b.Config.Bot.ApplicationID, b.Config.Bot.DevGuildID); err != nil {
		return err
	}

	c.Quarantine.StartSweeper(ctx, det.QuarantineSweep())
	logging.Info("Quarantine sweeper started (every %s)", det.QuarantineSweep())

	logging.Info("All components started")
	return nil
}
