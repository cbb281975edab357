package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eryxsegithub/TheStudioBot/internal/bot"
	"github.com/eryxsegithub/TheStudioBot/internal/commands"
	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/database"
	"github.com/eryxsegithub/TheStudioBot/internal/decision"
	"github.com/eryxsegithub/TheStudioBot/internal/detectors"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/forensics"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
	"github.com/eryxsegithub/TheStudioBot/internal/server"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
	"github.com/eryxsegithub/TheStudioBot/internal/watchdog"
)

const serverShutdownTimeout = 5 * time.Second

type Bootstrap struct {
	Config      *config.Config
	Components  *Components
	initialized bool
}

type Components struct {
	// Persistence
	Store    database.Store
	Profiles *config.ProfileStore
	Audit    *database.AuditWriter

	// Detection state
	Tracker *state.RateTracker
	Snipes  *state.MessageCache

	// Discord transport
	Session     *bot.Session
	HTTPPool    *dispatcher.HTTPPool
	RateLimiter *dispatcher.RateLimitMonitor
	Mutator     *dispatcher.Discord
	Notifier    *notifier.Discord
	Correlator  *forensics.Correlator

	// Enforcement
	Engine     *decision.Engine
	Quarantine *decision.Quarantine
	TempGrants *decision.TempGrants
	Detector   *detectors.Detector
	Commands   *commands.Handler

	// Monitoring and observability
	Watchdog *watchdog.Watchdog
	Server   *server.Server
}

func New(cfg *config.Config) *Bootstrap {
	return &Bootstrap{Config: cfg}
}

// Initialize opens the store and wires every component without touching
// the network.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	if b.Config == nil {
		return errors.New("bootstrap requires a config")
	}
	if b.Config.Bot.Token == "" {
		return errors.New("no bot token configured (set DISCORD_TOKEN)")
	}
	if err := Wire(ctx, b); err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}
	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

func (b *Bootstrap) Start(ctx context.Context) error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}
	return StartAll(ctx, b)
}

// Run starts everything, blocks until ctx is cancelled or the ops server
// fails, then shuts down.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return errors.Join(err, b.Shutdown())
	}

	g, gctx := errgroup.WithContext(ctx)
	if srv := b.Components.Server; srv != nil {
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutdown requested")
		return nil
	})

	runErr := g.Wait()
	return errors.Join(runErr, b.Shutdown())
}

func (b *Bootstrap) Shutdown() error {
	if b.Components == nil {
		return nil
	}
	return Shutdown(b.Components)
}
