package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Bot.Token = "test-token"
	cfg.Store.Path = filepath.Join(t.TempDir(), "guilds.json")
	cfg.Server.Enabled = false
	return cfg
}

func TestInitializeRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bot.Token = ""
	err := New(cfg).Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
}

func TestStartBeforeInitialize(t *testing.T) {
	require.Error(t, New(testConfig(t)).Start(context.Background()))
}

func TestWireAndShutdown(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	b := New(cfg)
	require.NoError(t, b.Initialize(ctx))
	c := b.Components

	seeded := models.NewGuildSettings("g1")
	seeded.WhitelistIDs = []string{"u1"}
	require.NoError(t, c.Store.Set(ctx, seeded))
	require.NoError(t, b.Shutdown())

	// The second start warms the profile cache from the stored document.
	b = New(cfg)
	require.NoError(t, b.Initialize(ctx))
	c = b.Components
	defer func() { assert.NoError(t, b.Shutdown()) }()

	assert.True(t, c.Profiles.IsWhitelisted("g1", "u1"))
	assert.NotNil(t, c.Detector)
	assert.NotNil(t, c.Commands)
	assert.Nil(t, c.Server)

	names := make([]string, 0, 3)
	for _, h := range c.Watchdog.GetStatus() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{componentAuditQueue, componentSweeper, componentTracker}, names)

	c.Tracker.OnReap(0)
	assert.True(t, c.Watchdog.IsHealthy(componentTracker))
}

func TestWireRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "etcd"
	err := New(cfg).Initialize(context.Background())
	require.Error(t, err)
}

func TestServerWiredWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Enabled = true
	cfg.Server.Addr = "127.0.0.1:0"

	b := New(cfg)
	require.NoError(t, b.Initialize(context.Background()))
	defer b.Shutdown()
	assert.NotNil(t, b.Components.Server)
}
