package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// EnvPrefix is the prefix for environment overrides, e.g. STUDIO_STORE_BACKEND.
const EnvPrefix = "studio"

type Config struct {
	Bot       BotConfig       `json:"bot"`
	Store     StoreConfig     `json:"store"`
	Detection DetectionConfig `json:"detection"`
	Network   NetworkConfig   `json:"network"`
	Logging   LoggingConfig   `json:"logging"`
	Server    ServerConfig    `json:"server"`
}

type BotConfig struct {
	Token         string `json:"token"          envconfig:"DISCORD_TOKEN"`
	ApplicationID string `json:"application_id" envconfig:"CLIENT_ID"`
	// DevGuildID registers slash commands on one guild instead of globally.
	DevGuildID string `json:"dev_guild_id" envconfig:"DEV_GUILD_ID"`
}

const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type StoreConfig struct {
	Backend string `json:"backend" envconfig:"STORE_BACKEND"`
	// Path is the JSON document or sqlite file.
	Path string `json:"path" envconfig:"DATA_PATH"`
	// DSN is used by the postgres backend.
	DSN            string `json:"dsn"              envconfig:"DATABASE_URL"`
	AuditQueueSize int    `json:"audit_queue_size" envconfig:"AUDIT_QUEUE_SIZE"`
}

type NetworkConfig struct {
	HTTPPoolSize int    `json:"http_pool_size" envconfig:"HTTP_POOL_SIZE"`
	APIBaseURL   string `json:"api_base_url"   envconfig:"API_BASE_URL"`
}

type LoggingConfig struct {
	Level  string `json:"level"  envconfig:"LOG_LEVEL"`
	Format string `json:"format" envconfig:"LOG_FORMAT"`
	Path   string `json:"path"   envconfig:"LOG_PATH"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled" envconfig:"METRICS_ENABLED"`
	Addr    string `json:"addr"    envconfig:"METRICS_ADDR"`
}

// Load reads the JSON file at path on top of DefaultConfig and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendJSON, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store backend %q requires a path", c.Store.Backend)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return errors.New("store backend postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:        BackendJSON,
			Path:           "data/guilds.json",
			AuditQueueSize: 1024,
		},
		Detection: DetectionConfig{
			Enabled:                true,
			Defaults:               models.DefaultLimits(),
			ReaperIntervalSeconds:  60,
			AuditLookbackSeconds:   10,
			QuarantineSweepSeconds: 60,
			DefaultJailSeconds:     3600,
			DefaultTempRoleSeconds: 600,
			SnipeTTLSeconds:        300,
			NotifyPerMinute:        30,
		},
		Network: NetworkConfig{
			HTTPPoolSize: 4,
			APIBaseURL:   "https://discord.com/api/v10",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Path:   "logs/studio.log",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}
