package config

import (
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// DetectionConfig carries the process-wide antinuke defaults. Per-guild
// overrides live in models.Thresholds and are merged on top.
type DetectionConfig struct {
	Enabled  bool          `json:"enabled" envconfig:"DETECTION_ENABLED"`
	Defaults models.Limits `json:"defaults"`

	ReaperIntervalSeconds  int `json:"reaper_interval_seconds"`
	AuditLookbackSeconds   int `json:"audit_lookback_seconds"`
	QuarantineSweepSeconds int `json:"quarantine_sweep_seconds"`
	DefaultJailSeconds     int `json:"default_jail_seconds"`
	DefaultTempRoleSeconds int `json:"default_temprole_seconds"`
	SnipeTTLSeconds        int `json:"snipe_ttl_seconds"`
	NotifyPerMinute        int `json:"notify_per_minute"`
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (d DetectionConfig) ReaperInterval() time.Duration {
	return seconds(d.ReaperIntervalSeconds, 60)
}

func (d DetectionConfig) AuditLookback() time.Duration {
	return seconds(d.AuditLookbackSeconds, 10)
}

func (d DetectionConfig) QuarantineSweep() time.Duration {
	return seconds(d.QuarantineSweepSeconds, 60)
}

func (d DetectionConfig) DefaultJail() time.Duration {
	return seconds(d.DefaultJailSeconds, 3600)
}

func (d DetectionConfig) DefaultTempRole() time.Duration {
	return seconds(d.DefaultTempRoleSeconds, 600)
}

func (d DetectionConfig) SnipeTTL() time.Duration {
	return seconds(d.SnipeTTLSeconds, 300)
}

// Limits resolves a guild's overrides against the configured defaults.
func (d DetectionConfig) Limits(g models.GuildSettings) models.Limits {
	return g.Antinuke.WithDefaults(d.Defaults.WithFallback(models.DefaultLimits()))
}
