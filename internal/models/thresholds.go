package models

import "time"

// MaxWindowSeconds caps configurable detection windows. Rate trackers keep
// history for at least this long.
const MaxWindowSeconds = 3600

// Thresholds holds the per-guild antinuke overrides. A nil field means the
// process default applies.
type Thresholds struct {
	TimeoutSeconds           *int  `json:"timeout_seconds,omitempty"`
	SpamThreshold            *int  `json:"spam_threshold,omitempty"`
	SpamWindow               *int  `json:"spam_window,omitempty"`
	ChannelDeleteThreshold   *int  `json:"channel_delete_threshold,omitempty"`
	ChannelDeleteWindow      *int  `json:"channel_delete_window,omitempty"`
	AutoRevokeDangerousPerms *bool `json:"auto_revoke_dangerous_perms,omitempty"`
	BlockInvites             *bool `json:"block_invites,omitempty"`
	BlockNSFWInSFWChannels   *bool `json:"block_nsfw_in_sfw_channels,omitempty"`
}

// Limits is the fully resolved form of Thresholds.
type Limits struct {
	TimeoutSeconds           int  `json:"timeout_seconds"`
	SpamThreshold            int  `json:"spam_threshold"`
	SpamWindow               int  `json:"spam_window"`
	ChannelDeleteThreshold   int  `json:"channel_delete_threshold"`
	ChannelDeleteWindow      int  `json:"channel_delete_window"`
	AutoRevokeDangerousPerms bool `json:"auto_revoke_dangerous_perms"`
	BlockInvites             bool `json:"block_invites"`
	BlockNSFWInSFWChannels   bool `json:"block_nsfw_in_sfw_channels"`
}

func DefaultLimits() Limits {
	return Limits{
		TimeoutSeconds:           60,
		SpamThreshold:            7,
		SpamWindow:               5,
		ChannelDeleteThreshold:   3,
		ChannelDeleteWindow:      15,
		AutoRevokeDangerousPerms: true,
		BlockInvites:             true,
		BlockNSFWInSFWChannels:   true,
	}
}

// WithDefaults resolves every field, taking d for unset or non-positive values.
func (t Thresholds) WithDefaults(d Limits) Limits {
	out := d
	pickInt(&out.TimeoutSeconds, t.TimeoutSeconds)
	pickInt(&out.SpamThreshold, t.SpamThreshold)
	pickInt(&out.SpamWindow, t.SpamWindow)
	pickInt(&out.ChannelDeleteThreshold, t.ChannelDeleteThreshold)
	pickInt(&out.ChannelDeleteWindow, t.ChannelDeleteWindow)
	if t.AutoRevokeDangerousPerms != nil {
		out.AutoRevokeDangerousPerms = *t.AutoRevokeDangerousPerms
	}
	if t.BlockInvites != nil {
		out.BlockInvites = *t.BlockInvites
	}
	if t.BlockNSFWInSFWChannels != nil {
		out.BlockNSFWInSFWChannels = *t.BlockNSFWInSFWChannels
	}
	return out
}

func pickInt(dst *int, v *int) {
	if v != nil && *v > 0 {
		*dst = *v
	}
}

func (t Thresholds) clone() Thresholds {
	return Thresholds{
		TimeoutSeconds:           clonePtr(t.TimeoutSeconds),
		SpamThreshold:            clonePtr(t.SpamThreshold),
		SpamWindow:               clonePtr(t.SpamWindow),
		ChannelDeleteThreshold:   clonePtr(t.ChannelDeleteThreshold),
		ChannelDeleteWindow:      clonePtr(t.ChannelDeleteWindow),
		AutoRevokeDangerousPerms: clonePtr(t.AutoRevokeDangerousPerms),
		BlockInvites:             clonePtr(t.BlockInvites),
		BlockNSFWInSFWChannels:   clonePtr(t.BlockNSFWInSFWChannels),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (l Limits) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func (l Limits) FloodWindow() time.Duration {
	return time.Duration(l.SpamWindow) * time.Second
}

func (l Limits) MassDeleteWindow() time.Duration {
	return time.Duration(l.ChannelDeleteWindow) * time.Second
}

// WithFallback replaces non-positive numeric limits with those of f.
func (l Limits) WithFallback(f Limits) Limits {
	if l.TimeoutSeconds <= 0 {
		l.TimeoutSeconds = f.TimeoutSeconds
	}
	if l.SpamThreshold <= 0 {
		l.SpamThreshold = f.SpamThreshold
	}
	if l.SpamWindow <= 0 {
		l.SpamWindow = f.SpamWindow
	}
	if l.ChannelDeleteThreshold <= 0 {
		l.ChannelDeleteThreshold = f.ChannelDeleteThreshold
	}
	if l.ChannelDeleteWindow <= 0 {
		l.ChannelDeleteWindow = f.ChannelDeleteWindow
	}
	return l
}
