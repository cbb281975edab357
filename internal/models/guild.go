package models

import (
	"math/rand/v2"
	"slices"
	"time"
)

// GuildSettings is the persisted per-guild document.
type GuildSettings struct {
	GuildID      string                      `json:"guild_id"`
	Prefix       string                      `json:"prefix,omitempty"`
	LogChannelID string                      `json:"log_channel_id,omitempty"`
	JailRoleID   string                      `json:"jail_role_id,omitempty"`
	WhitelistIDs []string                    `json:"whitelist_ids"`
	Antinuke     Thresholds                  `json:"antinuke"`
	Jailed       map[string]QuarantineRecord `json:"jailed"`
	Warns        map[string][]WarnRecord     `json:"warns"`
}

func NewGuildSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:      guildID,
		WhitelistIDs: []string{},
		Jailed:       make(map[string]QuarantineRecord),
		Warns:        make(map[string][]WarnRecord),
	}
}

// Normalize fills nil collections so callers never have to nil-check.
func (g *GuildSettings) Normalize() {
	if g.WhitelistIDs == nil {
		g.WhitelistIDs = []string{}
	}
	if g.Jailed == nil {
		g.Jailed = make(map[string]QuarantineRecord)
	}
	if g.Warns == nil {
		g.Warns = make(map[string][]WarnRecord)
	}
}

func (g *GuildSettings) IsWhitelisted(actorID string) bool {
	return slices.Contains(g.WhitelistIDs, actorID)
}

// AddWhitelist reports false when the actor was already present.
func (g *GuildSettings) AddWhitelist(actorID string) bool {
	if g.IsWhitelisted(actorID) {
		return false
	}
	g.WhitelistIDs = append(g.WhitelistIDs, actorID)
	return true
}

func (g *GuildSettings) RemoveWhitelist(actorID string) bool {
	i := slices.Index(g.WhitelistIDs, actorID)
	if i < 0 {
		return false
	}
	g.WhitelistIDs = slices.Delete(g.WhitelistIDs, i, i+1)
	return true
}

// Clone returns a deep copy.
func (g GuildSettings) Clone() GuildSettings {
	out := g
	out.WhitelistIDs = slices.Clone(g.WhitelistIDs)
	out.Antinuke = g.Antinuke.clone()
	out.Jailed = make(map[string]QuarantineRecord, len(g.Jailed))
	for k, v := range g.Jailed {
		v.Roles = slices.Clone(v.Roles)
		out.Jailed[k] = v
	}
	out.Warns = make(map[string][]WarnRecord, len(g.Warns))
	for k, v := range g.Warns {
		out.Warns[k] = slices.Clone(v)
	}
	if out.WhitelistIDs == nil {
		out.WhitelistIDs = []string{}
	}
	return out
}

// QuarantineRecord is the snapshot taken when a member is jailed.
type QuarantineRecord struct {
	MemberID  string    `json:"member_id,omitempty"`
	Roles     []string  `json:"roles"`
	JailedAt  time.Time `json:"jailed_at"`
	ReleaseAt time.Time `json:"until"`
	Reason    string    `json:"reason,omitempty"`
}

func (q QuarantineRecord) Expired(now time.Time) bool {
	return !q.ReleaseAt.After(now)
}

type WarnRecord struct {
	ID          int       `json:"id"`
	ModeratorID string    `json:"moderator_id"`
	Reason      string    `json:"reason"`
	Time        time.Time `json:"time"`
}

// NewWarnRecord assigns a random six digit id. Ids are only unique enough
// for a moderator to reference one warn of one member.
func NewWarnRecord(moderatorID, reason string, at time.Time) WarnRecord {
	if reason == "" {
		reason = "No reason"
	}
	return WarnRecord{
		ID:          100000 + rand.IntN(900000),
		ModeratorID: moderatorID,
		Reason:      reason,
		Time:        at.UTC(),
	}
}
