package models

import "time"

// Action names recorded in the audit trail.
const (
	ActionTimeout        = "timeout"
	ActionRoleRevoke     = "role_revoke"
	ActionRoleRevert     = "role_revert"
	ActionContentDelete  = "content_delete"
	ActionJail           = "jail"
	ActionUnjail         = "unjail"
	ActionTempGrant      = "temp_grant"
	ActionTempRevoke     = "temp_revoke"
	ActionWarn           = "warn"
	ActionWhitelistAdd   = "whitelist_add"
	ActionWhitelistDrop  = "whitelist_remove"
	ActionSettingsChange = "settings_change"
)

// AuditEntry is one record of the bot's own enforcement trail.
type AuditEntry struct {
	GuildID   string    `json:"guild_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	TargetID  string    `json:"target_id"`
	Action    string    `json:"action"`
	Category  Category  `json:"category,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"time"`
}

func NewAuditEntry(guildID, targetID, action, reason string) AuditEntry {
	return AuditEntry{
		GuildID:   guildID,
		TargetID:  targetID,
		Action:    action,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}
