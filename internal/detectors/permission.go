package detectors

import (
	"context"
	"fmt"

	"github.com/eryxsegithub/TheStudioBot/internal/forensics"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// OnRoleUpdate breaches immediately when a role gains a dangerous
// permission from someone outside the whitelist.
func (d *Detector) OnRoleUpdate(ctx context.Context, ev models.PermissionChangeEvent) {
	defer d.track(models.EventKindRoleUpdate, ev.GuildID)()
	if ev.GuildID == "" || !d.detection.Enabled {
		return
	}

	added := models.DangerousAdded(ev.Before, ev.After)
	if added == 0 {
		return
	}

	match, ok := d.resolve(ctx, ev.GuildID, ev.RoleID, forensics.ActionRoleUpdate)
	if !ok {
		logging.Debug("Dangerous grant on role %s in guild %s has no known actor", ev.RoleID, ev.GuildID)
		return
	}

	settings := d.settings(ctx, ev.GuildID)
	if settings.IsWhitelisted(match.ActorID) {
		return
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = d.now()
	}
	name := ev.RoleName
	if name == "" {
		name = ev.RoleID
	}
	d.enforce(ctx, models.Breach{
		GuildID:   ev.GuildID,
		ActorID:   match.ActorID,
		Category:  models.CategoryPrivilegeEscalation,
		Count:     1,
		Reason:    fmt.Sprintf("Dangerous permission grant on role %s", name),
		Timestamp: at,
		Role:      &models.RoleRevert{RoleID: ev.RoleID, Permissions: ev.Before},
	}, settings)
}
