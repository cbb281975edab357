package detectors

import (
	"context"
	"fmt"

	"github.com/eryxsegithub/TheStudioBot/internal/forensics"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
)

// OnChannelDelete attributes a channel deletion and counts it against the
// deleting actor.
func (d *Detector) OnChannelDelete(ctx context.Context, ev models.ResourceDeleteEvent) {
	defer d.track(models.EventKindChannelDelete, ev.GuildID)()
	if ev.GuildID == "" || !d.detection.Enabled {
		return
	}

	match, ok := d.resolve(ctx, ev.GuildID, ev.ResourceID, forensics.ActionChannelDelete)
	if !ok {
		return
	}

	settings := d.settings(ctx, ev.GuildID)
	limits := d.detection.Limits(settings)

	at := ev.Timestamp
	if at.IsZero() {
		at = d.now()
	}
	key := state.RateKey{GuildID: ev.GuildID, ActorID: match.ActorID, Category: models.CategoryMassDelete}
	count, breached := d.tracker.RecordBreach(key, at, limits.MassDeleteWindow(), limits.ChannelDeleteThreshold)
	if !breached {
		logging.Debug("Channel %s deleted by %s in guild %s (%d/%d)", ev.ResourceID, match.ActorID, ev.GuildID, count, limits.ChannelDeleteThreshold)
		return
	}
	if settings.IsWhitelisted(match.ActorID) {
		logging.Info("Whitelisted %s deleted %d channels in guild %s", match.ActorID, count, ev.GuildID)
		return
	}

	d.enforce(ctx, models.Breach{
		GuildID:   ev.GuildID,
		ActorID:   match.ActorID,
		Category:  models.CategoryMassDelete,
		Count:     count,
		Reason:    fmt.Sprintf("Mass channel deletions (%d/%d in %ds)", count, limits.ChannelDeleteThreshold, limits.ChannelDeleteWindow),
		Timestamp: at,
	}, settings)
}

// resolve finds the audit entry for the resource and claims it so a
// redelivered event is not counted twice.
func (d *Detector) resolve(ctx context.Context, guildID, resourceID string, action int) (forensics.AuditMatch, bool) {
	match, ok := d.resolver.FindActor(ctx, guildID, resourceID, action, d.detection.AuditLookback())
	if !ok {
		metrics.CorrelationsTotal.WithLabelValues("unresolved").Inc()
		return match, false
	}
	if !d.resolver.Claim(match.EntryID) {
		metrics.CorrelationsTotal.WithLabelValues("duplicate").Inc()
		logging.Debug("Audit entry %s in guild %s already handled", match.EntryID, guildID)
		return match, false
	}
	metrics.CorrelationsTotal.WithLabelValues("resolved").Inc()
	return match, true
}
