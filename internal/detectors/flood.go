package detectors

import (
	"context"
	"fmt"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/state"
)

// OnMessage runs the content rules and the flood window for one message.
func (d *Detector) OnMessage(ctx context.Context, ev models.MessageEvent) {
	defer d.track(models.EventKindMessageCreate, ev.GuildID)()
	if ev.GuildID == "" || ev.AuthorBot || !d.detection.Enabled {
		return
	}

	settings := d.settings(ctx, ev.GuildID)
	limits := d.detection.Limits(settings)

	v := classifyContent(&ev, limits)
	if v != contentAllowed {
		d.blockContent(ctx, &ev, settings, v)
	}
	if v == contentInvite {
		return
	}

	if settings.IsWhitelisted(ev.AuthorID) {
		return
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = d.now()
	}
	key := state.RateKey{GuildID: ev.GuildID, ActorID: ev.AuthorID, Category: models.CategoryFlood}
	count, breached := d.tracker.RecordBreach(key, at, limits.FloodWindow(), limits.SpamThreshold)
	if !breached {
		return
	}

	if v == contentAllowed {
		d.deleteMessage(ctx, &ev)
	}
	d.enforce(ctx, models.Breach{
		GuildID:   ev.GuildID,
		ActorID:   ev.AuthorID,
		Category:  models.CategoryFlood,
		Count:     count,
		Reason:    fmt.Sprintf("Spam: %d/%d in %ds", count, limits.SpamThreshold, limits.SpamWindow),
		Timestamp: at,
	}, settings)
}
