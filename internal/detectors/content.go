package detectors

import (
	"context"
	"regexp"

	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
)

var inviteRe = regexp.MustCompile(`(?i)(?:discord\.gg|discord\.com/invite)/[a-zA-Z0-9\-]+`)

type contentVerdict uint8

const (
	contentAllowed contentVerdict = iota
	contentInvite
	contentImage
)

func (v contentVerdict) title() string {
	switch v {
	case contentInvite:
		return "Invite Blocked"
	case contentImage:
		return "Image Blocked"
	}
	return ""
}

func (v contentVerdict) label() string {
	switch v {
	case contentInvite:
		return "invite"
	case contentImage:
		return "image"
	}
	return "none"
}

// classifyContent applies the stateless content rules. Invites win over
// images since they end processing of the message.
func classifyContent(ev *models.MessageEvent, limits models.Limits) contentVerdict {
	if limits.BlockInvites && inviteRe.MatchString(ev.Content) {
		return contentInvite
	}
	if limits.BlockNSFWInSFWChannels && !ev.ChannelNSFW && ev.HasImage() {
		return contentImage
	}
	return contentAllowed
}

// blockContent deletes the message and reports it. The author is not
// punished.
func (d *Detector) blockContent(ctx context.Context, ev *models.MessageEvent, settings models.GuildSettings, v contentVerdict) {
	metrics.ContentBlockedTotal.WithLabelValues(v.label()).Inc()
	d.deleteMessage(ctx, ev)

	if d.notifier == nil {
		return
	}
	embed := notifier.ContentBlockedEmbed(v.title(), ev.AuthorID, ev.ChannelID)
	if err := d.notifier.NotifyRoutine(ctx, settings, embed); err != nil {
		logging.Debug("Content notice for guild %s not sent: %v", ev.GuildID, err)
	}
}

func (d *Detector) deleteMessage(ctx context.Context, ev *models.MessageEvent) {
	err := d.mutator.DeleteMessage(ctx, ev.ChannelID, ev.MessageID)
	switch {
	case err == nil:
	case dispatcher.IsPermissionDenied(err):
		logging.Debug("Cannot delete message %s in guild %s", ev.MessageID, ev.GuildID)
	default:
		logging.Warn("Failed to delete message %s in guild %s: %v", ev.MessageID, ev.GuildID, err)
	}
}
