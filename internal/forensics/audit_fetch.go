package forensics

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
)

// Audit log action types used for correlation.
const (
	ActionChannelDelete = int(discordgo.AuditLogActionChannelDelete)
	ActionRoleUpdate    = int(discordgo.AuditLogActionRoleUpdate)
)

// Fetch limits per action type. Bursts of deletions produce several entries
// close together; a role update usually is the most recent entry.
var fetchLimits = map[int]int{
	ActionChannelDelete: 5,
	ActionRoleUpdate:    3,
}

func LimitFor(action int) int {
	if n, ok := fetchLimits[action]; ok {
		return n
	}
	return 5
}

type AuditLogEntry struct {
	ID         string
	ActionType int
	TargetID   string
	UserID     string
	UserBot    bool
	Reason     string
	CreatedAt  time.Time
}

// AuditSource reads the most recent audit log entries of one action type.
type AuditSource interface {
	FetchByAction(ctx context.Context, guildID string, action, limit int) ([]AuditLogEntry, error)
}

type AuditLogFetcher struct {
	session *discordgo.Session
}

func NewAuditLogFetcher(session *discordgo.Session) *AuditLogFetcher {
	return &AuditLogFetcher{session: session}
}

func (alf *AuditLogFetcher) FetchByAction(ctx context.Context, guildID string, action, limit int) ([]AuditLogEntry, error) {
	audit, err := alf.session.GuildAuditLog(guildID, "", "", action, limit, discordgo.WithContext(ctx))
	if err != nil {
		var rest *discordgo.RESTError
		if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == 403 {
			return nil, errors.Join(dispatcher.ErrPermissionDenied, err)
		}
		return nil, err
	}

	bots := make(map[string]bool, len(audit.Users))
	for _, u := range audit.Users {
		if u != nil && u.Bot {
			bots[u.ID] = true
		}
	}

	out := make([]AuditLogEntry, 0, len(audit.AuditLogEntries))
	for _, e := range audit.AuditLogEntries {
		if e == nil {
			continue
		}
		entry := AuditLogEntry{
			ID:       e.ID,
			TargetID: e.TargetID,
			UserID:   e.UserID,
			UserBot:  bots[e.UserID],
			Reason:   e.Reason,
		}
		if e.ActionType != nil {
			entry.ActionType = int(*e.ActionType)
		}
		entry.CreatedAt, _ = discordgo.SnowflakeTimestamp(e.ID)
		out = append(out, entry)
	}
	return out, nil
}
