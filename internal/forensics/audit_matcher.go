package forensics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

type AuditMatch struct {
	ActorID   string
	ActorBot  bool
	EntryID   string
	Reason    string
	CreatedAt time.Time
}

// Correlator attributes an anonymous destructive event to the actor recorded
// in the guild's audit log. It is best-effort: any failure means "unknown"
// and the caller must not enforce.
type Correlator struct {
	source AuditSource
	now    func() time.Time

	mu     sync.Mutex
	selfID string
	seen   *expirable.LRU[string, struct{}]
}

// NewCorrelator ignores entries made by selfID, the bot's own user.
func NewCorrelator(source AuditSource, selfID string) *Correlator {
	return &Correlator{
		source: source,
		selfID: selfID,
		seen:   expirable.NewLRU[string, struct{}](4096, nil, 10*time.Minute),
		now:    time.Now,
	}
}

func (c *Correlator) SetSelfID(id string) {
	c.mu.Lock()
	c.selfID = id
	c.mu.Unlock()
}

func (c *Correlator) self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// FindActor looks for an entry of the given action targeting resourceID and
// created within lookback. Entries without a parseable timestamp are trusted.
func (c *Correlator) FindActor(ctx context.Context, guildID, resourceID string, action int, lookback time.Duration) (AuditMatch, bool) {
	entries, err := c.source.FetchByAction(ctx, guildID, action, LimitFor(action))
	if err != nil {
		if errors.Is(err, dispatcher.ErrPermissionDenied) {
			logging.Debug("Audit log not readable in guild %s", guildID)
		} else {
			logging.Warn("Failed to fetch audit log for guild %s action %d: %v", guildID, action, err)
		}
		return AuditMatch{}, false
	}

	entry := matchEntry(entries, resourceID, action, c.now(), lookback)
	if entry == nil || entry.UserID == "" || entry.UserID == c.self() {
		return AuditMatch{}, false
	}

	return AuditMatch{
		ActorID:   entry.UserID,
		ActorBot:  entry.UserBot,
		EntryID:   entry.ID,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt,
	}, true
}

func matchEntry(entries []AuditLogEntry, targetID string, action int, now time.Time, lookback time.Duration) *AuditLogEntry {
	for i := range entries {
		entry := &entries[i]
		if entry.TargetID != targetID {
			continue
		}
		if entry.ActionType != 0 && entry.ActionType != action {
			continue
		}
		if lookback > 0 && !entry.CreatedAt.IsZero() && now.Sub(entry.CreatedAt) > lookback {
			continue
		}
		return entry
	}
	return nil
}

// Claim reports whether entryID is seen for the first time. Duplicate event
// deliveries resolve to the same audit entry and are counted once.
func (c *Correlator) Claim(entryID string) bool {
	if entryID == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen.Contains(entryID) {
		return false
	}
	c.seen.Add(entryID, struct{}{})
	return true
}
