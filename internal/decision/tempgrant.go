package decision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

type grantKey struct {
	GuildID  string
	MemberID string
	RoleID   string
}

type grant struct {
	timer  *time.Timer
	expiry time.Time
}

// TempGrants adds a role now and removes it after a delay. Pending revokes
// are in-memory timers; a newer grant of the same role replaces the old one.
type TempGrants struct {
	mutator dispatcher.Mutator
	audit   AuditSink
	now     func() time.Time

	mu      sync.Mutex
	pending map[grantKey]*grant
	stopped bool
	wg      sync.WaitGroup
}

func NewTempGrants(mutator dispatcher.Mutator, audit AuditSink) *TempGrants {
	return &TempGrants{
		mutator: mutator,
		audit:   audit,
		now:     time.Now,
		pending: make(map[grantKey]*grant),
	}
}

func (t *TempGrants) Grant(ctx context.Context, guildID, memberID, roleID string, duration time.Duration, reason string) (time.Time, error) {
	if duration <= 0 {
		return time.Time{}, ErrInvalidDuration
	}
	if reason == "" {
		reason = "Temp role"
	}
	if err := t.mutator.AddRole(ctx, guildID, memberID, roleID, reason); err != nil {
		return time.Time{}, fmt.Errorf("add role: %w", err)
	}

	key := grantKey{GuildID: guildID, MemberID: memberID, RoleID: roleID}
	g := &grant{expiry: t.now().Add(duration)}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return g.expiry, nil
	}
	if old, ok := t.pending[key]; ok {
		old.timer.Stop()
	}
	g.timer = time.AfterFunc(duration, func() { t.expire(key, g) })
	t.pending[key] = g
	metrics.TempGrantsPending.Set(float64(len(t.pending)))

	e := models.NewAuditEntry(guildID, memberID, models.ActionTempGrant, reason)
	e.Detail = roleID + " until " + g.expiry.UTC().Format(time.RFC3339)
	t.enqueue(e)
	return g.expiry, nil
}

func (t *TempGrants) expire(key grantKey, g *grant) {
	t.mu.Lock()
	if t.stopped || t.pending[key] != g {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	metrics.TempGrantsPending.Set(float64(len(t.pending)))
	t.wg.Add(1)
	t.mu.Unlock()
	defer t.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := t.mutator.RemoveRole(ctx, key.GuildID, key.MemberID, key.RoleID, "Temp role expired")
	switch {
	case err == nil:
		t.enqueue(models.NewAuditEntry(key.GuildID, key.MemberID, models.ActionTempRevoke, key.RoleID))
	case dispatcher.IsPermissionDenied(err), errors.Is(err, dispatcher.ErrUnknownResource):
		logging.Debug("Temp role %s not removed from %s in guild %s: %v", key.RoleID, key.MemberID, key.GuildID, err)
	default:
		logging.Error("Failed to remove temp role %s from %s in guild %s: %v", key.RoleID, key.MemberID, key.GuildID, err)
	}
}

// Cancel drops a pending revoke; the role stays on the member.
func (t *TempGrants) Cancel(guildID, memberID, roleID string) bool {
	key := grantKey{GuildID: guildID, MemberID: memberID, RoleID: roleID}

	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.pending[key]
	if !ok {
		return false
	}
	g.timer.Stop()
	delete(t.pending, key)
	metrics.TempGrantsPending.Set(float64(len(t.pending)))
	return true
}

func (t *TempGrants) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels every pending revoke and waits for running ones.
func (t *TempGrants) Stop() {
	t.mu.Lock()
	t.stopped = true
	for key, g := range t.pending {
		g.timer.Stop()
		delete(t.pending, key)
	}
	metrics.TempGrantsPending.Set(0)
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *TempGrants) enqueue(e models.AuditEntry) {
	if t.audit != nil {
		t.audit.Enqueue(e)
	}
}
