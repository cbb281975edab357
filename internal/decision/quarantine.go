package decision

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/eryxsegithub/TheStudioBot/internal/database"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

var (
	ErrNotQuarantined  = errors.New("member is not quarantined")
	ErrInvalidDuration = errors.New("duration must be positive")
)

const (
	JailRoleName    = "Jail"
	JailChannelName = "jail"
)

// Overwrites applied for the jail role: denied everywhere, allowed to talk
// in the jail channel.
const (
	jailDeny = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionVoiceSpeak | discordgo.PermissionSendMessagesInThreads |
		discordgo.PermissionAddReactions
	jailAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
)

// Quarantine jails members into a restricted role and restores their roles
// on release. Records live in the guild settings so they survive restarts.
type Quarantine struct {
	store           database.Store
	mutator         dispatcher.Mutator
	audit           AuditSink
	defaultDuration time.Duration
	now             func() time.Time

	// OnSweep is called after every sweep, used as a liveness beat.
	OnSweep func()

	provision sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewQuarantine(store database.Store, mutator dispatcher.Mutator, audit AuditSink, defaultDuration time.Duration) *Quarantine {
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Quarantine{
		store:           store,
		mutator:         mutator,
		audit:           audit,
		defaultDuration: defaultDuration,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
}

// Jail snapshots the member's roles and replaces them with the jail role.
// A zero duration means the default; a negative one is rejected. Jailing a
// member who is already jailed keeps the first snapshot and moves the
// release time.
func (q *Quarantine) Jail(ctx context.Context, guildID, memberID string, duration time.Duration, reason string) (models.QuarantineRecord, error) {
	if duration < 0 {
		return models.QuarantineRecord{}, ErrInvalidDuration
	}
	if duration == 0 {
		duration = q.defaultDuration
	}

	settings, err := q.store.Get(ctx, guildID)
	if err != nil {
		return models.QuarantineRecord{}, fmt.Errorf("load settings: %w", err)
	}
	roleID, err := q.ensureJail(ctx, guildID, settings.JailRoleID)
	if err != nil {
		return models.QuarantineRecord{}, err
	}

	member, err := q.mutator.Member(ctx, guildID, memberID)
	if err != nil {
		return models.QuarantineRecord{}, fmt.Errorf("fetch member: %w", err)
	}

	now := q.now().UTC()
	record := models.QuarantineRecord{
		MemberID:  memberID,
		JailedAt:  now,
		ReleaseAt: now.Add(duration),
		Reason:    reason,
	}
	for _, id := range member.Roles {
		if id != guildID && id != roleID {
			record.Roles = append(record.Roles, id)
		}
	}

	var previous *models.QuarantineRecord
	_, err = q.store.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		if old, ok := g.Jailed[memberID]; ok {
			previous = &old
			record.Roles = old.Roles
			record.JailedAt = old.JailedAt
		}
		g.Jailed[memberID] = record
		return nil
	})
	if err != nil {
		return models.QuarantineRecord{}, fmt.Errorf("persist quarantine: %w", err)
	}

	if reason == "" {
		reason = "Jailed"
	}
	if err := q.mutator.SetRoles(ctx, guildID, memberID, []string{roleID}, reason); err != nil {
		q.rollback(guildID, memberID, previous)
		return models.QuarantineRecord{}, fmt.Errorf("apply jail role: %w", err)
	}

	metrics.QuarantineTotal.WithLabelValues("jail", "command").Inc()
	q.trail(guildID, memberID, models.ActionJail, reason, "until "+record.ReleaseAt.Format(time.RFC3339))
	logging.Info("Jailed %s in guild %s until %s (%d roles saved)", memberID, guildID, record.ReleaseAt.Format(time.RFC3339), len(record.Roles))
	return record, nil
}

func (q *Quarantine) rollback(guildID, memberID string, previous *models.QuarantineRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := q.store.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		if previous != nil {
			g.Jailed[memberID] = *previous
		} else {
			delete(g.Jailed, memberID)
		}
		return nil
	})
	if err != nil {
		logging.Error("Failed to roll back quarantine of %s in guild %s: %v", memberID, guildID, err)
	}
}

// ensureJail returns a live jail role, creating the role, its channel
// overwrites and the jail channel when the stored role is gone.
func (q *Quarantine) ensureJail(ctx context.Context, guildID, storedID string) (string, error) {
	q.provision.Lock()
	defer q.provision.Unlock()

	roles, err := q.mutator.Roles(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("list roles: %w", err)
	}
	if storedID != "" && slices.ContainsFunc(roles, func(r dispatcher.Role) bool { return r.ID == storedID }) {
		q.ensureChannel(ctx, guildID, storedID)
		return storedID, nil
	}

	// Another Jail call may have provisioned while this one waited.
	if settings, err := q.store.Get(ctx, guildID); err == nil && settings.JailRoleID != storedID &&
		slices.ContainsFunc(roles, func(r dispatcher.Role) bool { return r.ID == settings.JailRoleID }) {
		return settings.JailRoleID, nil
	}

	role, err := q.mutator.CreateRole(ctx, guildID, JailRoleName, "The Studio jail role")
	if err != nil {
		return "", fmt.Errorf("create jail role: %w", err)
	}
	if _, err := q.store.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		g.JailRoleID = role.ID
		return nil
	}); err != nil {
		return "", fmt.Errorf("persist jail role: %w", err)
	}

	channels, err := q.mutator.Channels(ctx, guildID)
	if err != nil {
		logging.Warn("Cannot list channels of guild %s for jail overwrites: %v", guildID, err)
	}
	for _, ch := range channels {
		if err := q.mutator.SetRoleOverwrite(ctx, ch.ID, role.ID, 0, jailDeny); err != nil {
			logging.Debug("Jail overwrite on channel %s skipped: %v", ch.ID, err)
		}
	}

	logging.Info("Created jail role %s in guild %s", role.ID, guildID)
	q.ensureChannelIn(ctx, guildID, role.ID, channels)
	return role.ID, nil
}

func (q *Quarantine) ensureChannel(ctx context.Context, guildID, roleID string) {
	channels, err := q.mutator.Channels(ctx, guildID)
	if err != nil {
		logging.Warn("Cannot list channels of guild %s: %v", guildID, err)
		return
	}
	q.ensureChannelIn(ctx, guildID, roleID, channels)
}

// ensureChannelIn creates the jail channel when absent. Failure does not
// prevent jailing.
func (q *Quarantine) ensureChannelIn(ctx context.Context, guildID, roleID string, channels []dispatcher.Channel) {
	for _, ch := range channels {
		if ch.Text && ch.Name == JailChannelName {
			return
		}
	}
	if _, err := q.mutator.CreateTextChannel(ctx, guildID, JailChannelName, roleID, jailAllow, 0); err != nil {
		if dispatcher.IsPermissionDenied(err) {
			logging.Debug("Cannot create jail channel in guild %s: %v", guildID, err)
		} else {
			logging.Warn("Failed to create jail channel in guild %s: %v", guildID, err)
		}
	}
}

// Unjail deletes the member's record and restores the snapshot roles that
// still exist. It returns the restored role ids. The record is only deleted
// once the member and role list have been read, so a failed lookup leaves
// the quarantine in place for a retry.
func (q *Quarantine) Unjail(ctx context.Context, guildID, memberID string) ([]string, error) {
	return q.unjail(ctx, guildID, memberID, "command")
}

// releasePlan is what unjail needs from Discord before touching the record.
type releasePlan struct {
	gone   bool
	member dispatcher.Member
	exists map[string]bool
}

func (q *Quarantine) unjail(ctx context.Context, guildID, memberID, trigger string) ([]string, error) {
	current, err := q.store.Get(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("load quarantine: %w", err)
	}
	if _, ok := current.Jailed[memberID]; !ok {
		return nil, ErrNotQuarantined
	}

	plan, err := q.planRelease(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}

	var record models.QuarantineRecord
	settings, err := q.store.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		r, ok := g.Jailed[memberID]
		if !ok {
			return ErrNotQuarantined
		}
		record = r
		delete(g.Jailed, memberID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotQuarantined) {
			return nil, err
		}
		return nil, fmt.Errorf("clear quarantine: %w", err)
	}

	restored := q.release(ctx, guildID, memberID, settings.JailRoleID, record, plan)

	metrics.QuarantineTotal.WithLabelValues("unjail", trigger).Inc()
	q.trail(guildID, memberID, models.ActionUnjail, trigger, fmt.Sprintf("%d roles restored", len(restored)))
	logging.Info("Released %s in guild %s (%s), %d roles restored", memberID, guildID, trigger, len(restored))
	return restored, nil
}

func (q *Quarantine) planRelease(ctx context.Context, guildID, memberID string) (releasePlan, error) {
	member, err := q.mutator.Member(ctx, guildID, memberID)
	if err != nil {
		if errors.Is(err, dispatcher.ErrUnknownResource) {
			logging.Debug("Jailed member %s already left guild %s", memberID, guildID)
			return releasePlan{gone: true}, nil
		}
		return releasePlan{}, fmt.Errorf("fetch member: %w", err)
	}

	roles, err := q.mutator.Roles(ctx, guildID)
	if err != nil {
		return releasePlan{}, fmt.Errorf("list roles: %w", err)
	}
	exists := make(map[string]bool, len(roles))
	for _, r := range roles {
		exists[r.ID] = true
	}
	return releasePlan{member: member, exists: exists}, nil
}

func (q *Quarantine) release(ctx context.Context, guildID, memberID, jailRoleID string, record models.QuarantineRecord, plan releasePlan) []string {
	if plan.gone {
		return nil
	}

	if jailRoleID != "" && slices.Contains(plan.member.Roles, jailRoleID) {
		if err := q.mutator.RemoveRole(ctx, guildID, memberID, jailRoleID, "Unjail"); err != nil && !dispatcher.IsPermissionDenied(err) {
			logging.Warn("Failed to remove jail role from %s in guild %s: %v", memberID, guildID, err)
		}
	}

	var restored []string
	for _, id := range record.Roles {
		if !plan.exists[id] {
			continue
		}
		err := q.mutator.AddRole(ctx, guildID, memberID, id, "Restore roles after jail")
		switch {
		case err == nil:
			restored = append(restored, id)
		case dispatcher.IsPermissionDenied(err):
			logging.Debug("Cannot restore role %s to %s in guild %s", id, memberID, guildID)
		default:
			logging.Warn("Failed to restore role %s to %s in guild %s: %v", id, memberID, guildID, err)
		}
	}
	return restored
}

// Sweep releases every record whose release time has passed.
func (q *Quarantine) Sweep(ctx context.Context, now time.Time) int {
	guilds, err := q.store.Guilds(ctx)
	if err != nil {
		logging.Error("Quarantine sweep cannot list guilds: %v", err)
		return 0
	}

	released := 0
	for _, guildID := range guilds {
		settings, err := q.store.Get(ctx, guildID)
		if err != nil {
			logging.Warn("Quarantine sweep skipped guild %s: %v", guildID, err)
			continue
		}
		for memberID, record := range settings.Jailed {
			if !record.Expired(now) {
				continue
			}
			if _, err := q.unjail(ctx, guildID, memberID, "expired"); err != nil && !errors.Is(err, ErrNotQuarantined) {
				logging.Warn("Failed to release %s in guild %s: %v", memberID, guildID, err)
				continue
			}
			released++
		}
	}
	if q.OnSweep != nil {
		q.OnSweep()
	}
	return released
}

func (q *Quarantine) StartSweeper(ctx context.Context, interval time.Duration) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stop:
				return
			case <-ticker.C:
				if n := q.Sweep(ctx, q.now()); n > 0 {
					logging.Info("Quarantine sweep released %d members", n)
				}
			}
		}
	}()
}

func (q *Quarantine) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

func (q *Quarantine) trail(guildID, memberID, action, reason, detail string) {
	if q.audit == nil {
		return
	}
	entry := models.NewAuditEntry(guildID, memberID, action, reason)
	entry.Detail = detail
	q.audit.Enqueue(entry)
}
