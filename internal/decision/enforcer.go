package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/metrics"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
	"github.com/eryxsegithub/TheStudioBot/internal/notifier"
)

// Enforcement step names, used in outcomes, metrics and the audit trail.
const (
	StepTimeout = "timeout"
	StepRevoke  = "revoke_roles"
	StepRevert  = "revert_role"
	StepNotify  = "notify"
)

// AuditSink receives the enforcement trail without blocking.
type AuditSink interface {
	Enqueue(entry models.AuditEntry) bool
}

// Outcome reports which steps of one enforcement run took effect.
type Outcome struct {
	// Skipped is set when the actor is whitelisted and nothing was done.
	Skipped      bool
	TimedOut     bool
	RevokedRoles []string
	Reverted     bool
	Notified     bool
	Denied       []string
	Failed       []string
}

// Steps lists the applied steps in execution order.
func (o Outcome) Steps() []string {
	var steps []string
	if o.TimedOut {
		steps = append(steps, StepTimeout)
	}
	if len(o.RevokedRoles) > 0 {
		steps = append(steps, fmt.Sprintf("%s (%d)", StepRevoke, len(o.RevokedRoles)))
	}
	if o.Reverted {
		steps = append(steps, StepRevert)
	}
	return steps
}

// Engine turns a breach into guild mutations. Every step is best-effort and
// a failing step never stops the ones after it.
type Engine struct {
	mutator   dispatcher.Mutator
	notifier  notifier.Notifier
	audit     AuditSink
	detection config.DetectionConfig
	now       func() time.Time
}

func NewEngine(mutator dispatcher.Mutator, n notifier.Notifier, audit AuditSink, detection config.DetectionConfig) *Engine {
	return &Engine{
		mutator:   mutator,
		notifier:  n,
		audit:     audit,
		detection: detection,
		now:       time.Now,
	}
}

func (e *Engine) Apply(ctx context.Context, b models.Breach, settings models.GuildSettings) Outcome {
	var out Outcome
	if settings.IsWhitelisted(b.ActorID) {
		logging.Debug("Skipping enforcement for whitelisted %s in guild %s", b.ActorID, b.GuildID)
		out.Skipped = true
		return out
	}

	metrics.BreachesTotal.WithLabelValues(string(b.Category)).Inc()
	limits := e.detection.Limits(settings)
	reason := "Anti-Nuke: " + b.Reason

	until := e.now().Add(limits.Timeout())
	err := e.mutator.Timeout(ctx, b.GuildID, b.ActorID, until, reason)
	if e.step(&out, StepTimeout, b, err) {
		out.TimedOut = true
		e.trail(b, models.ActionTimeout, "until "+until.UTC().Format(time.RFC3339))
	}

	if limits.AutoRevokeDangerousPerms {
		out.RevokedRoles = e.revokeDangerous(ctx, &out, b, reason)
		for _, roleID := range out.RevokedRoles {
			e.trail(b, models.ActionRoleRevoke, roleID)
		}

		if b.Role != nil {
			err := e.mutator.EditRolePermissions(ctx, b.GuildID, b.Role.RoleID, b.Role.Permissions, reason)
			if e.step(&out, StepRevert, b, err) {
				out.Reverted = true
				e.trail(b, models.ActionRoleRevert, fmt.Sprintf("%s -> %d", b.Role.RoleID, b.Role.Permissions))
			}
		}
	}

	e.notify(ctx, &out, b, settings, limits.Timeout())

	logging.Info("Enforced %s on %s in guild %s: applied=%v denied=%v failed=%v",
		b.Category, b.ActorID, b.GuildID, out.Steps(), out.Denied, out.Failed)
	return out
}

// revokeDangerous removes every role of the actor that carries a dangerous
// permission. The default role and integration-managed roles are skipped.
func (e *Engine) revokeDangerous(ctx context.Context, out *Outcome, b models.Breach, reason string) []string {
	member, err := e.mutator.Member(ctx, b.GuildID, b.ActorID)
	if err != nil {
		e.step(out, StepRevoke, b, err)
		return nil
	}
	roles, err := e.mutator.Roles(ctx, b.GuildID)
	if err != nil {
		e.step(out, StepRevoke, b, err)
		return nil
	}

	byID := make(map[string]dispatcher.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	var revoked []string
	for _, id := range member.Roles {
		role, ok := byID[id]
		if !ok || id == b.GuildID || role.Managed || !models.HasDangerous(role.Permissions) {
			continue
		}
		err := e.mutator.RemoveRole(ctx, b.GuildID, b.ActorID, id, reason)
		if e.step(out, StepRevoke, b, err) {
			revoked = append(revoked, id)
		}
	}
	return revoked
}

func (e *Engine) notify(ctx context.Context, out *Outcome, b models.Breach, settings models.GuildSettings, timeout time.Duration) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Notify(ctx, settings, notifier.BreachEmbed(b, timeout, out.Steps()))
	switch {
	case err == nil:
		out.Notified = true
		metrics.NotificationsTotal.WithLabelValues(metrics.ResultOK).Inc()
	case errors.Is(err, notifier.ErrThrottled):
		metrics.NotificationsTotal.WithLabelValues(metrics.ResultSkipped).Inc()
	case dispatcher.IsPermissionDenied(err):
		logging.Debug("Cannot post to log channel of guild %s: %v", b.GuildID, err)
		metrics.NotificationsTotal.WithLabelValues(metrics.ResultDenied).Inc()
	default:
		logging.Warn("Failed to notify guild %s: %v", b.GuildID, err)
		metrics.NotificationsTotal.WithLabelValues(metrics.ResultFailed).Inc()
	}
}

// step records a step's result and reports whether it succeeded.
func (e *Engine) step(out *Outcome, name string, b models.Breach, err error) bool {
	switch {
	case err == nil:
		metrics.EnforcementStepsTotal.WithLabelValues(name, metrics.ResultOK).Inc()
		return true
	case dispatcher.IsPermissionDenied(err):
		logging.Debug("Step %s denied for %s in guild %s: %v", name, b.ActorID, b.GuildID, err)
		out.Denied = append(out.Denied, name)
		metrics.EnforcementStepsTotal.WithLabelValues(name, metrics.ResultDenied).Inc()
	default:
		logging.Error("Step %s failed for %s in guild %s: %v", name, b.ActorID, b.GuildID, err)
		out.Failed = append(out.Failed, name)
		metrics.EnforcementStepsTotal.WithLabelValues(name, metrics.ResultFailed).Inc()
	}
	return false
}

func (e *Engine) trail(b models.Breach, action, detail string) {
	if e.audit == nil {
		return
	}
	entry := models.NewAuditEntry(b.GuildID, b.ActorID, action, b.Reason)
	entry.Category = b.Category
	entry.Detail = detail
	e.audit.Enqueue(entry)
}
