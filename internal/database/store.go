package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

var (
	// ErrNotFound is returned internally when a guild has no stored document.
	// Get never surfaces it; callers receive defaults instead.
	ErrNotFound = errors.New("guild settings not found")
	// ErrWriteFailed wraps every persistence failure on a write path.
	ErrWriteFailed = errors.New("store write failed")
)

// PatchFunc mutates settings in place. Returning an error aborts the write.
type PatchFunc func(*models.GuildSettings) error

// Store is the guild configuration store. All backends share the same
// semantics: writes for one guild are serialized, the last writer wins.
type Store interface {
	Get(ctx context.Context, guildID string) (models.GuildSettings, error)
	Set(ctx context.Context, settings models.GuildSettings) error
	Patch(ctx context.Context, guildID string, fn PatchFunc) (models.GuildSettings, error)

	AddWarn(ctx context.Context, guildID, userID string, warn models.WarnRecord) error
	RemoveWarn(ctx context.Context, guildID, userID string, warnID int) (bool, error)
	Warns(ctx context.Context, guildID, userID string) ([]models.WarnRecord, error)
	ClearWarns(ctx context.Context, guildID, userID string) (int, error)

	AppendAudit(ctx context.Context, entry models.AuditEntry) error
	Audit(ctx context.Context, guildID string, limit int) ([]models.AuditEntry, error)

	// Guilds lists every guild with a stored document.
	Guilds(ctx context.Context) ([]string, error)
	Close() error
}

// Open creates the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		return OpenJSON(cfg.Path)
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func writeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, op, err)
}

// guildLocks serializes read-modify-write cycles per guild.
type guildLocks struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

func (g *guildLocks) lock(guildID string) func() {
	l, _ := g.locks.LoadOrCompute(guildID, func() *sync.Mutex { return &sync.Mutex{} })
	l.Lock()
	return l.Unlock
}

func (g *guildLocks) len() int {
	return g.locks.Size()
}

func sameWarns(a, b map[string][]models.WarnRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for userID, list := range a {
		other, ok := b[userID]
		if !ok || !slices.EqualFunc(list, other, sameWarn) {
			return false
		}
	}
	return true
}

func sameWarn(a, b models.WarnRecord) bool {
	return a.ID == b.ID && a.ModeratorID == b.ModeratorID && a.Reason == b.Reason && a.Time.Equal(b.Time)
}

func addWarn(s *models.GuildSettings, userID string, warn models.WarnRecord) {
	s.Warns[userID] = append(s.Warns[userID], warn)
}

func removeWarn(s *models.GuildSettings, userID string, warnID int) bool {
	list := s.Warns[userID]
	for i, w := range list {
		if w.ID == warnID {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s.Warns, userID)
			} else {
				s.Warns[userID] = list
			}
			return true
		}
	}
	return false
}
