package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

const maxAuditPerGuild = 500

// jsonDocument is the on-disk layout of the JSON backend.
type jsonDocument struct {
	Guilds map[string]models.GuildSettings `json:"guilds"`
	Audit  map[string][]models.AuditEntry  `json:"audit"`
}

// JSONStore keeps every guild in one JSON document and rewrites it on each
// change through a temp file and rename, so a crash never leaves a partial
// document behind.
type JSONStore struct {
	path  string
	locks *guildLocks

	mu  sync.Mutex
	doc jsonDocument
}

func OpenJSON(path string) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	s := &JSONStore{
		path:  path,
		locks: newGuildLocks(),
		doc:   emptyDocument(),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// Keep the unreadable file for inspection and start empty.
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		logging.Error("Guild store %s is corrupt, starting with empty state (moving to %s): %v", path, aside, err)
		if err := os.Rename(path, aside); err != nil {
			logging.Error("Failed to move corrupt guild store aside: %v", err)
		}
		return s, nil
	}

	if doc.Guilds != nil {
		s.doc.Guilds = doc.Guilds
	}
	if doc.Audit != nil {
		s.doc.Audit = doc.Audit
	}
	for id, g := range s.doc.Guilds {
		g.GuildID = id
		g.Normalize()
		s.doc.Guilds[id] = g
	}
	return s, nil
}

func emptyDocument() jsonDocument {
	return jsonDocument{
		Guilds: make(map[string]models.GuildSettings),
		Audit:  make(map[string][]models.AuditEntry),
	}
}

// commit writes the document to a temp sibling and renames it over the
// target. Caller holds s.mu.
func (s *JSONStore) commit() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return writeErr("marshal", err)
	}

	tmp := s.path + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		s.discard(tmp)
		return writeErr("write temp file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.discard(tmp)
		return writeErr("replace document", err)
	}
	return nil
}

// writeSynced writes data and fsyncs it before closing.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *JSONStore) discard(tmp string) {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Failed to remove temp file %s: %v", tmp, err)
	}
}

func (s *JSONStore) Get(_ context.Context, guildID string) (models.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.doc.Guilds[guildID]
	if !ok {
		return models.NewGuildSettings(guildID), nil
	}
	return g.Clone(), nil
}

// put replaces one guild and commits, restoring the previous value on failure.
func (s *JSONStore) put(settings models.GuildSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.doc.Guilds[settings.GuildID]
	s.doc.Guilds[settings.GuildID] = settings
	if err := s.commit(); err != nil {
		if existed {
			s.doc.Guilds[settings.GuildID] = prev
		} else {
			delete(s.doc.Guilds, settings.GuildID)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Set(_ context.Context, settings models.GuildSettings) error {
	if settings.GuildID == "" {
		return errors.New("guild id is required")
	}
	unlock := s.locks.lock(settings.GuildID)
	defer unlock()

	settings = settings.Clone()
	settings.Normalize()
	return s.put(settings)
}

func (s *JSONStore) Patch(ctx context.Context, guildID string, fn PatchFunc) (models.GuildSettings, error) {
	unlock := s.locks.lock(guildID)
	defer unlock()

	g, _ := s.Get(ctx, guildID)
	if err := fn(&g); err != nil {
		return models.GuildSettings{}, err
	}
	g.GuildID = guildID
	g.Normalize()
	if err := s.put(g.Clone()); err != nil {
		return models.GuildSettings{}, err
	}
	return g, nil
}

func (s *JSONStore) AddWarn(ctx context.Context, guildID, userID string, warn models.WarnRecord) error {
	_, err := s.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		addWarn(g, userID, warn)
		return nil
	})
	return err
}

var errNoChange = errors.New("no change")

func (s *JSONStore) RemoveWarn(ctx context.Context, guildID, userID string, warnID int) (bool, error) {
	_, err := s.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		if !removeWarn(g, userID, warnID) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	return err == nil, err
}

func (s *JSONStore) Warns(ctx context.Context, guildID, userID string) ([]models.WarnRecord, error) {
	g, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return g.Warns[userID], nil
}

func (s *JSONStore) ClearWarns(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	_, err := s.Patch(ctx, guildID, func(g *models.GuildSettings) error {
		n = len(g.Warns[userID])
		if n == 0 {
			return errNoChange
		}
		delete(g.Warns, userID)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *JSONStore) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.Audit[entry.GuildID]
	next := append(prev[:len(prev):len(prev)], entry)
	if len(next) > maxAuditPerGuild {
		next = next[len(next)-maxAuditPerGuild:]
	}
	s.doc.Audit[entry.GuildID] = next
	if err := s.commit(); err != nil {
		s.doc.Audit[entry.GuildID] = prev
		return err
	}
	return nil
}

// Audit returns up to limit entries, newest first.
func (s *JSONStore) Audit(_ context.Context, guildID string, limit int) ([]models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.doc.Audit[guildID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]models.AuditEntry, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (s *JSONStore) Guilds(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.doc.Guilds))
	for id := range s.doc.Guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONStore) Close() error {
	return nil
}
