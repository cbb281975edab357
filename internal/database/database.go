package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/eryxsegithub/TheStudioBot/internal/logging"
	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

type dialect uint8

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Database is the SQL backend. The same queries run on the embedded sqlite
// driver and on postgres, where the settings document is stored as JSONB.
type Database struct {
	db      *sql.DB
	dialect dialect
	locks   *guildLocks
}

// OpenSQLite creates and initializes the SQLite database
func OpenSQLite(ctx context.Context, dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return initDatabase(ctx, db, dialectSQLite)
}

// OpenPostgres connects to a remote postgres document database.
func OpenPostgres(ctx context.Context, dsn string) (*Database, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return initDatabase(ctx, db, dialectPostgres)
}

func initDatabase(ctx context.Context, db *sql.DB, d dialect) (*Database, error) {
	s := &Database{db: db, dialect: d, locks: newGuildLocks()}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// createTables creates all necessary database tables
func (d *Database) createTables(ctx context.Context) error {
	docType, serial := "TEXT", "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.dialect == dialectPostgres {
		docType, serial = "JSONB", "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id TEXT PRIMARY KEY,
			doc ` + docType + ` NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS warns (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			warn_id INTEGER NOT NULL,
			moderator_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_warns_guild_user ON warns(guild_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id ` + serial + `,
			guild_id TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL,
			action TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_guild ON audit_log(guild_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *Database) rebind(query string) string {
	if d.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get retrieves guild settings, returning defaults when none are stored.
func (d *Database) Get(ctx context.Context, guildID string) (models.GuildSettings, error) {
	g, err := d.load(ctx, d.db, guildID)
	if errors.Is(err, ErrNotFound) {
		g = models.NewGuildSettings(guildID)
		err = nil
	}
	if err != nil {
		return models.GuildSettings{}, err
	}

	warns, err := d.loadWarns(ctx, d.db, guildID)
	if err != nil {
		return models.GuildSettings{}, err
	}
	g.Warns = warns
	return g, nil
}

func (d *Database) load(ctx context.Context, q querier, guildID string) (models.GuildSettings, error) {
	var doc string
	err := q.QueryRowContext(ctx, d.rebind(`SELECT doc FROM guild_settings WHERE guild_id = ?`), guildID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GuildSettings{}, ErrNotFound
	}
	if err != nil {
		return models.GuildSettings{}, fmt.Errorf("failed to load guild %s: %w", guildID, err)
	}

	var g models.GuildSettings
	if err := json.Unmarshal([]byte(doc), &g); err != nil {
		logging.Error("Guild %s settings are corrupt, using empty state: %v", guildID, err)
		return models.NewGuildSettings(guildID), nil
	}
	g.GuildID = guildID
	g.Normalize()
	return g, nil
}

func (d *Database) loadWarns(ctx context.Context, q querier, guildID string) (map[string][]models.WarnRecord, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT user_id, warn_id, moderator_id, reason, created_at
		FROM warns WHERE guild_id = ? ORDER BY created_at, warn_id
	`), guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load warns: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.WarnRecord)
	for rows.Next() {
		var userID string
		var w models.WarnRecord
		var created int64
		if err := rows.Scan(&userID, &w.ID, &w.ModeratorID, &w.Reason, &created); err != nil {
			return nil, err
		}
		w.Time = time.UnixMilli(created).UTC()
		out[userID] = append(out[userID], w)
	}
	return out, rows.Err()
}

// Set replaces the guild document and its warns in one transaction.
func (d *Database) Set(ctx context.Context, settings models.GuildSettings) error {
	if settings.GuildID == "" {
		return errors.New("guild id is required")
	}
	unlock := d.locks.lock(settings.GuildID)
	defer unlock()
	return d.save(ctx, settings, true)
}

// save upserts the document. The warns table is only rewritten when
// withWarns is set; warns otherwise change through the row-level methods.
func (d *Database) save(ctx context.Context, settings models.GuildSettings, withWarns bool) error {
	settings = settings.Clone()
	settings.Normalize()
	warns := settings.Warns
	settings.Warns = nil

	doc, err := json.Marshal(settings)
	if err != nil {
		return writeErr("marshal", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, d.rebind(`
		INSERT INTO guild_settings (guild_id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`), settings.GuildID, string(doc), time.Now().UnixMilli())
	if err != nil {
		return writeErr("upsert settings", err)
	}

	if withWarns {
		if _, err := tx.ExecContext(ctx, d.rebind(`DELETE FROM warns WHERE guild_id = ?`), settings.GuildID); err != nil {
			return writeErr("reset warns", err)
		}
		for userID, list := range warns {
			for _, w := range list {
				if err := d.insertWarn(ctx, tx, settings.GuildID, userID, w); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return writeErr("commit", err)
	}
	return nil
}

func (d *Database) insertWarn(ctx context.Context, q querier, guildID, userID string, w models.WarnRecord) error {
	_, err := q.ExecContext(ctx, d.rebind(`
		INSERT INTO warns (guild_id, user_id, warn_id, moderator_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), guildID, userID, w.ID, w.ModeratorID, w.Reason, w.Time.UnixMilli())
	if err != nil {
		return writeErr("insert warn", err)
	}
	return nil
}

func (d *Database) Patch(ctx context.Context, guildID string, fn PatchFunc) (models.GuildSettings, error) {
	unlock := d.locks.lock(guildID)
	defer unlock()

	g, err := d.Get(ctx, guildID)
	if err != nil {
		return models.GuildSettings{}, err
	}
	before := g.Clone()
	if err := fn(&g); err != nil {
		return models.GuildSettings{}, err
	}
	g.GuildID = guildID
	g.Normalize()
	if err := d.save(ctx, g, !sameWarns(before.Warns, g.Warns)); err != nil {
		return models.GuildSettings{}, err
	}
	return g, nil
}

func (d *Database) AddWarn(ctx context.Context, guildID, userID string, warn models.WarnRecord) error {
	unlock := d.locks.lock(guildID)
	defer unlock()
	return d.insertWarn(ctx, d.db, guildID, userID, warn)
}

func (d *Database) RemoveWarn(ctx context.Context, guildID, userID string, warnID int) (bool, error) {
	unlock := d.locks.lock(guildID)
	defer unlock()
	res, err := d.db.ExecContext(ctx, d.rebind(`
		DELETE FROM warns WHERE guild_id = ? AND user_id = ? AND warn_id = ?
	`), guildID, userID, warnID)
	if err != nil {
		return false, writeErr("remove warn", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (d *Database) Warns(ctx context.Context, guildID, userID string) ([]models.WarnRecord, error) {
	all, err := d.loadWarns(ctx, d.db, guildID)
	if err != nil {
		return nil, err
	}
	return all[userID], nil
}

func (d *Database) ClearWarns(ctx context.Context, guildID, userID string) (int, error) {
	unlock := d.locks.lock(guildID)
	defer unlock()
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM warns WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if err != nil {
		return 0, writeErr("clear warns", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (d *Database) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	_, err := d.db.ExecContext(ctx, d.rebind(`
		INSERT INTO audit_log (guild_id, actor_id, target_id, action, category, reason, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), e.GuildID, e.ActorID, e.TargetID, e.Action, string(e.Category), e.Reason, e.Detail, e.Timestamp.UnixMilli())
	if err != nil {
		return writeErr("append audit", err)
	}
	return nil
}

// Audit returns up to limit entries, newest first.
func (d *Database) Audit(ctx context.Context, guildID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, d.rebind(`
		SELECT guild_id, actor_id, target_id, action, category, reason, detail, created_at
		FROM audit_log WHERE guild_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`), guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var category string
		var created int64
		if err := rows.Scan(&e.GuildID, &e.ActorID, &e.TargetID, &e.Action, &category, &e.Reason, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.Category = models.Category(category)
		e.Timestamp = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *Database) Guilds(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT guild_id FROM guild_settings ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
