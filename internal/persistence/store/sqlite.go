// Package store persists the economy in SQLite. Every engine transition
// runs in one database transaction; partial unique indexes enforce one
// IN_PROGRESS order per scope.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/queue"
)

const schemaVersion = "1"

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes transactions; SQLite has a single writer
	// anyway and this avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS planets (
			id TEXT PRIMARY KEY,
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			coord_x INTEGER NOT NULL,
			coord_y INTEGER NOT NULL,
			temperature INTEGER NOT NULL,
			fields_used INTEGER NOT NULL,
			fields_max INTEGER NOT NULL,
			metal REAL NOT NULL,
			crystal REAL NOT NULL,
			deuterium REAL NOT NULL,
			metal_per_hour REAL NOT NULL,
			crystal_per_hour REAL NOT NULL,
			deuterium_per_hour REAL NOT NULL,
			energy_production INTEGER NOT NULL,
			energy_consumption INTEGER NOT NULL,
			last_resource_update INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_planets_player ON planets(player_id);`,
		`CREATE TABLE IF NOT EXISTS buildings (
			planet_id TEXT NOT NULL REFERENCES planets(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			level INTEGER NOT NULL,
			PRIMARY KEY (planet_id, type)
		);`,
		`CREATE TABLE IF NOT EXISTS ships (
			planet_id TEXT NOT NULL REFERENCES planets(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (planet_id, type)
		);`,
		`CREATE TABLE IF NOT EXISTS research (
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			level INTEGER NOT NULL,
			PRIMARY KEY (player_id, type)
		);`,
		`CREATE TABLE IF NOT EXISTS queues (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			planet_id TEXT NOT NULL REFERENCES planets(id) ON DELETE CASCADE,
			player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			target TEXT NOT NULL,
			target_level INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			completed_count INTEGER NOT NULL,
			current_ship_end_time INTEGER NOT NULL,
			metal_cost REAL NOT NULL,
			crystal_cost REAL NOT NULL,
			deuterium_cost REAL NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_queues_planet_active
			ON queues(planet_id, kind) WHERE status = 'IN_PROGRESS' AND kind IN ('building', 'ship');`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_queues_research_active
			ON queues(player_id) WHERE status = 'IN_PROGRESS' AND kind = 'research';`,
		`CREATE INDEX IF NOT EXISTS idx_queues_status_end ON queues(status, end_time);`,
	}
	for _, st := range stmts {
		if _, err := db.Exec(st); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT INTO meta(key, value) VALUES('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, schemaVersion)
	return err
}

// InTx runs fn in one transaction and commits when fn returns nil.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx queue.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertCatalogs records the catalogs the server is running with so an
// operator can tell which rules produced the stored state.
func (s *SQLiteStore) UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	type row struct {
		name   string
		digest string
		v      any
	}
	rows := []row{
		{"buildings", cats.Buildings.Digest, cats.Buildings.ByType},
		{"research", cats.Research.Digest, cats.Research.ByType},
		{"ships", cats.Ships.Digest, cats.Ships.ByType},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range rows {
		b, err := json.Marshal(r.v)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO catalogs(name, digest, json, updated_at) VALUES(?,?,?,?)
			ON CONFLICT(name) DO UPDATE SET digest=excluded.digest, json=excluded.json, updated_at=excluded.updated_at;`,
			r.name, r.digest, string(b), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigests returns name -> digest for every recorded catalog.
func (s *SQLiteStore) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, digest FROM catalogs ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, rows.Err()
}

type Counts struct {
	Players       int64
	Planets       int64
	ActiveQueues  map[string]int64 // by kind
	ShipsInOrbit  int64
	SchemaVersion string
}

// Counts feeds the metrics endpoint.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	c := Counts{ActiveQueues: map[string]int64{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players;`).Scan(&c.Players); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM planets;`).Scan(&c.Planets); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(count), 0) FROM ships;`).Scan(&c.ShipsInOrbit); err != nil {
		return c, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&c.SchemaVersion); err != nil {
		return c, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM queues WHERE status='IN_PROGRESS' GROUP BY kind;`)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return c, err
		}
		c.ActiveQueues[kind] = n
	}
	return c, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func toMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMS(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}
