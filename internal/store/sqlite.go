package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 5

const schema = `
CREATE TABLE IF NOT EXISTS so_roles (
	role TEXT PRIMARY KEY,
	abs_path TEXT NOT NULL,
	watch INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS so_assets (
	id TEXT PRIMARY KEY,
	abs_path TEXT NOT NULL UNIQUE,
	current_path TEXT NOT NULL DEFAULT '',
	role TEXT,
	ext TEXT,
	mime TEXT,
	size INTEGER NOT NULL DEFAULT 0,
	mtime REAL NOT NULL DEFAULT 0,
	ctime REAL NOT NULL DEFAULT 0,
	content_hash TEXT,
	hash_kind TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	meta_json TEXT NOT NULL DEFAULT '{}',
	tags_json TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS so_assets_fts USING fts5(
	abs_path, tags, meta, content='so_assets', content_rowid='rowid'
);

CREATE TABLE IF NOT EXISTS so_asset_events (
	id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL REFERENCES so_assets(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	job_id TEXT,
	detail_json TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS so_jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	asset_id TEXT REFERENCES so_assets(id) ON DELETE SET NULL,
	rule_id TEXT,
	priority TEXT NOT NULL DEFAULT 'normal',
	payload_json TEXT NOT NULL DEFAULT '{}',
	state TEXT NOT NULL DEFAULT 'queued',
	attempt INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	error TEXT,
	result_json TEXT,
	not_before TEXT,
	timeout_sec INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT
);

CREATE TABLE IF NOT EXISTS so_progress (
	job_id TEXT PRIMARY KEY REFERENCES so_jobs(id) ON DELETE CASCADE,
	phase TEXT NOT NULL DEFAULT '',
	percent REAL NOT NULL DEFAULT 0,
	speed REAL NOT NULL DEFAULT 0,
	eta_seconds REAL NOT NULL DEFAULT 0,
	detail_json TEXT NOT NULL DEFAULT '{}',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS so_rules (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	definition_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS so_configs (
	key TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	secret INTEGER NOT NULL DEFAULT 0,
	encrypted INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assets_role ON so_assets(role);
CREATE INDEX IF NOT EXISTS idx_assets_status ON so_assets(status);
CREATE INDEX IF NOT EXISTS idx_events_asset ON so_asset_events(asset_id);
CREATE INDEX IF NOT EXISTS idx_events_job ON so_asset_events(job_id);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON so_jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_asset ON so_jobs(asset_id);
CREATE INDEX IF NOT EXISTS idx_jobs_type_state ON so_jobs(type, state);
`

// Open creates/opens the SQLite database at path, applying schema and any
// pending migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, path: path}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	err := conn.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		_, err = conn.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if version < 2 {
		// v1 -> v2: retry bookkeeping column was missing from the
		// first cut of so_jobs.
		if _, err := conn.Exec(`ALTER TABLE so_jobs ADD COLUMN not_before TEXT`); err != nil {
			return fmt.Errorf("migration v1->v2: %w", err)
		}
	}
	if version < 3 {
		// v2 -> v3: asset dedup gained a hash_kind column distinguishing
		// full sha256 from the partial-chunk fingerprint used on large
		// files.
		if _, err := conn.Exec(`ALTER TABLE so_assets ADD COLUMN hash_kind TEXT`); err != nil {
			return fmt.Errorf("migration v2->v3: %w", err)
		}
	}
	if version < 4 {
		// v3 -> v4: split the asset's present location from its immutable
		// original path so move/remux/copy can relocate a file without
		// losing the fingerprint's input.
		if _, err := conn.Exec(`ALTER TABLE so_assets ADD COLUMN current_path TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("migration v3->v4: %w", err)
		}
		if _, err := conn.Exec(`UPDATE so_assets SET current_path = abs_path WHERE current_path = ''`); err != nil {
			return fmt.Errorf("migration v3->v4 backfill: %w", err)
		}
	}
	if version < 5 {
		// v4 -> v5: per-job timeout so the dispatcher's watchdog can fail
		// a job with "timeout" instead of letting a hung handler run
		// forever.
		if _, err := conn.Exec(`ALTER TABLE so_jobs ADD COLUMN timeout_sec INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("migration v4->v5: %w", err)
		}
	}

	_, err = conn.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// Helper functions shared by the domain packages' SQL layers.

func NullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func NullInt64(i int64) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func FormatTimePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
