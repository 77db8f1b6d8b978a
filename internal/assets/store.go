package assets

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/store"
)

// Store persists assets and their event timeline against the shared
// database: an RWMutex-guarded *sql.DB, upserts via INSERT ... ON CONFLICT
// DO UPDATE, and a scan helper per row shape.
type Store struct {
	db *store.DB
}

func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts or replaces an asset, keeping its external-content-table
// FTS row in sync in the same transaction — both to satisfy the "same
// write transaction" requirement and so a crash mid-upsert never leaves
// the search index pointing at a stale row.
func (s *Store) Upsert(a *Asset) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()

	if a.CurrentPath == "" {
		a.CurrentPath = a.AbsPath
	}

	return s.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO so_assets (
				id, abs_path, current_path, role, ext, mime, size, mtime, ctime,
				content_hash, hash_kind, status, meta_json, tags_json,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				abs_path=excluded.abs_path, current_path=excluded.current_path,
				role=excluded.role, ext=excluded.ext,
				mime=excluded.mime, size=excluded.size, mtime=excluded.mtime,
				ctime=excluded.ctime, content_hash=excluded.content_hash,
				hash_kind=excluded.hash_kind, status=excluded.status,
				meta_json=excluded.meta_json, tags_json=excluded.tags_json,
				updated_at=excluded.updated_at
		`,
			a.ID, a.AbsPath, a.CurrentPath, store.NullString(a.Role), store.NullString(a.Ext),
			store.NullString(a.MIME), a.Size, a.MTime, a.CTime,
			store.NullString(a.ContentHash), store.NullString(string(a.HashKind)),
			string(a.Status), marshalJSON(a.Meta), marshalJSON(a.Tags),
			store.FormatTime(a.CreatedAt), store.FormatTime(a.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert asset: %w", err)
		}

		var rowid int64
		if err := tx.QueryRow(`SELECT rowid FROM so_assets WHERE id = ?`, a.ID).Scan(&rowid); err != nil {
			return fmt.Errorf("lookup asset rowid: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO so_assets_fts (rowid, abs_path, tags, meta) VALUES (?, ?, ?, ?)
			ON CONFLICT(rowid) DO UPDATE SET abs_path=excluded.abs_path, tags=excluded.tags, meta=excluded.meta
		`, rowid, a.CurrentPath, marshalJSON(a.Tags), marshalJSON(a.Meta))
		if err != nil {
			return fmt.Errorf("upsert fts row: %w", err)
		}
		return nil
	})
}

// GetByID returns an asset by ID, or apperr.NotFound if it doesn't exist.
func (s *Store) GetByID(id string) (*Asset, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	row := s.db.Conn().QueryRow(selectAssetCols+` WHERE id = ?`, id)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.NotFound, "asset not found: "+id)
	}
	return a, err
}

// GetByPath returns an asset by its absolute path, or nil with no error if
// it hasn't been indexed yet.
func (s *Store) GetByPath(absPath string) (*Asset, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	row := s.db.Conn().QueryRow(selectAssetCols+` WHERE abs_path = ?`, absPath)
	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// FindByHash returns every asset whose content_hash equals hash.
func (s *Store) FindByHash(hash string) ([]*Asset, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	rows, err := s.db.Conn().Query(selectAssetCols+` WHERE content_hash = ?`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

// ListByRole returns assets under the given role, most recently updated
// first.
func (s *Store) ListByRole(role string, limit int) ([]*Asset, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Conn().Query(selectAssetCols+` WHERE role = ? ORDER BY updated_at DESC LIMIT ?`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssets(rows)
}

// Search runs an FTS5 match query over path/tags/meta and returns the
// matching assets, most recently updated first.
func (s *Store) Search(query string, limit int) ([]*Asset, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().Query(`
		SELECT `+assetCols+` FROM so_assets
		WHERE rowid IN (SELECT rowid FROM so_assets_fts WHERE so_assets_fts MATCH ?)
		ORDER BY updated_at DESC LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()
	return scanAssets(rows)
}

// AppendEvent records a timeline entry for an asset, using the deterministic
// event ID so re-emission of the same logical event (e.g. a watcher retry
// after a crash) is an idempotent no-op rather than a duplicate row.
func (s *Store) AppendEvent(e *Event) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()

	_, err := s.db.Conn().Exec(`
		INSERT OR IGNORE INTO so_asset_events (id, asset_id, event_type, job_id, detail_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.AssetID, string(e.Type), store.NullString(e.JobID), marshalJSON(e.Detail), store.FormatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// SetCurrentPath point-updates an asset's present location without touching
// its immutable abs_path or emitting a timeline event itself — callers
// (move/remux/copy) are responsible for appending the event that explains
// why the location changed.
func (s *Store) SetCurrentPath(id, path string) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()

	res, err := s.db.Conn().Exec(`UPDATE so_assets SET current_path = ?, updated_at = ? WHERE id = ?`,
		path, store.FormatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set current_path: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current_path rows affected: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.NotFound, "asset not found: "+id)
	}
	return nil
}

// Timeline returns an asset's events in chronological order.
func (s *Store) Timeline(assetID string) ([]*Event, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	rows, err := s.db.Conn().Query(`
		SELECT id, asset_id, event_type, job_id, detail_json, created_at
		FROM so_asset_events WHERE asset_id = ? ORDER BY created_at ASC
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const assetCols = `id, abs_path, current_path, role, ext, mime, size, mtime, ctime,
	content_hash, hash_kind, status, meta_json, tags_json, created_at, updated_at`

const selectAssetCols = `SELECT ` + assetCols + ` FROM so_assets`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var role, ext, mimeType, contentHash, hashKind sql.NullString
	var status, metaJSON, tagsJSON, createdAt, updatedAt string

	var currentPath sql.NullString
	err := row.Scan(
		&a.ID, &a.AbsPath, &currentPath, &role, &ext, &mimeType, &a.Size, &a.MTime, &a.CTime,
		&contentHash, &hashKind, &status, &metaJSON, &tagsJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.CurrentPath = currentPath.String
	if a.CurrentPath == "" {
		a.CurrentPath = a.AbsPath
	}
	a.Role = role.String
	a.Ext = ext.String
	a.MIME = mimeType.String
	a.ContentHash = contentHash.String
	a.HashKind = HashKind(hashKind.String)
	a.Status = Status(status)
	a.Meta = map[string]any{}
	unmarshalJSON(metaJSON, &a.Meta)
	unmarshalJSON(tagsJSON, &a.Tags)
	a.CreatedAt = store.ParseTime(createdAt)
	a.UpdatedAt = store.ParseTime(updatedAt)
	return &a, nil
}

func scanAssets(rows *sql.Rows) ([]*Asset, error) {
	var out []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var e Event
	var jobID sql.NullString
	var detailJSON, createdAt string
	var eventType string

	if err := rows.Scan(&e.ID, &e.AssetID, &eventType, &jobID, &detailJSON, &createdAt); err != nil {
		return nil, err
	}
	e.Type = EventType(eventType)
	e.JobID = jobID.String
	e.Detail = map[string]any{}
	unmarshalJSON(detailJSON, &e.Detail)
	e.CreatedAt = store.ParseTime(createdAt)
	return &e, nil
}
