package assets

import (
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/store"
)

// Role is one watched-directory mapping: a role name (recordings, clips,
// exports, ...) and the absolute path the watcher recurses into for it.
type Role struct {
	Name      string
	AbsPath   string
	Watch     bool
	CreatedAt time.Time
}

// RoleStore persists the role -> directory mapping the watcher reconciles
// against on a timer. A thin wrapper over so_roles, split out from Store
// because roles are configuration rather than per-file state.
type RoleStore struct {
	db *store.DB
}

func NewRoleStore(db *store.DB) *RoleStore {
	return &RoleStore{db: db}
}

// Upsert inserts or replaces a role definition.
func (s *RoleStore) Upsert(r *Role) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.Conn().Exec(`
		INSERT INTO so_roles (role, abs_path, watch, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET abs_path=excluded.abs_path, watch=excluded.watch
	`, r.Name, r.AbsPath, store.BoolToInt(r.Watch), store.FormatTime(r.CreatedAt))
	if err != nil {
		return apperr.Wrap(apperr.IO, "upsert role", err)
	}
	return nil
}

// Delete removes a role mapping.
func (s *RoleStore) Delete(name string) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()
	res, err := s.db.Conn().Exec(`DELETE FROM so_roles WHERE role = ?`, name)
	if err != nil {
		return apperr.Wrap(apperr.IO, "delete role", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "role not found: "+name)
	}
	return nil
}

// List returns every configured role regardless of watch state.
func (s *RoleStore) List() ([]*Role, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	rows, err := s.db.Conn().Query(`SELECT role, abs_path, watch, created_at FROM so_roles ORDER BY role`)
	if err != nil {
		return nil, apperr.Wrap(apperr.IO, "list roles", err)
	}
	defer rows.Close()

	var out []*Role
	for rows.Next() {
		var r Role
		var watch int
		var createdAt string
		if err := rows.Scan(&r.Name, &r.AbsPath, &watch, &createdAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		r.Watch = watch != 0
		r.CreatedAt = store.ParseTime(createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// WatchedRoles implements watcher.RoleResolver: it returns every role
// currently flagged watch=1 as a name -> absolute-path map.
func (s *RoleStore) WatchedRoles() (map[string]string, error) {
	roles, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(roles))
	for _, r := range roles {
		if r.Watch {
			out[r.Name] = r.AbsPath
		}
	}
	return out, nil
}
