package rules

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/store"
)

// Store persists rule definitions in so_rules, one JSON-encoded definition
// per row so the rule DSL's nested shape doesn't need a normalized schema.
type Store struct {
	db *store.DB
}

func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// definition is the JSON shape stored in so_rules.definition_json; Rule's
// ID/Name/Priority/Enabled/timestamps live in their own columns for
// indexing and sorting, everything else is opaque to SQL.
type definition struct {
	Trigger        Trigger     `json:"trigger"`
	PathGlob       string      `json:"path_glob,omitempty"`
	Conditions     []Condition `json:"conditions,omitempty"`
	Actions        []Action    `json:"actions"`
	Guardrails     Guardrails  `json:"guardrails"`
	QuietPeriodSec int         `json:"quiet_period_sec,omitempty"`
}

// Upsert inserts or replaces a rule. A blank ID is assigned a new UUID,
// matching the fallback id-generation path used where no deterministic
// fingerprint applies.
func (s *Store) Upsert(r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	def := definition{
		Trigger:        r.Trigger,
		PathGlob:       r.PathGlob,
		Conditions:     r.Conditions,
		Actions:        r.Actions,
		Guardrails:     r.Guardrails,
		QuietPeriodSec: r.QuietPeriodSec,
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "marshal rule definition", err)
	}

	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()

	_, err = s.db.Conn().Exec(`
		INSERT INTO so_rules (id, name, enabled, priority, definition_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, enabled=excluded.enabled, priority=excluded.priority,
			definition_json=excluded.definition_json, updated_at=excluded.updated_at
	`, r.ID, r.Name, store.BoolToInt(r.Enabled), r.Priority, string(raw),
		store.FormatTime(r.CreatedAt), store.FormatTime(r.UpdatedAt))
	if err != nil {
		return apperr.Wrap(apperr.IO, "upsert rule", err)
	}
	return nil
}

// Get returns a single rule by id.
func (s *Store) Get(id string) (*Rule, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	row := s.db.Conn().QueryRow(`
		SELECT id, name, enabled, priority, definition_json, created_at, updated_at
		FROM so_rules WHERE id = ?
	`, id)
	return scanRule(row)
}

// Delete removes a rule by id.
func (s *Store) Delete(id string) error {
	s.db.Mu.Lock()
	defer s.db.Mu.Unlock()
	res, err := s.db.Conn().Exec(`DELETE FROM so_rules WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.IO, "delete rule", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEnabled returns every enabled rule sorted priority DESC, created_at
// ASC, matching the load order the rule engine requires.
func (s *Store) ListEnabled() ([]*Rule, error) {
	return s.list(`WHERE enabled = 1 ORDER BY priority DESC, created_at ASC`)
}

// ListAll returns every rule regardless of enabled state, for admin listing.
func (s *Store) ListAll() ([]*Rule, error) {
	return s.list(`ORDER BY priority DESC, created_at ASC`)
}

func (s *Store) list(whereOrderBy string) ([]*Rule, error) {
	s.db.Mu.RLock()
	defer s.db.Mu.RUnlock()

	rows, err := s.db.Conn().Query(`
		SELECT id, name, enabled, priority, definition_json, created_at, updated_at
		FROM so_rules ` + whereOrderBy)
	if err != nil {
		return nil, apperr.Wrap(apperr.IO, "list rules", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*Rule, error) {
	var (
		r         Rule
		enabled   int
		defRaw    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Name, &enabled, &r.Priority, &defRaw, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, apperr.Wrap(apperr.IO, "scan rule", err)
	}
	r.Enabled = enabled != 0
	r.CreatedAt = store.ParseTime(createdAt)
	r.UpdatedAt = store.ParseTime(updatedAt)

	var def definition
	if err := json.Unmarshal([]byte(defRaw), &def); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "unmarshal rule definition", err)
	}
	r.Trigger = def.Trigger
	r.PathGlob = def.PathGlob
	r.Conditions = def.Conditions
	r.Actions = def.Actions
	r.Guardrails = def.Guardrails
	r.QuietPeriodSec = def.QuietPeriodSec
	return &r, nil
}
