package rules

import (
	"path/filepath"
	"testing"

	"github.com/mscrnt/streamops-go/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestUpsertAndGetRoundTrips(t *testing.T) {
	s := newTestStore(t)

	rule := &Rule{
		Name:     "remux new recordings",
		Priority: 10,
		Enabled:  true,
		Trigger:  Trigger{Type: "file_closed"},
		PathGlob: "/rec/*.mkv",
		Conditions: []Condition{
			{Field: "duration_sec", Op: OpGt, Value: float64(5)},
		},
		Actions: []Action{
			{Type: "remux", Params: map[string]any{"container": "mov"}},
		},
		Guardrails: Guardrails{PauseWhenRecording: true, CPUGuardPct: 85},
	}
	if err := s.Upsert(rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rule.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.Get(rule.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != rule.Name || got.Priority != rule.Priority {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if len(got.Actions) != 1 || got.Actions[0].Type != "remux" {
		t.Fatalf("actions not preserved: %+v", got.Actions)
	}
	if !got.Guardrails.PauseWhenRecording {
		t.Fatal("expected guardrails preserved")
	}
}

func TestListEnabledOrdersByPriorityThenAge(t *testing.T) {
	s := newTestStore(t)

	low := &Rule{Name: "low", Priority: 1, Enabled: true, Trigger: Trigger{Type: "file_closed"}}
	high := &Rule{Name: "high", Priority: 10, Enabled: true, Trigger: Trigger{Type: "file_closed"}}
	disabled := &Rule{Name: "off", Priority: 99, Enabled: false, Trigger: Trigger{Type: "file_closed"}}

	for _, r := range []*Rule{low, high, disabled} {
		if err := s.Upsert(r); err != nil {
			t.Fatalf("upsert %s: %v", r.Name, err)
		}
	}

	list, err := s.ListEnabled()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 enabled rules, got %d", len(list))
	}
	if list[0].Name != "high" {
		t.Fatalf("expected high priority first, got %s", list[0].Name)
	}
}

func TestDeleteMissingRuleReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
