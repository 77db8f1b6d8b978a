package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeGuard struct {
	blockedUntil time.Time
	reason       string
}

func (g *fakeGuard) Check(_ Guardrails) (bool, string) {
	if time.Now().Before(g.blockedUntil) {
		return false, g.reason
	}
	return true, ""
}

type fakeRecorder struct {
	calls []string
}

func (r *fakeRecorder) RecordError(assetID, action, message, stage string) {
	r.calls = append(r.calls, action+":"+stage)
}

// TestGoldenRemuxThenMove is the golden scenario from the data model's
// remux→move invariant: a rule chaining remux then move must see the
// remuxed path (not the original) when expanding the move's target
// template, and the file must end up with the new suffix in the
// destination directory.
func TestGoldenRemuxThenMove(t *testing.T) {
	recDir := t.TempDir()
	editRoot := t.TempDir()

	src := filepath.Join(recDir, "clip.mkv")
	if err := os.WriteFile(src, []byte("fake-mkv-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry()
	registry.Register("remux", func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error) {
		in := ruleCtx.Active.Path
		out := in[:len(in)-len(filepath.Ext(in))] + ".mov"
		data, err := os.ReadFile(in)
		if err != nil {
			return ActionResult{}, err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return ActionResult{}, err
		}
		if err := os.Remove(in); err != nil {
			return ActionResult{}, err
		}
		return ActionResult{PrimaryOutputPath: out}, nil
	})
	registry.Register("move", func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error) {
		target := ResolveTarget(params["target"].(string), ruleCtx)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return ActionResult{}, err
		}
		data, err := os.ReadFile(ruleCtx.Active.Path)
		if err != nil {
			return ActionResult{}, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return ActionResult{}, err
		}
		if err := os.Remove(ruleCtx.Active.Path); err != nil {
			return ActionResult{}, err
		}
		return ActionResult{PrimaryOutputPath: target}, nil
	})

	rule := Rule{
		Enabled: true,
		Trigger: Trigger{Type: "file_closed"},
		Actions: []Action{
			{Type: "remux", Params: map[string]any{"container": "mov"}},
			{Type: "move", Params: map[string]any{"target": filepath.Join(editRoot, "{year}", "{month}", "{filename}")}},
		},
	}

	exec := NewExecutor(registry, nil, nil, 0, 0)
	ran, err := exec.Run(context.Background(), rule, Event{Type: "file_closed", Path: src, AssetID: "a1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("expected rule to fire")
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected original mkv removed, stat err = %v", err)
	}

	now := time.Now()
	want := filepath.Join(editRoot, now.Format("2006"), now.Format("01"), "clip.mov")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected moved file at %s: %v", want, err)
	}
}

func TestExecutorStopsOnActionFailure(t *testing.T) {
	registry := NewRegistry()
	ranSecond := false
	registry.Register("fail", func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error) {
		return ActionResult{}, os.ErrPermission
	})
	registry.Register("noop", func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error) {
		ranSecond = true
		return ActionResult{}, nil
	})

	rec := &fakeRecorder{}
	rule := Rule{
		Enabled: true,
		Trigger: Trigger{Type: "file_closed"},
		Actions: []Action{{Type: "fail"}, {Type: "noop"}},
	}
	exec := NewExecutor(registry, nil, rec, 0, 0)
	ran, err := exec.Run(context.Background(), rule, Event{Type: "file_closed", Path: "/rec/clip.mkv", AssetID: "a1"})
	if !ran {
		t.Fatal("expected rule to have fired")
	}
	if err == nil {
		t.Fatal("expected error from failing action")
	}
	if ranSecond {
		t.Fatal("expected second action to be skipped after failure")
	}
	if len(rec.calls) != 1 || rec.calls[0] != "fail:execute" {
		t.Fatalf("expected one recorded failure for fail:execute, got %v", rec.calls)
	}
}

func TestExecutorWaitsForGuardThenRuns(t *testing.T) {
	registry := NewRegistry()
	var ran bool
	registry.Register("tag", func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error) {
		ran = true
		return ActionResult{}, nil
	})

	guard := &fakeGuard{blockedUntil: time.Now().Add(150 * time.Millisecond), reason: "recording_active"}
	rule := Rule{
		Enabled:    true,
		Trigger:    Trigger{Type: "file_closed"},
		Guardrails: Guardrails{PauseWhenRecording: true},
		Actions:    []Action{{Type: "tag", Params: map[string]any{"tags": []string{"x"}}}},
	}

	exec := NewExecutor(registry, guard, nil, 25*time.Millisecond, 2*time.Second)
	start := time.Now()
	_, err := exec.Run(context.Background(), rule, Event{Type: "file_closed", Path: "/rec/clip.mkv"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("expected action to eventually run once guard cleared")
	}
	if time.Since(start) < 150*time.Millisecond {
		t.Fatal("expected executor to have waited for the guard to clear")
	}
}
