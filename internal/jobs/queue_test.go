package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/store"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	q, err := NewQueue(db)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestEnqueueIsIdempotent(t *testing.T) {
	q := newTestQueue(t)

	payload := map[string]any{"path": "/media/a.mp4"}
	j1, err := q.Enqueue(KindRemux, "asset1", "", PriorityNormal, payload, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	j2, err := q.Enqueue(KindRemux, "asset1", "", PriorityNormal, payload, 3)
	if err != nil {
		t.Fatalf("enqueue again: %v", err)
	}
	if j1.ID != j2.ID {
		t.Errorf("expected same job ID for duplicate enqueue, got %s != %s", j1.ID, j2.ID)
	}
	if len(q.List()) != 1 {
		t.Errorf("expected 1 job in queue, got %d", len(q.List()))
	}
}

func TestNextRespectsPriority(t *testing.T) {
	q := newTestQueue(t)

	_, _ = q.Enqueue(KindIndex, "a1", "", PriorityLow, map[string]any{"n": 1}, 3)
	high, _ := q.Enqueue(KindIndex, "a2", "", PriorityHigh, map[string]any{"n": 2}, 3)

	next := q.Next()
	if next == nil || next.ID != high.ID {
		t.Fatalf("expected high priority job first, got %+v", next)
	}
}

func TestRetryExhaustsToFailed(t *testing.T) {
	q := newTestQueue(t)

	j, _ := q.Enqueue(KindTranscode, "a1", "", PriorityNormal, map[string]any{}, 2)
	_ = q.Next() // attempt 1, now running

	if err := q.Retry(j.ID, "transient", time.Millisecond); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := q.Get(j.ID).State; got != StatusRetrying {
		t.Fatalf("state = %s, want retrying", got)
	}

	time.Sleep(2 * time.Millisecond)
	_ = q.Next() // attempt 2, now running

	if err := q.Retry(j.ID, "transient again", time.Millisecond); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := q.Get(j.ID).State; got != StatusFailed {
		t.Fatalf("state = %s, want failed after exhausting attempts", got)
	}
}

func TestDispatcherCompletesJob(t *testing.T) {
	q := newTestQueue(t)
	reg := NewRegistry()

	done := make(chan struct{})
	reg.Register(KindTag, func(ctx context.Context, job *Job, progress ProgressFunc) (map[string]any, error) {
		progress("tagging", 50, 0, 0, nil)
		close(done)
		return map[string]any{"ok": true}, nil
	})

	d := NewDispatcher(q, reg, 1)
	d.Start()
	defer d.Stop()

	job, err := q.Enqueue(KindTag, "asset1", "", PriorityNormal, map[string]any{}, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run in time")
	}

	deadline := time.After(2 * time.Second)
	for {
		got := q.Get(job.ID)
		if got.State == StatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed, state=%s", got.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDispatcherRetriesOnRetryableError(t *testing.T) {
	q := newTestQueue(t)
	reg := NewRegistry()

	attempts := 0
	reg.Register(KindProxy, func(ctx context.Context, job *Job, progress ProgressFunc) (map[string]any, error) {
		attempts++
		if attempts < 2 {
			return nil, apperr.New(apperr.ExternalTool, "ffmpeg exited 1")
		}
		return map[string]any{}, nil
	})

	d := NewDispatcher(q, reg, 1)
	d.Start()
	defer d.Stop()

	job, _ := q.Enqueue(KindProxy, "asset1", "", PriorityNormal, map[string]any{}, 3)

	deadline := time.After(10 * time.Second)
	for {
		got := q.Get(job.ID)
		if got.State == StatusCompleted {
			break
		}
		if got.State == StatusFailed {
			t.Fatalf("job failed permanently: %s", got.Error)
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed, state=%s attempts=%d", got.State, attempts)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestNoHandlerFailsJob(t *testing.T) {
	q := newTestQueue(t)
	reg := NewRegistry()

	d := NewDispatcher(q, reg, 1)
	d.Start()
	defer d.Stop()

	job, _ := q.Enqueue(KindHook, "asset1", "", PriorityNormal, map[string]any{}, 3)

	deadline := time.After(2 * time.Second)
	for {
		got := q.Get(job.ID)
		if got.State == StatusFailed {
			if got.Error == "" {
				t.Error("expected a recorded error message")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed, state=%s", got.State)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
