package jobs

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mscrnt/streamops-go/internal/metrics"
	"github.com/mscrnt/streamops-go/internal/store"
)

// Queue is the durable, SQLite-backed job queue: an in-memory map plus a
// pub-sub broadcast fan-out to subscriber channels, with every mutation
// persisted to so_jobs/so_progress and the in-memory index re-hydrated
// from the database on startup so a crash mid-run loses nothing.
type Queue struct {
	db *store.DB

	mu   sync.RWMutex
	jobs map[string]*Job

	subsMu      sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewQueue opens a Queue backed by db, loading any persisted jobs into the
// in-memory index and resetting interrupted "running" jobs back to
// "queued" for crash recovery.
func NewQueue(db *store.DB) (*Queue, error) {
	q := &Queue{
		db:          db,
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Event]struct{}),
	}
	if err := q.hydrate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) hydrate() error {
	rows, err := q.db.Conn().Query(selectJobCols)
	if err != nil {
		return fmt.Errorf("hydrate jobs: %w", err)
	}
	defer rows.Close()

	var resume []string
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return err
		}
		if j.State == StatusRunning {
			j.State = StatusQueued
			resume = append(resume, j.ID)
		}
		q.jobs[j.ID] = j
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range resume {
		if err := q.persist(q.jobs[id]); err != nil {
			return fmt.Errorf("reset interrupted job %s: %w", id, err)
		}
	}
	return nil
}

// DeterministicID derives the job ID from (type, asset_id, payload) so
// re-running a rule match against an event that was already processed is
// idempotent at enqueue time rather than producing a duplicate job row —
// the approach the data model's Open Questions section names as the
// preferred resolution over a timestamp-based ID.
func DeterministicID(kind Kind, assetID string, payload map[string]any) string {
	payloadJSON, _ := json.Marshal(payload)
	raw := fmt.Sprintf("%s|%s|%s", kind, assetID, payloadJSON)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// Enqueue adds a new job, or returns the existing job unchanged if one with
// the same deterministic ID is already queued/running/terminal — making
// enqueue idempotent under duplicate watcher or rule-match events.
// timeoutSec is optional (pass none for no per-job deadline); only its
// first value is used, matching the data model's optional timeout_sec.
func (q *Queue) Enqueue(kind Kind, assetID, ruleID string, priority Priority, payload map[string]any, maxAttempts int, timeoutSec ...int) (*Job, error) {
	id := DeterministicID(kind, assetID, payload)

	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.jobs[id]; ok {
		return existing, nil
	}

	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	var timeout int
	if len(timeoutSec) > 0 && timeoutSec[0] > 0 {
		timeout = timeoutSec[0]
	}
	job := &Job{
		ID:          id,
		Type:        kind,
		AssetID:     assetID,
		RuleID:      ruleID,
		Priority:    priority,
		Payload:     payload,
		State:       StatusQueued,
		MaxAttempts: maxAttempts,
		TimeoutSec:  timeout,
		CreatedAt:   time.Now(),
	}

	if err := q.persist(job); err != nil {
		return nil, err
	}
	q.jobs[id] = job
	metrics.JobsEnqueued.WithLabelValues(string(kind)).Inc()
	metrics.QueueDepth.Set(float64(q.queuedCountLocked()))
	q.broadcast(Event{Type: "queued", Job: job.Copy()})
	return job, nil
}

// Get returns a job by ID, or nil if unknown.
func (q *Queue) Get(id string) *Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if j, ok := q.jobs[id]; ok {
		return j.Copy()
	}
	return nil
}

// List returns all in-memory jobs.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Copy())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// Next returns the highest-priority eligible job (queued or retrying, with
// NotBefore elapsed), oldest first within the same priority, or nil if
// nothing is ready. The claim is atomic: Next marks the chosen job running
// while holding the queue lock.
func (q *Queue) Next() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var best *Job
	for _, j := range q.jobs {
		if j.State != StatusQueued && j.State != StatusRetrying {
			continue
		}
		if !j.NotBefore.IsZero() && j.NotBefore.After(now) {
			continue
		}
		if best == nil {
			best = j
			continue
		}
		if j.Priority.Rank() != best.Priority.Rank() {
			if j.Priority.Rank() > best.Priority.Rank() {
				best = j
			}
			continue
		}
		if j.CreatedAt.Before(best.CreatedAt) {
			best = j
		}
	}
	if best == nil {
		return nil
	}

	best.State = StatusRunning
	best.Attempt++
	best.StartedAt = now
	if err := q.persist(best); err != nil {
		return nil
	}
	job := best.Copy()
	metrics.QueueDepth.Set(float64(q.queuedCountLocked()))
	q.broadcast(Event{Type: "started", Job: job})
	return job
}

// queuedCountLocked counts jobs still waiting for a worker. Callers must
// hold q.mu.
func (q *Queue) queuedCountLocked() int {
	n := 0
	for _, j := range q.jobs {
		if j.State == StatusQueued || j.State == StatusRetrying {
			n++
		}
	}
	return n
}

// UpdateProgress upserts the job's progress row and broadcasts a progress
// event, without touching the jobs table — the separate-table design the
// data model calls for to avoid contending with job-state writes.
func (q *Queue) UpdateProgress(p Progress) error {
	p.UpdatedAt = time.Now()
	_, err := q.db.Conn().Exec(`
		INSERT INTO so_progress (job_id, phase, percent, speed, eta_seconds, detail_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			phase=excluded.phase, percent=excluded.percent, speed=excluded.speed,
			eta_seconds=excluded.eta_seconds, detail_json=excluded.detail_json, updated_at=excluded.updated_at
	`, p.JobID, p.Phase, p.Percent, p.Speed, p.ETASeconds, marshalJSON(p.Detail), store.FormatTime(p.UpdatedAt))
	if err != nil {
		return err
	}

	q.mu.RLock()
	job, ok := q.jobs[p.JobID]
	q.mu.RUnlock()
	if ok {
		q.broadcast(Event{Type: "progress", Job: job.Copy()})
	}
	return nil
}

// GetProgress returns the latest progress row for a job, or a zero value if
// none has been reported yet.
func (q *Queue) GetProgress(jobID string) (Progress, error) {
	row := q.db.Conn().QueryRow(`
		SELECT job_id, phase, percent, speed, eta_seconds, detail_json, updated_at
		FROM so_progress WHERE job_id = ?
	`, jobID)
	var p Progress
	var detailJSON, updatedAt string
	err := row.Scan(&p.JobID, &p.Phase, &p.Percent, &p.Speed, &p.ETASeconds, &detailJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return Progress{JobID: jobID}, nil
	}
	if err != nil {
		return Progress{}, err
	}
	p.Detail = map[string]any{}
	unmarshalJSON(detailJSON, &p.Detail)
	p.UpdatedAt = store.ParseTime(updatedAt)
	return p, nil
}

// Complete marks a job completed with its result payload.
func (q *Queue) Complete(id string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return notFoundError(id)
	}
	job.State = StatusCompleted
	job.Result = result
	job.CompletedAt = time.Now()
	if err := q.persist(job); err != nil {
		return err
	}
	metrics.JobsCompleted.WithLabelValues(string(job.Type), "completed").Inc()
	q.broadcast(Event{Type: "completed", Job: job.Copy()})
	return nil
}

// Retry schedules the job to run again after backoff, or fails it
// permanently if max attempts have been exhausted.
func (q *Queue) Retry(id string, errMsg string, backoff time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return notFoundError(id)
	}
	job.Error = errMsg

	if job.Attempt >= job.MaxAttempts {
		job.State = StatusFailed
		job.CompletedAt = time.Now()
		if err := q.persist(job); err != nil {
			return err
		}
		metrics.JobsCompleted.WithLabelValues(string(job.Type), "failed").Inc()
		q.broadcast(Event{Type: "failed", Job: job.Copy()})
		return nil
	}

	job.State = StatusRetrying
	job.NotBefore = time.Now().Add(backoff)
	if err := q.persist(job); err != nil {
		return err
	}
	metrics.QueueDepth.Set(float64(q.queuedCountLocked()))
	q.broadcast(Event{Type: "retrying", Job: job.Copy()})
	return nil
}

// Fail marks a job permanently failed regardless of remaining attempts,
// used for non-retryable errors (validation, guarded-permanently).
func (q *Queue) Fail(id string, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return notFoundError(id)
	}
	job.State = StatusFailed
	job.Error = errMsg
	job.CompletedAt = time.Now()
	if err := q.persist(job); err != nil {
		return err
	}
	metrics.JobsCompleted.WithLabelValues(string(job.Type), "failed").Inc()
	q.broadcast(Event{Type: "failed", Job: job.Copy()})
	return nil
}

// Cancel transitions a non-terminal job to cancelled.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return notFoundError(id)
	}
	if job.IsTerminal() {
		return terminalError(id, job.State)
	}
	job.State = StatusCancelled
	job.CompletedAt = time.Now()
	if err := q.persist(job); err != nil {
		return err
	}
	metrics.JobsCompleted.WithLabelValues(string(job.Type), "cancelled").Inc()
	q.broadcast(Event{Type: "cancelled", Job: job.Copy()})
	return nil
}

// Subscribe returns a channel receiving queue events.
func (q *Queue) Subscribe() chan Event {
	ch := make(chan Event, 100)
	q.subsMu.Lock()
	q.subscribers[ch] = struct{}{}
	q.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (q *Queue) Unsubscribe(ch chan Event) {
	q.subsMu.Lock()
	delete(q.subscribers, ch)
	q.subsMu.Unlock()
	close(ch)
}

func (q *Queue) broadcast(e Event) {
	q.subsMu.RLock()
	defer q.subsMu.RUnlock()
	for ch := range q.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

const selectJobCols = `SELECT id, type, asset_id, rule_id, priority, payload_json, state,
	attempt, max_attempts, error, result_json, not_before, timeout_sec,
	created_at, started_at, completed_at
	FROM so_jobs`

func (q *Queue) persist(j *Job) error {
	q.db.Mu.Lock()
	defer q.db.Mu.Unlock()

	_, err := q.db.Conn().Exec(`
		INSERT INTO so_jobs (
			id, type, asset_id, rule_id, priority, payload_json, state,
			attempt, max_attempts, error, result_json, not_before, timeout_sec,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, attempt=excluded.attempt, error=excluded.error,
			result_json=excluded.result_json, not_before=excluded.not_before,
			started_at=excluded.started_at, completed_at=excluded.completed_at
	`,
		j.ID, string(j.Type), store.NullString(j.AssetID), store.NullString(j.RuleID),
		string(j.Priority), marshalJSON(j.Payload), string(j.State),
		j.Attempt, j.MaxAttempts, store.NullString(j.Error), nullableResultJSON(j.Result),
		store.FormatTimePtr(j.NotBefore), j.TimeoutSec, store.FormatTime(j.CreatedAt),
		store.FormatTimePtr(j.StartedAt), store.FormatTimePtr(j.CompletedAt),
	)
	return err
}

func nullableResultJSON(m map[string]any) interface{} {
	if m == nil {
		return nil
	}
	return marshalJSON(m)
}

func scanJob(rows *sql.Rows) (*Job, error) {
	var j Job
	var assetID, ruleID, errStr, resultJSON, notBefore, startedAt, completedAt sql.NullString
	var jobType, priority, state, payloadJSON, createdAt string

	err := rows.Scan(
		&j.ID, &jobType, &assetID, &ruleID, &priority, &payloadJSON, &state,
		&j.Attempt, &j.MaxAttempts, &errStr, &resultJSON, &notBefore, &j.TimeoutSec,
		&createdAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Type = Kind(jobType)
	j.AssetID = assetID.String
	j.RuleID = ruleID.String
	j.Priority = Priority(priority)
	j.Payload = map[string]any{}
	unmarshalJSON(payloadJSON, &j.Payload)
	j.State = Status(state)
	j.Error = errStr.String
	if resultJSON.Valid {
		j.Result = map[string]any{}
		unmarshalJSON(resultJSON.String, &j.Result)
	}
	j.NotBefore = store.ParseTime(notBefore.String)
	j.CreatedAt = store.ParseTime(createdAt)
	j.StartedAt = store.ParseTime(startedAt.String)
	j.CompletedAt = store.ParseTime(completedAt.String)
	return &j, nil
}

func marshalJSON(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}
