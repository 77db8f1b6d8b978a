// Package jobs implements the durable typed job queue and dispatcher: a
// SQLite-backed queue of work items (one per rule action invocation),
// a bounded worker pool that claims and executes them, and the
// queued -> running -> {completed, failed, cancelled} state machine with
// exponential-backoff retry: a pub-sub queue over a map plus ordering,
// a worker pool with per-worker cancellable job context, and
// Resize/Pause/Unpause control, generalized from a single transcode-job
// type to the typed job kinds this pipeline dispatches.
package jobs

import (
	"time"
)

// Status is the job's position in the state machine.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// Priority controls dispatch ordering within the queued set.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// priorityRank orders priorities for dispatch; higher first.
var priorityRank = map[Priority]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityNormal:   1,
	PriorityLow:      0,
}

// Rank returns the dispatch-order weight of a priority, defaulting unknown
// values to PriorityNormal's weight.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityNormal]
}

// Kind identifies the action a job performs, matching the action library's
// handler registry.
type Kind string

const (
	KindIndex     Kind = "index"
	KindRemux     Kind = "remux"
	KindMove      Kind = "move"
	KindCopy      Kind = "copy"
	KindProxy     Kind = "proxy"
	KindThumbnail Kind = "thumbnail"
	KindTranscode Kind = "transcode"
	KindTag       Kind = "tag"
	KindHook      Kind = "hook"
)

// Job is one unit of work dispatched to a worker.
type Job struct {
	ID          string
	Type        Kind
	AssetID     string
	RuleID      string
	Priority    Priority
	Payload     map[string]any
	State       Status
	Attempt     int
	MaxAttempts int
	Error       string
	Result      map[string]any
	TimeoutSec  int // 0 means no per-job deadline; the dispatcher's watchdog only fires when set
	NotBefore   time.Time
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// IsTerminal reports whether the job has reached a state it cannot leave
// without operator intervention.
func (j *Job) IsTerminal() bool {
	switch j.State {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Copy returns a deep-enough copy for safe hand-off across goroutines —
// the Payload/Result maps are shared-read only after creation, so a
// shallow copy of the struct plus those references is sufficient, matching
// the struct having no nested maps of its own.
func (j *Job) Copy() *Job {
	c := *j
	return &c
}

// Progress is the latest reported state of a running job, stored in a
// separate table so high-frequency updates (percent-complete ticks from
// ffmpeg's -progress output) don't contend with the jobs table's row
// locks, matching the data model's stated rationale.
type Progress struct {
	JobID      string
	Phase      string
	Percent    float64
	Speed      float64
	ETASeconds float64
	Detail     map[string]any
	UpdatedAt  time.Time
}

// Event is published to queue subscribers (SSE handlers, metrics) on every
// state transition.
type Event struct {
	Type string // "queued", "started", "progress", "completed", "failed", "retrying", "cancelled"
	Job  *Job
}
