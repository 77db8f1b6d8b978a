package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/metrics"
)

// ProgressFunc lets a running handler report progress without reaching
// back into the Queue directly.
type ProgressFunc func(phase string, percent, speed, etaSeconds float64, detail map[string]any)

// Handler executes one job and returns its result payload. Handlers must
// honor ctx cancellation promptly — the dispatcher cancels a job's context
// on Cancel or on pool shutdown.
type Handler func(ctx context.Context, job *Job, progress ProgressFunc) (map[string]any, error)

// Registry maps job kinds to their handler, populated once at startup by
// the action library.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

func (r *Registry) Register(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Registry) Lookup(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Dispatcher is the bounded worker pool that claims jobs from the Queue and
// runs them through the Registry: a fixed slice of workers, each with its
// own cancellable job context, Resize/Pause/Unpause control, generalized
// from one job type to any registered Kind.
type Dispatcher struct {
	queue    *Queue
	registry *Registry

	mu      sync.Mutex
	workers []*dispatchWorker

	ctx    context.Context
	cancel context.CancelFunc

	pausedMu sync.RWMutex
	paused   bool
}

type dispatchWorker struct {
	id   int
	pool *Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	currentMu  sync.Mutex
	currentJob *Job
	jobCancel  context.CancelFunc
}

// NewDispatcher creates a Dispatcher with n workers, not yet started.
func NewDispatcher(queue *Queue, registry *Registry, n int) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:    queue,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}
	n = ClampWorkerCount(n)
	for i := 0; i < n; i++ {
		d.workers = append(d.workers, d.newWorker(i))
	}
	return d
}

func (d *Dispatcher) newWorker(id int) *dispatchWorker {
	return &dispatchWorker{id: id, pool: d}
}

// Start launches all workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.workers {
		w.start(d.ctx)
	}
}

// Stop cancels every worker's job and waits for the pool to drain.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.mu.Lock()
	workers := append([]*dispatchWorker(nil), d.workers...)
	d.mu.Unlock()
	for _, w := range workers {
		w.stop()
	}
}

// Pause stops workers from claiming new jobs without cancelling ones
// already running. Its caller is the API's POST /api/queue/pause.
func (d *Dispatcher) Pause() {
	d.pausedMu.Lock()
	d.paused = true
	d.pausedMu.Unlock()
}

func (d *Dispatcher) Unpause() {
	d.pausedMu.Lock()
	d.paused = false
	d.pausedMu.Unlock()
}

func (d *Dispatcher) isPaused() bool {
	d.pausedMu.RLock()
	defer d.pausedMu.RUnlock()
	return d.paused
}

// Resize changes the worker count, starting new workers or stopping
// excess ones immediately (in-flight jobs on removed workers are
// cancelled and left for Retry to reclaim on the next Next() scan).
func (d *Dispatcher) Resize(n int) {
	n = ClampWorkerCount(n)
	d.mu.Lock()
	defer d.mu.Unlock()

	current := len(d.workers)
	if n > current {
		for i := current; i < n; i++ {
			w := d.newWorker(i)
			w.start(d.ctx)
			d.workers = append(d.workers, w)
		}
		return
	}
	for len(d.workers) > n {
		w := d.workers[len(d.workers)-1]
		d.workers = d.workers[:len(d.workers)-1]
		w.stop()
	}
}

// CancelJob cancels a job if it's currently running on one of this pool's
// workers.
func (d *Dispatcher) CancelJob(jobID string) bool {
	d.mu.Lock()
	workers := append([]*dispatchWorker(nil), d.workers...)
	d.mu.Unlock()

	for _, w := range workers {
		w.currentMu.Lock()
		match := w.currentJob != nil && w.currentJob.ID == jobID
		cancel := w.jobCancel
		w.currentMu.Unlock()
		if match && cancel != nil {
			cancel()
			return true
		}
	}
	return false
}

func (w *dispatchWorker) start(parent context.Context) {
	w.ctx, w.cancel = context.WithCancel(parent)
	w.wg.Add(1)
	go w.run()
}

func (w *dispatchWorker) stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *dispatchWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		if w.pool.isPaused() {
			if w.sleepOrDone(500 * time.Millisecond) {
				return
			}
			continue
		}

		job := w.pool.queue.Next()
		if job == nil {
			if w.sleepOrDone(500 * time.Millisecond) {
				return
			}
			continue
		}

		w.process(job)
	}
}

func (w *dispatchWorker) sleepOrDone(d time.Duration) bool {
	select {
	case <-w.ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}

func (w *dispatchWorker) process(job *Job) {
	jobCtx, jobCancel := context.WithCancel(w.ctx)
	defer jobCancel()

	// A per-job deadline layered on top of the worker's own cancellable
	// context: CancelJob still cancels jobCtx directly (explicit operator
	// cancel), while a job running past TimeoutSec only cancels runCtx, so
	// the two are distinguishable below.
	runCtx := jobCtx
	if job.TimeoutSec > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(jobCtx, time.Duration(job.TimeoutSec)*time.Second)
		defer timeoutCancel()
	}

	w.currentMu.Lock()
	w.currentJob = job
	w.jobCancel = jobCancel
	w.currentMu.Unlock()
	defer func() {
		w.currentMu.Lock()
		w.currentJob = nil
		w.jobCancel = nil
		w.currentMu.Unlock()
	}()

	handler, ok := w.pool.registry.Lookup(job.Type)
	if !ok {
		_ = w.pool.queue.Fail(job.ID, ErrNoHandler.Error()+": "+string(job.Type))
		return
	}

	progress := func(phase string, percent, speed, eta float64, detail map[string]any) {
		_ = w.pool.queue.UpdateProgress(Progress{
			JobID: job.ID, Phase: phase, Percent: percent, Speed: speed, ETASeconds: eta, Detail: detail,
		})
	}

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	started := time.Now()
	logger.Info("job started", "job_id", job.ID, "type", job.Type, "attempt", job.Attempt)
	result, err := handler(runCtx, job, progress)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(started).Seconds())

	if runCtx.Err() == context.DeadlineExceeded {
		logger.Warn("job timed out", "job_id", job.ID, "type", job.Type, "timeout_sec", job.TimeoutSec)
		_ = w.pool.queue.Fail(job.ID, "timeout")
		return
	}

	if jobCtx.Err() == context.Canceled {
		if w.ctx.Err() == nil {
			logger.Info("job cancelled", "job_id", job.ID)
			_ = w.pool.queue.Cancel(job.ID)
		} else if w.pool.ctx.Err() == nil {
			// Worker removed by Resize while the pool keeps running: hand
			// the job back so another worker's Next() scan claims it.
			_ = w.pool.queue.Retry(job.ID, "worker removed by resize", 0)
		}
		return
	}

	if err != nil {
		logger.Warn("job failed", "job_id", job.ID, "attempt", job.Attempt, "error", err)
		if apperr.Retryable(err) {
			backoff := backoffFor(job.Attempt)
			_ = w.pool.queue.Retry(job.ID, err.Error(), backoff)
		} else {
			_ = w.pool.queue.Fail(job.ID, err.Error())
		}
		return
	}

	logger.Info("job completed", "job_id", job.ID, "type", job.Type)
	_ = w.pool.queue.Complete(job.ID, result)
}

// backoffFor computes exponential backoff for a given attempt number,
// capped at MaxBackoffSeconds.
func backoffFor(attempt int) time.Duration {
	secs := BaseBackoffSeconds << uint(attempt-1)
	if secs > MaxBackoffSeconds || secs <= 0 {
		secs = MaxBackoffSeconds
	}
	return time.Duration(secs) * time.Second
}
