// Package actions is the action library: the concrete remux/move/copy/
// proxy/thumbnail/transcode/tag/index/hook handlers that the rule executor
// and job dispatcher both drive. Lightweight, synchronous actions (remux,
// move, copy, tag, index, hook) run in-line inside the rule executor's
// pipeline. Actions that do real encode work (proxy, thumbnail, transcode)
// enqueue a job on the durable queue and block until it reaches a terminal
// state, so the pipeline's sequential RuleContext-threading guarantee
// holds while the heavy lifting still benefits from the queue's
// durability, progress reporting, and retry.
//
// Follows an ffmpeg args in, parsed progress out, result struct call
// shape generalized across every action type and threaded through the
// rule engine's Context/ActionResult contract instead of a single
// hardcoded compression pipeline.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/mediatool"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// Library holds every dependency the action handlers need and exposes them
// as both rules.Handler (for the executor) and jobs.Handler (for the
// dispatcher's registry) implementations.
type Library struct {
	Assets   *assets.Store
	Queue    *jobs.Queue
	Prober   mediatool.ProbeService
	Runner   *mediatool.Runner
	CacheDir string
	GPUPath  string

	jobWaitPoll time.Duration
}

// NewLibrary builds a Library. cacheDir is where scratch/proxy/thumbnail
// output is staged before being moved into its final location. prober is
// typically a *mediatool.CachingProber so concurrent index/reindex calls
// against the same path collapse into one ffprobe invocation.
func NewLibrary(assetStore *assets.Store, queue *jobs.Queue, prober mediatool.ProbeService, runner *mediatool.Runner, cacheDir, gpuPath string) *Library {
	return &Library{
		Assets:      assetStore,
		Queue:       queue,
		Prober:      prober,
		Runner:      runner,
		CacheDir:    cacheDir,
		GPUPath:     gpuPath,
		jobWaitPoll: 200 * time.Millisecond,
	}
}

// RegisterRules wires every synchronous and job-backed action into the rule
// executor's registry.
func (l *Library) RegisterRules(reg *rules.Registry) {
	reg.Register("remux", l.RuleRemux)
	reg.Register("move", l.RuleMove)
	reg.Register("copy", l.RuleCopy)
	reg.Register("tag", l.RuleTag)
	reg.Register("index", l.RuleIndex)
	reg.Register("hook", l.RuleHook)
	reg.Register("proxy", l.RuleProxy)
	reg.Register("thumbnail", l.ruleEnqueueAndWait(jobs.KindThumbnail))
	reg.Register("transcode", l.ruleEnqueueAndWait(jobs.KindTranscode))
}

// RegisterJobs wires the job-handler side of every action kind into the
// dispatcher's registry — including proxy/thumbnail/transcode (the actual
// encode work) and remux/move/copy/tag/index/hook again, so the same
// actions are reachable both synchronously from a rule and asynchronously
// if something enqueues them directly (e.g. an admin-triggered reindex).
func (l *Library) RegisterJobs(reg *jobs.Registry) {
	reg.Register(jobs.KindRemux, l.JobRemux)
	reg.Register(jobs.KindMove, l.JobMove)
	reg.Register(jobs.KindCopy, l.JobCopy)
	reg.Register(jobs.KindTag, l.JobTag)
	reg.Register(jobs.KindIndex, l.JobIndex)
	reg.Register(jobs.KindHook, l.JobHook)
	reg.Register(jobs.KindProxy, l.JobProxy)
	reg.Register(jobs.KindThumbnail, l.JobThumbnail)
	reg.Register(jobs.KindTranscode, l.JobTranscode)
}

// gpuProbePath returns the ffmpeg binary used for GPU capability probing,
// allowing an operator to point GPU detection at a different build (e.g. one
// with NVENC support) than the one used for ordinary encodes.
func (l *Library) gpuProbePath() string {
	if l.GPUPath != "" {
		return l.GPUPath
	}
	if l.Runner != nil {
		return l.Runner.FFmpegPath
	}
	return "ffmpeg"
}

// ruleEnqueueAndWait builds a rules.Handler that enqueues kind with the
// rule context's active path as payload and blocks on the queue's
// subscription feed until that job reaches a terminal state.
func (l *Library) ruleEnqueueAndWait(kind jobs.Kind) rules.Handler {
	return func(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
		return l.enqueueAndWait(ctx, kind, ruleCtx, params)
	}
}

// enqueueAndWait enqueues kind with the rule context's active path as
// payload and blocks on the queue's subscription feed until that job
// reaches a terminal state.
func (l *Library) enqueueAndWait(ctx context.Context, kind jobs.Kind, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["path"] = ruleCtx.Active.Path

	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	var timeoutSec int
	if v, ok := params["timeout_sec"].(float64); ok && v > 0 {
		timeoutSec = int(v)
	}
	job, err := l.Queue.Enqueue(kind, assetID, "", jobs.PriorityNormal, payload, 3, timeoutSec)
	if err != nil {
		return rules.ActionResult{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}

	final, err := l.awaitTerminal(ctx, job.ID)
	if err != nil {
		return rules.ActionResult{}, err
	}
	if final.State == jobs.StatusFailed || final.State == jobs.StatusCancelled {
		return rules.ActionResult{}, fmt.Errorf("%s job %s: %s", kind, final.ID, final.Error)
	}

	result := rules.ActionResult{Outputs: final.Result}
	if out, ok := final.Result["primary_output_path"].(string); ok {
		result.PrimaryOutputPath = out
	}
	return result, nil
}

// defaultMinProxyDurationSec is the floor below which a proxy is skipped
// entirely: recordings this short rarely need an offline-edit proxy.
const defaultMinProxyDurationSec = 900

// RuleProxy is the proxy action's rules.Handler. It probes the active
// artifact's duration first and skips enqueueing a proxy job entirely —
// no job, no proxy_completed event — when the source runs shorter than
// min_duration_sec (default 900s).
func (l *Library) RuleProxy(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	minDuration := float64(defaultMinProxyDurationSec)
	if v, ok := params["min_duration_sec"].(float64); ok && v > 0 {
		minDuration = v
	}

	if l.Prober != nil {
		if probe, err := l.Prober.Probe(ctx, ruleCtx.Active.Path); err == nil {
			if probe.DurationSec > 0 && probe.DurationSec < minDuration {
				return rules.ActionResult{}, nil
			}
		}
		// A probe error here isn't fatal to the guard: JobProxy probes
		// again and surfaces probe failures from there.
	}

	return l.enqueueAndWait(ctx, jobs.KindProxy, ruleCtx, params)
}

// awaitTerminal subscribes to the queue and blocks until job reaches a
// terminal state, falling back to polling Get if the event stream is ever
// missed (e.g. this subscriber was registered after the job already
// completed in a race).
func (l *Library) awaitTerminal(ctx context.Context, jobID string) (*jobs.Job, error) {
	sub := l.Queue.Subscribe()
	defer l.Queue.Unsubscribe(sub)

	if j := l.Queue.Get(jobID); j != nil && j.IsTerminal() {
		return j, nil
	}

	poll := l.jobWaitPoll
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case evt := <-sub:
			if evt.Job != nil && evt.Job.ID == jobID && evt.Job.IsTerminal() {
				return evt.Job, nil
			}
		case <-ticker.C:
			if j := l.Queue.Get(jobID); j != nil && j.IsTerminal() {
				return j, nil
			}
		}
	}
}
