package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/metrics"
)

// ActionResult is what an action handler returns. If PrimaryOutputPath is
// set, the executor derives a new Artifact from it and makes it the
// context's active artifact for every subsequent action in the rule.
// Outputs carries side-channel results (e.g. copy's destination) that
// don't become the active artifact.
type ActionResult struct {
	PrimaryOutputPath string
	Outputs           map[string]any
}

// Handler executes one action given the rule's params and the in-flight
// RuleContext. Handlers that do real work are free to enqueue a job on the
// durable queue and block until it reaches a terminal state — from the
// executor's point of view every action is a synchronous call that either
// produces a result or fails.
type Handler func(ctx context.Context, ruleCtx *Context, params map[string]any) (ActionResult, error)

// GuardChecker reports whether it is currently safe to run an action and,
// if not, why — evaluated before every action so a rule paused mid-pipeline
// resumes on the next action rather than restarting from the top.
type GuardChecker interface {
	Check(g Guardrails) (ok bool, reason string)
}

// EventRecorder lets the executor attribute rule-engine occurrences to an
// asset's timeline without importing the assets package directly.
type EventRecorder interface {
	RecordError(assetID, action, message, stage string)
}

// Registry maps action type names to their Handler, populated once at
// startup by the action library.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(actionType string, h Handler) {
	r.handlers[actionType] = h
}

func (r *Registry) Lookup(actionType string) (Handler, bool) {
	h, ok := r.handlers[actionType]
	return h, ok
}

// Executor runs a rule's action pipeline against one triggering event,
// threading a single Context through every action in order and polling
// guardrails before each one.
type Executor struct {
	registry     *Registry
	guard        GuardChecker
	events       EventRecorder
	guardPoll    time.Duration
	guardTimeout time.Duration
}

// NewExecutor builds an Executor. guardPoll is how often a tripped
// guardrail is re-checked (default 2s to match the sampler); guardTimeout
// is how long a rule waits for a guard to clear before giving up.
func NewExecutor(registry *Registry, guard GuardChecker, events EventRecorder, guardPoll, guardTimeout time.Duration) *Executor {
	if guardPoll <= 0 {
		guardPoll = 2 * time.Second
	}
	if guardTimeout <= 0 {
		guardTimeout = 2 * time.Minute
	}
	return &Executor{registry: registry, guard: guard, events: events, guardPoll: guardPoll, guardTimeout: guardTimeout}
}

// Run matches rule against event and, if it fires, executes its action
// pipeline in order. A rule that doesn't match returns (false, nil). An
// action failure aborts the remaining actions of this rule instance only;
// it is recorded as an error event and returned to the caller.
func (e *Executor) Run(ctx context.Context, rule Rule, event Event) (ran bool, err error) {
	if !Matches(rule, event) {
		return false, nil
	}
	metrics.RuleMatches.WithLabelValues(rule.Name).Inc()

	vars := map[string]any{"asset_id": event.AssetID}
	for k, v := range event.Payload {
		vars[k] = v
	}
	ruleCtx := NewContext(event.Path, vars)

	for _, action := range rule.Actions {
		if err := e.awaitGuard(ctx, rule.Guardrails); err != nil {
			e.recordFailure(event.AssetID, action.Type, err, "guardrail")
			return true, err
		}

		handler, ok := e.registry.Lookup(action.Type)
		if !ok {
			err := fmt.Errorf("%w: %s", ErrNoHandler, action.Type)
			e.recordFailure(event.AssetID, action.Type, err, "dispatch")
			return true, err
		}

		logger.Info("rule action starting", "rule", rule.Name, "action", action.Type, "active_path", ruleCtx.Active.Path)
		result, err := handler(ctx, ruleCtx, action.Params)
		if err != nil {
			logger.Warn("rule action failed", "rule", rule.Name, "action", action.Type, "error", err)
			metrics.RuleActionFailures.WithLabelValues(action.Type).Inc()
			e.recordFailure(event.AssetID, action.Type, err, "execute")
			return true, err
		}

		if result.PrimaryOutputPath != "" {
			ruleCtx.UpdateActive(NewArtifact(result.PrimaryOutputPath))
		}
	}
	return true, nil
}

func (e *Executor) awaitGuard(ctx context.Context, g Guardrails) error {
	if e.guard == nil {
		return nil
	}
	deadline := time.Now().Add(e.guardTimeout)
	for {
		ok, reason := e.guard.Check(g)
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrGuardTimeout, reason)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.guardPoll):
		}
	}
}

func (e *Executor) recordFailure(assetID, action string, err error, stage string) {
	if e.events == nil {
		return
	}
	e.events.RecordError(assetID, action, err.Error(), stage)
}
