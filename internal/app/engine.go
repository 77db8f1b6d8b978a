package app

import (
	"context"

	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/rules"
	"github.com/mscrnt/streamops-go/internal/watcher"
)

// RuleEngine bridges the file-stability watcher to the rule executor: every
// stabilized file becomes a "file_closed" rules.Event that is matched
// against every enabled rule, priority order, exactly once. It is the
// connective tissue SPEC_FULL.md's module layout assumes but leaves
// undistributed among watcher/rules/actions, since none of those packages
// should import each other directly.
type RuleEngine struct {
	store    *rules.Store
	executor *rules.Executor
	files    <-chan watcher.StableFile
}

// NewRuleEngine builds a RuleEngine reading stabilized files off files.
func NewRuleEngine(store *rules.Store, executor *rules.Executor, files <-chan watcher.StableFile) *RuleEngine {
	return &RuleEngine{store: store, executor: executor, files: files}
}

// Serve implements suture.Service: it consumes stable-file notifications
// until ctx is cancelled.
func (e *RuleEngine) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sf, ok := <-e.files:
			if !ok {
				return nil
			}
			e.handle(ctx, sf)
		}
	}
}

func (e *RuleEngine) handle(ctx context.Context, sf watcher.StableFile) {
	assetID := assets.FingerprintPath(sf.Path)
	event := rules.Event{
		Type:    "file_closed",
		Path:    sf.Path,
		AssetID: assetID,
		Payload: map[string]any{"role": sf.Role, "size": sf.Size},
	}

	enabled, err := e.store.ListEnabled()
	if err != nil {
		logger.Warn("rule engine: failed to list enabled rules", "error", err)
		return
	}

	for _, rule := range enabled {
		ran, err := e.executor.Run(ctx, *rule, event)
		if err != nil {
			logger.Warn("rule engine: rule run failed", "rule", rule.Name, "path", sf.Path, "error", err)
			continue
		}
		if ran {
			logger.Info("rule engine: rule matched", "rule", rule.Name, "path", sf.Path)
		}
	}
}
