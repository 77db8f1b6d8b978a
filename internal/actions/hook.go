package actions

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// defaultHookTimeout bounds a hook command that never exits, so a runaway
// script can't wedge the rule pipeline (and, when enqueued, a worker slot)
// indefinitely.
const defaultHookTimeout = 5 * time.Minute

// RuleHook runs an operator-defined shell command with its template tokens
// expanded against the rule's active artifact, the "custom_hook" action
// from the original engine carried forward under a plainer name.
func (l *Library) RuleHook(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	if err := l.doHook(ctx, ruleCtx, params, assetID); err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{}, nil
}

// JobHook is the job-queue entry point for hook.
func (l *Library) JobHook(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	ruleCtx := rules.NewContext(path, nil)
	if err := l.doHook(ctx, ruleCtx, job.Payload, job.AssetID); err != nil {
		return nil, err
	}
	progress("hook", 100, 0, 0, nil)
	return map[string]any{}, nil
}

func (l *Library) doHook(ctx context.Context, ruleCtx *rules.Context, params map[string]any, assetID string) error {
	command, _ := params["command"].(string)
	if command == "" {
		return fmt.Errorf("hook: missing command")
	}
	command = rules.Expand(command, ruleCtx)

	timeout := defaultHookTimeout
	if secs, ok := params["timeout_sec"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(hookCtx, "/bin/sh", "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Warn("hook command failed", "command", command, "stderr", stderr.String(), "error", err)
		return apperr.Wrap(apperr.ExternalTool, "hook command failed: "+stderr.String(), err)
	}
	logger.Info("hook command completed", "command", command)

	if assetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(assetID, assets.EventActionFinished, command),
			AssetID:   assetID,
			Type:      assets.EventActionFinished,
			Detail:    map[string]any{"action": "hook", "command": command},
			CreatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("record hook event: %w", err)
		}
	}
	return nil
}
