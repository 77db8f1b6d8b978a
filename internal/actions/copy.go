package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// RuleCopy duplicates the rule's active artifact to a resolved target,
// leaving the original (and the active artifact) untouched — the copy's
// destination is reported only in Outputs, never as PrimaryOutputPath.
func (l *Library) RuleCopy(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	target, _ := params["target"].(string)
	if target == "" {
		return rules.ActionResult{}, fmt.Errorf("copy: missing target")
	}
	dest := rules.ResolveTarget(target, ruleCtx)

	out, err := l.doCopy(ruleCtx.Active.Path, dest, assetID)
	if err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{Outputs: map[string]any{"copy": out}}, nil
}

// JobCopy is the job-queue entry point for copy.
func (l *Library) JobCopy(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	target, _ := job.Payload["target"].(string)
	out, err := l.doCopy(path, target, job.AssetID)
	if err != nil {
		return nil, err
	}
	progress("copy", 100, 0, 0, nil)
	return map[string]any{"copy": out}, nil
}

func (l *Library) doCopy(inputPath, dest, assetID string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", apperr.Wrap(apperr.IO, "create copy destination directory", err)
	}
	if err := copyFile(inputPath, dest); err != nil {
		return "", apperr.Wrap(apperr.IO, "copy file", err)
	}

	if assetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(assetID, assets.EventCopyCompleted, dest),
			AssetID:   assetID,
			Type:      assets.EventCopyCompleted,
			Detail:    map[string]any{"input": inputPath, "output": dest},
			CreatedAt: time.Now(),
		}); err != nil {
			return "", fmt.Errorf("record copy event: %w", err)
		}
	}

	return dest, nil
}
