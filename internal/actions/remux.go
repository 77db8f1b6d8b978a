package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// RuleRemux container-remuxes the rule's active artifact with "-map 0 -c
// copy", updating the asset's current_path and emitting remux_completed.
// Output lands in the same directory as the input with the new container
// suffix, per the action's path contract.
func (l *Library) RuleRemux(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	out, err := l.doRemux(ctx, ruleCtx.Active.Path, assetID, params)
	if err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{PrimaryOutputPath: out}, nil
}

// JobRemux is the job-queue entry point for the same operation, used when
// remux is enqueued directly rather than run inline from a rule.
func (l *Library) JobRemux(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	out, err := l.doRemux(ctx, path, job.AssetID, job.Payload)
	if err != nil {
		return nil, err
	}
	progress("remux", 100, 0, 0, nil)
	return map[string]any{"primary_output_path": out}, nil
}

func (l *Library) doRemux(ctx context.Context, inputPath, assetID string, params map[string]any) (string, error) {
	container, _ := params["container"].(string)
	if container == "" {
		container = "mp4"
	}
	faststart, _ := params["faststart"].(bool)
	removeOriginal, _ := params["remove_original"].(bool)

	ext := "." + strings.TrimPrefix(container, ".")
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	outputPath := base + ext

	if outputPath == inputPath {
		return outputPath, nil
	}

	args := []string{"-y", "-i", inputPath, "-map", "0", "-c", "copy"}
	if faststart && (container == "mp4" || container == "mov") {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outputPath)

	if err := l.Runner.Run(ctx, args, nil, nil); err != nil {
		return "", apperr.Wrap(apperr.ExternalTool, "remux failed", err)
	}

	if removeOriginal {
		if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
			return "", apperr.Wrap(apperr.IO, "remove original after remux", err)
		}
	}

	if assetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(assetID, assets.EventRemuxCompleted, ""),
			AssetID:   assetID,
			Type:      assets.EventRemuxCompleted,
			Detail:    map[string]any{"input": inputPath, "output": outputPath, "container": container},
			CreatedAt: time.Now(),
		}); err != nil {
			return "", fmt.Errorf("record remux event: %w", err)
		}
		if err := l.Assets.SetCurrentPath(assetID, outputPath); err != nil {
			return "", fmt.Errorf("update current_path after remux: %w", err)
		}
	}

	return outputPath, nil
}
