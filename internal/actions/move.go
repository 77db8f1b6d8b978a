package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// RuleMove resolves the target template against the rule's active artifact
// and relocates it, updating current_path and emitting move_completed.
func (l *Library) RuleMove(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	target, _ := params["target"].(string)
	if target == "" {
		return rules.ActionResult{}, fmt.Errorf("move: missing target")
	}
	dest := rules.ResolveTarget(target, ruleCtx)

	out, err := l.doMove(ruleCtx.Active.Path, dest, assetID)
	if err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{PrimaryOutputPath: out}, nil
}

// JobMove is the job-queue entry point for move, used for administrator-
// triggered relocations outside a rule pipeline.
func (l *Library) JobMove(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	target, _ := job.Payload["target"].(string)
	out, err := l.doMove(path, target, job.AssetID)
	if err != nil {
		return nil, err
	}
	progress("move", 100, 0, 0, nil)
	return map[string]any{"primary_output_path": out}, nil
}

// doMove relocates a file and records the move against the asset. It does
// not recompute folder-level counts for the source/destination directories;
// no part of this module tracks per-folder asset counts yet, so there is
// nothing to reindex.
func (l *Library) doMove(inputPath, dest, assetID string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", apperr.Wrap(apperr.IO, "create move destination directory", err)
	}

	if err := renameOrCopy(inputPath, dest); err != nil {
		return "", apperr.Wrap(apperr.IO, "move file", err)
	}

	if assetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(assetID, assets.EventMoveCompleted, ""),
			AssetID:   assetID,
			Type:      assets.EventMoveCompleted,
			Detail:    map[string]any{"input": inputPath, "output": dest},
			CreatedAt: time.Now(),
		}); err != nil {
			return "", fmt.Errorf("record move event: %w", err)
		}
		if err := l.Assets.SetCurrentPath(assetID, dest); err != nil {
			return "", fmt.Errorf("update current_path after move: %w", err)
		}
	}

	return dest, nil
}

// renameOrCopy tries an atomic rename first; on EXDEV (cross-device, e.g.
// moving between two role mounts on separate filesystems) it falls back to
// a copy-then-unlink.
func renameOrCopy(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	if copyErr := copyFile(src, dst); copyErr != nil {
		return copyErr
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := dst + ".streamops-tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
