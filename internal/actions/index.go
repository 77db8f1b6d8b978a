package actions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/metrics"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// RuleIndex (re)computes an asset's fingerprint and probed media metadata
// and upserts its row, skipping the work when the stored mtime is already
// at or ahead of the file's unless force_reindex is set.
func (l *Library) RuleIndex(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	force, _ := params["force_reindex"].(bool)
	role, _ := params["role"].(string)

	if err := l.doIndex(ctx, ruleCtx.Active.Path, assetID, role, force); err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{}, nil
}

// JobIndex is the job-queue entry point for index jobs, which the API's
// reindex endpoint enqueues.
func (l *Library) JobIndex(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	role, _ := job.Payload["role"].(string)
	force, _ := job.Payload["force_reindex"].(bool)

	if err := l.doIndex(ctx, path, job.AssetID, role, force); err != nil {
		return nil, err
	}
	progress("index", 100, 0, 0, nil)
	return map[string]any{}, nil
}

func (l *Library) doIndex(ctx context.Context, path, assetID, role string, force bool) error {
	if l.Assets == nil {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return apperr.Wrap(apperr.IO, "stat file for index", err)
	}
	mtime := float64(info.ModTime().Unix())

	id := assetID
	if id == "" {
		id = assets.FingerprintPath(path)
	}

	existing, err := l.Assets.GetByID(id)
	if err != nil && !apperr.IsKind(err, apperr.NotFound) {
		return fmt.Errorf("lookup asset before index: %w", err)
	}
	if existing != nil && !force && existing.MTime >= mtime {
		return nil
	}

	hash, kind, err := assets.ComputeHash(path)
	if err != nil {
		return apperr.Wrap(apperr.IO, "compute content hash", err)
	}

	ext, mimeType := assets.DetectExtAndMIME(path)

	meta := map[string]any{}
	if l.Prober != nil {
		if result, err := l.Prober.Probe(ctx, path); err == nil {
			meta = map[string]any{
				"duration_sec": result.DurationSec,
				"width":        result.Width,
				"height":       result.Height,
				"fps":          result.FPS,
				"video_codec":  result.VideoCodec,
				"audio_codec":  result.AudioCodec,
				"bitrate":      result.Bitrate,
				"container":    result.Container,
				"has_video":    result.HasVideo,
				"has_audio":    result.HasAudio,
			}
		}
	}

	now := time.Now()
	asset := &assets.Asset{
		ID:          id,
		AbsPath:     path,
		CurrentPath: path,
		Role:        role,
		Ext:         ext,
		MIME:        mimeType,
		Size:        info.Size(),
		MTime:       mtime,
		CTime:       mtime,
		ContentHash: hash,
		HashKind:    kind,
		Status:      assets.StatusIndexed,
		Meta:        meta,
		Tags:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		asset.AbsPath = existing.AbsPath
		asset.CurrentPath = path
		asset.Tags = existing.Tags
		asset.CreatedAt = existing.CreatedAt
		if asset.Role == "" {
			asset.Role = existing.Role
		}
	}

	if err := l.Assets.Upsert(asset); err != nil {
		return fmt.Errorf("upsert indexed asset: %w", err)
	}
	metrics.AssetsIndexed.Inc()

	eventType := assets.EventRecorded
	if err := l.Assets.AppendEvent(&assets.Event{
		ID:        assets.FingerprintEvent(asset.ID, eventType, fmt.Sprintf("%d", info.ModTime().UnixNano())),
		AssetID:   asset.ID,
		Type:      eventType,
		Detail:    map[string]any{"path": path, "hash_kind": string(kind)},
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("record index event: %w", err)
	}

	return nil
}
