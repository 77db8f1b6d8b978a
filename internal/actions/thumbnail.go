package actions

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/mediatool"
)

// JobThumbnail produces a poster frame, a sprite mosaic, and a short hover
// preview clip for an asset, reporting the stepped 10/40/70/100 progress
// the preview generation contract specifies.
func (l *Library) JobThumbnail(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("thumbnail: missing path")
	}
	if l.Prober == nil || l.Runner == nil {
		return nil, fmt.Errorf("thumbnail: media tool runner not configured")
	}

	posterTime, _ := job.Payload["poster_time"].(float64)
	spriteCount := 9
	if v, ok := job.Payload["sprite_count"].(float64); ok && v > 0 {
		spriteCount = int(v)
	}
	hoverDuration := 3.0
	if v, ok := job.Payload["hover_duration"].(float64); ok && v > 0 {
		hoverDuration = v
	}

	probe, err := l.Prober.Probe(ctx, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "probe source for thumbnail", err)
	}
	if !probe.HasVideo {
		return nil, apperr.New(apperr.Validation, "thumbnail: source has no video stream")
	}

	dir := filepath.Join(l.CacheDir, job.ID)
	if err := mediatool.EnsureCacheDir(dir); err != nil {
		return nil, apperr.Wrap(apperr.IO, "ensure thumbnail cache dir", err)
	}
	posterPath := filepath.Join(dir, "poster.jpg")
	spritePath := filepath.Join(dir, "sprite.jpg")
	hoverPath := filepath.Join(dir, "hover.mp4")

	if posterTime <= 0 {
		posterTime = probe.DurationSec / 2
	}
	if err := l.Runner.Run(ctx, []string{
		"-y", "-ss", fmt.Sprintf("%.3f", posterTime), "-i", path,
		"-frames:v", "1", "-q:v", "2", posterPath,
	}, nil, nil); err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "poster frame failed", err)
	}
	progress("poster", 10, 0, 0, nil)

	cols := int(math.Ceil(math.Sqrt(float64(spriteCount))))
	rows := int(math.Ceil(float64(spriteCount) / float64(cols)))
	interval := probe.DurationSec / float64(spriteCount+1)
	if interval <= 0 {
		interval = 1
	}
	if err := l.Runner.Run(ctx, []string{
		"-y", "-i", path,
		"-vf", fmt.Sprintf("fps=1/%.3f,scale=320:-1,tile=%dx%d", interval, cols, rows),
		"-frames:v", "1", "-q:v", "4", spritePath,
	}, nil, nil); err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "sprite mosaic failed", err)
	}
	progress("sprite", 40, 0, 0, nil)

	midpoint := probe.DurationSec / 2
	start := midpoint - hoverDuration/2
	if start < 0 {
		start = 0
	}
	if err := l.Runner.Run(ctx, []string{
		"-y", "-ss", fmt.Sprintf("%.3f", start), "-i", path,
		"-t", fmt.Sprintf("%.3f", hoverDuration),
		"-an", "-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		hoverPath,
	}, nil, nil); err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "hover clip failed", err)
	}
	progress("hover", 70, 0, 0, nil)

	if job.AssetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:      assets.FingerprintEvent(job.AssetID, assets.EventThumbnailCompleted, job.ID),
			AssetID: job.AssetID,
			Type:    assets.EventThumbnailCompleted,
			Detail: map[string]any{
				"poster": posterPath, "sprite": spritePath, "hover": hoverPath,
			},
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("record thumbnail event: %w", err)
		}
	}
	progress("done", 100, 0, 0, nil)

	return map[string]any{
		"poster": posterPath,
		"sprite": spritePath,
		"hover":  hoverPath,
	}, nil
}
