package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/mediatool"
)

// JobTranscode re-encodes the source against a named delivery preset (or a
// custom_preset override), substituting the GPU encoder when available and
// requested, and reports progress parsed from -progress pipe:1 against the
// probed source duration.
func (l *Library) JobTranscode(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("transcode: missing path")
	}
	if l.Prober == nil || l.Runner == nil {
		return nil, fmt.Errorf("transcode: media tool runner not configured")
	}

	presetName, _ := job.Payload["preset"].(string)
	customPreset, _ := job.Payload["custom_preset"].(map[string]any)
	preset, ok := mediatool.GetPreset(presetName, customPreset)
	if !ok {
		return nil, apperr.New(apperr.Validation, "transcode: unknown preset")
	}
	useGPU, _ := job.Payload["use_gpu"].(bool)
	startTime, _ := job.Payload["start_time"].(string)
	endTime, _ := job.Payload["end_time"].(string)

	probe, err := l.Prober.Probe(ctx, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "probe source for transcode", err)
	}

	var gpu mediatool.GPUCapability
	if useGPU {
		gpu = mediatool.ProbeGPU(l.gpuProbePath())
	}

	outputPath := mediatool.GetTempPath(l.CacheDir, job.ID, path, "."+preset.Container)
	if err := mediatool.EnsureCacheDir(l.CacheDir); err != nil {
		return nil, apperr.Wrap(apperr.IO, "ensure transcode cache dir", err)
	}

	args := []string{"-y"}
	if startTime != "" {
		args = append(args, "-ss", startTime)
	}
	args = append(args, "-i", path)
	if endTime != "" {
		args = append(args, "-to", endTime)
	}
	args = append(args, mediatool.BuildArgs(preset, useGPU, gpu)...)
	args = append(args, "-progress", "pipe:1", "-nostats", outputPath)

	totalDuration := time.Duration(probe.DurationSec * float64(time.Second))
	parser := mediatool.KeyValueProgressParser(totalDuration)
	onProgress := func(percent float64, detail map[string]any) {
		progress("transcode", percent, 0, 0, detail)
	}

	if err := l.Runner.Run(ctx, args, parser, onProgress); err != nil {
		mediatool.CleanupTempFiles(l.CacheDir, job.ID)
		return nil, apperr.Wrap(apperr.ExternalTool, "transcode failed", err)
	}

	if job.AssetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(job.AssetID, assets.EventTranscodeCompleted, job.ID),
			AssetID:   job.AssetID,
			Type:      assets.EventTranscodeCompleted,
			Detail:    map[string]any{"input": path, "output": outputPath, "preset": preset.ID},
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("record transcode event: %w", err)
		}
	}

	return map[string]any{"primary_output_path": outputPath}, nil
}
