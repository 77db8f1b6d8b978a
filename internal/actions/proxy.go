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

// dnxhrProfiles maps the proxy action's profile param to its DNxHD/DNxHR
// encoder profile flag.
var dnxhrProfiles = map[string]string{
	"dnxhr_lb": "dnxhr_lb",
	"dnxhr_sq": "dnxhr_sq",
	"dnxhr_hq": "dnxhr_hq",
}

// JobProxy builds an editing proxy: a DNxHR-encoded MOV with PCM audio,
// suitable for offline-edit round-tripping. Progress is parsed from
// ffmpeg's stderr frame= banner since the source's duration is not always
// known up front for freshly-closed recordings.
func (l *Library) JobProxy(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	path, _ := job.Payload["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("proxy: missing path")
	}
	profile, _ := job.Payload["profile"].(string)
	profileFlag, ok := dnxhrProfiles[profile]
	if !ok {
		profileFlag = dnxhrProfiles["dnxhr_lb"]
	}
	resolution, _ := job.Payload["resolution"].(string)
	timecodeStart, _ := job.Payload["timecode_start"].(string)
	useGPU, _ := job.Payload["use_gpu"].(bool)
	audioChannels := 2
	if v, ok := job.Payload["audio_channels"].(float64); ok && v > 0 {
		audioChannels = int(v)
	}

	if l.Prober == nil || l.Runner == nil {
		return nil, fmt.Errorf("proxy: media tool runner not configured")
	}

	probe, err := l.Prober.Probe(ctx, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ExternalTool, "probe source for proxy", err)
	}
	if !probe.HasVideo {
		return nil, apperr.New(apperr.Validation, "proxy: source has no video stream")
	}

	totalFrames := probe.NbFrames
	if totalFrames <= 0 {
		totalFrames = probe.EstimateFrames()
	}

	outputPath := mediatool.GetTempPath(l.CacheDir, job.ID, path, ".mov")
	if err := mediatool.EnsureCacheDir(l.CacheDir); err != nil {
		return nil, apperr.Wrap(apperr.IO, "ensure proxy cache dir", err)
	}

	var gpu mediatool.GPUCapability
	if useGPU {
		gpu = mediatool.ProbeGPU(l.gpuProbePath())
	}

	args := []string{"-y"}
	if useGPU && gpu.ScaleCUDA {
		args = append(args, "-hwaccel", "cuda")
	}
	args = append(args, "-i", path)
	if resolution != "" {
		if useGPU && gpu.ScaleCUDA {
			args = append(args, "-vf", fmt.Sprintf("scale_cuda=%s", resolution))
		} else {
			args = append(args, "-vf", fmt.Sprintf("scale=%s", resolution))
		}
	}
	args = append(args,
		"-c:v", "dnxhd", "-profile:v", profileFlag,
		"-pix_fmt", "yuv422p",
		"-c:a", "pcm_s16le", "-ac", fmt.Sprintf("%d", audioChannels),
	)
	if timecodeStart != "" {
		args = append(args, "-timecode", timecodeStart)
	}
	args = append(args, outputPath)

	parser := mediatool.FrameProgressParser(totalFrames)
	onProgress := func(percent float64, detail map[string]any) {
		progress("proxy", percent, 0, 0, detail)
	}

	if err := l.Runner.RunParsingStderr(ctx, args, parser, onProgress); err != nil {
		mediatool.CleanupTempFiles(l.CacheDir, job.ID)
		return nil, apperr.Wrap(apperr.ExternalTool, "proxy encode failed", err)
	}

	if job.AssetID != "" && l.Assets != nil {
		if err := l.Assets.AppendEvent(&assets.Event{
			ID:        assets.FingerprintEvent(job.AssetID, assets.EventProxyCompleted, job.ID),
			AssetID:   job.AssetID,
			Type:      assets.EventProxyCompleted,
			Detail:    map[string]any{"input": path, "output": outputPath, "profile": profileFlag},
			CreatedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("record proxy event: %w", err)
		}
	}

	return map[string]any{"primary_output_path": outputPath}, nil
}
