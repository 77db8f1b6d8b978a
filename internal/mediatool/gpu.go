package mediatool

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// GPUCapability is the cached result of probing whether this host can
// hardware-encode via NVENC/CUDA. Per the system's scope, GPU probing stops
// at this boolean-plus-encoder-list query — no multi-vendor hardware
// acceleration matrix.
type GPUCapability struct {
	Available  bool
	H264NVENC  bool
	HEVCNVENC  bool
	ScaleCUDA  bool
}

var (
	gpuOnce sync.Once
	gpuCaps GPUCapability
)

// ProbeGPU detects NVIDIA GPU encode capability once per process and caches
// the result: nvidia-smi must succeed (a GPU is present and the driver is
// loaded), and ffmpeg's encoder/filter listings must mention the codecs the
// transcode and proxy actions can opt into.
func ProbeGPU(ffmpegPath string) GPUCapability {
	gpuOnce.Do(func() {
		gpuCaps = detectGPU(ffmpegPath)
	})
	return gpuCaps
}

func detectGPU(ffmpegPath string) GPUCapability {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "nvidia-smi").Run(); err != nil {
		return GPUCapability{}
	}

	encCtx, encCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer encCancel()
	encoders, err := exec.CommandContext(encCtx, ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return GPUCapability{}
	}

	filterCtx, filterCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer filterCancel()
	filters, _ := exec.CommandContext(filterCtx, ffmpegPath, "-hide_banner", "-filters").Output()

	caps := GPUCapability{
		Available: true,
		H264NVENC: strings.Contains(string(encoders), "h264_nvenc"),
		HEVCNVENC: strings.Contains(string(encoders), "hevc_nvenc"),
		ScaleCUDA: strings.Contains(string(filters), "scale_cuda"),
	}
	caps.Available = caps.H264NVENC || caps.HEVCNVENC
	return caps
}
