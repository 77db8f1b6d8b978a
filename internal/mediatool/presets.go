package mediatool

import (
	"fmt"

	"github.com/mscrnt/streamops-go/internal/config"
)

// Preset is a named transcode target, following an encoder
// config table (quality flag + value + extra args per encoder), narrowed
// from compress-in-place HEVC/AV1 presets to the delivery
// presets the action library exposes.
type Preset struct {
	ID            string
	VideoCodec    string // software encoder, e.g. "libx264"
	GPUVideoCodec string // substituted when ProbeGPU reports capability, e.g. "h264_nvenc"
	AudioCodec    string
	AudioBitrate  string
	CRF           string // used when no explicit bitrate is set
	VideoBitrate  string
	PixelFormat   string
	ScaleHeight   int // 0 = no scaling
	Container     string
	FFPreset      string // libx264/libx265 -preset value
	Tonemap       string // HDR->SDR tonemap algorithm for zscale; "" disables tonemapping
}

// Presets is the fixed table of delivery presets the transcode action
// chooses from.
var Presets = map[string]Preset{
	"web_720p": {
		ID: "web_720p", VideoCodec: "libx264", GPUVideoCodec: "h264_nvenc",
		AudioCodec: "aac", AudioBitrate: "128k", CRF: "23",
		PixelFormat: "yuv420p", ScaleHeight: 720, Container: "mp4", FFPreset: "medium",
	},
	"web_1080p": {
		ID: "web_1080p", VideoCodec: "libx264", GPUVideoCodec: "h264_nvenc",
		AudioCodec: "aac", AudioBitrate: "160k", CRF: "21",
		PixelFormat: "yuv420p", ScaleHeight: 1080, Container: "mp4", FFPreset: "medium",
	},
	"archive_h265": {
		ID: "archive_h265", VideoCodec: "libx265", GPUVideoCodec: "hevc_nvenc",
		AudioCodec: "aac", AudioBitrate: "192k", CRF: "24",
		PixelFormat: "yuv420p10le", ScaleHeight: 0, Container: "mkv", FFPreset: "slow",
	},
	"streaming_twitch": {
		ID: "streaming_twitch", VideoCodec: "libx264", GPUVideoCodec: "h264_nvenc",
		AudioCodec: "aac", AudioBitrate: "160k", VideoBitrate: "6000k",
		PixelFormat: "yuv420p", ScaleHeight: 1080, Container: "mp4", FFPreset: "veryfast",
	},
	"mobile_480p": {
		ID: "mobile_480p", VideoCodec: "libx264", GPUVideoCodec: "h264_nvenc",
		AudioCodec: "aac", AudioBitrate: "96k", CRF: "26",
		PixelFormat: "yuv420p", ScaleHeight: 480, Container: "mp4", FFPreset: "fast",
	},
}

// GetPreset looks up a preset by name, or builds one from custom params
// when name is empty and custom is provided — matching the transcode
// action's "preset | custom_preset" params.
func GetPreset(name string, custom map[string]any) (Preset, bool) {
	if name != "" {
		p, ok := Presets[name]
		return p, ok
	}
	if custom == nil {
		return Preset{}, false
	}
	p := Preset{ID: "custom", PixelFormat: "yuv420p", Container: "mp4", FFPreset: "medium"}
	if v, ok := custom["video_codec"].(string); ok {
		p.VideoCodec = v
	}
	if v, ok := custom["audio_codec"].(string); ok {
		p.AudioCodec = v
	}
	if v, ok := custom["crf"].(string); ok {
		p.CRF = v
	}
	if v, ok := custom["scale_height"].(float64); ok {
		p.ScaleHeight = int(v)
	}
	if v, ok := custom["container"].(string); ok {
		p.Container = v
	}
	if v, ok := custom["tonemap"].(string); ok && v != "" {
		p.Tonemap = config.ValidateTonemapAlgorithm(v)
	}
	return p, p.VideoCodec != ""
}

// BuildArgs builds the ffmpeg output-side arguments for preset, substituting
// the GPU encoder when useGPU is requested and the host actually supports
// it, falling back to the software encoder otherwise.
func BuildArgs(preset Preset, useGPU bool, gpu GPUCapability) []string {
	var args []string
	var filters []string

	if preset.ScaleHeight > 0 {
		if useGPU && gpu.ScaleCUDA {
			filters = append(filters, fmt.Sprintf("scale_cuda=-2:%d", preset.ScaleHeight))
		} else {
			filters = append(filters, fmt.Sprintf("scale=-2:'min(ih,%d)'", preset.ScaleHeight))
		}
	}
	if preset.Tonemap != "" {
		filters = append(filters, fmt.Sprintf("zscale=transfer=linear,tonemap=%s,zscale=transfer=bt709", preset.Tonemap))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", joinFilters(filters))
	}

	codec := preset.VideoCodec
	if useGPU && preset.GPUVideoCodec != "" && gpuSupportsCodec(gpu, preset.GPUVideoCodec) {
		codec = preset.GPUVideoCodec
	}
	args = append(args, "-c:v", codec)

	switch {
	case preset.VideoBitrate != "":
		args = append(args, "-b:v", preset.VideoBitrate)
	case preset.CRF != "":
		if codec == "h264_nvenc" || codec == "hevc_nvenc" {
			args = append(args, "-cq", preset.CRF)
		} else {
			args = append(args, "-crf", preset.CRF)
		}
	}
	if preset.FFPreset != "" && codec != "h264_nvenc" && codec != "hevc_nvenc" {
		args = append(args, "-preset", preset.FFPreset)
	}
	if preset.PixelFormat != "" {
		args = append(args, "-pix_fmt", preset.PixelFormat)
	}
	args = append(args, "-c:a", preset.AudioCodec, "-b:a", preset.AudioBitrate)
	return args
}

func joinFilters(filters []string) string {
	out := filters[0]
	for _, f := range filters[1:] {
		out += "," + f
	}
	return out
}

func gpuSupportsCodec(gpu GPUCapability, codec string) bool {
	switch codec {
	case "h264_nvenc":
		return gpu.H264NVENC
	case "hevc_nvenc":
		return gpu.HEVCNVENC
	default:
		return false
	}
}
