package mediatool

import (
	"strings"
	"testing"
)

func TestGetPresetByName(t *testing.T) {
	p, ok := GetPreset("web_720p", nil)
	if !ok {
		t.Fatal("expected web_720p preset to exist")
	}
	if p.ScaleHeight != 720 {
		t.Fatalf("expected scale height 720, got %d", p.ScaleHeight)
	}
}

func TestGetPresetCustom(t *testing.T) {
	p, ok := GetPreset("", map[string]any{
		"video_codec": "libx264", "audio_codec": "aac", "crf": "20",
	})
	if !ok {
		t.Fatal("expected custom preset to build")
	}
	if p.VideoCodec != "libx264" || p.CRF != "20" {
		t.Fatalf("unexpected custom preset: %+v", p)
	}
}

func TestBuildArgsPrefersSoftwareWhenGPUUnsupported(t *testing.T) {
	preset := Presets["web_720p"]
	args := BuildArgs(preset, true, GPUCapability{Available: true, H264NVENC: false})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "nvenc") {
		t.Fatalf("expected software fallback, got args: %s", joined)
	}
	if !strings.Contains(joined, "libx264") {
		t.Fatalf("expected libx264 in args: %s", joined)
	}
}

func TestGetPresetCustomTonemapValidated(t *testing.T) {
	p, ok := GetPreset("", map[string]any{
		"video_codec": "libx264", "tonemap": "not_a_real_algorithm",
	})
	if !ok {
		t.Fatal("expected custom preset to build")
	}
	if p.Tonemap != "hable" {
		t.Fatalf("expected invalid tonemap to fall back to default, got %q", p.Tonemap)
	}
}

func TestBuildArgsIncludesTonemapFilter(t *testing.T) {
	preset := Presets["web_720p"]
	preset.Tonemap = "bt2390"
	args := BuildArgs(preset, false, GPUCapability{})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "tonemap=bt2390") {
		t.Fatalf("expected tonemap filter in args: %s", joined)
	}
	if !strings.Contains(joined, "scale=-2") {
		t.Fatalf("expected scale filter still present alongside tonemap: %s", joined)
	}
}

func TestBuildArgsUsesGPUWhenSupported(t *testing.T) {
	preset := Presets["web_720p"]
	args := BuildArgs(preset, true, GPUCapability{Available: true, H264NVENC: true})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "h264_nvenc") {
		t.Fatalf("expected h264_nvenc in args: %s", joined)
	}
	if !strings.Contains(joined, "-cq") {
		t.Fatalf("expected -cq quality flag for nvenc, got: %s", joined)
	}
}
