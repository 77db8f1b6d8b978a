package mediatool

import (
	"testing"
	"time"
)

func TestKeyValueProgressParserComputesPercent(t *testing.T) {
	parser := KeyValueProgressParser(10 * time.Second)

	if _, _, ok := parser("frame=120"); ok {
		t.Fatal("unrelated key should not emit progress")
	}
	parser("out_time_us=5000000")
	parser("speed=2.0x")
	percent, detail, ok := parser("progress=continue")
	if !ok {
		t.Fatal("expected progress line to emit")
	}
	if percent < 49 || percent > 51 {
		t.Fatalf("expected ~50%%, got %v", percent)
	}
	if detail["speed"].(float64) != 2.0 {
		t.Fatalf("expected speed 2.0, got %v", detail["speed"])
	}
}

func TestKeyValueProgressParserClampsAt100(t *testing.T) {
	parser := KeyValueProgressParser(1 * time.Second)
	parser("out_time_us=5000000")
	percent, _, ok := parser("progress=end")
	if !ok || percent != 100 {
		t.Fatalf("expected clamped 100, got %v ok=%v", percent, ok)
	}
}

func TestFrameProgressParser(t *testing.T) {
	parser := FrameProgressParser(200)
	percent, detail, ok := parser("frame=  100 fps=30 q=28.0 size=1024kB time=00:00:03.33 bitrate=2516.1kbits/s speed=1.2x")
	if !ok {
		t.Fatal("expected frame line to parse")
	}
	if percent != 50 {
		t.Fatalf("expected 50%%, got %v", percent)
	}
	if detail["frame"].(int64) != 100 {
		t.Fatalf("expected frame 100, got %v", detail["frame"])
	}
}

func TestFrameProgressParserIgnoresNonFrameLines(t *testing.T) {
	parser := FrameProgressParser(100)
	if _, _, ok := parser("Stream mapping:"); ok {
		t.Fatal("expected non-frame line to be ignored")
	}
}
