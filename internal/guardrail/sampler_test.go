package guardrail

import (
	"testing"
	"time"

	"github.com/mscrnt/streamops-go/internal/rules"
)

func TestCheckPassesWithNoThresholds(t *testing.T) {
	s := NewSampler(time.Second)
	ok, reason := s.Check(rules.Guardrails{})
	if !ok {
		t.Fatalf("expected guard to clear with no thresholds set, reason=%s", reason)
	}
}

func TestCheckBlocksWhileRecording(t *testing.T) {
	s := NewSampler(time.Second)
	s.SetRecording(true)
	ok, reason := s.Check(rules.Guardrails{PauseWhenRecording: true})
	if ok {
		t.Fatal("expected guard to block while recording active")
	}
	if reason != "recording_active" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}

func TestCheckClearsOnceRecordingStops(t *testing.T) {
	s := NewSampler(time.Second)
	s.SetRecording(true)
	if ok, _ := s.Check(rules.Guardrails{PauseWhenRecording: true}); ok {
		t.Fatal("expected guard blocked")
	}
	s.SetRecording(false)
	if ok, _ := s.Check(rules.Guardrails{PauseWhenRecording: true}); !ok {
		t.Fatal("expected guard clear once recording stops")
	}
}

func TestCPUGuardTripsAboveThreshold(t *testing.T) {
	s := NewSampler(time.Second)
	s.mu.Lock()
	s.snapshot = Snapshot{CPUPercent: 95}
	s.mu.Unlock()

	ok, reason := s.Check(rules.Guardrails{CPUGuardPct: 80})
	if ok {
		t.Fatal("expected guard to block above cpu threshold")
	}
	if reason != "cpu_guard_exceeded" {
		t.Fatalf("unexpected reason: %s", reason)
	}
}
