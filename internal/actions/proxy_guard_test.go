package actions

import (
	"context"
	"testing"

	"github.com/mscrnt/streamops-go/internal/mediatool"
	"github.com/mscrnt/streamops-go/internal/rules"
)

type fakeDurationProber struct {
	durationSec float64
}

func (f *fakeDurationProber) Probe(ctx context.Context, path string) (*mediatool.ProbeResult, error) {
	return &mediatool.ProbeResult{DurationSec: f.durationSec}, nil
}

func TestRuleProxySkippedBelowMinDuration(t *testing.T) {
	lib := &Library{Prober: &fakeDurationProber{durationSec: 600}}
	ruleCtx := rules.NewContext("/media/clip.mp4", map[string]any{"asset_id": "asset1"})

	result, err := lib.RuleProxy(context.Background(), ruleCtx, map[string]any{"min_duration_sec": float64(900)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PrimaryOutputPath != "" {
		t.Fatalf("expected no-op result, got %+v", result)
	}
}

func TestRuleProxyDefaultThresholdSkipsShortClip(t *testing.T) {
	lib := &Library{Prober: &fakeDurationProber{durationSec: 120}}
	ruleCtx := rules.NewContext("/media/clip.mp4", map[string]any{"asset_id": "asset1"})

	result, err := lib.RuleProxy(context.Background(), ruleCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PrimaryOutputPath != "" {
		t.Fatalf("expected no-op result below default threshold, got %+v", result)
	}
}
