package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// RuleTag union-merges params["tags"] into the asset's existing tag set and
// emits tagged. It never removes a tag.
func (l *Library) RuleTag(ctx context.Context, ruleCtx *rules.Context, params map[string]any) (rules.ActionResult, error) {
	assetID, _ := ruleCtx.Vars["asset_id"].(string)
	added, err := l.doTag(assetID, params)
	if err != nil {
		return rules.ActionResult{}, err
	}
	return rules.ActionResult{Outputs: map[string]any{"tags_added": added}}, nil
}

// JobTag is the job-queue entry point for tag.
func (l *Library) JobTag(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (map[string]any, error) {
	added, err := l.doTag(job.AssetID, job.Payload)
	if err != nil {
		return nil, err
	}
	progress("tag", 100, 0, 0, nil)
	return map[string]any{"tags_added": added}, nil
}

func (l *Library) doTag(assetID string, params map[string]any) ([]string, error) {
	if assetID == "" || l.Assets == nil {
		return nil, nil
	}
	tags := tagsFromParam(params["tags"])
	if len(tags) == 0 {
		return nil, nil
	}

	asset, err := l.Assets.GetByID(assetID)
	if err != nil {
		return nil, fmt.Errorf("lookup asset for tag: %w", err)
	}

	seen := make(map[string]bool, len(asset.Tags))
	for _, t := range asset.Tags {
		seen[t] = true
	}

	var added []string
	for _, t := range tags {
		if !seen[t] {
			asset.Tags = append(asset.Tags, t)
			seen[t] = true
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	if err := l.Assets.Upsert(asset); err != nil {
		return nil, fmt.Errorf("upsert tagged asset: %w", err)
	}
	if err := l.Assets.AppendEvent(&assets.Event{
		ID:        assets.FingerprintEvent(assetID, assets.EventTagged, fmt.Sprintf("%v", added)),
		AssetID:   assetID,
		Type:      assets.EventTagged,
		Detail:    map[string]any{"tags_added": added},
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("record tag event: %w", err)
	}

	return added, nil
}

func tagsFromParam(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
