package assets

import (
	"fmt"
	"time"
)

// ErrorRecorder implements rules.EventRecorder by appending an "error" event
// to the asset's timeline, giving an operator browsing an asset's history a
// record of which rule action failed and why without needing the log files.
type ErrorRecorder struct {
	Store *Store
}

func NewErrorRecorder(store *Store) *ErrorRecorder {
	return &ErrorRecorder{Store: store}
}

// RecordError satisfies rules.EventRecorder.
func (r *ErrorRecorder) RecordError(assetID, action, message, stage string) {
	if r.Store == nil || assetID == "" {
		return
	}
	now := time.Now()
	_ = r.Store.AppendEvent(&Event{
		ID:      FingerprintEvent(assetID, EventError, fmt.Sprintf("%s-%s-%d", action, stage, now.UnixNano())),
		AssetID: assetID,
		Type:    EventError,
		Detail:  map[string]any{"action": action, "stage": stage, "message": message},
		CreatedAt: now,
	})
}
