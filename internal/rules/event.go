package rules

// Event is the triggering occurrence a rule is matched against — typically
// a stabilized file from the watcher (event "file_closed") or an asset
// lifecycle event re-dispatched through the rule engine. Payload carries
// arbitrary event fields condition fields are looked up against, in
// addition to the well-known Path.
type Event struct {
	Type    string
	Path    string
	AssetID string
	JobID   string
	Payload map[string]any
}

// field resolves a dotted path (e.g. "file.extension") against the event,
// checking the well-known top-level fields first and falling back to
// recursive map indexing into Payload.
func (e Event) field(path string) (any, bool) {
	switch path {
	case "type":
		return e.Type, true
	case "path":
		return e.Path, true
	case "asset_id":
		return e.AssetID, true
	case "job_id":
		return e.JobID, true
	}
	return lookupDotted(e.Payload, path)
}

func lookupDotted(m map[string]any, path string) (any, bool) {
	if m == nil {
		return nil, false
	}
	parts := splitDotted(path)
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := asMap[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitDotted(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
