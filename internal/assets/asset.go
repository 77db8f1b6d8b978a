// Package assets implements the asset store and append-only event log: the
// durable record of every media file streamops has seen, and the timeline
// of what happened to it: WAL mode, an RWMutex-guarded *sql.DB,
// INSERT ... ON CONFLICT upserts, and null-helper scanning, generalized from a
// single jobs table to assets + events + full-text search.
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Status tracks where an asset sits in the pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIndexed   Status = "indexed"
	StatusProcessed Status = "processed"
	StatusArchived  Status = "archived"
)

// HashKind distinguishes a full content hash from the partial-chunk
// fingerprint used on large files, per the dedup policy in the data model.
type HashKind string

const (
	HashFull    HashKind = "full_sha256"
	HashPartial HashKind = "partial_sha256"
)

// PartialHashThreshold is the file size above which dedup falls back to a
// partial (first+middle+last 64 KiB chunks) hash rather than hashing the
// whole file. This trades a small collision risk on files that share their
// sampled chunks for avoiding full re-reads of very large recordings; see
// DESIGN.md for the accepted risk.
const PartialHashThreshold = 100 * 1024 * 1024

// PartialChunkSize is the size of each of the three sampled chunks.
const PartialChunkSize = 64 * 1024

// Asset is one media file streamops has indexed.
type Asset struct {
	ID          string
	AbsPath     string
	CurrentPath string
	Role        string
	Ext         string
	MIME        string
	Size        int64
	MTime       float64
	CTime       float64
	ContentHash string
	HashKind    HashKind
	Status      Status
	Meta        map[string]any
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventType enumerates the asset lifecycle events recorded in the log.
type EventType string

const (
	EventDiscovered     EventType = "discovered"
	EventRecorded       EventType = "recorded"
	EventRuleMatched    EventType = "rule_matched"
	EventActionStarted  EventType = "action_started"
	EventActionFinished EventType = "action_finished"
	EventMoveCompleted      EventType = "move_completed"
	EventCopyCompleted      EventType = "copy_completed"
	EventRemuxCompleted     EventType = "remux_completed"
	EventProxyCompleted     EventType = "proxy_completed"
	EventThumbnailCompleted EventType = "thumbnail_completed"
	EventTranscodeCompleted EventType = "transcode_completed"
	EventTagged             EventType = "tagged"
	EventError              EventType = "error"
)

// Event is one append-only entry in an asset's timeline.
type Event struct {
	ID        string
	AssetID   string
	Type      EventType
	JobID     string
	Detail    map[string]any
	CreatedAt time.Time
}

// FingerprintPath derives a deterministic 16-hex-character asset ID from an
// absolute path using a sha256(abs_path)[:16] scheme so re-running the
// indexer against an unchanged tree never creates duplicate asset rows.
func FingerprintPath(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])[:16]
}

// FingerprintEvent derives a deterministic event ID from its
// (asset_id, event_type, job_id) triple, making duplicate event emission
// for the same logical occurrence idempotent at the storage layer.
func FingerprintEvent(assetID string, eventType EventType, jobID string) string {
	raw := fmt.Sprintf("%s|%s|%s", assetID, eventType, jobID)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// DetectExtAndMIME derives the lowercase extension (without dot) and a
// best-effort MIME type from a path.
func DetectExtAndMIME(path string) (ext, mimeType string) {
	ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", ""
	}
	mimeType = mime.TypeByExtension("." + ext)
	if mimeType == "" {
		mimeType = videoMIMEFallback(ext)
	}
	return ext, mimeType
}

// videoMIMEFallback covers the recording-format extensions the stdlib mime
// table typically doesn't know about.
func videoMIMEFallback(ext string) string {
	switch ext {
	case "mkv":
		return "video/x-matroska"
	case "ts", "m2ts":
		return "video/mp2t"
	case "mov":
		return "video/quicktime"
	case "flv":
		return "video/x-flv"
	default:
		return ""
	}
}

func marshalJSON(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalJSON(s string, v any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}
