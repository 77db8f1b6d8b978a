// Package api exposes the pipeline's assets, jobs, rules, and config stores
// over an HTTP+SSE surface: a thin Handler struct wrapping the
// queue/worker pool, JSON response helpers, and chi routing, generalized
// from a single-purpose transcode
// UI backend to a chi router fronting the full streamops domain.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mscrnt/streamops-go/internal/apperr"
	"github.com/mscrnt/streamops-go/internal/assets"
	"github.com/mscrnt/streamops-go/internal/config"
	"github.com/mscrnt/streamops-go/internal/guardrail"
	"github.com/mscrnt/streamops-go/internal/jobs"
	"github.com/mscrnt/streamops-go/internal/rules"
)

// Handler wires every store and runtime component the API surface reads or
// mutates. It holds no state of its own beyond what those components
// already own.
type Handler struct {
	Assets     *assets.Store
	Jobs       *jobs.Queue
	Dispatcher *jobs.Dispatcher
	Rules      *rules.Store
	Config     *config.Store
	Guard      *guardrail.Sampler
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps an apperr.Kind to its HTTP status, defaulting to 500
// for anything it doesn't recognize or for plain errors.
func statusForError(err error) int {
	switch {
	case apperr.IsKind(err, apperr.NotFound):
		return http.StatusNotFound
	case apperr.IsKind(err, apperr.Validation):
		return http.StatusBadRequest
	case apperr.IsKind(err, apperr.Conflict):
		return http.StatusConflict
	case apperr.IsKind(err, apperr.Guarded):
		return http.StatusTooManyRequests
	case apperr.IsKind(err, apperr.Timeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ListAssets handles GET /api/assets?q=&role=&limit=
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	if q := r.URL.Query().Get("q"); q != "" {
		results, err := h.Assets.Search(q, limit)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assets": results})
		return
	}

	role := r.URL.Query().Get("role")
	results, err := h.Assets.ListByRole(role, limit)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": results})
}

// GetAsset handles GET /api/assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asset, err := h.Assets.GetByID(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// AssetTimeline handles GET /api/assets/{id}/timeline
func (h *Handler) AssetTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.Assets.Timeline(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// ReindexAssetRequest is the body for POST /api/assets/{id}/reindex.
type ReindexAssetRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// ReindexAsset handles POST /api/assets/{id}/reindex, enqueuing a durable
// index job rather than running the probe inline on the request goroutine.
func (h *Handler) ReindexAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReindexAssetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	path := req.Path
	if path == "" {
		asset, err := h.Assets.GetByID(id)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		path = asset.CurrentPath
	}

	job, err := h.Jobs.Enqueue(jobs.KindIndex, id, "", jobs.PriorityNormal,
		map[string]any{"path": path, "force_reindex": req.Force}, 3)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.Jobs.List()})
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := h.Jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob handles DELETE /api/jobs/{id}
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Dispatcher.CancelJob(id)
	if err := h.Jobs.Cancel(id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// PauseQueue handles POST /api/queue/pause, used by operators wanting to
// halt dispatch ahead of a recording.
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	h.Dispatcher.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeQueue handles POST /api/queue/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	h.Dispatcher.Unpause()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// ResizeQueueRequest is the body for POST /api/queue/resize.
type ResizeQueueRequest struct {
	Workers int `json:"workers"`
}

// ResizeQueue handles POST /api/queue/resize
func (h *Handler) ResizeQueue(w http.ResponseWriter, r *http.Request) {
	var req ResizeQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.Dispatcher.Resize(req.Workers)
	writeJSON(w, http.StatusOK, map[string]string{"status": "resized"})
}

// ListRules handles GET /api/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.ListAll()
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// GetRule handles GET /api/rules/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := h.Rules.Get(id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpsertRule handles POST /api/rules and PUT /api/rules/{id}. A POST with no
// ID in the body is assigned one by the store.
func (h *Handler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		rule.ID = id
	}
	if err := h.Rules.Upsert(&rule); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Rules.Delete(id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetConfig handles GET /api/config, returning every key with secret values
// masked rather than decrypted onto the wire.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)
	for k, v := range h.Config.All() {
		if v.Secret {
			out[k] = map[string]any{"kind": v.Kind, "secret": true}
			continue
		}
		out[k] = map[string]any{"kind": v.Kind, "value": v.Value}
	}
	writeJSON(w, http.StatusOK, out)
}

// SetConfigRequest is the body for PUT /api/config/{key}.
type SetConfigRequest struct {
	Value  string          `json:"value"`
	Kind   config.ValueKind `json:"kind"`
	Secret bool            `json:"secret"`
}

// SetConfig handles PUT /api/config/{key}
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req SetConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = config.KindString
	}
	if err := h.Config.Set(key, req.Value, req.Kind, req.Secret); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Config.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetRecordingRequest is the body for POST /api/guardrail/recording.
type SetRecordingRequest struct {
	Active bool `json:"active"`
}

// SetRecording handles POST /api/guardrail/recording, the signal an external
// capture tool flips so pause_when_recording guardrails trip immediately.
func (h *Handler) SetRecording(w http.ResponseWriter, r *http.Request) {
	var req SetRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.Guard.SetRecording(req.Active)
	writeJSON(w, http.StatusOK, map[string]bool{"recording_active": req.Active})
}

// GuardrailSnapshot handles GET /api/guardrail
func (h *Handler) GuardrailSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Guard.Current())
}
