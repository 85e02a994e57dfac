// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/adlift/adlift/internal/errors"
	"github.com/adlift/adlift/pkg/batch"
	"github.com/adlift/adlift/pkg/queue"
	"github.com/adlift/adlift/pkg/storage"
)

// Build metadata, overridden at link time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Handlers wires the API endpoints to the queue, storage backend and
// batch processor.
type Handlers struct {
	Queue     *queue.Queue
	Backend   storage.Backend
	URLs      *storage.URLCache
	Processor *batch.Processor
	Log       *zap.Logger
}

// New creates the handler set. URLs defaults to a fresh cache over
// backend when nil.
func New(q *queue.Queue, b storage.Backend, p *batch.Processor, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		Queue:     q,
		Backend:   b,
		URLs:      storage.NewURLCache(b),
		Processor: p,
		Log:       log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": h.Backend.Provider(),
	})
}

// VersionInfo reports build metadata.
func (h *Handlers) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": Version,
		"commit":  Commit,
	})
}

type submitRequest struct {
	BriefPath string `json:"brief_path"`
	Priority  int    `json:"priority"`
}

// SubmitCampaign enqueues one campaign brief for background processing.
func (h *Handlers) SubmitCampaign(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.BriefPath == "" {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "brief_path is required")
		return
	}
	id := h.Queue.AddJob(req.BriefPath, req.Priority)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": id,
		"status": queue.StatusPending,
	})
}

type batchRequest struct {
	Directory string `json:"directory"`
	Priority  int    `json:"priority"`
}

// SubmitBatch enqueues every brief in a directory. Jobs run on the same
// bounded pool as single submissions, so concurrency limits stay uniform.
func (h *Handlers) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.Directory == "" {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "directory is required")
		return
	}
	briefs, err := batch.DiscoverBriefs(req.Directory)
	if err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	ids := make([]string, 0, len(briefs))
	for _, brief := range briefs {
		ids = append(ids, h.Queue.AddJob(brief, req.Priority))
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_ids": ids,
		"count":   len(ids),
	})
}

// GetCampaign returns the current state of one job.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.Queue.GetJob(id)
	if !ok {
		apperrors.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown job: "+id)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListCampaigns returns all jobs, optionally filtered by ?status=.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	filter := queue.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.Valid() {
		apperrors.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status: "+string(filter))
		return
	}
	jobs := h.Queue.Jobs(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// RetryCampaign re-queues a terminal job.
func (h *Handlers) RetryCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.Queue.RetryJob(id) {
		apperrors.WriteError(w, http.StatusConflict, "NOT_RETRYABLE", "job is unknown or not in a terminal state: "+id)
		return
	}
	job, _ := h.Queue.GetJob(id)
	writeJSON(w, http.StatusOK, job)
}

// Stats returns queue statistics and the processor's success rate.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.Queue.Statistics()
	payload := map[string]any{
		"queue": stats,
	}
	if h.Processor != nil {
		payload["success_rate"] = h.Processor.SuccessRate()
	}
	writeJSON(w, http.StatusOK, payload)
}

// ListAssets lists stored assets under ?directory= matching ?pattern=,
// with short-lived access URLs resolved through the URL cache.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	directory := r.URL.Query().Get("directory")
	pattern := r.URL.Query().Get("pattern")

	paths := h.Backend.List(r.Context(), directory, pattern)
	type asset struct {
		Path string `json:"path"`
		URL  string `json:"url,omitempty"`
	}
	assets := make([]asset, 0, len(paths))
	for _, p := range paths {
		a := asset{Path: p}
		if url, ok := h.URLs.URL(r.Context(), p, time.Hour); ok {
			a.URL = url
		}
		assets = append(assets, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assets": assets,
		"count":  len(assets),
	})
}

// StorageInfo returns the sanitized backend description.
func (h *Handlers) StorageInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Backend.Describe())
}
