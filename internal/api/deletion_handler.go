package api

import (
	"log/slog"
	"net/http"

	"github.com/wzin/datawipe/internal/api/shared"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/service"
)

// DeletionHandler exposes the deletion service over HTTP.
type DeletionHandler struct {
	service *service.DeletionService
	feed    *events.Feed
	logger  *slog.Logger
}

// NewDeletionHandler creates a handler over the given service and feed.
func NewDeletionHandler(svc *service.DeletionService, feed *events.Feed, log *slog.Logger) *DeletionHandler {
	if log == nil {
		log = slog.Default()
	}
	return &DeletionHandler{
		service: svc,
		feed:    feed,
		logger:  log.With(slog.String("component", "deletion_handler")),
	}
}

// SubmitBatch handles POST /api/batches.
func (h *DeletionHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SubmitBatchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	batch, err := h.service.SubmitBatch(r.Context(), actorFromRequest(r), service.BatchRequest{
		AccountRefs: req.AccountRefs,
		Parallelism: req.Parallelism,
		MaxAttempts: req.MaxAttempts,
		Priority:    req.Priority,
	})
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	log.Info("batch accepted",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("task_count", len(batch.TaskIDs)))
	shared.RespondWithJSON(w, r, http.StatusCreated, SubmitBatchResponse{
		BatchID: batch.ID,
		TaskIDs: batch.TaskIDs,
	})
}

// GetBatch handles GET /api/batches/{id}.
func (h *DeletionHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	status, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// GetTask handles GET /api/tasks/{id}.
func (h *DeletionHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// ListTasks handles GET /api/tasks with optional status, method,
// batch_id, limit and offset query parameters.
func (h *DeletionHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := taskFilterFromQuery(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), filter)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Tasks: tasks,
		Count: len(tasks),
	})
}

// ManualRetry handles POST /api/tasks/{id}/retry.
func (h *DeletionHandler) ManualRetry(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	task, err := h.service.ManualRetry(r.Context(), id, actorFromRequest(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Undo handles POST /api/tasks/{id}/undo.
func (h *DeletionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	task, err := h.service.Undo(r.Context(), id, actorFromRequest(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Pause handles POST /api/engine/pause.
func (h *DeletionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.service.Pause(r.Context(), actorFromRequest(r))
	shared.RespondWithJSON(w, r, http.StatusOK, EngineStateResponse{Paused: true})
}

// Resume handles POST /api/engine/resume.
func (h *DeletionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.service.Resume(r.Context(), actorFromRequest(r))
	shared.RespondWithJSON(w, r, http.StatusOK, EngineStateResponse{Paused: false})
}

// Stats handles GET /api/engine/stats.
func (h *DeletionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{Stats: stats})
}

// Events handles GET /api/events?after=N, the polling side of the
// transition change feed for live progress display.
func (h *DeletionHandler) Events(w http.ResponseWriter, r *http.Request) {
	after, err := afterCursor(r)
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}

	page := h.feed.Since(after)
	next := after
	if len(page) > 0 {
		next = page[len(page)-1].Seq
	}
	shared.RespondWithJSON(w, r, http.StatusOK, EventsResponse{
		Events: page,
		Next:   next,
	})
}

// RevealCredential handles POST /api/credentials/reveal. The reveal is
// audited by the service; the response is the only place the cleartext
// ever appears.
func (h *DeletionHandler) RevealCredential(w http.ResponseWriter, r *http.Request) {
	var req RevealCredentialRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	credential, err := h.service.RevealCredential(r.Context(), req.AccountRef, actorFromRequest(r))
	if err != nil {
		RespondWithServiceError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RevealCredentialResponse{
		AccountRef: req.AccountRef,
		Credential: credential,
	})
}
