package api

import (
	"encoding/json"
	"net/http"

	"github.com/openlearn/tenantd/internal/tasks"
)

// RegisterTaskRoutes exposes the task domain-threading hooks over HTTP, for
// queue publishers and workers that live outside this process.
func (h *Handler) RegisterTaskRoutes(mux *http.ServeMux, th *tasks.Handler) {
	mux.Handle("POST /api/v1/tasks/stamp",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.stampTask(w, r, th)
		})))
}

type stampTaskRequest struct {
	Task    string                 `json:"task"`
	Payload map[string]interface{} `json:"payload"`
}

// stampTask stamps the tenant domain onto a task payload before the caller
// publishes it to its queue.
func (h *Handler) stampTask(w http.ResponseWriter, r *http.Request, th *tasks.Handler) {
	var req stampTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Task == "" {
		respondError(w, http.StatusBadRequest, "task is required")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]interface{}{}
	}

	if err := th.StampPayload(req.Task, req.Payload); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "Could not determine tenant domain")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task":    req.Task,
		"payload": req.Payload,
	})
}
