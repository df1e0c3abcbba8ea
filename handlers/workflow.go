package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ShafiqSadat/ZKFingerprint/services"
)

// WorkflowHandler starts and cancels workflow runs. A start request blocks
// until its workflow reaches a terminal state and responds with the outcome;
// progress streams over the websocket in the meantime.
type WorkflowHandler struct {
	Workflows *services.WorkflowService
}

func (wh *WorkflowHandler) StartEnrollment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body: "+err.Error())
		return
	}
	outcome, err := wh.Workflows.StartEnrollment(r.Context(), req.Name)
	if err != nil {
		wh.writeStartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (wh *WorkflowHandler) StartIdentification(w http.ResponseWriter, r *http.Request) {
	outcome, err := wh.Workflows.StartIdentification(r.Context())
	if err != nil {
		wh.writeStartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (wh *WorkflowHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	cancelled := wh.Workflows.Cancel()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (wh *WorkflowHandler) writeStartError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrWorkflowActive) {
		WriteAPIError(w, http.StatusConflict, "workflow_active", "Another workflow is already running")
		return
	}
	log.Printf("Error starting workflow: %v", err)
	WriteAPIError(w, http.StatusBadRequest, "start_failed", err.Error())
}
