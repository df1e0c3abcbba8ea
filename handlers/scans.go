package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/ShafiqSadat/ZKFingerprint/database"
)

// ScanHandler serves workflow history.
type ScanHandler struct {
	DB *sql.DB
}

// ListScans returns history rows newest first. The limit query parameter
// caps the page, defaulting to 50.
func (sh *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 1000 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}
	events, err := database.ListScanEvents(sh.DB, limit)
	if err != nil {
		log.Printf("Error listing scan events: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "list_failed", "Failed to retrieve scan history")
		return
	}
	if events == nil {
		events = []database.ScanEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
