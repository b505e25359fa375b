package handlers

import (
	"errors"
	"net/http"

	"imgdb/internal/database"
	"imgdb/internal/indexer"
	"imgdb/internal/logging"
)

// StatsResponse reports catalog counts and pipeline state.
type StatsResponse struct {
	database.Stats
	Running      bool   `json:"running"`
	CurrentStage string `json:"currentStage,omitempty"`
}

// GetStats returns the catalog row counts.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		logging.Error("Failed to read catalog stats: %v", err)
		writeJSONError(w, "failed to read catalog stats", http.StatusInternalServerError)
		return
	}

	status := h.pipeline.GetHealthStatus()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, StatsResponse{
		Stats:        stats,
		Running:      status.Running,
		CurrentStage: string(status.CurrentStage),
	})
}

// TriggerRun starts a full pipeline run in the background.
func (h *Handlers) TriggerRun(w http.ResponseWriter, _ *http.Request) {
	err := h.pipeline.TriggerRun()
	switch {
	case errors.Is(err, indexer.ErrBusy):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "A pipeline run is already in progress",
		})
	case err != nil:
		logging.Error("Failed to trigger pipeline run: %v", err)
		writeJSONError(w, "failed to start pipeline run", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{
			"status":  "started",
			"message": "Pipeline run started",
		})
	}
}
