package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/wonny/ipocast/internal/pipeline"
	"github.com/wonny/ipocast/pkg/config"
	"github.com/wonny/ipocast/pkg/logger"
)

// PipelineControl is the runner surface the API needs.
type PipelineControl interface {
	Status() *pipeline.RunStatus
	Generate(ctx context.Context) error
	Retrain(ctx context.Context) error
}

// Handler serves the prediction artifact and pipeline controls
// ⭐ SSOT: API 핸들러는 여기서만
type Handler struct {
	runner PipelineControl
	paths  config.PathsConfig
	logger *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(runner PipelineControl, paths config.PathsConfig, log *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		paths:  paths,
		logger: log.WithComponent("api"),
	}
}

// GetPredictions serves the current prediction artifact.
// GET /api/predictions
//
// The artifact is read straight from disk; the atomic pipeline write
// guarantees the file is always a complete document.
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.paths.OutputFile)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "No prediction artifact yet")
			return
		}
		h.logger.WithError(err).Error("Failed to read prediction artifact")
		respondError(w, http.StatusInternalServerError, "Failed to read predictions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetMetrics serves the evaluation metrics of the last training run.
// GET /api/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(h.paths.ModelsDir, "metrics.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "No trained model yet")
			return
		}
		h.logger.WithError(err).Error("Failed to read metrics")
		respondError(w, http.StatusInternalServerError, "Failed to read metrics")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetPipelineStatus returns the last run status.
// GET /api/pipeline/status
func (h *Handler) GetPipelineStatus(w http.ResponseWriter, r *http.Request) {
	status := h.runner.Status()
	if status == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    nil,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    status,
	})
}

// TriggerGenerate starts a generate run in the background.
// POST /api/pipeline/generate
func (h *Handler) TriggerGenerate(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.runner.Generate(context.Background()); err != nil {
			h.logger.WithError(err).Error("Triggered generate run failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "generate run started",
	})
}

// TriggerRetrain starts a retrain run in the background.
// POST /api/pipeline/retrain
func (h *Handler) TriggerRetrain(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.runner.Retrain(context.Background()); err != nil {
			h.logger.WithError(err).Error("Triggered retrain run failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "retrain run started",
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
