package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kartoza/lab-test-optimizer/internal/config"
	"github.com/kartoza/lab-test-optimizer/internal/engine"
	"github.com/kartoza/lab-test-optimizer/internal/models"
)

// ServiceName is reported by the health endpoint
const ServiceName = "Lab Test Optimization API"

// maxBodyBytes caps an analyze request body
const maxBodyBytes = 1 << 20

// Recommender is the engine surface the handlers need
type Recommender interface {
	Recommend(q models.SymptomQuery) models.RecommendationResult
	Ready() bool
	Status() engine.Status
}

// Handler provides HTTP API endpoints
type Handler struct {
	engine Recommender
	cfg    config.Config
	logger *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(eng Recommender, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: eng,
		cfg:    cfg,
		logger: logger.With("component", "api"),
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/ready", h.handleReady).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")

	// Analysis
	r.HandleFunc("/analyze", h.handleAnalyze).Methods("POST")
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

// respondError sends a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

// handleHealth reports liveness only; see handleReady
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// handleReady returns 503 until the configured engine path can answer
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	body := map[string]interface{}{
		"ready":        st.Ready,
		"mode":         st.Mode,
		"model_loaded": st.ModelLoaded,
	}
	if st.LoadError != "" {
		body["load_error"] = st.LoadError
	}

	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(w, code, body)
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service": ServiceName,
		"version": h.cfg.Version,
		"engine":  h.engine.Status(),
	}
	h.respondJSON(w, http.StatusOK, info)
}

// handleAnalyze runs one recommendation. Engine failures are reported in
// the result body, so any well-formed query gets a 200.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var q models.SymptomQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if q.Symptoms == nil {
		h.respondError(w, http.StatusUnprocessableEntity, "symptoms is required")
		return
	}

	result := h.engine.Recommend(q)
	h.logger.Info("analyze",
		"request_id", RequestIDFromContext(r.Context()),
		"symptoms", len(q.Symptoms),
		"status", result.Status,
		"source", result.Source,
		"diseases", result.PredictedDiseases,
		"total_cost", result.TotalCost,
	)
	h.respondJSON(w, http.StatusOK, result)
}
