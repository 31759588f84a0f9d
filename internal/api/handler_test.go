package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/kartoza/lab-test-optimizer/internal/config"
	"github.com/kartoza/lab-test-optimizer/internal/engine"
	"github.com/kartoza/lab-test-optimizer/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(mode engine.Mode) *mux.Router {
	cfg := config.Default()
	cfg.Version = "test"

	var source engine.ContextSource
	if mode != engine.ModeRules {
		source = engine.UnavailableContext(errors.New("no artifact configured"))
	}
	eng := engine.New(source, engine.Options{Mode: mode, Logger: quietLogger()})

	r := mux.NewRouter()
	NewHandler(eng, cfg, quietLogger()).RegisterRoutes(r)
	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(engine.ModeModel)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response["status"])
	}
	if response["service"] != ServiceName {
		t.Errorf("Expected service '%s', got '%s'", ServiceName, response["service"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		mode engine.Mode
		code int
	}{
		{engine.ModeModel, http.StatusServiceUnavailable},
		{engine.ModeRules, http.StatusOK},
		{engine.ModeAuto, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := newTestRouter(tt.mode)

			req := httptest.NewRequest("GET", "/ready", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestReadyReportsLoadError(t *testing.T) {
	r := newTestRouter(engine.ModeModel)

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["load_error"] != "no artifact configured" {
		t.Errorf("Expected load_error, got '%v'", response["load_error"])
	}
}

func TestInfoEndpoint(t *testing.T) {
	r := newTestRouter(engine.ModeRules)

	req := httptest.NewRequest("GET", "/info", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)

	if response["version"] != "test" {
		t.Errorf("Expected version 'test', got '%v'", response["version"])
	}
	eng, ok := response["engine"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected engine object, got %T", response["engine"])
	}
	if eng["mode"] != "rules" {
		t.Errorf("Expected mode 'rules', got '%v'", eng["mode"])
	}
}

func analyze(t *testing.T, r *mux.Router, body string) (*httptest.ResponseRecorder, models.RecommendationResult) {
	t.Helper()

	req := httptest.NewRequest("POST", "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var result models.RecommendationResult
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("Failed to decode result: %v", err)
		}
	}
	return w, result
}

func TestAnalyzeRules(t *testing.T) {
	r := newTestRouter(engine.ModeRules)

	w, result := analyze(t, r, `{"age": 30, "gender": "Male", "symptoms": ["high fever", "joint pain"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(result.PredictedDiseases) != 3 || result.PredictedDiseases[2] != "Chikungunya" {
		t.Errorf("Unexpected diseases: %v", result.PredictedDiseases)
	}
	if result.TotalCost != 2100 {
		t.Errorf("Expected total cost 2100, got %v", result.TotalCost)
	}
	if result.ConfidenceScore != engine.FallbackConfidence {
		t.Errorf("Expected confidence %v, got %v", engine.FallbackConfidence, result.ConfidenceScore)
	}
}

func TestAnalyzeResponseShape(t *testing.T) {
	r := newTestRouter(engine.ModeRules)

	req := httptest.NewRequest("POST", "/analyze", strings.NewReader(`{"age": 5, "gender": "F", "symptoms": ["fatigue"]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	for _, key := range []string{"recommended_tests", "predicted_diseases", "total_cost", "savings", "confidence_score"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Missing key %q", key)
		}
	}
	if string(raw["predicted_diseases"]) != "[]" {
		t.Errorf("Expected empty disease list, got %s", raw["predicted_diseases"])
	}
}

func TestAnalyzeModelUnavailable(t *testing.T) {
	r := newTestRouter(engine.ModeModel)

	w, result := analyze(t, r, `{"age": 40, "gender": "Female", "symptoms": ["high fever"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(result.PredictedDiseases) != 1 || result.PredictedDiseases[0] != engine.ErrorLoadingModel {
		t.Errorf("Expected degraded result, got %v", result.PredictedDiseases)
	}
	if result.TotalCost != 0 || result.Savings != 0 || result.ConfidenceScore != 0 {
		t.Errorf("Expected zeroed result, got %+v", result)
	}
}

func TestAnalyzeBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"symptoms": [`, http.StatusBadRequest},
		{"wrong type", `{"symptoms": "fever"}`, http.StatusBadRequest},
		{"missing symptoms", `{"age": 30, "gender": "Male"}`, http.StatusUnprocessableEntity},
	}

	r := newTestRouter(engine.ModeRules)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := analyze(t, r, tt.body)
			if w.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, w.Code)
			}

			var response models.ErrorResponse
			json.NewDecoder(w.Body).Decode(&response)
			if response.Error == "" {
				t.Error("Expected error response")
			}
		})
	}
}

func TestAnalyzeEmptySymptoms(t *testing.T) {
	r := newTestRouter(engine.ModeRules)

	w, result := analyze(t, r, `{"age": 30, "gender": "Male", "symptoms": []}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if result.Status != models.StatusInsufficientInput {
		t.Errorf("Expected status %q, got %q", models.StatusInsufficientInput, result.Status)
	}
}

func TestAnalyzeRejectsGet(t *testing.T) {
	r := newTestRouter(engine.ModeRules)

	req := httptest.NewRequest("GET", "/analyze", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
