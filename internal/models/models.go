package models

// Status values reported on every RecommendationResult
const (
	StatusOK                = "ok"
	StatusUnknownDiagnosis  = "unknown_diagnosis"
	StatusNoMatch           = "no_match"
	StatusInsufficientInput = "insufficient_input"
	StatusModelUnavailable  = "model_unavailable"
)

// Source values name the path that produced a result
const (
	SourceModel = "model"
	SourceRules = "rules"
	SourceNone  = "none"
)

// SymptomQuery is the patient data submitted for analysis.
// Only Symptoms is used for inference today.
type SymptomQuery struct {
	Age        int                    `json:"age"`
	Gender     string                 `json:"gender"`
	Symptoms   []string               `json:"symptoms"`
	History    *string                `json:"history,omitempty"`
	VitalSigns map[string]interface{} `json:"vital_signs,omitempty"`
}

// TestRecommendation is a single recommended test in a result
type TestRecommendation struct {
	TestName   string  `json:"test_name"`
	Reason     string  `json:"reason"`
	Cost       float64 `json:"cost"`
	Importance string  `json:"importance"`
}

// RecommendationResult is the analysis response
type RecommendationResult struct {
	RecommendedTests  []TestRecommendation `json:"recommended_tests"`
	PredictedDiseases []string             `json:"predicted_diseases"`
	TotalCost         float64              `json:"total_cost"`
	Savings           float64              `json:"savings"`
	ConfidenceScore   float64              `json:"confidence_score"`
	Status            string               `json:"status"`
	Source            string               `json:"source"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}
