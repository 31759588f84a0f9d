package engine

import (
	"github.com/kartoza/lab-test-optimizer/internal/kb"
	"github.com/kartoza/lab-test-optimizer/internal/models"
)

// DefaultSavingsMultiplier is the assumed cost of an unoptimised panel
// relative to the recommended one
const DefaultSavingsMultiplier = 2.86

// ErrorLoadingModel is the sole predicted disease of a degraded result
const ErrorLoadingModel = "Error loading model"

// EstimateSavings is the heuristic cost avoided versus ordering a panel
// multiplier times as expensive. It is not an audited figure.
func EstimateSavings(totalCost, multiplier float64) float64 {
	if totalCost == 0 {
		return 0
	}
	return totalCost * (multiplier - 1)
}

// assemble copies tests into the response shape and derives the totals
// from exactly the entries it emitted
func (e *Engine) assemble(tests []kb.TestSpec, diseases []string, confidence float64, status, source string) models.RecommendationResult {
	recs := make([]models.TestRecommendation, 0, len(tests))
	for _, t := range tests {
		recs = append(recs, models.TestRecommendation{
			TestName:   t.TestName,
			Reason:     t.Reason,
			Cost:       t.Cost,
			Importance: string(t.Importance),
		})
	}

	total := 0.0
	for _, r := range recs {
		total += r.Cost
	}

	predicted := make([]string, len(diseases))
	copy(predicted, diseases)

	return models.RecommendationResult{
		RecommendedTests:  recs,
		PredictedDiseases: predicted,
		TotalCost:         total,
		Savings:           EstimateSavings(total, e.opts.SavingsMultiplier),
		ConfidenceScore:   clampUnit(confidence),
		Status:            status,
		Source:            source,
	}
}

func unavailableResult() models.RecommendationResult {
	return models.RecommendationResult{
		RecommendedTests:  []models.TestRecommendation{},
		PredictedDiseases: []string{ErrorLoadingModel},
		Status:            models.StatusModelUnavailable,
		Source:            models.SourceNone,
	}
}

func insufficientInputResult() models.RecommendationResult {
	return models.RecommendationResult{
		RecommendedTests:  []models.TestRecommendation{},
		PredictedDiseases: []string{},
		Status:            models.StatusInsufficientInput,
		Source:            models.SourceNone,
	}
}
