// Package classifier maps free-text symptom descriptions to diagnosis labels.
package classifier

import "errors"

// ErrNotTrained is returned when a model is queried before training or loading
var ErrNotTrained = errors.New("classifier: model not trained")

// Classifier scores symptom text against known diagnosis labels.
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Predict returns the most probable diagnosis label
	Predict(text string) (string, error)

	// PredictProba returns a probability per label; values sum to 1
	PredictProba(text string) (map[string]float64, error)
}
