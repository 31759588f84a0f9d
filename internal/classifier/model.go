package classifier

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/gonum/floats"
)

// SymptomModel is a multinomial Naive Bayes classifier over TF-IDF features.
// Training is the only mutating operation; queries take a read lock.
type SymptomModel struct {
	alpha float64

	vectorizer    *Vectorizer
	labels        []string
	logPrior      []float64
	logLikelihood [][]float64

	trained bool
	mu      sync.RWMutex
}

// SymptomModelConfig holds model configuration
type SymptomModelConfig struct {
	// Alpha is the additive (Laplace) smoothing parameter
	Alpha float64
}

// DefaultSymptomModelConfig returns sensible defaults
func DefaultSymptomModelConfig() SymptomModelConfig {
	return SymptomModelConfig{
		Alpha: 1.0,
	}
}

// NewSymptomModel creates an untrained model
func NewSymptomModel(cfg SymptomModelConfig) *SymptomModel {
	if cfg.Alpha <= 0 {
		cfg.Alpha = DefaultSymptomModelConfig().Alpha
	}
	return &SymptomModel{alpha: cfg.Alpha}
}

// Train fits the model on parallel slices of symptom texts and labels
func (m *SymptomModel) Train(texts, labels []string) error {
	if len(texts) == 0 {
		return errors.New("classifier: empty training set")
	}
	if len(texts) != len(labels) {
		return fmt.Errorf("classifier: %d texts but %d labels", len(texts), len(labels))
	}

	classIndex := make(map[string]int)
	for _, l := range labels {
		if l == "" {
			return errors.New("classifier: empty label in training set")
		}
		classIndex[l] = 0
	}
	classes := make([]string, 0, len(classIndex))
	for l := range classIndex {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	for i, l := range classes {
		classIndex[l] = i
	}

	vec := FitVectorizer(texts)
	dim := vec.Dim()

	counts := make([][]float64, len(classes))
	for i := range counts {
		counts[i] = make([]float64, dim)
	}
	docsPerClass := make([]float64, len(classes))

	for i, text := range texts {
		c := classIndex[labels[i]]
		docsPerClass[c]++
		floats.Add(counts[c], vec.Transform(text))
	}

	n := float64(len(texts))
	logPrior := make([]float64, len(classes))
	logLik := make([][]float64, len(classes))
	for c := range classes {
		logPrior[c] = math.Log(docsPerClass[c] / n)

		denom := floats.Sum(counts[c]) + m.alpha*float64(dim)
		logLik[c] = make([]float64, dim)
		for j, count := range counts[c] {
			logLik[c][j] = math.Log((count + m.alpha) / denom)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.vectorizer = vec
	m.labels = classes
	m.logPrior = logPrior
	m.logLikelihood = logLik
	m.trained = true
	return nil
}

// jointLogLikelihood returns the unnormalised log posterior per class
func (m *SymptomModel) jointLogLikelihood(text string) []float64 {
	x := m.vectorizer.Transform(text)
	jll := make([]float64, len(m.labels))
	for c := range m.labels {
		jll[c] = m.logPrior[c] + floats.Dot(x, m.logLikelihood[c])
	}
	return jll
}

// Predict returns the arg-max label. Ties resolve to the label that sorts first.
func (m *SymptomModel) Predict(text string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return "", ErrNotTrained
	}
	jll := m.jointLogLikelihood(text)
	return m.labels[floats.MaxIdx(jll)], nil
}

// PredictProba returns the posterior probability of every label
func (m *SymptomModel) PredictProba(text string) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, ErrNotTrained
	}
	jll := m.jointLogLikelihood(text)
	logNorm := floats.LogSumExp(jll)

	proba := make(map[string]float64, len(m.labels))
	for c, label := range m.labels {
		proba[label] = math.Exp(jll[c] - logNorm)
	}
	return proba, nil
}

// Labels returns the known diagnosis labels in sorted order
func (m *SymptomModel) Labels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// IsTrained returns whether the model has been trained or loaded
func (m *SymptomModel) IsTrained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// GetConfig returns the model configuration
func (m *SymptomModel) GetConfig() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vocab := 0
	if m.vectorizer != nil {
		vocab = m.vectorizer.Dim()
	}
	return map[string]interface{}{
		"alpha":      m.alpha,
		"classes":    len(m.labels),
		"vocabulary": vocab,
		"trained":    m.trained,
	}
}

// modelState is the gob wire form of a trained model
type modelState struct {
	Alpha         float64
	Vocabulary    map[string]int
	IDF           []float64
	Labels        []string
	LogPrior      []float64
	LogLikelihood [][]float64
}

// Encode writes the trained model to w
func (m *SymptomModel) Encode(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return ErrNotTrained
	}
	state := modelState{
		Alpha:         m.alpha,
		Vocabulary:    m.vectorizer.Vocabulary,
		IDF:           m.vectorizer.IDF,
		Labels:        m.labels,
		LogPrior:      m.logPrior,
		LogLikelihood: m.logLikelihood,
	}
	return gob.NewEncoder(w).Encode(state)
}

// Decode replaces the model with one read from r. The decoded state is
// checked for internal consistency before it is installed.
func (m *SymptomModel) Decode(r io.Reader) error {
	var state modelState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("decode model: %w", err)
	}
	if err := state.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alpha = state.Alpha
	m.vectorizer = &Vectorizer{Vocabulary: state.Vocabulary, IDF: state.IDF}
	m.labels = state.Labels
	m.logPrior = state.LogPrior
	m.logLikelihood = state.LogLikelihood
	m.trained = true
	return nil
}

func (s modelState) validate() error {
	if len(s.Labels) == 0 {
		return errors.New("model schema: no labels")
	}
	if len(s.LogPrior) != len(s.Labels) || len(s.LogLikelihood) != len(s.Labels) {
		return fmt.Errorf("model schema: %d labels, %d priors, %d likelihood rows",
			len(s.Labels), len(s.LogPrior), len(s.LogLikelihood))
	}
	if len(s.Vocabulary) != len(s.IDF) {
		return fmt.Errorf("model schema: vocabulary size %d, idf size %d", len(s.Vocabulary), len(s.IDF))
	}
	for term, idx := range s.Vocabulary {
		if idx < 0 || idx >= len(s.IDF) {
			return fmt.Errorf("model schema: term %q has index %d out of range", term, idx)
		}
	}
	for i, row := range s.LogLikelihood {
		if len(row) != len(s.IDF) {
			return fmt.Errorf("model schema: likelihood row %d has %d columns, want %d", i, len(row), len(s.IDF))
		}
	}
	return nil
}
