// Package engine turns symptom descriptions into priced, explained lab
// test recommendations, either from a trained classifier or from a fixed
// rule list.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kartoza/lab-test-optimizer/internal/artifact"
	"github.com/kartoza/lab-test-optimizer/internal/models"
)

// Mode selects which path answers queries
type Mode string

const (
	// ModeModel answers from the trained artifact only
	ModeModel Mode = "model"
	// ModeRules answers from the built-in rules only
	ModeRules Mode = "rules"
	// ModeAuto prefers the artifact and falls back to rules while it is unavailable
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeModel, ModeRules, ModeAuto:
		return m, nil
	case "":
		return ModeModel, nil
	}
	return "", fmt.Errorf("unknown engine mode %q (want model, rules or auto)", s)
}

// SymptomSeparator joins symptom tokens into the classifier input text.
// Order is preserved.
const SymptomSeparator = ", "

// Options configure an Engine
type Options struct {
	Mode Mode
	// SavingsMultiplier is the assumed cost ratio of an unoptimised panel
	SavingsMultiplier float64
	// DedupeFallback drops repeated tests and diagnoses across matched rules
	DedupeFallback bool
	// Rules overrides DefaultRules when non-nil
	Rules  []Rule
	Logger *slog.Logger
}

// DefaultOptions returns the reference configuration
func DefaultOptions() Options {
	return Options{
		Mode:              ModeModel,
		SavingsMultiplier: DefaultSavingsMultiplier,
	}
}

// Engine answers recommendation queries. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	source ContextSource
	opts   Options
	rules  []Rule
	logger *slog.Logger
}

// New creates an engine reading its inference context from source.
// source may be nil in rules mode.
func New(source ContextSource, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.SavingsMultiplier <= 0 {
		opts.SavingsMultiplier = defaults.SavingsMultiplier
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if source == nil {
		source = UnavailableContext(artifact.ErrNoArtifact)
	}

	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	return &Engine{
		source: source,
		opts:   opts,
		rules:  rules,
		logger: opts.Logger.With("component", "engine"),
	}
}

// Mode returns the configured mode
func (e *Engine) Mode() Mode {
	return e.opts.Mode
}

// Ready reports whether the configured path can answer queries. Rules and
// auto mode are always ready; model mode needs a loaded artifact.
func (e *Engine) Ready() bool {
	if e.opts.Mode == ModeModel {
		return e.source.Context().Ready()
	}
	return true
}

// Status summarises the engine for diagnostics endpoints
type Status struct {
	Mode        Mode              `json:"mode"`
	Ready       bool              `json:"ready"`
	ModelLoaded bool              `json:"model_loaded"`
	LoadError   string            `json:"load_error,omitempty"`
	Diagnoses   []string          `json:"diagnoses"`
	Artifact    artifact.Metadata `json:"artifact"`
}

// Status reports the engine's mode and what its context has loaded
func (e *Engine) Status() Status {
	st := Status{
		Mode:      e.opts.Mode,
		Ready:     e.Ready(),
		Diagnoses: []string{},
	}
	if e.opts.Mode == ModeRules {
		return st
	}

	ictx := e.source.Context()
	st.ModelLoaded = ictx.Ready()
	if err := ictx.Err(); err != nil {
		st.LoadError = err.Error()
	}
	st.Diagnoses = ictx.KnowledgeBase().Labels()
	st.Artifact = ictx.Metadata()
	return st
}

// Recommend answers a single query. It never panics and never returns an
// error: every failure is reported through the result's status.
func (e *Engine) Recommend(q models.SymptomQuery) (result models.RecommendationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("recommendation panicked", "panic", r)
			result = unavailableResult()
		}
	}()

	text, ok := JoinSymptoms(q.Symptoms)
	if !ok {
		return insufficientInputResult()
	}

	switch e.opts.Mode {
	case ModeRules:
		return e.recommendRules(text)
	case ModeAuto:
		ictx := e.source.Context()
		if !ictx.Ready() {
			e.logger.Debug("artifact unavailable, answering from rules", "error", ictx.Err())
			return e.recommendRules(text)
		}
		return e.recommendModel(ictx, text)
	default:
		ictx := e.source.Context()
		if !ictx.Ready() {
			e.logger.Warn("artifact unavailable", "error", ictx.Err())
			return unavailableResult()
		}
		return e.recommendModel(ictx, text)
	}
}

// JoinSymptoms joins the non-blank symptoms in order. ok is false when
// nothing remains to classify.
func JoinSymptoms(symptoms []string) (string, bool) {
	parts := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, SymptomSeparator), true
}

func (e *Engine) recommendModel(ictx *InferenceContext, text string) models.RecommendationResult {
	label, err := ictx.classifier.Predict(text)
	if err != nil {
		e.logger.Error("classifier predict failed", "error", err)
		return unavailableResult()
	}
	proba, err := ictx.classifier.PredictProba(text)
	if err != nil {
		e.logger.Error("classifier predict_proba failed", "error", err)
		return unavailableResult()
	}

	top := topPrediction(proba, label)
	if top.Label != label {
		e.logger.Warn("classifier label disagrees with probability arg-max",
			"predicted", label,
			"argmax", top.Label,
			"confidence", top.Probability,
		)
	}

	knowledge := ictx.KnowledgeBase()
	status := models.StatusOK
	if !knowledge.Contains(label) {
		e.logger.Info("diagnosis has no knowledge base entry", "diagnosis", label)
		status = models.StatusUnknownDiagnosis
	}

	return e.assemble(knowledge.Lookup(label), []string{label}, top.Probability, status, models.SourceModel)
}

func (e *Engine) recommendRules(text string) models.RecommendationResult {
	outcome := EvaluateRules(e.rules, text, e.opts.DedupeFallback)
	if len(outcome.Matched) == 0 {
		return e.assemble(outcome.Tests, outcome.Diagnoses, FallbackConfidence, models.StatusNoMatch, models.SourceRules)
	}
	e.logger.Debug("rules matched", "rules", outcome.Matched)
	return e.assemble(outcome.Tests, outcome.Diagnoses, FallbackConfidence, models.StatusOK, models.SourceRules)
}

// DiagnosisPrediction is one scored label of a classifier run
type DiagnosisPrediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// topPrediction returns the label with the highest probability. Ties,
// including with preferred, resolve to preferred; otherwise to the label
// that sorts first. Invalid probabilities count as zero.
func topPrediction(proba map[string]float64, preferred string) DiagnosisPrediction {
	labels := make([]string, 0, len(proba))
	for label := range proba {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best, bestLabel := 0.0, preferred
	first := true
	for _, label := range labels {
		p := clampUnit(proba[label])
		if first || p > best {
			best, bestLabel = p, label
			first = false
		}
	}
	if p, ok := proba[preferred]; ok && clampUnit(p) == best {
		bestLabel = preferred
	}
	return DiagnosisPrediction{Label: bestLabel, Probability: best}
}

func clampUnit(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
