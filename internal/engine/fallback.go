package engine

import (
	"strings"

	"github.com/kartoza/lab-test-optimizer/internal/classifier"
	"github.com/kartoza/lab-test-optimizer/internal/kb"
)

// FallbackConfidence is reported on every rules result, matched or not.
// It is a rule confidence, not a probability; no_match status marks the
// empty case.
const FallbackConfidence = 0.85

// Rule contributes diagnoses and tests when its predicate holds over the
// normalised symptom text
type Rule struct {
	ID        string
	Match     func(text string) bool
	Diagnoses []string
	Tests     []kb.TestSpec
}

// containsAll matches when every keyword occurs in the text
func containsAll(keywords ...string) func(string) bool {
	normalised := make([]string, len(keywords))
	for i, k := range keywords {
		normalised[i] = classifier.Normalize(k)
	}
	return func(text string) bool {
		for _, k := range normalised {
			if !strings.Contains(text, k) {
				return false
			}
		}
		return true
	}
}

// DefaultRules returns the built-in rules in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:        "fever",
			Match:     containsAll("fever"),
			Diagnoses: []string{"Viral Fever", "Dengue"},
			Tests: []kb.TestSpec{
				{
					TestName:   "Complete Blood Count (CBC)",
					Reason:     "To check for infection markers and platelet count.",
					Cost:       500,
					Importance: kb.ImportanceHigh,
				},
				{
					TestName:   "Urine Routine",
					Reason:     "To screen for urinary tract infections common with fever.",
					Cost:       400,
					Importance: kb.ImportanceMedium,
				},
			},
		},
		{
			ID:        "fever-joint-pain",
			Match:     containsAll("fever", "joint pain"),
			Diagnoses: []string{"Chikungunya"},
			Tests: []kb.TestSpec{
				{
					TestName:   "Dengue NS1 Antigen",
					Reason:     "Specific test for Dengue fever given joint pain.",
					Cost:       1200,
					Importance: kb.ImportanceHigh,
				},
			},
		},
		{
			ID:    "fatigue",
			Match: containsAll("fatigue"),
			Tests: []kb.TestSpec{
				{
					TestName:   "Thyroid Profile",
					Reason:     "Fatigue is a common symptom of Thyroid issues.",
					Cost:       800,
					Importance: kb.ImportanceMedium,
				},
				{
					TestName:   "Vitamin B12 & D",
					Reason:     "Deficiencies can cause chronic fatigue.",
					Cost:       1500,
					Importance: kb.ImportanceLow,
				},
			},
		},
	}
}

// RuleOutcome accumulates the contributions of every matching rule
type RuleOutcome struct {
	Matched   []string
	Diagnoses []string
	Tests     []kb.TestSpec
}

// EvaluateRules runs rules in order over text. Contributions are appended
// as a plain union; with dedupe set, repeated diagnoses and test names keep
// only their first occurrence.
func EvaluateRules(rules []Rule, text string, dedupe bool) RuleOutcome {
	normalised := classifier.Normalize(text)
	out := RuleOutcome{
		Matched:   []string{},
		Diagnoses: []string{},
		Tests:     []kb.TestSpec{},
	}
	seenDiagnoses := make(map[string]bool)
	seenTests := make(map[string]bool)

	for _, r := range rules {
		if r.Match == nil || !r.Match(normalised) {
			continue
		}
		out.Matched = append(out.Matched, r.ID)

		for _, d := range r.Diagnoses {
			if dedupe && seenDiagnoses[d] {
				continue
			}
			seenDiagnoses[d] = true
			out.Diagnoses = append(out.Diagnoses, d)
		}
		for _, t := range r.Tests {
			if dedupe && seenTests[t.TestName] {
				continue
			}
			seenTests[t.TestName] = true
			out.Tests = append(out.Tests, t)
		}
	}
	return out
}
