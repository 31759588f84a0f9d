package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidRecord is returned when a knowledge base record fails validation
var ErrInvalidRecord = errors.New("invalid knowledge base record")

// Importance is the priority tier of a recommended test
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceMedium Importance = "Medium"
	ImportanceLow    Importance = "Low"
)

// ParseImportance accepts the tier name in any letter case
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ImportanceHigh, nil
	case "medium":
		return ImportanceMedium, nil
	case "low":
		return ImportanceLow, nil
	}
	return "", fmt.Errorf("%w: unknown importance %q", ErrInvalidRecord, s)
}

// Valid reports whether i is one of the known tiers
func (i Importance) Valid() bool {
	switch i {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	}
	return false
}

// TestSpec is a single recommended laboratory test
type TestSpec struct {
	TestName   string     `json:"test_name" yaml:"test_name"`
	Reason     string     `json:"reason" yaml:"reason"`
	Cost       float64    `json:"cost" yaml:"cost"`
	Importance Importance `json:"importance" yaml:"importance"`
}

// Validate checks the required fields of a test record
func (t TestSpec) Validate() error {
	if strings.TrimSpace(t.TestName) == "" {
		return fmt.Errorf("%w: empty test name", ErrInvalidRecord)
	}
	if math.IsNaN(t.Cost) || math.IsInf(t.Cost, 0) || t.Cost < 0 {
		return fmt.Errorf("%w: test %q has invalid cost %v", ErrInvalidRecord, t.TestName, t.Cost)
	}
	if !t.Importance.Valid() {
		return fmt.Errorf("%w: test %q has unknown importance %q", ErrInvalidRecord, t.TestName, t.Importance)
	}
	return nil
}

// Entry is the set of tests recommended for one diagnosis
type Entry struct {
	Diagnosis string
	Tests     []TestSpec
}

// KnowledgeBase maps a diagnosis label to its ordered list of tests.
// It is immutable once built and safe for concurrent reads.
type KnowledgeBase struct {
	entries map[string][]TestSpec
}

// New validates the given entries and builds a knowledge base.
// Duplicate diagnosis labels are rejected.
func New(entries []Entry) (*KnowledgeBase, error) {
	m := make(map[string][]TestSpec, len(entries))
	for _, e := range entries {
		label := strings.TrimSpace(e.Diagnosis)
		if label == "" {
			return nil, fmt.Errorf("%w: empty diagnosis label", ErrInvalidRecord)
		}
		if _, exists := m[label]; exists {
			return nil, fmt.Errorf("%w: duplicate diagnosis %q", ErrInvalidRecord, label)
		}
		tests := make([]TestSpec, len(e.Tests))
		for i, t := range e.Tests {
			if err := t.Validate(); err != nil {
				return nil, fmt.Errorf("diagnosis %q test %d: %w", label, i, err)
			}
			tests[i] = t
		}
		m[label] = tests
	}
	return &KnowledgeBase{entries: m}, nil
}

// Lookup returns a copy of the tests for a diagnosis in declared order.
// Unknown labels yield an empty slice.
func (k *KnowledgeBase) Lookup(diagnosis string) []TestSpec {
	if k == nil {
		return []TestSpec{}
	}
	tests, ok := k.entries[diagnosis]
	if !ok {
		return []TestSpec{}
	}
	out := make([]TestSpec, len(tests))
	copy(out, tests)
	return out
}

// Contains reports whether the diagnosis has an entry
func (k *KnowledgeBase) Contains(diagnosis string) bool {
	if k == nil {
		return false
	}
	_, ok := k.entries[diagnosis]
	return ok
}

// Labels returns all diagnosis labels sorted alphabetically
func (k *KnowledgeBase) Labels() []string {
	if k == nil {
		return []string{}
	}
	labels := make([]string, 0, len(k.entries))
	for label := range k.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Entries returns every entry sorted by diagnosis label
func (k *KnowledgeBase) Entries() []Entry {
	labels := k.Labels()
	out := make([]Entry, 0, len(labels))
	for _, label := range labels {
		out = append(out, Entry{Diagnosis: label, Tests: k.Lookup(label)})
	}
	return out
}

// Len returns the number of diagnoses
func (k *KnowledgeBase) Len() int {
	if k == nil {
		return 0
	}
	return len(k.entries)
}
