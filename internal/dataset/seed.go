// Package dataset holds the seed disease catalogue and the synthetic
// symptom datasets generated from it.
package dataset

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/kartoza/lab-test-optimizer/internal/kb"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Disease is one catalogue entry: the symptoms that describe it and the
// tests recommended when it is diagnosed
type Disease struct {
	Name     string        `yaml:"name"`
	Symptoms []string      `yaml:"symptoms"`
	Tests    []kb.TestSpec `yaml:"tests"`
}

// Seed is the disease catalogue
type Seed struct {
	Diseases []Disease `yaml:"diseases"`
}

// DefaultSeed returns the embedded catalogue
func DefaultSeed() (*Seed, error) {
	return ParseSeed(seedYAML)
}

// LoadSeedFile reads a catalogue from disk
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates a YAML catalogue
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if len(s.Diseases) == 0 {
		return nil, fmt.Errorf("seed: no diseases defined")
	}
	for i, d := range s.Diseases {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("seed: disease %d has no name", i)
		}
		if len(d.Symptoms) == 0 {
			return nil, fmt.Errorf("seed: disease %q has no symptoms", d.Name)
		}
	}
	if _, err := s.KnowledgeBase(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return &s, nil
}

// KnowledgeBase builds the diagnosis to tests mapping from the catalogue
func (s *Seed) KnowledgeBase() (*kb.KnowledgeBase, error) {
	entries := make([]kb.Entry, 0, len(s.Diseases))
	for _, d := range s.Diseases {
		entries = append(entries, kb.Entry{Diagnosis: d.Name, Tests: d.Tests})
	}
	return kb.New(entries)
}

// Names lists the diseases in catalogue order
func (s *Seed) Names() []string {
	names := make([]string, len(s.Diseases))
	for i, d := range s.Diseases {
		names[i] = d.Name
	}
	return names
}
