package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

// Columns of a training CSV
const (
	ColumnSymptoms = "symptoms"
	ColumnDisease  = "disease"
)

// Sample is one labelled training row
type Sample struct {
	Symptoms string
	Disease  string
}

// Generate draws n samples. Each picks a disease uniformly, then between
// one and all of its symptoms without replacement, joined with ", ".
func Generate(seed *Seed, n int, rng *rand.Rand) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		d := seed.Diseases[rng.Intn(len(seed.Diseases))]
		k := 1 + rng.Intn(len(d.Symptoms))
		perm := rng.Perm(len(d.Symptoms))[:k]

		picked := make([]string, k)
		for j, idx := range perm {
			picked[j] = d.Symptoms[idx]
		}
		samples = append(samples, Sample{
			Symptoms: strings.Join(picked, ", "),
			Disease:  d.Name,
		})
	}
	return samples
}

// WriteCSV writes samples with a symptoms,disease header
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnSymptoms, ColumnDisease}); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{s.Symptoms, s.Disease}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadCSV reads a training CSV from disk
func LoadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("csv: %s: %w", path, err)
	}
	return samples, nil
}

// ReadCSV parses a training CSV. The header must name the symptoms and
// disease columns; other columns are ignored.
func ReadCSV(r io.Reader) ([]Sample, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty (no header row)")
	}

	symptomsCol, diseaseCol := -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColumnSymptoms:
			symptomsCol = i
		case ColumnDisease:
			diseaseCol = i
		}
	}
	if symptomsCol < 0 || diseaseCol < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", ColumnSymptoms, ColumnDisease)
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		s := Sample{
			Symptoms: strings.TrimSpace(record[symptomsCol]),
			Disease:  strings.TrimSpace(record[diseaseCol]),
		}
		if s.Symptoms == "" || s.Disease == "" {
			return nil, fmt.Errorf("row %d has an empty symptoms or disease value", i+2)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
