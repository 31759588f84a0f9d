// Package trainer fits the symptom classifier on a labelled dataset and
// packages it with a knowledge base into an artifact bundle.
package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/kartoza/lab-test-optimizer/internal/artifact"
	"github.com/kartoza/lab-test-optimizer/internal/classifier"
	"github.com/kartoza/lab-test-optimizer/internal/dataset"
	"github.com/kartoza/lab-test-optimizer/internal/kb"
)

// Options control a training run
type Options struct {
	// TestFraction of the samples is held out to measure accuracy
	TestFraction float64
	// Seed makes the train/test split reproducible
	Seed   int64
	Alpha  float64
	Logger *slog.Logger
}

// DefaultOptions mirrors the reference 80/20 split with a fixed seed
func DefaultOptions() Options {
	return Options{
		TestFraction: 0.2,
		Seed:         42,
		Alpha:        classifier.DefaultSymptomModelConfig().Alpha,
	}
}

// Report summarises a training run
type Report struct {
	Samples   int      `json:"samples"`
	TrainSize int      `json:"train_size"`
	TestSize  int      `json:"test_size"`
	Accuracy  float64  `json:"accuracy"`
	Labels    []string `json:"labels"`
	// Unmapped lists predicted labels with no knowledge base entry
	Unmapped []string          `json:"unmapped,omitempty"`
	Metadata artifact.Metadata `json:"metadata"`
}

// Split shuffles samples with rng and holds out round(fraction*n) of them.
// At least one sample always remains for training.
func Split(samples []dataset.Sample, fraction float64, rng *rand.Rand) (train, test []dataset.Sample) {
	idx := rng.Perm(len(samples))

	testN := int(math.Round(fraction * float64(len(samples))))
	if testN < 0 {
		testN = 0
	}
	if testN >= len(samples) {
		testN = len(samples) - 1
	}

	test = make([]dataset.Sample, 0, testN)
	train = make([]dataset.Sample, 0, len(samples)-testN)
	for i, j := range idx {
		if i < testN {
			test = append(test, samples[j])
		} else {
			train = append(train, samples[j])
		}
	}
	return train, test
}

// Train fits a model on the training split and scores it on the held-out
// split. Accuracy is zero when nothing was held out.
func Train(samples []dataset.Sample, opts Options) (*classifier.SymptomModel, Report, error) {
	if len(samples) == 0 {
		return nil, Report{}, errors.New("trainer: no samples")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	train, test := Split(samples, opts.TestFraction, rand.New(rand.NewSource(opts.Seed)))

	texts := make([]string, len(train))
	labels := make([]string, len(train))
	for i, s := range train {
		texts[i] = s.Symptoms
		labels[i] = s.Disease
	}

	model := classifier.NewSymptomModel(classifier.SymptomModelConfig{Alpha: opts.Alpha})
	logger.Info("training classifier", "train", len(train), "test", len(test))
	if err := model.Train(texts, labels); err != nil {
		return nil, Report{}, fmt.Errorf("trainer: %w", err)
	}

	accuracy, err := Score(model, test)
	if err != nil {
		return nil, Report{}, fmt.Errorf("trainer: %w", err)
	}
	logger.Info("classifier trained", "accuracy", accuracy, "labels", len(model.Labels()))

	return model, Report{
		Samples:   len(samples),
		TrainSize: len(train),
		TestSize:  len(test),
		Accuracy:  accuracy,
		Labels:    model.Labels(),
	}, nil
}

// Score is the fraction of samples whose disease the model predicts
func Score(c classifier.Classifier, samples []dataset.Sample) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	correct := 0
	for _, s := range samples {
		label, err := c.Predict(s.Symptoms)
		if err != nil {
			return 0, err
		}
		if label == s.Disease {
			correct++
		}
	}
	return float64(correct) / float64(len(samples)), nil
}

// Build trains on samples and writes a bundle to outPath. Labels the model
// can predict but the knowledge base does not map are reported and logged;
// they resolve to an unknown diagnosis at query time.
func Build(samples []dataset.Sample, knowledge *kb.KnowledgeBase, outPath string, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model, report, err := Train(samples, opts)
	if err != nil {
		return report, err
	}

	for _, label := range report.Labels {
		if !knowledge.Contains(label) {
			report.Unmapped = append(report.Unmapped, label)
			logger.Warn("label has no knowledge base entry", "label", label)
		}
	}

	meta, err := artifact.Write(outPath, model, knowledge, artifact.Metadata{
		Samples:  report.Samples,
		Accuracy: report.Accuracy,
	})
	if err != nil {
		return report, fmt.Errorf("trainer: write artifact: %w", err)
	}
	report.Metadata = meta

	logger.Info("artifact written", "path", outPath, "build_id", meta.BuildID)
	return report, nil
}
