package artifact

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/lab-test-optimizer/internal/classifier"
	"github.com/kartoza/lab-test-optimizer/internal/kb"
	_ "github.com/mattn/go-sqlite3"
)

func testModel(t *testing.T) *classifier.SymptomModel {
	t.Helper()

	model := classifier.NewSymptomModel(classifier.DefaultSymptomModelConfig())
	err := model.Train(
		[]string{"high fever, chills", "joint pain, rash, fever", "increased thirst"},
		[]string{"Viral Fever", "Dengue", "Diabetes Type 2"},
	)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return model
}

func testKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()

	k, err := kb.New([]kb.Entry{
		{
			Diagnosis: "Viral Fever",
			Tests: []kb.TestSpec{
				{TestName: "Complete Blood Count (CBC)", Reason: "Check for infection markers", Cost: 500, Importance: kb.ImportanceHigh},
				{TestName: "Urine Routine", Reason: "Screen for UTI", Cost: 400, Importance: kb.ImportanceMedium},
			},
		},
		{
			Diagnosis: "Dengue",
			Tests: []kb.TestSpec{
				{TestName: "Dengue NS1 Antigen", Reason: "Detect early Dengue infection", Cost: 1200, Importance: kb.ImportanceHigh},
			},
		},
	})
	if err != nil {
		t.Fatalf("kb.New failed: %v", err)
	}
	return k
}

// createTestBundle writes a valid bundle into dir and returns its path
func createTestBundle(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "model.db")
	if _, err := Write(path, testModel(t), testKB(t), Metadata{Samples: 3, Accuracy: 0.9}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return path
}

func TestWriteAndOpen(t *testing.T) {
	path := createTestBundle(t, t.TempDir())

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if bundle.KB.Len() != 2 {
		t.Errorf("Expected 2 diagnoses, got %d", bundle.KB.Len())
	}
	tests := bundle.KB.Lookup("Viral Fever")
	if len(tests) != 2 || tests[0].TestName != "Complete Blood Count (CBC)" || tests[1].TestName != "Urine Routine" {
		t.Errorf("Unexpected Viral Fever tests: %+v", tests)
	}
	if !bundle.Model.IsTrained() {
		t.Error("Expected loaded model to be trained")
	}
	label, err := bundle.Model.Predict("increased thirst")
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if label != "Diabetes Type 2" {
		t.Errorf("Expected 'Diabetes Type 2', got '%s'", label)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	path := createTestBundle(t, t.TempDir())

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	meta := bundle.Metadata
	if meta.Format != FormatName {
		t.Errorf("Expected format '%s', got '%s'", FormatName, meta.Format)
	}
	if meta.Version != FormatVersion {
		t.Errorf("Expected version '%s', got '%s'", FormatVersion, meta.Version)
	}
	if meta.BuildID == "" || meta.Created == "" {
		t.Errorf("Expected build id and created timestamp, got %+v", meta)
	}
	if meta.Samples != 3 {
		t.Errorf("Expected samples 3, got %d", meta.Samples)
	}
	if meta.Accuracy != 0.9 {
		t.Errorf("Expected accuracy 0.9, got %f", meta.Accuracy)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := createTestBundle(t, dir)

	if _, err := Write(path, testModel(t), testKB(t), Metadata{}); err != nil {
		t.Fatalf("Second Write failed: %v", err)
	}
	if _, err := Open(path); err != nil {
		t.Fatalf("Open after rewrite failed: %v", err)
	}
}

func TestOpenNoPath(t *testing.T) {
	_, err := Open("")
	if !errors.Is(err, ErrNoArtifact) {
		t.Errorf("Expected ErrNoArtifact, got %v", err)
	}
}

func TestOpenNonExistent(t *testing.T) {
	_, err := Open("/nonexistent/path/model.db")
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if loadErr.Stage != "open" {
		t.Errorf("Expected stage 'open', got '%s'", loadErr.Stage)
	}
}

func TestOpenNotSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.db")
	os.WriteFile(path, []byte("definitely not sqlite"), 0644)

	if _, err := Open(path); err == nil {
		t.Error("Expected error for non-SQLite file")
	}
}

func TestOpenMissingTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.db")

	// Create a SQLite DB without the model table
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to create test DB: %v", err)
	}
	db.Exec("CREATE TABLE metadata (name TEXT, value TEXT)")
	db.Exec("CREATE TABLE disease_mapping (diagnosis TEXT)")
	db.Close()

	_, err = Open(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected LoadError, got %v", err)
	}
	if loadErr.Stage != "schema" {
		t.Errorf("Expected stage 'schema', got '%s'", loadErr.Stage)
	}
}

func TestOpenCorruptModel(t *testing.T) {
	path := createTestBundle(t, t.TempDir())

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	if _, err := db.Exec("UPDATE model SET data = CAST('garbage bytes here' AS BLOB) WHERE name = 'classifier'"); err != nil {
		t.Fatalf("Failed to corrupt model: %v", err)
	}
	db.Close()

	_, err = Open(path)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Stage != "model" {
		t.Errorf("Expected model stage LoadError, got %v", err)
	}
}

func TestOpenInvalidMapping(t *testing.T) {
	statements := []string{
		"UPDATE disease_mapping SET importance = 'Urgent' WHERE position = 0",
		"UPDATE disease_mapping SET cost = -5 WHERE position = 0",
		"UPDATE disease_mapping SET test_name = '' WHERE position = 0",
	}

	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			path := createTestBundle(t, t.TempDir())

			db, err := sql.Open("sqlite3", path)
			if err != nil {
				t.Fatalf("Failed to open test DB: %v", err)
			}
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("Failed to execute: %s: %v", stmt, err)
			}
			db.Close()

			_, err = Open(path)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) || loadErr.Stage != "disease_mapping" {
				t.Errorf("Expected disease_mapping stage LoadError, got %v", err)
			}
		})
	}
}

func TestOpenWrongFormat(t *testing.T) {
	path := createTestBundle(t, t.TempDir())

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	db.Exec("UPDATE metadata SET value = 'mbtiles' WHERE name = 'format'")
	db.Close()

	if _, err := Open(path); err == nil {
		t.Error("Expected error for wrong bundle format")
	}
}

func TestWriteAndOpenEscapedPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs#2")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "model?v=1.db")

	if _, err := Write(path, testModel(t), testKB(t), Metadata{Samples: 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected bundle at %s: %v", path, err)
	}

	bundle, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if bundle.Metadata.Samples != 3 {
		t.Errorf("Expected 3 samples, got %d", bundle.Metadata.Samples)
	}
}

func TestOpenBadMetadataNumbers(t *testing.T) {
	statements := []string{
		"UPDATE metadata SET value = 'abc' WHERE name = 'samples'",
		"UPDATE metadata SET value = 'high' WHERE name = 'accuracy'",
	}

	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			path := createTestBundle(t, t.TempDir())

			db, err := sql.Open("sqlite3", path)
			if err != nil {
				t.Fatalf("Failed to open test DB: %v", err)
			}
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("Failed to execute: %s: %v", stmt, err)
			}
			db.Close()

			_, err = Open(path)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) || loadErr.Stage != "metadata" {
				t.Errorf("Expected metadata stage LoadError, got %v", err)
			}
		})
	}
}

func TestWriteRejectsUntrainedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.db")
	model := classifier.NewSymptomModel(classifier.DefaultSymptomModelConfig())

	_, err := Write(path, model, testKB(t), Metadata{})
	if !errors.Is(err, classifier.ErrNotTrained) {
		t.Errorf("Expected ErrNotTrained, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("Expected no bundle to be written")
	}
}
