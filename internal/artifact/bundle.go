// Package artifact reads and writes the trained model bundle: a single
// SQLite file holding the classifier and its disease-to-test mapping.
package artifact

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kartoza/lab-test-optimizer/internal/classifier"
	"github.com/kartoza/lab-test-optimizer/internal/kb"
	_ "github.com/mattn/go-sqlite3"
)

// FormatName identifies bundles written by this package
const FormatName = "labopt-bundle"

// FormatVersion is bumped whenever the table layout changes
const FormatVersion = "1"

// ErrNoArtifact is returned when no artifact path is configured
var ErrNoArtifact = errors.New("no artifact configured")

// requiredTables must all exist for a file to be a valid bundle
var requiredTables = []string{"metadata", "model", "disease_mapping"}

// LoadError describes why a bundle could not be loaded
type LoadError struct {
	Path  string
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load artifact %q (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Metadata holds the descriptive rows of a bundle
type Metadata struct {
	Format   string  `json:"format"`
	Version  string  `json:"version"`
	BuildID  string  `json:"build_id"`
	Created  string  `json:"created"`
	Samples  int     `json:"samples"`
	Accuracy float64 `json:"accuracy"`
}

// Bundle is a fully loaded artifact
type Bundle struct {
	Model    *classifier.SymptomModel
	KB       *kb.KnowledgeBase
	Metadata Metadata
}

// Open loads a bundle from disk. The file is opened read-only and closed
// before returning; everything is held in memory afterwards.
func Open(path string) (*Bundle, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Stage: "open", Err: ErrNoArtifact}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Path: path, Stage: "open", Err: err}
	}

	db, err := sql.Open("sqlite3", fileDSN(path, "ro"))
	if err != nil {
		return nil, &LoadError{Path: path, Stage: "open", Err: err}
	}
	defer db.Close()

	// Verify it's a bundle before reading anything
	for _, table := range requiredTables {
		var count int
		err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
		if err != nil {
			return nil, &LoadError{Path: path, Stage: "schema", Err: err}
		}
		if count == 0 {
			return nil, &LoadError{Path: path, Stage: "schema", Err: fmt.Errorf("missing table %q", table)}
		}
	}

	meta, err := readMetadata(db)
	if err != nil {
		return nil, &LoadError{Path: path, Stage: "metadata", Err: err}
	}
	if meta.Format != FormatName {
		return nil, &LoadError{Path: path, Stage: "metadata", Err: fmt.Errorf("unexpected format %q", meta.Format)}
	}

	model, err := readModel(db)
	if err != nil {
		return nil, &LoadError{Path: path, Stage: "model", Err: err}
	}

	knowledge, err := readDiseaseMapping(db)
	if err != nil {
		return nil, &LoadError{Path: path, Stage: "disease_mapping", Err: err}
	}

	return &Bundle{Model: model, KB: knowledge, Metadata: meta}, nil
}

// fileDSN builds a file: URI so the mode reaches SQLite. The path is
// escaped so '?' and '#' in a file name do not end it early.
func fileDSN(path, mode string) string {
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: path}).EscapedPath(), RawQuery: "mode=" + mode}
	return u.String()
}

func readMetadata(db *sql.DB) (Metadata, error) {
	var meta Metadata

	rows, err := db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return meta, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return meta, err
		}

		switch key {
		case "format":
			meta.Format = value
		case "version":
			meta.Version = value
		case "build_id":
			meta.BuildID = value
		case "created":
			meta.Created = value
		case "samples":
			if meta.Samples, err = strconv.Atoi(value); err != nil {
				return meta, fmt.Errorf("metadata samples %q: %w", value, err)
			}
		case "accuracy":
			if meta.Accuracy, err = strconv.ParseFloat(value, 64); err != nil {
				return meta, fmt.Errorf("metadata accuracy %q: %w", value, err)
			}
		}
	}
	return meta, rows.Err()
}

func readModel(db *sql.DB) (*classifier.SymptomModel, error) {
	var data []byte
	err := db.QueryRow("SELECT data FROM model WHERE name = 'classifier'").Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("no classifier row")
	}
	if err != nil {
		return nil, err
	}

	model := classifier.NewSymptomModel(classifier.DefaultSymptomModelConfig())
	if err := model.Decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return model, nil
}

func readDiseaseMapping(db *sql.DB) (*kb.KnowledgeBase, error) {
	rows, err := db.Query(
		"SELECT diagnosis, test_name, reason, cost, importance FROM disease_mapping ORDER BY diagnosis, position",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []kb.Entry
	for rows.Next() {
		var diagnosis, importance string
		var test kb.TestSpec
		if err := rows.Scan(&diagnosis, &test.TestName, &test.Reason, &test.Cost, &importance); err != nil {
			return nil, err
		}
		test.Importance, err = kb.ParseImportance(importance)
		if err != nil {
			return nil, fmt.Errorf("diagnosis %q test %q: %w", diagnosis, test.TestName, err)
		}

		if n := len(entries); n == 0 || entries[n-1].Diagnosis != diagnosis {
			entries = append(entries, kb.Entry{Diagnosis: diagnosis})
		}
		last := &entries[len(entries)-1]
		last.Tests = append(last.Tests, test)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return kb.New(entries)
}

// Write creates a new bundle at path, replacing any existing file.
// BuildID, Created, Format and Version are filled in when empty.
func Write(path string, model *classifier.SymptomModel, knowledge *kb.KnowledgeBase, meta Metadata) (Metadata, error) {
	if model == nil || !model.IsTrained() {
		return meta, fmt.Errorf("write artifact: %w", classifier.ErrNotTrained)
	}
	if knowledge == nil {
		return meta, errors.New("write artifact: no knowledge base")
	}

	var blob bytes.Buffer
	if err := model.Encode(&blob); err != nil {
		return meta, fmt.Errorf("encode model: %w", err)
	}

	if meta.Format == "" {
		meta.Format = FormatName
	}
	if meta.Version == "" {
		meta.Version = FormatVersion
	}
	if meta.BuildID == "" {
		meta.BuildID = uuid.New().String()
	}
	if meta.Created == "" {
		meta.Created = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return meta, fmt.Errorf("remove existing artifact: %w", err)
	}

	db, err := sql.Open("sqlite3", fileDSN(path, "rwc"))
	if err != nil {
		return meta, fmt.Errorf("create artifact: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return meta, err
	}
	defer tx.Rollback()

	statements := []string{
		`CREATE TABLE metadata (name TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE model (name TEXT PRIMARY KEY, data BLOB NOT NULL)`,
		`CREATE TABLE disease_mapping (
			diagnosis  TEXT NOT NULL,
			position   INTEGER NOT NULL,
			test_name  TEXT NOT NULL,
			reason     TEXT NOT NULL,
			cost       REAL NOT NULL,
			importance TEXT NOT NULL,
			PRIMARY KEY (diagnosis, position)
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return meta, fmt.Errorf("create schema: %w", err)
		}
	}

	metaRows := map[string]string{
		"format":   meta.Format,
		"version":  meta.Version,
		"build_id": meta.BuildID,
		"created":  meta.Created,
		"samples":  strconv.Itoa(meta.Samples),
		"accuracy": strconv.FormatFloat(meta.Accuracy, 'f', -1, 64),
	}
	for name, value := range metaRows {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", name, value); err != nil {
			return meta, fmt.Errorf("write metadata: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO model (name, data) VALUES ('classifier', ?)", blob.Bytes()); err != nil {
		return meta, fmt.Errorf("write model: %w", err)
	}

	for _, entry := range knowledge.Entries() {
		for i, t := range entry.Tests {
			_, err := tx.Exec(
				"INSERT INTO disease_mapping (diagnosis, position, test_name, reason, cost, importance) VALUES (?, ?, ?, ?, ?, ?)",
				entry.Diagnosis, i, t.TestName, t.Reason, t.Cost, string(t.Importance),
			)
			if err != nil {
				return meta, fmt.Errorf("write disease mapping: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return meta, fmt.Errorf("commit artifact: %w", err)
	}
	return meta, nil
}
