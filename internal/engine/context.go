package engine

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/kartoza/lab-test-optimizer/internal/artifact"
	"github.com/kartoza/lab-test-optimizer/internal/classifier"
	"github.com/kartoza/lab-test-optimizer/internal/kb"
)

// ContextSource hands the engine its inference context
type ContextSource interface {
	Context() *InferenceContext
}

// InferenceContext is the immutable read state shared by all requests:
// the classifier and the knowledge base it was trained against. A context
// built from a failed load carries the error instead.
type InferenceContext struct {
	classifier classifier.Classifier
	kb         *kb.KnowledgeBase
	metadata   artifact.Metadata
	err        error
}

// NewInferenceContext builds a ready context from already loaded parts
func NewInferenceContext(c classifier.Classifier, k *kb.KnowledgeBase, meta artifact.Metadata) *InferenceContext {
	ictx := &InferenceContext{classifier: c, kb: k, metadata: meta}
	if c == nil || k == nil {
		ictx.err = errors.New("inference context requires a classifier and a knowledge base")
	}
	return ictx
}

// UnavailableContext builds a context that records why loading failed
func UnavailableContext(err error) *InferenceContext {
	if err == nil {
		err = artifact.ErrNoArtifact
	}
	return &InferenceContext{err: err}
}

// LoadContext opens the artifact at path. It never fails: load errors are
// logged and carried by the returned context. A positive cacheSize wraps
// the classifier in an LRU prediction cache.
func LoadContext(path string, cacheSize int, logger *slog.Logger) *InferenceContext {
	if logger == nil {
		logger = slog.Default()
	}

	bundle, err := artifact.Open(path)
	if err != nil {
		logger.Error("artifact unavailable", "path", path, "error", err)
		return UnavailableContext(err)
	}

	var c classifier.Classifier = bundle.Model
	if cacheSize > 0 {
		cached, err := classifier.NewCached(bundle.Model, cacheSize)
		if err != nil {
			logger.Warn("prediction cache disabled", "error", err)
		} else {
			c = cached
		}
	}

	logger.Info("artifact loaded",
		"path", path,
		"build_id", bundle.Metadata.BuildID,
		"diagnoses", bundle.KB.Len(),
		"labels", len(bundle.Model.Labels()),
	)
	return NewInferenceContext(c, bundle.KB, bundle.Metadata)
}

// Context implements ContextSource for an eagerly built context
func (c *InferenceContext) Context() *InferenceContext {
	return c
}

// Ready reports whether the context can serve model-backed queries
func (c *InferenceContext) Ready() bool {
	return c != nil && c.err == nil && c.classifier != nil && c.kb != nil
}

// Err returns the load failure, if any
func (c *InferenceContext) Err() error {
	if c == nil {
		return artifact.ErrNoArtifact
	}
	return c.err
}

// KnowledgeBase returns the loaded knowledge base (nil when unavailable)
func (c *InferenceContext) KnowledgeBase() *kb.KnowledgeBase {
	if c == nil {
		return nil
	}
	return c.kb
}

// Metadata returns the artifact metadata
func (c *InferenceContext) Metadata() artifact.Metadata {
	if c == nil {
		return artifact.Metadata{}
	}
	return c.metadata
}

// Loader builds an inference context on first use. Concurrent first
// callers block on a single load and share its result.
type Loader struct {
	load func() *InferenceContext
	once sync.Once
	ictx *InferenceContext
}

// NewLoader wraps an arbitrary load function
func NewLoader(load func() *InferenceContext) *Loader {
	return &Loader{load: load}
}

// NewArtifactLoader lazily loads the artifact at path
func NewArtifactLoader(path string, cacheSize int, logger *slog.Logger) *Loader {
	return NewLoader(func() *InferenceContext {
		return LoadContext(path, cacheSize, logger)
	})
}

// Context implements ContextSource
func (l *Loader) Context() *InferenceContext {
	l.once.Do(func() {
		l.ictx = l.load()
		if l.ictx == nil {
			l.ictx = UnavailableContext(nil)
		}
	})
	return l.ictx
}
