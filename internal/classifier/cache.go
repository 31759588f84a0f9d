package classifier

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cachedPrediction struct {
	label string
	proba map[string]float64
}

// Cached memoises predictions of an inner classifier in a bounded LRU.
// Results are identical to the inner classifier's; only latency changes.
type Cached struct {
	inner Classifier
	cache *lru.Cache[string, cachedPrediction]
}

// NewCached wraps inner with an LRU cache holding up to size texts
func NewCached(inner Classifier, size int) (*Cached, error) {
	cache, err := lru.New[string, cachedPrediction](size)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) lookup(text string) (cachedPrediction, error) {
	if p, ok := c.cache.Get(text); ok {
		return p, nil
	}

	label, err := c.inner.Predict(text)
	if err != nil {
		return cachedPrediction{}, err
	}
	proba, err := c.inner.PredictProba(text)
	if err != nil {
		return cachedPrediction{}, err
	}

	p := cachedPrediction{label: label, proba: proba}
	c.cache.Add(text, p)
	return p, nil
}

// Predict implements Classifier
func (c *Cached) Predict(text string) (string, error) {
	p, err := c.lookup(text)
	if err != nil {
		return "", err
	}
	return p.label, nil
}

// PredictProba implements Classifier. The returned map is a private copy.
func (c *Cached) PredictProba(text string) (map[string]float64, error) {
	p, err := c.lookup(text)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(p.proba))
	for k, v := range p.proba {
		out[k] = v
	}
	return out, nil
}

// Len returns the number of cached texts
func (c *Cached) Len() int {
	return c.cache.Len()
}
