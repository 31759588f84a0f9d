package classifier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClassifier struct {
	calls int
	err   error
}

func (c *countingClassifier) Predict(string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "Dengue", nil
}

func (c *countingClassifier) PredictProba(string) (map[string]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return map[string]float64{"Dengue": 0.7, "Malaria": 0.3}, nil
}

func TestCachedMemoises(t *testing.T) {
	inner := &countingClassifier{}
	c, err := NewCached(inner, 8)
	require.NoError(t, err)

	label, err := c.Predict("high fever")
	require.NoError(t, err)
	assert.Equal(t, "Dengue", label)

	proba, err := c.PredictProba("high fever")
	require.NoError(t, err)
	assert.Equal(t, 0.7, proba["Dengue"])

	assert.Equal(t, 2, inner.calls, "second call should be served from cache")
	assert.Equal(t, 1, c.Len())
}

func TestCachedReturnsPrivateMaps(t *testing.T) {
	c, err := NewCached(&countingClassifier{}, 8)
	require.NoError(t, err)

	first, err := c.PredictProba("rash")
	require.NoError(t, err)
	first["Dengue"] = 0

	second, err := c.PredictProba("rash")
	require.NoError(t, err)
	assert.Equal(t, 0.7, second["Dengue"])
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	c, err := NewCached(&countingClassifier{err: boom}, 8)
	require.NoError(t, err)

	_, err = c.Predict("rash")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestNewCachedInvalidSize(t *testing.T) {
	_, err := NewCached(&countingClassifier{}, 0)
	assert.Error(t, err)
}
