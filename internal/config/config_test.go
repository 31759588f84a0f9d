package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kartoza/lab-test-optimizer/internal/engine"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	ConfigureEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "model", cfg.Engine.Mode)
	assert.Equal(t, 2.86, cfg.Engine.SavingsMultiplier)
	assert.Equal(t, 0, cfg.Engine.CacheSize)
	assert.False(t, cfg.Fallback.Dedupe)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labopt.yaml")
	content := `
server:
  port: 9090
artifact:
  path: /srv/model.db
engine:
  mode: auto
  cache_size: 128
fallback:
  dedupe: true
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/model.db", cfg.Artifact.Path)
	assert.Equal(t, 128, cfg.Engine.CacheSize)
	assert.True(t, cfg.Fallback.Dedupe)

	opts := cfg.EngineOptions()
	assert.Equal(t, engine.ModeAuto, opts.Mode)
	assert.True(t, opts.DedupeFallback)
	assert.Equal(t, 2.86, opts.SavingsMultiplier)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LABOPT_ENGINE_MODE", "rules")
	t.Setenv("LABOPT_SERVER_PORT", "7000")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "rules", cfg.Engine.Mode)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Engine.Mode = "magic" }},
		{"multiplier below one", func(c *Config) { c.Engine.SavingsMultiplier = 0.5 }},
		{"negative cache", func(c *Config) { c.Engine.CacheSize = -1 }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	assert.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}
