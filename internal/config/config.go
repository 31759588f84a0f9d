package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kartoza/lab-test-optimizer/internal/engine"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. LABOPT_SERVER_PORT
const EnvPrefix = "LABOPT"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Log      LogConfig      `mapstructure:"log"`
	Version  string         `mapstructure:"-"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type ArtifactConfig struct {
	Path string `mapstructure:"path"`
}

type EngineConfig struct {
	Mode              string  `mapstructure:"mode"`
	SavingsMultiplier float64 `mapstructure:"savings_multiplier"`
	// CacheSize bounds the prediction cache; 0 disables it
	CacheSize int `mapstructure:"cache_size"`
}

type FallbackConfig struct {
	Dedupe bool `mapstructure:"dedupe"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
		},
		Engine: EngineConfig{
			Mode:              string(engine.ModeModel),
			SavingsMultiplier: engine.DefaultSavingsMultiplier,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("artifact.path", d.Artifact.Path)
	v.SetDefault("engine.mode", d.Engine.Mode)
	v.SetDefault("engine.savings_multiplier", d.Engine.SavingsMultiplier)
	v.SetDefault("engine.cache_size", d.Engine.CacheSize)
	v.SetDefault("fallback.dedupe", d.Fallback.Dedupe)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// ConfigureEnv enables LABOPT_ prefixed environment overrides
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := engine.ParseMode(c.Engine.Mode); err != nil {
		errs = append(errs, fmt.Errorf("engine.mode: %w", err))
	}
	if c.Engine.SavingsMultiplier < 1 {
		errs = append(errs, fmt.Errorf("engine.savings_multiplier must be at least 1, got %v", c.Engine.SavingsMultiplier))
	}
	if c.Engine.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("engine.cache_size must not be negative, got %d", c.Engine.CacheSize))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// EngineOptions translates the engine and fallback sections
func (c Config) EngineOptions() engine.Options {
	mode, _ := engine.ParseMode(c.Engine.Mode)
	return engine.Options{
		Mode:              mode,
		SavingsMultiplier: c.Engine.SavingsMultiplier,
		DedupeFallback:    c.Fallback.Dedupe,
	}
}
