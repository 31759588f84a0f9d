// Package cmd wires configuration, logging and the engine into the
// labopt command line.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kartoza/lab-test-optimizer/internal/config"
	"github.com/kartoza/lab-test-optimizer/internal/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// app is the state shared by every subcommand of one invocation
type app struct {
	version string
	cfgFile string
	v       *viper.Viper
	cfg     config.Config
	logger  *slog.Logger
}

// NewRootCommand builds the labopt command tree
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, v: viper.New()}
	config.SetDefaults(a.v)

	cmd := &cobra.Command{
		Use:   "labopt",
		Short: "Lab test optimizer - symptom driven lab test recommendations",
		Long: `labopt recommends a priced, explained set of laboratory tests for a
list of patient symptoms.

It serves the recommendation API, trains the symptom classifier from a
labelled dataset, and packages the classifier with its disease to test
mapping into a single artifact file.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./labopt.yaml)")
	flags.String("artifact", "", "path to the model artifact")
	flags.String("mode", "", "engine mode: model, rules or auto")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")

	a.bindFlags(flags, map[string]string{
		"artifact.path": "artifact",
		"engine.mode":   "mode",
		"log.level":     "log-level",
		"log.format":    "log-format",
	})

	cmd.AddCommand(a.newServeCommand())
	cmd.AddCommand(a.newAnalyzeCommand())
	cmd.AddCommand(a.newGenerateCommand())
	cmd.AddCommand(a.newTrainCommand())
	cmd.AddCommand(a.newInspectCommand())
	cmd.AddCommand(a.newVersionCommand())

	return cmd
}

// bindFlags binds each config key to the named flag in fs. A missing flag
// is a wiring bug in the command tree, so it panics at construction.
func (a *app) bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag --%s to %s: %v", name, key, err))
		}
	}
}

// Execute runs the root command
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}

// initConfig reads the config file and environment, then builds the logger
func (a *app) initConfig(cmd *cobra.Command, args []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("labopt")
	}
	config.ConfigureEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	cfg.Version = a.version
	a.cfg = cfg

	a.logger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	return nil
}

// newEngine builds an engine for the configured mode. Eager loading opens
// the artifact immediately; otherwise it is opened on first use. Rules
// mode never touches the artifact.
func (a *app) newEngine(eager bool) *engine.Engine {
	opts := a.cfg.EngineOptions()
	opts.Logger = a.logger

	var source engine.ContextSource
	switch {
	case opts.Mode == engine.ModeRules:
	case eager:
		source = engine.LoadContext(a.cfg.Artifact.Path, a.cfg.Engine.CacheSize, a.logger)
	default:
		source = engine.NewArtifactLoader(a.cfg.Artifact.Path, a.cfg.Engine.CacheSize, a.logger)
	}
	return engine.New(source, opts)
}
