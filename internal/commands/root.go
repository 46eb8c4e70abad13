package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idelchi/gogen/pkg/cobraext"
	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/watermark"
)

// NewRootCommand creates the root command with common configuration.
// It sets up environment variable binding and flag handling.
func NewRootCommand(cfg *config.Config, version string) *cobra.Command {
	defaults := config.Defaults()

	root := cobraext.NewDefaultRootCommand(version)

	root.Use = "meshmark [flags] command [flags]"
	root.Short = "Watermark STL meshes through facet order"
	root.Long = `Hides a 128-bit fingerprint of a mesh, its recipient and an optional appendix
in the order of the mesh's facets. Geometry is left untouched.
Marked files can be traced back through a local ledger, encrypted for a
recipient and exchanged through a small transfer server.`
	// main reports the error once.
	root.SilenceErrors = true
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return load(cmd, cfg)
	}

	root.PersistentFlags().String("config", "", "Configuration file (default "+config.DefaultPath()+")")
	root.PersistentFlags().BoolP("show", "s", false, "Show the configuration and exit")
	root.PersistentFlags().IntP("parallel", "j", defaults.Parallel, "Number of parallel workers, defaults to number of CPUs")
	root.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().Bool("stats", false, "Print a summary after processing")
	root.PersistentFlags().BoolP("dry", "n", false, "List the files that would be processed")
	root.PersistentFlags().String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	root.PersistentFlags().IntP("base", "b", defaults.Base, "Base fingerprints are printed in: 2, 10 or 16")

	root.AddCommand(
		NewEmbedCommand(cfg),
		NewExtractCommand(cfg),
		NewTraceCommand(cfg),
		NewCheckCommand(cfg),
		NewLedgerCommand(cfg),
		NewWatchCommand(cfg),
		NewKeygenCommand(cfg),
		NewEncryptCommand(cfg),
		NewDecryptCommand(cfg),
		NewSealCommand(cfg),
		NewOpenCommand(cfg),
		NewServeCommand(cfg),
		NewSendCommand(cfg),
		NewFetchCommand(cfg),
		NewConfigCommand(cfg),
	)

	return root
}

// load merges the configuration file, MESHMARK_* variables and flags into
// cfg and installs the logger. Explicit flags win over the environment,
// which wins over the file.
func load(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()

	v.SetEnvPrefix("MESHMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	path, explicit := v.GetString("config"), true
	if path == "" {
		path, explicit = config.DefaultPath(), false
	}

	// The config subcommands inspect the file themselves.
	if cmd.HasParent() && cmd.Parent().Name() == "config" {
		explicit = false
		path = ""
	}

	switch _, err := os.Stat(path); {
	case path == "":
	case err == nil:
		if _, err := config.Check(path); err != nil {
			return err
		}

		v.SetConfigFile(path)
		v.SetConfigType("toml")

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	cfg.ConfigFile = path
	cfg.Command = cmd.Name()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", cfg.LogLevel)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	watermark.SetLogger(logger)

	return nil
}

// validate finishes the configuration once positional args are known.
func validate(cfg *config.Config, args []string) error {
	files(cfg, args)

	if cfg.Show {
		return nil
	}

	return cobraext.Validate(cfg, cfg)
}
