// Package commands provides the command-line interface for meshmark.
//
// It implements commands for:
//   - watermarking meshes and recovering their fingerprints
//   - tracing fingerprints back to recipients through the ledger
//   - encrypting, sealing and transferring marked files
//
// Flags, MESHMARK_* environment variables and the TOML configuration file
// are merged through viper into a single config.Config.
package commands

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/meshmark/internal/config"
)

// files resolves positional args into cfg.Files, defaulting to the working directory.
func files(cfg *config.Config, args []string) {
	if len(args) == 0 {
		cfg.Files = []string{"."}
	} else {
		cfg.Files = args
	}
}

// run wraps fn so that --show prints the merged configuration instead.
func run(cfg *config.Config, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cfg.Show {
			return show(cfg)
		}

		return fn(cmd, args)
	}
}

func show(cfg *config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}

	_, err = os.Stdout.Write(out)

	return err
}

// addFilterFlags registers the include/exclude flags shared by the batch commands.
func addFilterFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("include", "i", nil, "Glob patterns of files to include when walking directories")
	flags.StringSliceP("exclude", "e", nil, "Glob patterns of files to exclude")
	flags.String("include-from", "", "File with include patterns: one per line or a JSONC array")
	flags.String("exclude-from", "", "File with exclude patterns: one per line or a JSONC array")
}
