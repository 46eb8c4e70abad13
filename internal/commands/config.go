package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/idelchi/meshmark/internal/config"
)

const (
	defaultDebounce = 500 * time.Millisecond
	defaultTimeout  = 30 * time.Second
)

// NewConfigCommand groups the configuration file subcommands.
func NewConfigCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the built-in defaults to a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := target(args)

			if err := config.WriteDefault(path, force); err != nil {
				return err
			}

			if !cfg.Quiet {
				fmt.Printf("Wrote %q\n", path) //nolint:forbidigo
			}

			return nil
		},
	}

	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := target(args)

			if _, err := config.Check(path); err != nil {
				return err
			}

			if !cfg.Quiet {
				fmt.Printf("%q is valid\n", path) //nolint:forbidigo
			}

			return nil
		},
	}

	cmd.AddCommand(initCmd, checkCmd)

	return cmd
}

func target(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return config.DefaultPath()
}
