package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/logic"
)

func preRun(cfg *config.Config) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		return validate(cfg, args)
	}
}

func addMarkFlags(flags *pflag.FlagSet) {
	defaults := config.Defaults()

	flags.StringP("uploader", "u", defaults.Uploader, "Identifier of the recipient the copy is issued to")
	flags.StringP("appendix", "a", "", "Extra data mixed into the fingerprint, such as an order number")
	flags.String("digest", defaults.Digest, "Fingerprint hash: md5 or blake3")
	flags.String("suffix", defaults.Suffix, "Inserted before the extension of marked files")
	flags.Bool("preserve-timestamps", false, "Copy the input modification time to the output")
	flags.String("ledger", defaults.Ledger, "SQLite database recording issued fingerprints")
	flags.Bool("no-ledger", false, "Do not record issued fingerprints")
}

// NewEmbedCommand creates a new cobra command for the embed subcommand.
func NewEmbedCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "embed [flags] [paths/patterns...]",
		Aliases: []string{"mark"},
		Short:   "Hide a recipient fingerprint in the facet order of meshes",
		Example: `  meshmark embed -u alice -a order-42 gear.stl
  meshmark embed -u bob --suffix .bob parts/`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunEmbed(cmd.Context(), cfg)
		}),
	}

	addMarkFlags(cmd.Flags())
	addFilterFlags(cmd.Flags())

	cmd.Flags().StringP("output", "o", "", "Output path when marking a single file")
	cmd.Flags().BoolP("delete", "d", false, "Delete the original file after marking")

	return cmd
}

// NewExtractCommand creates a new cobra command for the extract subcommand.
func NewExtractCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "extract [flags] [paths/patterns...]",
		Aliases: []string{"x"},
		Short:   "Recover the fingerprint hidden in marked meshes",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunExtract(cmd.Context(), cfg)
		}),
	}

	cmd.Flags().String("suffix", config.Defaults().Suffix, "Suffix of marked files picked up in directories")
	addFilterFlags(cmd.Flags())

	return cmd
}

// NewTraceCommand creates a new cobra command for the trace subcommand.
func NewTraceCommand(cfg *config.Config) *cobra.Command {
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "trace [flags] [paths/patterns...]",
		Short: "Look up who a marked mesh was issued to",
		Long: `Extracts the fingerprint of each mesh and looks it up in the ledger
written by embed.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunTrace(cmd.Context(), cfg)
		}),
	}

	cmd.Flags().String("suffix", defaults.Suffix, "Suffix of marked files picked up in directories")
	cmd.Flags().String("ledger", defaults.Ledger, "SQLite database recording issued fingerprints")
	addFilterFlags(cmd.Flags())

	return cmd
}

// NewCheckCommand creates a new cobra command for the check subcommand.
func NewCheckCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check [flags] [paths/patterns...]",
		Short:   "Validate patterns and check that meshes can carry a fingerprint",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunCheck(cmd.Context(), cfg)
		}),
	}

	addFilterFlags(cmd.Flags())

	return cmd
}

// NewLedgerCommand groups the ledger subcommands.
func NewLedgerCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect issued fingerprints",
	}

	list := &cobra.Command{
		Use:     "list [flags]",
		Aliases: []string{"ls"},
		Short:   "List recorded fingerprints, newest first",
		Args:    cobra.NoArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunLedgerList(cmd.Context(), cfg)
		}),
	}

	list.Flags().String("ledger", config.Defaults().Ledger, "SQLite database recording issued fingerprints")
	list.Flags().IntP("limit", "l", 0, "Maximum number of entries, 0 for all")

	cmd.AddCommand(list)

	return cmd
}

// NewWatchCommand creates a new cobra command for the watch subcommand.
func NewWatchCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [flags] [dirs...]",
		Short: "Mark meshes as they are dropped into directories",
		Long: `Watches directories and marks every STL file written there once it has
stopped changing. Marked copies are written next to the originals.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunWatch(cmd.Context(), cfg)
		}),
	}

	addMarkFlags(cmd.Flags())

	cmd.Flags().Duration("debounce", defaultDebounce, "How long a file must stay unchanged before it is marked")

	return cmd
}
