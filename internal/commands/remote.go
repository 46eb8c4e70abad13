package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/logic"
)

// NewServeCommand creates a new cobra command for the serve subcommand.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:     "serve [flags]",
		Short:   "Run the transfer server",
		Args:    cobra.NoArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunServe(cmd.Context(), cfg)
		}),
	}

	cmd.Flags().String("listen", defaults.Listen, "Address to listen on")
	cmd.Flags().String("inbox", defaults.Inbox, "Directory received files are stored in")
	cmd.Flags().Int("max-msg-bytes", 0, "Largest accepted message, 0 for the gRPC default")

	return cmd
}

// NewSendCommand creates a new cobra command for the send subcommand.
func NewSendCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "send [flags] [paths/patterns...]",
		Aliases: []string{"push"},
		Short:   "Upload files to a transfer server and print their content ids",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunSend(cmd.Context(), cfg)
		}),
	}

	addClientFlags(cmd.Flags())
	addFilterFlags(cmd.Flags())

	return cmd
}

// NewFetchCommand creates a new cobra command for the fetch subcommand.
func NewFetchCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fetch [flags] ids...",
		Aliases: []string{"pull"},
		Short:   "Download files from a transfer server by content id",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunFetch(cmd.Context(), cfg)
		}),
	}

	addClientFlags(cmd.Flags())

	cmd.Flags().String("inbox", ".", "Directory fetched files are written to")

	return cmd
}

func addClientFlags(flags *pflag.FlagSet) {
	flags.String("target", config.Defaults().Target, "Transfer server address")
	flags.Duration("timeout", defaultTimeout, "Deadline for each request, 0 for none")
	flags.Int("max-msg-bytes", 0, "Largest message sent or received, 0 for the gRPC default")
}
