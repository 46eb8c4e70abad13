package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/logic"
)

// NewKeygenCommand creates a new cobra command for the keygen subcommand.
func NewKeygenCommand(cfg *config.Config) *cobra.Command {
	var (
		age    bool
		output string
	)

	cmd := &cobra.Command{
		Use:     "keygen [flags]",
		Aliases: []string{"gen"},
		Short:   "Generate a shared seal key or an age keypair",
		Args:    cobra.NoArgs,
		RunE: run(cfg, func(_ *cobra.Command, _ []string) error {
			return logic.RunKeygen(age, output)
		}),
	}

	cmd.Flags().BoolVar(&age, "age", false, "Generate an age keypair instead of a shared key")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the secret to this file instead of stdout")

	return cmd
}

// NewEncryptCommand creates a new cobra command for the encrypt subcommand.
func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "encrypt [flags] [paths/patterns...]",
		Aliases: []string{"enc"},
		Short:   "Encrypt files for age recipients",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunEncrypt(cmd.Context(), cfg)
		}),
	}

	cmd.Flags().StringSliceP("recipient", "r", nil, "age public key to encrypt to, repeatable")
	cmd.Flags().BoolP("delete", "d", false, "Delete the original file after encryption")
	cmd.Flags().Bool("preserve-timestamps", false, "Copy the input modification time to the output")
	addFilterFlags(cmd.Flags())

	return cmd
}

// NewDecryptCommand creates a new cobra command for the decrypt subcommand.
func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decrypt [flags] [paths/patterns...]",
		Aliases: []string{"dec"},
		Short:   "Decrypt age files",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunDecrypt(cmd.Context(), cfg)
		}),
	}

	cmd.Flags().String("identity", "", "File holding the age private key")
	cmd.Flags().BoolP("delete", "d", false, "Delete the encrypted file after decryption")
	cmd.Flags().Bool("preserve-timestamps", false, "Copy the input modification time to the output")
	addFilterFlags(cmd.Flags())

	return cmd
}

func addKeyFlags(flags *pflag.FlagSet) {
	flags.StringP("key", "k", "", "Shared key (32 bytes, hex-encoded)")
	flags.StringP("key-file", "f", "", "Path to the file with the shared key (32 bytes, hex-encoded)")
	flags.BoolP("delete", "d", false, "Delete the input file after processing")
	flags.Bool("preserve-timestamps", false, "Copy the input modification time to the output")
	addFilterFlags(flags)
}

// NewSealCommand creates a new cobra command for the seal subcommand.
func NewSealCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal [flags] [paths/patterns...]",
		Short: "Encrypt files deterministically with a shared key",
		Long: `Seals files with a key shared between sender and receiver. Sealing is
deterministic: the same file and key always give the same output.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunSeal(cmd.Context(), cfg)
		}),
	}

	addKeyFlags(cmd.Flags())

	return cmd
}

// NewOpenCommand creates a new cobra command for the open subcommand.
func NewOpenCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "open [flags] [paths/patterns...]",
		Aliases: []string{"unseal"},
		Short:   "Decrypt sealed files",
		Args:    cobra.ArbitraryArgs,
		PreRunE: preRun(cfg),
		RunE: run(cfg, func(cmd *cobra.Command, _ []string) error {
			return logic.RunOpen(cmd.Context(), cfg)
		}),
	}

	addKeyFlags(cmd.Flags())

	return cmd
}
