// Package config holds the runtime configuration shared by all commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"

	"github.com/idelchi/gogen/pkg/validator"
)

// Key selects the key material for the crypto commands.
type Key struct {
	// String is a hex shared key for seal/open.
	String string `mapstructure:"key"      label:"--key"      validate:"exclusive=File"`
	// File holds a hex shared key for seal/open.
	File string `mapstructure:"key-file" label:"--key-file"`
	// Recipients are age public keys for encrypt.
	Recipients []string `mapstructure:"recipient" label:"--recipient" validate:"dive,startswith=age1"`
	// Identity is a file holding an age private key for decrypt.
	Identity string `mapstructure:"identity" label:"--identity"`
}

// Config holds the application's configuration.
type Config struct {
	// Show prints the configuration and exits.
	Show bool
	// Parallel bounds the number of files processed at once.
	Parallel int `label:"--parallel" validate:"min=1"`
	// Quiet suppresses non-error output.
	Quiet bool
	// Stats prints a summary after processing.
	Stats bool
	// Dry lists what would be processed without touching anything.
	Dry bool
	// LogLevel sets the diagnostic log level.
	LogLevel string `label:"--log-level" mapstructure:"log-level" validate:"oneof=debug info warn error"`
	// ConfigFile is an optional TOML file with defaults for any flag.
	ConfigFile string `mapstructure:"config"`

	// Uploader identifies the recipient a copy is issued to.
	Uploader string `label:"--uploader" validate:"required_if=Command embed,required_if=Command watch"`
	// Appendix is extra data mixed into the fingerprint, such as an order number.
	Appendix string
	// Base is the radix fingerprints are printed in.
	Base int `label:"--base" validate:"omitempty,oneof=2 10 16"`
	// Digest selects the fingerprint hash.
	Digest string `label:"--digest" validate:"omitempty,oneof=md5 blake3"`
	// Suffix is inserted before the extension of marked files.
	Suffix string `label:"--suffix" validate:"required_if=Command embed,required_if=Command watch"`
	// Output overrides the output path when a single file is embedded.
	Output string
	// PreserveTimestamps copies the input modification time to the output.
	PreserveTimestamps bool `mapstructure:"preserve-timestamps"`
	// Delete removes the input after successful processing.
	Delete bool

	// Ledger is the SQLite database recording issued fingerprints.
	Ledger string
	// NoLedger skips recording.
	NoLedger bool `mapstructure:"no-ledger"`
	// Limit caps the number of ledger entries listed.
	Limit int `validate:"min=0"`

	// Include and Exclude filter files found in directories.
	Include     []string
	Exclude     []string
	IncludeFrom string `mapstructure:"include-from"`
	ExcludeFrom string `mapstructure:"exclude-from"`

	// Debounce is how long a watched file must stay unchanged before it is marked.
	Debounce time.Duration

	Key Key `mapstructure:",squash"`

	// Listen is the address the transfer server binds.
	Listen string `label:"--listen" validate:"required_if=Command serve,omitempty,hostname_port"`
	// Target is the transfer server address for send and fetch.
	Target string `label:"--target" validate:"required_if=Command send,required_if=Command fetch,omitempty,hostname_port"`
	// Inbox is the directory the server stores parcels in, or fetch writes to.
	Inbox string
	// Timeout bounds each transfer RPC; zero means no limit.
	Timeout time.Duration
	// MaxMsgBytes bounds transfer message sizes; zero keeps the gRPC default.
	MaxMsgBytes int `mapstructure:"max-msg-bytes" validate:"min=0"`

	// Command is the running subcommand, set by the CLI.
	Command string `mapstructure:"-"`

	// Files are the positional arguments.
	Files []string
}

// Validate validates the configuration against the struct tags.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := registerExclusive(validate); err != nil {
		return err
	}

	if err := validate.Validator().Struct(c); err != nil {
		var invalid playground.ValidationErrors
		if errors.As(err, &invalid) {
			return describe(invalid)
		}

		return fmt.Errorf("validating configuration: %w", err)
	}

	return nil
}

// SharedKey returns the hex shared key from --key or --key-file.
func (c *Config) SharedKey() (string, error) {
	switch {
	case c.Key.String != "":
		return c.Key.String, nil
	case c.Key.File != "":
		data, err := os.ReadFile(c.Key.File)
		if err != nil {
			return "", fmt.Errorf("reading key file: %w", err)
		}

		return strings.TrimSpace(string(data)), nil
	default:
		return "", errors.New("one of --key or --key-file is required")
	}
}

// Identity returns the age private key read from --identity.
func (c *Config) Identity() (string, error) {
	if c.Key.Identity == "" {
		return "", errors.New("--identity is required")
	}

	data, err := os.ReadFile(c.Key.Identity)
	if err != nil {
		return "", fmt.Errorf("reading identity file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line, nil
		}
	}

	return "", fmt.Errorf("identity file %q holds no key", c.Key.Identity)
}
