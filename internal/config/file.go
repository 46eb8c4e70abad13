package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// File is the on-disk configuration. Keys match the long flag names, so any
// flag can be given a default here.
type File struct {
	Parallel int    `toml:"parallel"`
	LogLevel string `toml:"log-level"`

	Uploader string `toml:"uploader,omitempty"`
	Base     int    `toml:"base"`
	Digest   string `toml:"digest"`
	Suffix   string `toml:"suffix"`
	Ledger   string `toml:"ledger"`
	Debounce string `toml:"debounce"`

	Exclude []string `toml:"exclude,omitempty"`

	Listen string `toml:"listen"`
	Target string `toml:"target"`
	Inbox  string `toml:"inbox"`
}

// Dir returns the per-user configuration directory, falling back to the
// working directory when the platform reports none.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".meshmark"
	}

	return filepath.Join(dir, "meshmark")
}

// DefaultPath is where the configuration file is looked up when --config is not given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Defaults returns the built-in configuration.
func Defaults() File {
	return File{
		Parallel: runtime.NumCPU(),
		LogLevel: "warn",
		Base:     16,
		Digest:   "md5",
		Suffix:   ".marked",
		Ledger:   filepath.Join(Dir(), "ledger.db"),
		Debounce: "500ms",
		Listen:   "127.0.0.1:7207",
		Target:   "127.0.0.1:7207",
		Inbox:    filepath.Join(Dir(), "inbox"),
	}
}

// WriteDefault writes the built-in configuration to path as TOML.
// An existing file is kept unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%q already exists, pass --force to overwrite", path)
		}

		return fmt.Errorf("creating config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# meshmark configuration")
	fmt.Fprintln(file, "# Every key is a long flag name; flags and MESHMARK_* variables take precedence.")
	fmt.Fprintln(file)

	if err := toml.NewEncoder(file).Encode(Defaults()); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return file.Close()
}

// Check decodes the TOML file at path and rejects keys no flag knows about.
func Check(path string) (File, error) {
	var f File

	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return f, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		slices.Sort(keys)

		return f, fmt.Errorf("config file %q: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return f, nil
}
