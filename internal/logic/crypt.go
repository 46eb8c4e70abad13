package logic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/fileutil"
	"github.com/idelchi/meshmark/internal/transit"
)

const (
	ageSuffix  = ".age"
	sealSuffix = ".sealed"
)

// transform writes fn(input) to outPath atomically.
func transform(cfg *config.Config, filename, outPath string, fn func(io.Reader, io.Writer) error) (size int64, err error) {
	tc, err := fileutil.NewTempContext(filename, outPath)
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	inFile, err := os.Open(filepath.Clean(filename))
	if err != nil {
		return 0, fmt.Errorf("opening input file: %w", err)
	}
	defer inFile.Close()

	if err = fn(inFile, tc.TmpFile); err != nil {
		return 0, err
	}

	if err = tc.Commit(); err != nil {
		return 0, err
	}

	size, err = fileutil.FinalizeOutput(outPath, cfg.PreserveTimestamps, tc.SrcInfo.ModTime())
	if err != nil {
		return 0, fmt.Errorf("finalizing output: %w", err)
	}

	return size, nil
}

// stripSuffix removes suffix from filename, or appends ".out" when it is missing.
func stripSuffix(filename, suffix string) string {
	if trimmed, ok := strings.CutSuffix(filename, suffix); ok && trimmed != "" {
		return trimmed
	}

	return filename + ".out"
}

func runTransform(ctx context.Context, cfg *config.Config, verb string, outPath func(string) string,
	fn func(io.Reader, io.Writer) error,
) error {
	return runBatch(ctx, cfg, verb, func(ctx context.Context, file string) result {
		if err := ctx.Err(); err != nil {
			return result{err: err}
		}

		out := outPath(file)

		size, err := transform(cfg, file, out, fn)
		if err != nil {
			return result{err: err}
		}

		return result{output: out, outputSize: size}
	})
}

// RunEncrypt encrypts every resolved file to the configured age recipients.
func RunEncrypt(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Key.Recipients) == 0 {
		return fmt.Errorf("at least one --recipient is required")
	}

	return runTransform(ctx, cfg, "encrypting",
		func(file string) string { return file + ageSuffix },
		func(r io.Reader, w io.Writer) error {
			plaintext, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			ciphertext, err := transit.Encrypt(plaintext, cfg.Key.Recipients...)
			if err != nil {
				return err
			}

			_, err = w.Write(ciphertext)

			return err
		})
}

// RunDecrypt decrypts every resolved file with the configured age identity.
func RunDecrypt(ctx context.Context, cfg *config.Config) error {
	identity, err := cfg.Identity()
	if err != nil {
		return err
	}

	return runTransform(ctx, cfg, "decrypting",
		func(file string) string { return stripSuffix(file, ageSuffix) },
		func(r io.Reader, w io.Writer) error {
			ciphertext, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			plaintext, err := transit.Decrypt(ciphertext, identity)
			if err != nil {
				return err
			}

			_, err = w.Write(plaintext)

			return err
		})
}

func sharedKey(cfg *config.Config) ([]byte, error) {
	hexKey, err := cfg.SharedKey()
	if err != nil {
		return nil, err
	}

	return transit.ParseSharedKey(hexKey)
}

// RunSeal seals every resolved file under the shared key.
func RunSeal(ctx context.Context, cfg *config.Config) error {
	key, err := sharedKey(cfg)
	if err != nil {
		return err
	}

	return runTransform(ctx, cfg, "sealing",
		func(file string) string { return file + sealSuffix },
		func(r io.Reader, w io.Writer) error { return transit.Seal(r, w, key) })
}

// RunOpen verifies and opens every resolved envelope under the shared key.
func RunOpen(ctx context.Context, cfg *config.Config) error {
	key, err := sharedKey(cfg)
	if err != nil {
		return err
	}

	return runTransform(ctx, cfg, "opening",
		func(file string) string { return stripSuffix(file, sealSuffix) },
		func(r io.Reader, w io.Writer) error { return transit.Open(r, w, key) })
}

// RunKeygen prints a new shared key, or with age set a new age keypair.
// When output is set the secret goes to that file and only the public part is printed.
func RunKeygen(age bool, output string) error {
	var secret, public string

	if age {
		kp, err := transit.GenerateKeypair()
		if err != nil {
			return err
		}

		secret = fmt.Sprintf("# public key: %s\n%s\n", kp.PublicKey, kp.PrivateKey)
		public = kp.PublicKey
	} else {
		key, err := transit.GenerateSharedKey()
		if err != nil {
			return err
		}

		secret = key + "\n"
	}

	if output == "" {
		fmt.Print(secret) //nolint:forbidigo

		return nil
	}

	file, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(secret); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	if public != "" {
		fmt.Println(public) //nolint:forbidigo
	}

	return file.Close()
}
