package logic

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/fileutil"
	"github.com/idelchi/meshmark/internal/fingerprint"
	"github.com/idelchi/meshmark/internal/ledger"
	"github.com/idelchi/meshmark/internal/watermark"
)

func newEngine(cfg *config.Config) *watermark.Engine {
	return watermark.New(watermark.Options{
		Algorithm:          fingerprint.Algorithm(cfg.Digest),
		PreserveTimestamps: cfg.PreserveTimestamps,
	})
}

// openLedger opens the configured ledger, or returns nil when recording is disabled.
func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	if cfg.NoLedger || cfg.Ledger == "" {
		return nil, nil //nolint:nilnil // no ledger is a valid configuration
	}

	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return l, nil
}

// embedOne marks file for cfg.Uploader and records the issue in l when set.
func embedOne(ctx context.Context, cfg *config.Config, engine *watermark.Engine, l *ledger.Ledger, file string) result {
	outPath := fileutil.OutputPath(file, cfg.Suffix)
	if cfg.Output != "" {
		outPath = cfg.Output
	}

	res, err := engine.Embed(ctx, file, cfg.Uploader, cfg.Appendix, outPath, cfg.Base)
	if err != nil {
		return result{err: err}
	}

	if l != nil {
		_, err := l.Record(ctx, ledger.Entry{
			Fingerprint: res.Fingerprint,
			Algorithm:   fingerprint.Algorithm(cfg.Digest),
			Uploader:    cfg.Uploader,
			Appendix:    cfg.Appendix,
			Source:      file,
			Output:      outPath,
			Facets:      res.Facets,
		})
		if err != nil {
			return result{output: outPath, err: fmt.Errorf("%q was written, but recording it failed: %w", outPath, err)}
		}
	}

	return result{output: outPath, outputSize: res.Size, note: res.Text}
}

// RunEmbed watermarks every resolved mesh for cfg.Uploader.
func RunEmbed(ctx context.Context, cfg *config.Config) error {
	if cfg.Output != "" {
		if len(cfg.Files) != 1 {
			return errors.New("--output needs exactly one input file")
		}

		if info, err := os.Stat(cfg.Files[0]); err == nil && info.IsDir() {
			return fmt.Errorf("--output needs a file, %q is a directory", cfg.Files[0])
		}
	}

	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	if l != nil {
		defer l.Close()
	}

	engine := newEngine(cfg)

	return runBatch(ctx, cfg, "embedding", func(ctx context.Context, file string) result {
		return embedOne(ctx, cfg, engine, l, file)
	})
}

// RunExtract prints the fingerprint carried by every resolved mesh.
// Fingerprints go to stdout even with --quiet.
func RunExtract(ctx context.Context, cfg *config.Config) error {
	engine := newEngine(cfg)

	return runBatch(ctx, cfg, "extracting", func(ctx context.Context, file string) result {
		res, err := engine.Extract(ctx, file, cfg.Base)
		if err != nil {
			return result{err: err}
		}

		if cfg.Quiet {
			fmt.Println(res.Text) //nolint:forbidigo
		}

		return result{note: res.Text}
	})
}

// RunTrace extracts the fingerprint of every resolved mesh and looks up
// who it was issued to.
func RunTrace(ctx context.Context, cfg *config.Config) error {
	if cfg.Ledger == "" {
		return errors.New("--ledger is required")
	}

	if _, err := os.Stat(cfg.Ledger); err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	engine := newEngine(cfg)

	return runBatch(ctx, cfg, "tracing", func(ctx context.Context, file string) result {
		res, err := engine.Extract(ctx, file, cfg.Base)
		if err != nil {
			return result{err: err}
		}

		entries, err := l.Lookup(ctx, res.Fingerprint)
		if err != nil {
			return result{err: err}
		}

		note := res.Text
		for _, e := range entries {
			note += fmt.Sprintf("; issued to %q on %s from %q", e.Uploader, e.CreatedAt.Format("2006-01-02 15:04"), e.Source)
			if e.Appendix != "" {
				note += fmt.Sprintf(" [%s]", e.Appendix)
			}
		}

		return result{note: note}
	})
}

// RunLedgerList prints the most recent ledger entries.
func RunLedgerList(ctx context.Context, cfg *config.Config) error {
	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	entries, err := l.List(ctx, cfg.Limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s  %s  %-16s  %s -> %s\n", //nolint:forbidigo
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Fingerprint.MustFormat(cfg.Base), e.Uploader, e.Source, e.Output)
	}

	return nil
}
