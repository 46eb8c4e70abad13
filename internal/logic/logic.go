// Package logic implements the commands' batch processing: resolving input
// files, running a per-file operation on a bounded worker pool and reporting.
package logic

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/filter"
)

// result is the outcome of processing one file.
type result struct {
	input      string
	output     string
	outputSize int64
	// note is printed after the paths, such as the embedded fingerprint.
	note string
	err  error
}

// operation processes one input file.
type operation func(ctx context.Context, file string) result

// runBatch applies op to every file in cfg.Files on cfg.Parallel workers.
// Results are printed by a single goroutine as they complete.
//
//nolint:cyclop,gocognit // parallel processing pipeline with printer goroutine
func runBatch(ctx context.Context, cfg *config.Config, verb string, op operation) error {
	scanned, excluded, start, done, err := preamble(cfg)
	if done || err != nil {
		return err
	}

	results := make(chan result, len(cfg.Files))

	group := errgroup.Group{}
	group.SetLimit(cfg.Parallel)

	printed := make(chan struct{})

	var processed, errored int

	var totalSize int64

	go func() {
		defer close(printed)

		for res := range results {
			if res.err != nil {
				errored++

				fmt.Fprintf(os.Stderr, "Error processing %q: %v\n", res.input, res.err)

				continue
			}

			processed++

			totalSize += res.outputSize

			if !cfg.Quiet {
				printResult(res)
			}

			if cfg.Delete && res.output != "" && res.output != res.input {
				if err := os.Remove(res.input); err != nil {
					fmt.Fprintf(os.Stderr, "Error deleting %q: %v\n", res.input, err)
				} else if !cfg.Quiet {
					fmt.Printf("Deleted %q\n", res.input) //nolint:forbidigo
				}
			}
		}
	}()

	for _, file := range cfg.Files {
		group.Go(func() error {
			res := op(ctx, file)
			res.input = file
			results <- res

			return res.err
		})
	}

	err = group.Wait()

	close(results)

	<-printed

	if cfg.Stats {
		printStats(scanned, excluded, processed, errored, totalSize, time.Since(start))
	}

	if err != nil {
		return fmt.Errorf("%s files: %w", verb, err)
	}

	return nil
}

func printResult(res result) {
	switch {
	case res.output != "" && res.note != "":
		fmt.Printf("Processed %q -> %q (%s)\n", res.input, res.output, res.note) //nolint:forbidigo
	case res.output != "":
		fmt.Printf("Processed %q -> %q\n", res.input, res.output) //nolint:forbidigo
	default:
		fmt.Printf("Processed %q (%s)\n", res.input, res.note) //nolint:forbidigo
	}
}

// preamble resolves files and handles dry run. Returns done=true if dry run was executed.
func preamble(cfg *config.Config) (int, int, time.Time, bool, error) {
	start := time.Now()

	scanned, err := resolveFiles(cfg)
	if err != nil {
		return 0, 0, start, false, fmt.Errorf("resolving files: %w", err)
	}

	excluded := scanned - len(cfg.Files)

	if cfg.Dry {
		dryRun(cfg, scanned, excluded, start)

		return scanned, excluded, start, true, nil
	}

	return scanned, excluded, start, false, nil
}

// resolveFiles expands directories, applies include/exclude filtering and
// replaces cfg.Files with the result. Returns the number of files scanned.
func resolveFiles(cfg *config.Config) (int, error) {
	includes, excludes, err := loadPatterns(cfg)
	if err != nil {
		return 0, err
	}

	sel := filter.Selection{
		Includes: includes,
		Excludes: excludes,
		Restrict: len(cfg.Include) > 0 || cfg.IncludeFrom != "",
	}

	// Built-in includes ignore case, so "GEAR.STL" is picked up too.
	if defaults := defaultIncludes(cfg); !sel.Restrict && len(defaults) > 0 {
		sel.Includes = defaults
		sel.Restrict = true
		sel.FoldCase = true

		if cfg.Command == "embed" && cfg.Suffix != "" {
			sel.Excludes = append(sel.Excludes, "*"+cfg.Suffix+".stl")
		}
	}

	files, scanned, err := filter.Resolve(cfg.Files, sel)
	if err != nil {
		return scanned, fmt.Errorf("filtering files: %w", err)
	}

	cfg.Files = files

	return scanned, nil
}

// defaultIncludes picks the files a command handles when walking a
// directory without explicit --include patterns.
func defaultIncludes(cfg *config.Config) []string {
	switch cfg.Command {
	case "embed", "check":
		return []string{"*.stl"}
	case "extract", "trace":
		return []string{"*" + cfg.Suffix + ".stl"}
	case "decrypt":
		return []string{"*" + ageSuffix}
	case "open":
		return []string{"*" + sealSuffix}
	default:
		return nil
	}
}

// dryRun previews what would be processed without touching any file.
func dryRun(cfg *config.Config, scanned, excluded int, start time.Time) {
	var totalSize int64

	for _, file := range cfg.Files {
		if !cfg.Quiet {
			fmt.Printf("Would process %q\n", file) //nolint:forbidigo
		}

		if cfg.Stats {
			if info, err := os.Stat(file); err == nil {
				totalSize += info.Size()
			}
		}
	}

	if cfg.Stats {
		printStats(scanned, excluded, len(cfg.Files), 0, totalSize, time.Since(start))
	}
}

func printStats(scanned, excluded, processed, errored int, totalSize int64, duration time.Duration) {
	fmt.Fprintf(os.Stderr, "\nStats\n")
	fmt.Fprintf(os.Stderr, "  Scanned:   %d\n", scanned)
	fmt.Fprintf(os.Stderr, "  Excluded:  %d\n", excluded)
	fmt.Fprintf(os.Stderr, "  Processed: %d\n", processed)
	fmt.Fprintf(os.Stderr, "  Errors:    %d\n", errored)
	//nolint:gosec // totalSize is always non-negative (sum of file sizes)
	fmt.Fprintf(os.Stderr, "  Size:      %s\n", humanize.IBytes(uint64(max(0, totalSize))))
	fmt.Fprintf(os.Stderr, "  Duration:  %s\n", duration.Round(time.Millisecond))
}
