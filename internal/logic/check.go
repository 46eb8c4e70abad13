package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/idelchi/meshmark/internal/config"
	"github.com/idelchi/meshmark/internal/filter"
	"github.com/idelchi/meshmark/internal/fingerprint"
	"github.com/idelchi/meshmark/internal/mesh"
	"github.com/idelchi/meshmark/internal/permcodec"
	"github.com/idelchi/meshmark/pkg/pathmatch"
)

// RunCheck is a preflight for embed: every include/exclude pattern must
// match at least one file, and every selected mesh must parse, have a
// usable canonical order and carry a full fingerprint.
func RunCheck(ctx context.Context, cfg *config.Config) error {
	includes, excludes, err := loadPatterns(cfg)
	if err != nil {
		return err
	}

	var failures int

	if len(includes) > 0 || len(excludes) > 0 {
		candidates, err := collectFiles(cfg.Files)
		if err != nil {
			return err
		}

		failures += checkPatterns("include", includes, candidates, cfg.Quiet)
		failures += checkPatterns("exclude", excludes, candidates, cfg.Quiet)
	}

	if _, err := resolveFiles(cfg); err != nil {
		return fmt.Errorf("resolving files: %w", err)
	}

	for _, file := range cfg.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !checkMesh(file, cfg.Quiet) {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}

	return nil
}

// checkMesh reports whether file can be watermarked.
func checkMesh(file string, quiet bool) bool {
	model, err := mesh.ParseFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mesh: %s: %v\n", file, err)

		return false
	}

	if _, err := model.Ref(); err != nil {
		fmt.Fprintf(os.Stderr, "mesh: %s: %v\n", file, err)

		return false
	}

	guaranteed := permcodec.GuaranteedCapacity(model.Len())
	if guaranteed < fingerprint.Bits {
		fmt.Fprintf(os.Stderr, "mesh: %s: %d facets carry %d bits for sure, a fingerprint needs %d (ERROR)\n",
			file, model.Len(), guaranteed, fingerprint.Bits)

		return false
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "mesh: %s: %d facets, capacity %d bits", file, model.Len(), permcodec.Capacity(model.Len()))

		if ties := model.Ties(); ties > 0 {
			fmt.Fprintf(os.Stderr, ", %d identical facet(s)", ties)
		}

		fmt.Fprintln(os.Stderr)
	}

	return true
}

// loadPatterns merges CLI and file-based include/exclude patterns.
func loadPatterns(cfg *config.Config) (includes, excludes []string, err error) {
	includes = append(includes, cfg.Include...)
	excludes = append(excludes, cfg.Exclude...)

	if cfg.IncludeFrom != "" {
		patterns, err := filter.LoadPatterns(cfg.IncludeFrom)
		if err != nil {
			return nil, nil, fmt.Errorf("loading include patterns: %w", err)
		}

		includes = append(includes, patterns...)
	}

	if cfg.ExcludeFrom != "" {
		patterns, err := filter.LoadPatterns(cfg.ExcludeFrom)
		if err != nil {
			return nil, nil, fmt.Errorf("loading exclude patterns: %w", err)
		}

		excludes = append(excludes, patterns...)
	}

	for i, p := range includes {
		includes[i] = strings.TrimPrefix(p, "./")
	}

	for i, p := range excludes {
		excludes[i] = strings.TrimPrefix(p, "./")
	}

	return includes, excludes, nil
}

// collectFiles lists every visible file the arguments name or contain, as
// slash-separated paths.
func collectFiles(args []string) ([]string, error) {
	files, _, err := filter.Resolve(args, filter.Selection{})
	if err != nil {
		return nil, err
	}

	for i, file := range files {
		files[i] = filepath.ToSlash(file)
	}

	return files, nil
}

// checkPatterns tests each pattern individually against candidates.
// Returns the number of patterns that matched zero files.
func checkPatterns(kind string, patterns, candidates []string, quiet bool) int {
	var failures int

	for _, pattern := range patterns {
		matcher, err := pathmatch.NewMatcher([]string{pattern})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s: invalid pattern: %v\n", kind, pattern, err)

			failures++

			continue
		}

		count := len(matcher.Select(candidates))

		switch {
		case count == 0:
			fmt.Fprintf(os.Stderr, "%s: %s: 0 files (ERROR)\n", kind, pattern)

			failures++
		case !quiet:
			fmt.Fprintf(os.Stderr, "%s: %s: %d files\n", kind, pattern, count)
		}
	}

	return failures
}
