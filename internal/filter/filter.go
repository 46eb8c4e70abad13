// Package filter selects the input files of a batch from positional
// arguments, using find -path patterns for the files found in directories.
package filter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/idelchi/meshmark/pkg/pathmatch"
)

// ErrNoFiles is returned when the arguments select nothing.
var ErrNoFiles = errors.New("no files matched")

// Selection describes which files of a walked directory are picked.
type Selection struct {
	Includes []string
	Excludes []string
	// Restrict applies Includes even when it is empty, selecting nothing
	// from directories.
	Restrict bool
	// FoldCase matches patterns case-insensitively.
	FoldCase bool
}

// Filter selects files based on include/exclude patterns.
// Excludes always win.
type Filter struct {
	includes *pathmatch.Matcher
	excludes *pathmatch.Matcher
	restrict bool
}

// NewFilter compiles the patterns of sel into a reusable filter.
func NewFilter(sel Selection) (*Filter, error) {
	var opts []pathmatch.Option
	if sel.FoldCase {
		opts = append(opts, pathmatch.FoldCase())
	}

	inc, err := pathmatch.NewMatcher(normalizePatterns(sel.Includes), opts...)
	if err != nil {
		return nil, fmt.Errorf("compiling include patterns: %w", err)
	}

	exc, err := pathmatch.NewMatcher(normalizePatterns(sel.Excludes), opts...)
	if err != nil {
		return nil, fmt.Errorf("compiling exclude patterns: %w", err)
	}

	return &Filter{
		includes: inc,
		excludes: exc,
		restrict: sel.Restrict || len(sel.Includes) > 0,
	}, nil
}

// Match reports whether the slash-separated path is selected.
func (f *Filter) Match(path string) bool {
	if f.excludes.MatchAny(path) {
		return false
	}

	return !f.restrict || f.includes.MatchAny(path)
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = strings.TrimPrefix(p, "./")
	}

	return out
}

// Resolve expands args into files. Files named explicitly are taken as they
// are. Directories are walked, skipping hidden entries, and their files
// filtered through sel. Duplicates are dropped.
// Returns the selected files and the number of candidates scanned.
func Resolve(args []string, sel Selection) (files []string, scanned int, err error) {
	flt, err := NewFilter(sel)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	for _, arg := range args {
		if arg == "" {
			return nil, 0, errors.New("empty path argument")
		}

		arg = filepath.Clean(arg)

		info, err := os.Stat(arg)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %q: %w", arg, err)
		}

		if !info.IsDir() {
			scanned++

			add(arg)

			continue
		}

		walked, total, err := walkDir(arg, flt)
		if err != nil {
			return nil, 0, err
		}

		scanned += total

		for _, path := range walked {
			add(path)
		}
	}

	if len(files) == 0 {
		return nil, scanned, fmt.Errorf("%w in %v", ErrNoFiles, args)
	}

	return files, scanned, nil
}

// walkDir walks root recursively, returning regular files that pass the
// filter. Patterns see paths relative to the working directory when root
// is relative, for example "parts/gear.stl" for root ".".
func walkDir(root string, flt *Filter) (files []string, total int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Hidden entries include the temporary files of in-flight writes.
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		total++

		if flt.Match(filepath.ToSlash(path)) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walking %q: %w", root, err)
	}

	return files, total, nil
}
