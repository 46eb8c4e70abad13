// Package pathmatch implements find -path matching semantics.
//
// Patterns follow fnmatch(3) without FNM_PATHNAME, so wildcards cross
// directory separators: "*.stl" selects "parts/gear.stl". A bracket
// expression may be negated with "!" or "^", and a backslash escapes the
// next character. With FoldCase, matching ignores case the way find -ipath
// does.
package pathmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var errUnclosedClass = errors.New("unclosed character class")

// Match reports whether path matches the pattern, case-sensitively.
func Match(pattern, path string) (bool, error) {
	re, err := compile(pattern, false)
	if err != nil {
		return false, err
	}

	return re.MatchString(path), nil
}

// Matcher pre-compiles patterns for reuse across many paths.
type Matcher struct {
	patterns []*regexp.Regexp
}

// Option configures a Matcher.
type Option func(*options)

type options struct {
	fold bool
}

// FoldCase makes the matcher ignore case.
func FoldCase() Option {
	return func(o *options) { o.fold = true }
}

// NewMatcher compiles the given patterns into a reusable matcher.
func NewMatcher(patterns []string, opts ...Option) (*Matcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	matcher := &Matcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}

	for _, p := range patterns {
		re, err := compile(p, o.fold)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}

		matcher.patterns = append(matcher.patterns, re)
	}

	return matcher, nil
}

// Len returns the number of compiled patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}

// MatchAny reports whether path matches any of the compiled patterns.
func (m *Matcher) MatchAny(path string) bool {
	for _, re := range m.patterns {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

// Select returns the paths matching any pattern, in their original order.
func (m *Matcher) Select(paths []string) []string {
	var out []string

	for _, path := range paths {
		if m.MatchAny(path) {
			out = append(out, path)
		}
	}

	return out
}

type cacheKey struct {
	pattern string
	fold    bool
}

var cache sync.Map //nolint:gochecknoglobals // compiled patterns are shared across matchers

func compile(pattern string, fold bool) (*regexp.Regexp, error) {
	key := cacheKey{pattern: pattern, fold: fold}

	if v, ok := cache.Load(key); ok {
		return v.(*regexp.Regexp), nil //nolint:forcetypeassert // only *regexp.Regexp is stored
	}

	expr, err := translate(pattern)
	if err != nil {
		return nil, err
	}

	// (?s) lets wildcards match a newline, as fnmatch does.
	flags := "(?s)"
	if fold {
		flags = "(?si)"
	}

	re, err := regexp.Compile(flags + expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}

	actual, _ := cache.LoadOrStore(key, re)

	return actual.(*regexp.Regexp), nil //nolint:forcetypeassert
}

// translate rewrites a glob into an anchored regular expression.
func translate(pattern string) (string, error) {
	var buf strings.Builder

	buf.WriteByte('^')

	for rest := pattern; rest != ""; {
		switch c := rest[0]; c {
		case '*':
			// Runs of stars are one wildcard.
			rest = strings.TrimLeft(rest, "*")

			buf.WriteString(".*")

		case '?':
			rest = rest[1:]

			buf.WriteByte('.')

		case '[':
			class, n, err := bracket(rest)
			if err != nil {
				return "", fmt.Errorf("%w in pattern %q", err, pattern)
			}

			rest = rest[n:]

			buf.WriteString(class)

		case '\\':
			if len(rest) < 2 {
				return "", fmt.Errorf("trailing backslash in pattern %q", pattern)
			}

			buf.WriteString(regexp.QuoteMeta(rest[1:2]))

			rest = rest[2:]

		default:
			buf.WriteString(regexp.QuoteMeta(rest[:1]))

			rest = rest[1:]
		}
	}

	buf.WriteByte('$')

	return buf.String(), nil
}

// bracket converts the bracket expression at the start of s into a regexp
// class and returns how many bytes of s it spans.
func bracket(s string) (string, int, error) {
	var buf strings.Builder

	buf.WriteByte('[')

	i := 1
	if i < len(s) && (s[i] == '!' || s[i] == '^') {
		buf.WriteByte('^')

		i++
	}

	// A leading ] is a literal member.
	if i < len(s) && s[i] == ']' {
		buf.WriteString(`\]`)

		i++
	}

	for ; i < len(s); i++ {
		switch c := s[i]; c {
		case ']':
			buf.WriteByte(']')

			return buf.String(), i + 1, nil
		case '\\', '[':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}

	return "", 0, errUnclosedClass
}
