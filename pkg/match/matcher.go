// Package match filters folder entries by glob patterns on their names.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/s3compat/pkg/provider"
)

// Matcher evaluates include and exclude patterns against entry names.
//
// An entry matches when it matches at least one include pattern (or there are
// none) and no exclude pattern. Folder names are matched without their
// trailing delimiter.
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes   []string
	excludes   []string
	skipHidden bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are doublestar patterns; an empty list matches every name.
	Includes []string

	// Excludes are doublestar patterns; a name matching any is rejected.
	Excludes []string

	// SkipHidden rejects names starting with '.'.
	SkipHidden bool
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New validates every pattern and returns a Matcher.
func New(cfg Config) (*Matcher, error) {
	for _, set := range [][]string{cfg.Includes, cfg.Excludes} {
		for _, raw := range set {
			if !doublestar.ValidatePattern(raw) {
				return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
			}
		}
	}
	return &Matcher{
		includes:   append([]string(nil), cfg.Includes...),
		excludes:   append([]string(nil), cfg.Excludes...),
		skipHidden: cfg.SkipHidden,
	}, nil
}

// Match reports whether name passes the filter.
func (m *Matcher) Match(name string) bool {
	name = strings.TrimSuffix(name, provider.Delimiter)
	if m.skipHidden && IsHidden(name) {
		return false
	}

	matched := len(m.includes) == 0
	for _, inc := range m.includes {
		if matchPattern(inc, name) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, name) {
			return false
		}
	}
	return true
}

// Filter returns the entries whose names match, preserving order.
func (m *Matcher) Filter(entries []provider.Metadata) []provider.Metadata {
	kept := make([]provider.Metadata, 0, len(entries))
	for _, e := range entries {
		if m.Match(e.Name()) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Empty reports whether the matcher accepts every name.
func (m *Matcher) Empty() bool {
	return len(m.includes) == 0 && len(m.excludes) == 0 && !m.skipHidden
}

// IsHidden reports whether name starts with a dot.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// matchPattern matches a name against a validated doublestar pattern.
func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}
