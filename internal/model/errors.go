package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrStoreUnavailable = errors.New("rule store unavailable")
	ErrUnsupported      = errors.New("operation not supported without persistent store")
	ErrNoRuleset        = errors.New("no ruleset loaded")
)

// PatternError reports a pattern that does not compile. It matches
// ErrInvalidPattern under errors.Is.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid pattern %q", e.Pattern)
	}
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

func (e *PatternError) Is(target error) bool { return target == ErrInvalidPattern }

// UnavailableError wraps a persistence failure. It matches
// ErrStoreUnavailable under errors.Is.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("rule store unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// CompilePattern compiles a rule pattern the way the engine runs it:
// case-insensitive, Go RE2 syntax.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, &PatternError{Pattern: pattern, Err: errors.New("pattern is empty")}
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}
