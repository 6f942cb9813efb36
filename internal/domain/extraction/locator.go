package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultThreshold is the minimum score a line must exceed to qualify.
const DefaultThreshold = 80

// ErrEmptyLabel is reported when a lookup is asked for a blank label.
var ErrEmptyLabel = errors.New("empty label")

// Status classifies the outcome of a field lookup.
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
	StatusInvalid
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusInvalid:
		return "invalid"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of locating one label in a document.
type Result struct {
	Status Status
	Token  string // numeral token as it appeared in the document
	Line   int    // index into the normalized lines, -1 when nothing matched
	Score  int
	Err    error // set for StatusInvalid
}

// Locator finds the first line that approximately matches a label and
// pulls the first numeral-like token out of it.
type Locator struct {
	threshold int
	scorer    Scorer
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithScorer replaces the default PartialRatio scorer.
func WithScorer(scorer Scorer) LocatorOption {
	return func(l *Locator) {
		if scorer != nil {
			l.scorer = scorer
		}
	}
}

// NewLocator creates a locator. A line qualifies when its score is strictly
// greater than threshold.
func NewLocator(threshold int, opts ...LocatorOption) *Locator {
	l := &Locator{
		threshold: threshold,
		scorer:    PartialRatio,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Threshold returns the configured qualifying threshold.
func (l *Locator) Threshold() int {
	return l.threshold
}

// Locate walks lines in document order and returns the numeral from the
// first qualifying line that has one. A later line never overrides an
// earlier match, even when it scores higher.
func (l *Locator) Locate(label string, lines []string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusInvalid, Line: -1, Err: fmt.Errorf("locate %q: %v", label, r)}
		}
	}()

	needle := strings.ToLower(strings.TrimSpace(label))
	if needle == "" {
		return Result{Status: StatusInvalid, Line: -1, Err: ErrEmptyLabel}
	}

	for i, line := range lines {
		score := l.scorer(needle, strings.ToLower(line))
		if score <= l.threshold {
			continue
		}
		if token, ok := FirstNumeral(line); ok {
			return Result{Status: StatusFound, Token: token, Line: i, Score: score}
		}
	}

	return Result{Status: StatusNotFound, Line: -1}
}

// FirstNumeral returns the first whitespace-delimited token of line that is
// numeral-like.
func FirstNumeral(line string) (string, bool) {
	for _, token := range strings.Fields(line) {
		if IsNumeral(token) {
			return token, true
		}
	}
	return "", false
}

// IsNumeral reports whether token consists only of digits once grouping
// and decimal-point characters are removed.
func IsNumeral(token string) bool {
	digits := 0
	for _, r := range token {
		switch {
		case r == ',' || r == '.':
		case r >= '0' && r <= '9':
			digits++
		default:
			return false
		}
	}
	return digits > 0
}
