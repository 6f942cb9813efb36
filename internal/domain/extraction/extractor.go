// Package extraction turns payslip text into flat records: it normalizes
// document text, locates labelled amounts, and detects the pay period.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Strategy names accepted by New.
const (
	StrategyFuzzy   = "fuzzy"
	StrategyPattern = "pattern"
)

var (
	// ErrExtractionFailed marks a record whose document could not be scanned.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrUnknownStrategy is returned by New for an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown extraction strategy")
)

// Extractor turns one document into a flat record. It never panics and
// never returns an error: failures are reported on the record itself.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) Record
}

// New builds the extractor registered under strategy.
func New(strategy string, schema Schema, threshold int, logger *slog.Logger) (Extractor, error) {
	if threshold < 0 || threshold > 100 {
		return nil, &ConfigError{Err: ErrBadThreshold, Detail: fmt.Sprintf("got %d", threshold)}
	}

	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyFuzzy:
		return NewFuzzyExtractor(schema, NewLocator(threshold), logger), nil
	case StrategyPattern:
		return NewPatternExtractor(schema, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

type lookupFunc func(field FieldSpec, lines []string) Result

// engine runs a lookup over every schema field in order.
type engine struct {
	name   string
	schema Schema
	lookup lookupFunc
	logger *slog.Logger
}

func newEngine(name string, schema Schema, lookup lookupFunc, logger *slog.Logger) *engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{name: name, schema: schema, lookup: lookup, logger: logger}
}

// NewFuzzyExtractor matches labels approximately with locator.
func NewFuzzyExtractor(schema Schema, locator *Locator, logger *slog.Logger) Extractor {
	return newEngine(StrategyFuzzy, schema, func(f FieldSpec, lines []string) Result {
		return locator.Locate(f.Label, lines)
	}, logger)
}

// NewPatternExtractor matches each label as a word sequence at the start of
// a line, tolerant of spacing and punctuation, then takes the first numeral
// after it.
func NewPatternExtractor(schema Schema, logger *slog.Logger) (Extractor, error) {
	patterns := make(map[string]*regexp.Regexp, schema.Len())
	for _, f := range schema.Fields() {
		re, err := labelPattern(f.Label)
		if err != nil {
			return nil, &ConfigError{Key: f.Key, Err: ErrInvalidField, Detail: err.Error()}
		}
		patterns[f.Key] = re
	}

	return newEngine(StrategyPattern, schema, func(f FieldSpec, lines []string) Result {
		re := patterns[f.Key]
		for i, line := range lines {
			loc := re.FindStringIndex(line)
			if loc == nil {
				continue
			}
			if token, ok := FirstNumeral(line[loc[1]:]); ok {
				return Result{Status: StatusFound, Token: token, Line: i, Score: 100}
			}
		}
		return Result{Status: StatusNotFound, Line: -1}
	}, logger), nil
}

func labelPattern(label string) (*regexp.Regexp, error) {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, fmt.Errorf("label %q has no words", label)
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	// Labels must open the line; leading bullets and punctuation are allowed.
	const sep = `[^\p{L}\p{N}]*`
	return regexp.Compile(`(?i)^` + sep + strings.Join(words, sep) + `(?:[^\p{L}\p{N}]|$)`)
}

func (e *engine) Name() string {
	return e.name
}

func (e *engine) Extract(ctx context.Context, doc Document) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			rec = e.fail(doc, fmt.Errorf("%w: %v", ErrExtractionFailed, r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return e.fail(doc, fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}

	lines := Normalize(doc.Text)
	out := newRecord(e.schema, doc, 0)

	for i, f := range e.schema.fields {
		if err := ctx.Err(); err != nil {
			return e.fail(doc, fmt.Errorf("%w: %w", ErrExtractionFailed, err))
		}

		res := e.lookup(f, lines)
		if res.Status == StatusFound {
			out.values[i] = Value{Status: StatusFound, Raw: res.Token, Line: res.Line, Score: res.Score}
			continue
		}

		status := StatusNotFound
		if res.Status == StatusInvalid {
			status = StatusInvalid
			e.logger.Warn("field lookup invalid",
				slog.String("document", doc.ID),
				slog.String("key", f.Key),
				slog.Any("error", res.Err),
			)
		}
		// Defaults stand in for anything not found.
		out.values[i] = Value{Status: status, Raw: f.Default.String(), Line: -1}
		if f.Required {
			out.missing = append(out.missing, f.Key)
		}
	}

	if p, ok := DetectPeriod(lines); ok {
		out.Period = &p
	}

	if out.Incomplete() && out.Salient() {
		e.logger.Warn("required fields missing",
			slog.String("document", doc.ID),
			slog.Any("keys", out.missing),
		)
	}

	return *out
}

func (e *engine) fail(doc Document, err error) Record {
	e.logger.Error("document extraction failed",
		slog.String("document", doc.ID),
		slog.String("name", doc.Name),
		slog.String("strategy", e.name),
		slog.Any("error", err),
	)
	return FailedRecord(e.schema, doc, 0, err)
}

// ExtractAll extracts every document and returns records in input order.
// With workers > 1 documents are extracted concurrently.
func ExtractAll(ctx context.Context, ex Extractor, docs []Document, workers int) []Record {
	records := make([]Record, len(docs))
	if workers > len(docs) {
		workers = len(docs)
	}

	if workers <= 1 {
		for i, doc := range docs {
			rec := ex.Extract(ctx, doc)
			rec.Index = i
			records[i] = rec
		}
		return records
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec := ex.Extract(ctx, docs[i])
				rec.Index = i
				records[i] = rec
			}
		}()
	}
	for i := range docs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return records
}
