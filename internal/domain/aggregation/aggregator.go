// Package aggregation folds extracted payslip records into an ordered
// output table with derived columns and period labels.
package aggregation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/pkg/money"
)

// Period labelling modes.
const (
	// ModePositional labels row N with the anchor month plus N months.
	ModePositional = "positional"
	// ModeContent uses the period found in the document, falling back to
	// the positional label.
	ModeContent = "content"
)

// DefaultPeriodColumn is the heading of the period label column.
const DefaultPeriodColumn = "Month"

var (
	// ErrRecordFailed is returned by Add for records whose extraction failed.
	ErrRecordFailed = errors.New("record extraction failed")
	// ErrSchemaMismatch is returned by Add for records built from another schema.
	ErrSchemaMismatch = errors.New("record does not match schema")
	// ErrUnknownMode is returned by New for an unsupported labelling mode.
	ErrUnknownMode = errors.New("unknown period mode")
)

// Options configures period labelling.
type Options struct {
	Anchor       extraction.Period // period of the first row
	Mode         string            // ModePositional or ModeContent
	PeriodColumn string            // defaults to DefaultPeriodColumn
}

// DefaultAnchor is the period of the first row when none is configured.
func DefaultAnchor() extraction.Period {
	return extraction.NewPeriod(2023, 10)
}

type entry struct {
	source string
	period *extraction.Period
	values []decimal.Decimal // one slot per schema field
}

// Aggregator accumulates records in ingestion order. Add and Finalize may
// be called from different goroutines, but rows keep the order of Add calls.
type Aggregator struct {
	plan *Plan
	opts Options

	mu      sync.Mutex
	entries []entry
}

// New creates an aggregator over plan.
func New(plan *Plan, opts Options) (*Aggregator, error) {
	if plan == nil {
		return nil, errors.New("aggregation: nil plan")
	}

	opts.Mode = strings.ToLower(strings.TrimSpace(opts.Mode))
	switch opts.Mode {
	case "":
		opts.Mode = ModePositional
	case ModePositional, ModeContent:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	if opts.Anchor.IsZero() {
		opts.Anchor = DefaultAnchor()
	}
	if opts.PeriodColumn == "" {
		opts.PeriodColumn = DefaultPeriodColumn
	}

	return &Aggregator{plan: plan, opts: opts}, nil
}

// Add coerces rec's values to decimals and appends them. Values that were
// not found take their declared default; unparsable values become zero.
func (a *Aggregator) Add(rec extraction.Record) error {
	if rec.Failed() {
		return fmt.Errorf("%w: %s", ErrRecordFailed, rec.Source)
	}

	keys := rec.Keys()
	schemaKeys := a.plan.schema.Keys()
	if len(keys) != len(schemaKeys) {
		return fmt.Errorf("%w: %s has %d fields, want %d", ErrSchemaMismatch, rec.Source, len(keys), len(schemaKeys))
	}
	for i := range keys {
		if keys[i] != schemaKeys[i] {
			return fmt.Errorf("%w: %s field %d is %q, want %q", ErrSchemaMismatch, rec.Source, i, keys[i], schemaKeys[i])
		}
	}

	fields := a.plan.schema.Fields()
	values := make([]decimal.Decimal, len(fields))
	for i, v := range rec.Values() {
		if v.Status == extraction.StatusFound {
			values[i] = money.CoerceAmount(v.Raw)
		} else {
			values[i] = fields[i].Default
		}
	}

	var period *extraction.Period
	if rec.Period != nil {
		p := *rec.Period
		period = &p
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry{source: rec.Source, period: period, values: values})
	a.mu.Unlock()
	return nil
}

// Len returns the number of accumulated records.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Finalize computes derived columns and period labels for every accumulated
// record and returns a new table. It does not change the aggregator, so
// repeated calls return equal tables. With no records the table has a
// header and no rows.
func (a *Aggregator) Finalize() *Table {
	a.mu.Lock()
	entries := append([]entry(nil), a.entries...)
	a.mu.Unlock()

	t := &Table{
		AmountColumns: a.plan.Columns(),
		PeriodColumn:  a.opts.PeriodColumn,
		Rows:          make([]Row, 0, len(entries)),
	}

	for i, e := range entries {
		values := make([]decimal.Decimal, a.plan.width())
		copy(values, e.values)
		a.plan.evaluate(values)

		period := a.opts.Anchor.AddMonths(i)
		if a.opts.Mode == ModeContent && e.period != nil {
			period = *e.period
		}

		t.Rows = append(t.Rows, Row{
			Source:  e.source,
			Amounts: a.plan.project(values),
			Period:  period,
		})
	}
	return t
}
