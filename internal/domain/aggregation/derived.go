package aggregation

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
)

// DerivedColumn is an output column computed from other columns.
type DerivedColumn struct {
	Key     string
	Formula string // e.g. "Earnings - Deductions"
}

// DefaultDerived returns the derived columns of the built-in payslip layout.
func DefaultDerived() []DerivedColumn {
	return []DerivedColumn{
		{Key: "Total Salary", Formula: "Earnings - CommissionBonus - BonusWinners - Overtime - Medical"},
		{Key: "Total Bonus", Formula: "CommissionBonus + BonusWinners"},
		{Key: "Total After Deductions", Formula: "Earnings - Deductions"},
	}
}

type term struct {
	negative bool
	key      string          // empty for literals
	literal  decimal.Decimal // used when key is empty
}

type formula struct {
	column int // index into the plan's value slots
	key    string
	terms  []term
}

// parseFormula splits s into signed terms. A term is a column key, which may
// contain spaces, or a decimal literal.
func parseFormula(s string) ([]term, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty formula")
	}

	var (
		terms    []term
		negative bool
		start    int
	)
	flush := func(end int) error {
		text := strings.TrimSpace(s[start:end])
		if text == "" {
			return fmt.Errorf("missing operand at offset %d in %q", start, s)
		}
		t := term{negative: negative}
		if d, err := decimal.NewFromString(text); err == nil {
			t.literal = d
		} else {
			t.key = text
		}
		terms = append(terms, t)
		return nil
	}

	// A leading minus negates the first term.
	trimmed := strings.TrimLeft(s, " \t")
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		start = len(s) - len(trimmed) + 1
	}

	for i := start; i < len(s); i++ {
		if c := s[i]; c == '+' || c == '-' {
			if err := flush(i); err != nil {
				return nil, err
			}
			negative = c == '-'
			start = i + 1
		}
	}
	if err := flush(len(s)); err != nil {
		return nil, err
	}
	return terms, nil
}

// Plan is a validated, dependency-ordered set of derived columns over a
// schema. It is immutable and safe to share.
type Plan struct {
	schema   extraction.Schema
	derived  []DerivedColumn
	slots    map[string]int // column key -> value slot
	order    []formula      // evaluation order
	columns  []int          // visible output slots, in output order
	headings []string
}

// NewPlan parses and validates derived against schema. Every reference must
// resolve to a schema key or a derived column declared earlier, so columns
// are computed in declared order. Errors are *extraction.ConfigError.
func NewPlan(schema extraction.Schema, derived []DerivedColumn) (*Plan, error) {
	p := &Plan{
		schema:  schema,
		derived: append([]DerivedColumn(nil), derived...),
		slots:   make(map[string]int, schema.Len()+len(derived)),
	}

	for i, k := range schema.Keys() {
		p.slots[k] = i
	}

	formulas := make([]formula, len(derived))
	for i, d := range derived {
		key := strings.TrimSpace(d.Key)
		switch {
		case key == "":
			return nil, &extraction.ConfigError{Err: extraction.ErrInvalidField, Detail: fmt.Sprintf("derived column %d has no key", i)}
		case strings.ContainsAny(key, "+-"):
			return nil, &extraction.ConfigError{Key: key, Err: extraction.ErrInvalidField, Detail: "key may not contain '+' or '-'"}
		}
		if _, dup := p.slots[key]; dup {
			return nil, &extraction.ConfigError{Key: key, Err: extraction.ErrDuplicateKey}
		}

		terms, err := parseFormula(d.Formula)
		if err != nil {
			return nil, &extraction.ConfigError{Key: key, Err: extraction.ErrBadFormula, Detail: err.Error()}
		}

		p.slots[key] = schema.Len() + i
		formulas[i] = formula{column: schema.Len() + i, key: key, terms: terms}
	}

	for _, f := range formulas {
		for _, t := range f.terms {
			if t.key == "" {
				continue
			}
			if _, ok := p.slots[t.key]; !ok {
				detail := fmt.Sprintf("formula references %q", t.key)
				if guess := closestKey(t.key, p.slots); guess != "" {
					detail += fmt.Sprintf(", did you mean %q?", guess)
				}
				return nil, &extraction.ConfigError{Key: f.key, Err: extraction.ErrUnknownKey, Detail: detail}
			}
		}
	}

	if err := checkCycles(schema.Len(), formulas, p.slots); err != nil {
		return nil, err
	}

	for _, f := range formulas {
		for _, t := range f.terms {
			if slot := p.slots[t.key]; t.key != "" && slot >= f.column {
				return nil, &extraction.ConfigError{
					Key:    f.key,
					Err:    extraction.ErrForwardReference,
					Detail: fmt.Sprintf("%q is declared after %q", t.key, f.key),
				}
			}
		}
	}
	p.order = formulas

	for i, f := range schema.Fields() {
		if !f.Hidden {
			p.columns = append(p.columns, i)
			p.headings = append(p.headings, f.Key)
		}
	}
	for _, f := range formulas {
		p.columns = append(p.columns, f.column)
		p.headings = append(p.headings, f.key)
	}

	return p, nil
}

// closestKey returns the known key nearest to key by edit distance, or ""
// when nothing is within two edits.
func closestKey(key string, slots map[string]int) string {
	best, bestDist := "", 3
	for k := range slots {
		d := fuzzy.LevenshteinDistance(strings.ToLower(key), strings.ToLower(k))
		if d < bestDist || (d == bestDist && best != "" && k < best) {
			best, bestDist = k, d
		}
	}
	return best
}

// checkCycles reports derived columns that depend on each other, directly
// or through other derived columns (Kahn's algorithm).
func checkCycles(base int, formulas []formula, slots map[string]int) error {
	n := len(formulas)
	indegree := make([]int, n)
	dependents := make([][]int, n)

	for i, f := range formulas {
		seen := make(map[int]bool)
		for _, t := range f.terms {
			if t.key == "" {
				continue
			}
			slot := slots[t.key]
			if slot < base || seen[slot] {
				continue
			}
			seen[slot] = true
			dep := slot - base
			dependents[dep] = append(dependents[dep], i)
			indegree[i]++
		}
	}

	queue := make([]int, 0, n)
	for i := range formulas {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	done := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		done++
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if done == n {
		return nil
	}
	var stuck []string
	for i, d := range indegree {
		if d > 0 {
			stuck = append(stuck, formulas[i].key)
		}
	}
	return &extraction.ConfigError{
		Key:    stuck[0],
		Err:    extraction.ErrCycle,
		Detail: "involves " + strings.Join(stuck, ", "),
	}
}

// Schema returns the schema the plan was built for.
func (p *Plan) Schema() extraction.Schema {
	return p.schema
}

// Derived returns the derived columns in declared order.
func (p *Plan) Derived() []DerivedColumn {
	return append([]DerivedColumn(nil), p.derived...)
}

// Columns returns the output amount column keys: visible schema keys in
// schema order followed by derived keys in declared order.
func (p *Plan) Columns() []string {
	return append([]string(nil), p.headings...)
}

// EvaluationOrder returns derived keys in the order they are computed.
func (p *Plan) EvaluationOrder() []string {
	keys := make([]string, len(p.order))
	for i, f := range p.order {
		keys[i] = f.key
	}
	return keys
}

// evaluate fills the derived slots of values, which must have one slot per
// schema field followed by one per derived column.
func (p *Plan) evaluate(values []decimal.Decimal) {
	for _, f := range p.order {
		sum := decimal.Zero
		for _, t := range f.terms {
			v := t.literal
			if t.key != "" {
				v = values[p.slots[t.key]]
			}
			if t.negative {
				sum = sum.Sub(v)
			} else {
				sum = sum.Add(v)
			}
		}
		values[f.column] = sum
	}
}

func (p *Plan) width() int {
	return p.schema.Len() + len(p.derived)
}

// project picks the visible output columns out of a full value slice.
func (p *Plan) project(values []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(p.columns))
	for i, slot := range p.columns {
		out[i] = values[slot]
	}
	return out
}
