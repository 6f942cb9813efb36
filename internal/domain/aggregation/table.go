package aggregation

import (
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/pkg/money"
)

// Row is one output row. Amounts line up with Table.AmountColumns.
type Row struct {
	Source  string
	Amounts []decimal.Decimal
	Period  extraction.Period
}

// Label returns the row's period label, e.g. "October 2023".
func (r Row) Label() string {
	return r.Period.Label()
}

// Table is the finalized output: amount columns followed by one period
// column. Rows are in ingestion order.
type Table struct {
	AmountColumns []string
	PeriodColumn  string
	Rows          []Row
}

// Header returns the column headings.
func (t *Table) Header() []string {
	h := make([]string, 0, len(t.AmountColumns)+1)
	h = append(h, t.AmountColumns...)
	return append(h, t.PeriodColumn)
}

// Records returns the table as a string grid including the header row.
// Amounts are formatted with two decimal places.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Header())
	for _, r := range t.Rows {
		rec := make([]string, 0, len(r.Amounts)+1)
		for _, a := range r.Amounts {
			rec = append(rec, money.FormatAmount(a))
		}
		out = append(out, append(rec, r.Label()))
	}
	return out
}

// Column returns the index of key among the amount columns, or -1.
func (t *Table) Column(key string) int {
	for i, c := range t.AmountColumns {
		if c == key {
			return i
		}
	}
	return -1
}

// Amount returns the value of key in row i.
func (t *Table) Amount(i int, key string) (decimal.Decimal, bool) {
	c := t.Column(key)
	if c < 0 || i < 0 || i >= len(t.Rows) {
		return decimal.Zero, false
	}
	return t.Rows[i].Amounts[c], true
}

// Total sums key over all rows.
func (t *Table) Total(key string) decimal.Decimal {
	sum := decimal.Zero
	for i := range t.Rows {
		if v, ok := t.Amount(i, key); ok {
			sum = sum.Add(v)
		}
	}
	return sum
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}
