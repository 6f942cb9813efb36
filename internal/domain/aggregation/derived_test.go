package aggregation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
)

func TestParseFormula(t *testing.T) {
	terms, err := parseFormula("Total Salary - Payroll Tax + 1.5")
	require.NoError(t, err)
	require.Len(t, terms, 3)

	assert.Equal(t, "Total Salary", terms[0].key)
	assert.False(t, terms[0].negative)
	assert.Equal(t, "Payroll Tax", terms[1].key)
	assert.True(t, terms[1].negative)
	assert.Empty(t, terms[2].key)
	assert.True(t, decimal.RequireFromString("1.5").Equal(terms[2].literal))

	terms, err = parseFormula(" -Deductions")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.True(t, terms[0].negative)

	for _, bad := range []string{"", "  ", "Earnings +", "Earnings - - Tax", "+"} {
		_, err := parseFormula(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewPlan_Default(t *testing.T) {
	plan, err := NewPlan(extraction.DefaultSchema(), DefaultDerived())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Earnings", "Overtime", "Deductions", "EOBI", "PF", "Tax", "Medical",
		"Total Salary", "Total Bonus", "Total After Deductions",
	}, plan.Columns())
	assert.Len(t, plan.Derived(), 3)
}

func TestNewPlan_ChainedColumns(t *testing.T) {
	schema := extraction.MustSchema(
		extraction.FieldSpec{Label: "Gross", Key: "Gross"},
		extraction.FieldSpec{Label: "Tax", Key: "Tax"},
	)
	plan, err := NewPlan(schema, []DerivedColumn{
		{Key: "Net", Formula: "Gross - Tax"},
		{Key: "Take Home", Formula: "Net - 100"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Net", "Take Home"}, plan.EvaluationOrder())
	assert.Equal(t, []string{"Gross", "Tax", "Net", "Take Home"}, plan.Columns())

	values := make([]decimal.Decimal, plan.width())
	values[0] = decimal.NewFromInt(1000)
	values[1] = decimal.NewFromInt(150)
	plan.evaluate(values)

	assert.True(t, decimal.NewFromInt(850).Equal(values[2]), values[2].String())
	assert.True(t, decimal.NewFromInt(750).Equal(values[3]), values[3].String())
}

func TestNewPlan_RejectsForwardReference(t *testing.T) {
	schema := extraction.MustSchema(
		extraction.FieldSpec{Label: "Gross", Key: "Gross"},
		extraction.FieldSpec{Label: "Tax", Key: "Tax"},
	)
	_, err := NewPlan(schema, []DerivedColumn{
		{Key: "Take Home", Formula: "Net - 100"},
		{Key: "Net", Formula: "Gross - Tax"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, extraction.ErrForwardReference)

	var cfgErr *extraction.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Take Home", cfgErr.Key)
	assert.Contains(t, cfgErr.Detail, `"Net"`)
}

func TestNewPlan_SuggestsClosestKey(t *testing.T) {
	_, err := NewPlan(extraction.DefaultSchema(), []DerivedColumn{{Key: "Net", Formula: "Earning - Deductions"}})
	require.ErrorIs(t, err, extraction.ErrUnknownKey)

	var cfgErr *extraction.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Detail, `did you mean "Earnings"?`)

	assert.Empty(t, closestKey("Allowance", map[string]int{"Earnings": 0, "Tax": 1}))
}

func TestNewPlan_Errors(t *testing.T) {
	schema := extraction.DefaultSchema()

	tests := []struct {
		name    string
		derived []DerivedColumn
		wantErr error
		wantKey string
	}{
		{
			name:    "unknown key",
			derived: []DerivedColumn{{Key: "Net", Formula: "Earnings - Bonus"}},
			wantErr: extraction.ErrUnknownKey,
			wantKey: "Net",
		},
		{
			name: "cycle",
			derived: []DerivedColumn{
				{Key: "A", Formula: "B + Earnings"},
				{Key: "B", Formula: "A - Tax"},
			},
			wantErr: extraction.ErrCycle,
			wantKey: "A",
		},
		{
			name:    "self reference",
			derived: []DerivedColumn{{Key: "Loop", Formula: "Loop + 1"}},
			wantErr: extraction.ErrCycle,
			wantKey: "Loop",
		},
		{
			name:    "collides with schema key",
			derived: []DerivedColumn{{Key: "Earnings", Formula: "Tax"}},
			wantErr: extraction.ErrDuplicateKey,
			wantKey: "Earnings",
		},
		{
			name:    "duplicate derived key",
			derived: []DerivedColumn{{Key: "Net", Formula: "Tax"}, {Key: "Net", Formula: "PF"}},
			wantErr: extraction.ErrDuplicateKey,
			wantKey: "Net",
		},
		{
			name: "forward reference",
			derived: []DerivedColumn{
				{Key: "Net", Formula: "Earnings - Later"},
				{Key: "Later", Formula: "Tax"},
			},
			wantErr: extraction.ErrForwardReference,
			wantKey: "Net",
		},
		{
			name:    "malformed formula",
			derived: []DerivedColumn{{Key: "Net", Formula: "Earnings -"}},
			wantErr: extraction.ErrBadFormula,
			wantKey: "Net",
		},
		{
			name:    "empty key",
			derived: []DerivedColumn{{Key: " ", Formula: "Tax"}},
			wantErr: extraction.ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(schema, tt.derived)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var cfgErr *extraction.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}
