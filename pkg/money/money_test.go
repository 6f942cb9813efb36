package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"grouped with decimals", "300,000.00", "300000"},
		{"plain", "65294", "65294"},
		{"spaces", " 1 500.50 ", "1500.5"},
		{"currency prefix", "PKR 1,250", "1250"},
		{"rupee short form", "Rs.370", "370"},
		{"parentheses negative", "(2,000.00)", "-2000"},
		{"trailing minus", "150-", "-150"},
		{"zero", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "1.2.3", "abc", ",."} {
		_, err := ParseAmount(raw)
		assert.ErrorIs(t, err, ErrInvalidAmount, raw)
		assert.True(t, CoerceAmount(raw).IsZero(), raw)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "290000.00", FormatAmount(decimal.NewFromInt(290000)))
	assert.Equal(t, "-12.50", FormatAmount(decimal.RequireFromString("-12.5")))
	assert.Equal(t, "0.01", FormatAmount(decimal.RequireFromString("0.005")))
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		amounts  []string
		want     string
	}{
		{"adds amounts", USD, []string{"1000", "234.56"}, "$1,234.56"},
		{"rounds to minor unit", USD, []string{"12.345"}, "$12.35"},
		{"unknown currency falls back", "XXXX", []string{"1"}, "$1.00"},
		{"no amounts", USD, nil, "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := make([]decimal.Decimal, len(tt.amounts))
			for i, a := range tt.amounts {
				amounts[i] = decimal.RequireFromString(a)
			}
			assert.Equal(t, tt.want, Sum(tt.currency, amounts...).Display())
		})
	}
}

func TestDisplay_Nil(t *testing.T) {
	assert.Equal(t, "0.00", (*Money)(nil).Display())
}

func TestKnownCurrency(t *testing.T) {
	assert.True(t, KnownCurrency(PKR))
	assert.False(t, KnownCurrency("NOPE"))
}

func TestTestDataGenerator(t *testing.T) {
	gen := NewTestDataGeneratorWithSeed(42)
	for i := 0; i < 20; i++ {
		d, printed := gen.Amount(1000, 500000)
		parsed, err := ParseAmount(printed)
		require.NoError(t, err)
		assert.True(t, d.Equal(parsed), printed)
	}

	assert.Equal(t, "1,234,567", Grouped(1234567))
	assert.Equal(t, "999", Grouped(999))
	assert.Equal(t, "-1,000", Grouped(-1000))
}
