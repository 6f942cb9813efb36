// Package money parses payslip amounts into exact decimals and formats
// them for display using ISO-4217 currency rules.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	PKR = "PKR" // Pakistani Rupee
	USD = "USD" // US Dollar
)

// ErrInvalidAmount is returned when a token does not parse as a number.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a numeral as printed on a payslip ("300,000.00",
// "1 500", "PKR 1,250") into a decimal. Grouping separators, spaces and
// currency markers are removed; a single trailing minus or surrounding
// parentheses mark a negative value.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}

	for _, sym := range []string{"PKR", "Rs.", "Rs", "₨", "$", "€", "£"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// CoerceAmount is ParseAmount with unparsable input treated as zero.
func CoerceAmount(raw string) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmount renders d with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Money is an amount in a currency's minor units, used for display.
type Money struct {
	m *money.Money
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding to
// the currency's minor unit. Unknown currency codes fall back to USD.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currencyCode = USD
		currency = money.GetCurrency(USD)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	minor := amount.Mul(multiplier).Round(0).IntPart()

	return &Money{m: money.New(minor, currencyCode)}
}

// KnownCurrency reports whether code is a registered ISO-4217 code.
func KnownCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// Sum adds amounts in currencyCode.
func Sum(currencyCode string, amounts ...decimal.Decimal) *Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return NewFromDecimal(total, currencyCode)
}
