package money

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates payslip amounts using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// Amount returns a whole-rupee amount between min and max with two
// decimals, as a decimal and as printed on a payslip ("123,456.00").
func (g *TestDataGenerator) Amount(min, max int) (decimal.Decimal, string) {
	v := g.faker.IntRange(min, max)
	return decimal.NewFromInt(int64(v)), Grouped(int64(v)) + ".00"
}

// Grouped formats n with comma thousands separators.
func Grouped(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return sign + s
}
