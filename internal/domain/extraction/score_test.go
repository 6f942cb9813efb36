package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialRatio(t *testing.T) {
	t.Run("identical strings", func(t *testing.T) {
		assert.Equal(t, 100, PartialRatio("payroll tax", "payroll tax"))
	})

	t.Run("label contained in line", func(t *testing.T) {
		assert.Equal(t, 100, PartialRatio("payroll tax", "payroll tax 49,924.00"))
		assert.Equal(t, 100, PartialRatio("tax", "payroll tax"))
	})

	t.Run("argument order does not matter", func(t *testing.T) {
		a, b := "total deductions", "total deduction 65,294.00"
		assert.Equal(t, PartialRatio(a, b), PartialRatio(b, a))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, 0, PartialRatio("", "payroll tax"))
		assert.Equal(t, 0, PartialRatio("payroll tax", ""))
		assert.Equal(t, 0, PartialRatio("", ""))
	})

	t.Run("missing spaces still score high", func(t *testing.T) {
		score := PartialRatio("provident fund contribution employee", "providentfundcontributionemployee 1,500.00")
		assert.Equal(t, 92, score)
	})

	t.Run("one letter off", func(t *testing.T) {
		assert.Equal(t, 88, PartialRatio("overtime", "overtlme 1,200"))
	})

	t.Run("unrelated text scores low", func(t *testing.T) {
		assert.Less(t, PartialRatio("payroll tax", "tax deducted at source 5,000"), DefaultThreshold)
		assert.Less(t, PartialRatio("total deductions", "total earnings 300,000.00"), DefaultThreshold)
	})

	tests := []struct {
		label string
		line  string
		want  int
	}{
		{"bonus / winners", "bonus/winners 5,000", 87},
		{"overtime", "over time 5,000", 88},
		{"commission/bonus", "commission / bonus 10,000", 88},
		{"total earnings", "totalearnings 120,000", 93},
	}
	for _, tt := range tests {
		t.Run("spacing noise "+tt.label, func(t *testing.T) {
			score := PartialRatio(tt.label, tt.line)
			assert.Equal(t, tt.want, score)
			assert.Greater(t, score, DefaultThreshold)
		})
	}
}

func TestMatcher_MatchingBlocks(t *testing.T) {
	m := newMatcher([]rune("bonus / winners"), []rune("bonus/winners 5,000"))
	assert.Equal(t, []block{
		{i: 0, j: 0, size: 5},
		{i: 6, j: 5, size: 1},
		{i: 8, j: 6, size: 7},
		{i: 15, j: 19, size: 0},
	}, m.matchingBlocks())
	assert.Equal(t, 13, m.matches())
}

func TestRoundHalfEven(t *testing.T) {
	assert.Equal(t, 88, roundHalfEven(875, 10))
	assert.Equal(t, 86, roundHalfEven(865, 10))
	assert.Equal(t, 87, roundHalfEven(2600, 30))
	assert.Equal(t, 0, roundHalfEven(0, 1))
}
