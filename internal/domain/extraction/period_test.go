package extraction

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPeriod(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		want   Period
		wantOK bool
	}{
		{
			name:   "month name and year",
			lines:  []string{"ACME", "Salary Slip for the month of October 2023"},
			want:   NewPeriod(2023, time.October),
			wantOK: true,
		},
		{
			name:   "abbreviated month",
			lines:  []string{"Pay period: Mar-2024"},
			want:   NewPeriod(2024, time.March),
			wantOK: true,
		},
		{
			name:   "month inside another word is ignored",
			lines:  []string{"Decimal rounding 2023", "Payslip for June 2022"},
			want:   NewPeriod(2022, time.June),
			wantOK: true,
		},
		{
			name:   "numeric fallback",
			lines:  []string{"Period 11/2023", "Total Earnings 100"},
			want:   NewPeriod(2023, time.November),
			wantOK: true,
		},
		{
			name: "pay period line wins over an earlier date",
			lines: []string{
				"Date of Joining: 01 March 2019",
				"Salary Slip for the month of October 2023",
			},
			want:   NewPeriod(2023, time.October),
			wantOK: true,
		},
		{
			name:   "numeric pay period wins over an earlier month name",
			lines:  []string{"Date of Birth: 4 July 1990", "Pay Period 09/2023"},
			want:   NewPeriod(2023, time.September),
			wantOK: true,
		},
		{
			name:   "keyword line without a date falls back to the document",
			lines:  []string{"Payslip for", "Issued 28 February 2024"},
			want:   NewPeriod(2024, time.February),
			wantOK: true,
		},
		{
			name:   "sept abbreviation",
			lines:  []string{"Pay period: Sept 2023"},
			want:   NewPeriod(2023, time.September),
			wantOK: true,
		},
		{
			name:   "month without year",
			lines:  []string{"Paid in May"},
			wantOK: false,
		},
		{
			name:   "nothing",
			lines:  []string{"Total Earnings 300,000.00"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectPeriod(tt.lines)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDetectPeriod_Concurrent(t *testing.T) {
	lines := []string{"Date of Joining: 01 March 2019", "Payslip for December 2023"}

	var wg sync.WaitGroup
	results := make([]Period, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = DetectPeriod(lines)
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		assert.Equal(t, NewPeriod(2023, time.December), p)
	}
}

func TestParsePeriod(t *testing.T) {
	for _, in := range []string{"2023-10", "October 2023", "Oct 2023"} {
		p, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, NewPeriod(2023, time.October), p)
	}

	_, err := ParsePeriod("10/23")
	assert.Error(t, err)
}

func TestPeriod_AddMonths(t *testing.T) {
	p := NewPeriod(2023, time.October)

	assert.Equal(t, NewPeriod(2024, time.January), p.AddMonths(3))
	assert.Equal(t, NewPeriod(2023, time.September), p.AddMonths(-1))
	assert.Equal(t, "October 2023", p.Label())
	assert.Equal(t, "2023-10", p.String())
	assert.False(t, p.IsZero())
	assert.True(t, Period{}.IsZero())
}
