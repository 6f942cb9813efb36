package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// PeriodLabelLayout is the time layout used for period labels.
const PeriodLabelLayout = "January 2006"

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod returns the period for year and month.
func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// ParsePeriod accepts "2006-01" or "January 2006".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", PeriodLabelLayout, "Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Period{Year: t.Year(), Month: t.Month()}, nil
		}
	}
	return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// AddMonths returns p shifted by n months.
func (p Period) AddMonths(n int) Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Label formats the period as "January 2006".
func (p Period) Label() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format(PeriodLabelLayout)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

var (
	monthNames   []string
	monthByName  = map[string]time.Month{}
	monthMatcher *ahocorasick.Matcher

	// Lines carrying one of these name the pay period itself rather than
	// some other date on the slip.
	periodKeywords = []string{
		"pay period", "payroll period", "salary period",
		"month of", "for the month",
		"payslip for", "pay slip for", "salary slip for", "salary for",
	}
	keywordMatcher = ahocorasick.NewStringMatcher(periodKeywords)

	reYear         = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reNumericMonth = regexp.MustCompile(`\b(0?[1-9]|1[0-2])[/-]((?:19|20)\d{2})\b`)
)

func init() {
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		monthNames = append(monthNames, full)
		monthByName[full] = m
		if short := full[:3]; short != full {
			monthNames = append(monthNames, short)
			monthByName[short] = m
		}
	}
	monthNames = append(monthNames, "sept")
	monthByName["sept"] = time.September
	monthMatcher = ahocorasick.NewStringMatcher(monthNames)
}

// DetectPeriod looks for a month name followed by a year on the same line
// and falls back to a numeric MM/YYYY form. Lines that name the pay period
// ("Pay period", "Salary slip for the month of") are searched first; after
// that the first hit in document order wins.
func DetectPeriod(lines []string) (Period, bool) {
	var keyed []string
	for _, line := range lines {
		if len(keywordMatcher.MatchThreadSafe([]byte(strings.ToLower(line)))) > 0 {
			keyed = append(keyed, line)
		}
	}
	if p, ok := scanPeriod(keyed); ok {
		return p, true
	}
	return scanPeriod(lines)
}

func scanPeriod(lines []string) (Period, bool) {
	for _, line := range lines {
		if p, ok := monthOnLine(line); ok {
			return p, true
		}
	}
	for _, line := range lines {
		m := reNumericMonth.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return Period{Year: year, Month: time.Month(month)}, true
	}
	return Period{}, false
}

func monthOnLine(line string) (Period, bool) {
	lower := strings.ToLower(line)
	hits := monthMatcher.MatchThreadSafe([]byte(lower))
	if len(hits) == 0 {
		return Period{}, false
	}

	best, bestPos := time.Month(0), -1
	for _, h := range hits {
		name := monthNames[h]
		pos := wordIndex(lower, name)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos {
			best, bestPos = monthByName[name], pos
		}
	}
	if bestPos < 0 {
		return Period{}, false
	}

	year := reYear.FindString(lower[bestPos:])
	if year == "" {
		return Period{}, false
	}
	y, _ := strconv.Atoi(year)
	return Period{Year: y, Month: best}, true
}

// wordIndex returns the first index of word in s that is not embedded in a
// longer run of letters.
func wordIndex(s, word string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return -1
		}
		start, end := offset+i, offset+i+len(word)
		if !letterAt(s, start-1) && !letterAt(s, end) {
			return start
		}
		offset = start + 1
	}
}

func letterAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	return unicode.IsLetter(rune(s[i]))
}
