package extraction

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// payslipText renders a payslip body in the layout the default schema expects.
// Labels with an empty amount are left out.
func payslipText(period string, amounts map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\r\n", gofakeit.Company())
	fmt.Fprintf(&b, "Salary Slip for the month of %s\r\n\r\n", period)
	fmt.Fprintf(&b, "Employee: %s\n", gofakeit.Name())

	for _, label := range []string{
		"Total Earnings",
		"Overtime",
		"Commission/Bonus",
		"Bonus / Winners",
		"Total Deductions",
		"EOBI Contribution",
		"Provident Fund Contribution Employee",
		"Payroll Tax",
		"Medical / OPD Reimbursement",
	} {
		if v, ok := amounts[label]; ok {
			fmt.Fprintf(&b, "   %s %s  \n", label, v)
		}
	}
	return b.String()
}

func samplePayslip(period string) string {
	return payslipText(period, map[string]string{
		"Total Earnings":                       "300,000.00",
		"Overtime":                             "0",
		"Commission/Bonus":                     "10,000.00",
		"Total Deductions":                     "65,294.00",
		"EOBI Contribution":                    "370.00",
		"Provident Fund Contribution Employee": "15,000.00",
		"Payroll Tax":                          "49,924.00",
	})
}
