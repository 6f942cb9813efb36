// Package export writes finalized payslip tables as spreadsheets.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"

	// DefaultSheet is the worksheet the xlsx writer fills.
	DefaultSheet = "Payslips"
)

// ErrUnknownFormat is returned by WriterFor for unsupported formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Writer encodes a table in one file format.
type Writer interface {
	Format() string
	ContentType() string
	Write(w io.Writer, t *aggregation.Table) error
}

// WriterFor returns the writer for format ("xlsx" or "csv").
func WriterFor(format string) (Writer, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case FormatXLSX, "":
		return NewExcelWriter(DefaultSheet), nil
	case FormatCSV:
		return CSVWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ExcelWriter renders a table into a single worksheet with a bold,
// frozen header row and numeric amount cells.
type ExcelWriter struct {
	sheet string
}

func NewExcelWriter(sheet string) *ExcelWriter {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &ExcelWriter{sheet: sheet}
}

func (e *ExcelWriter) Format() string { return FormatXLSX }

func (e *ExcelWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelWriter) Write(w io.Writer, t *aggregation.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	// Built-in format 4 is "#,##0.00".
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	header := t.Header()
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(e.sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetRowStyle(e.sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range t.Rows {
		excelRow := r + 2
		for c, amount := range row.Amounts {
			cell, _ := excelize.CoordinatesToCellName(c+1, excelRow)
			if err := f.SetCellFloat(e.sheet, cell, amount.InexactFloat64(), -1, 64); err != nil {
				return fmt.Errorf("write row %d: %w", r, err)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(len(row.Amounts)+1, excelRow)
		if err := f.SetCellValue(e.sheet, cell, row.Label()); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	if len(t.AmountColumns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(t.AmountColumns))
		if len(t.Rows) > 0 {
			bottom, _ := excelize.CoordinatesToCellName(len(t.AmountColumns), len(t.Rows)+1)
			if err := f.SetCellStyle(e.sheet, "A2", bottom, amountStyle); err != nil {
				return fmt.Errorf("style amounts: %w", err)
			}
		}
		if err := f.SetColWidth(e.sheet, "A", last, 18); err != nil {
			return fmt.Errorf("amount column width: %w", err)
		}
	}
	periodCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(e.sheet, periodCol, periodCol, 16); err != nil {
		return fmt.Errorf("period column width: %w", err)
	}
	if err := f.SetPanes(e.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// CSVWriter renders the same grid as Table.Records.
type CSVWriter struct{}

func (CSVWriter) Format() string { return FormatCSV }

func (CSVWriter) ContentType() string { return "text/csv" }

func (CSVWriter) Write(w io.Writer, t *aggregation.Table) error {
	cw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	for _, rec := range t.Records() {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}
