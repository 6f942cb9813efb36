package retrieval

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoText is returned when a PDF decodes but carries no extractable text.
var ErrNoText = errors.New("pdf has no text layer")

// wordGap is the horizontal gap, as a fraction of the font size, above
// which two glyph runs on one row are treated as separate words.
const wordGap = 0.2

// Decoder turns a raw attachment into plain text.
type Decoder interface {
	Decode(data []byte) (string, error)
}

// PDFDecoder extracts row-ordered text from PDF payslips, decrypting
// protected files first when a password is configured.
type PDFDecoder struct {
	password string
}

func NewPDFDecoder(password string) *PDFDecoder {
	return &PDFDecoder{password: password}
}

func (d *PDFDecoder) Decode(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("decode pdf: empty input")
	}

	r, err := d.open(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			line := joinRow(row.Content)
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrNoText
	}
	return sb.String(), nil
}

func (d *PDFDecoder) open(data []byte) (*pdf.Reader, error) {
	if d.password == "" {
		return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	}

	plain, err := decrypt(data, d.password)
	if err == nil {
		return pdf.NewReader(bytes.NewReader(plain), int64(len(plain)))
	}

	// pdfcpu refuses some legacy RC4 files that the reader still handles.
	tried := false
	return pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		if tried {
			return ""
		}
		tried = true
		return d.password
	})
}

func decrypt(data []byte, password string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return out.Bytes(), nil
}

// joinRow concatenates the glyph runs of one row, inserting a space
// wherever the gap to the previous run is wider than a fraction of the
// font size.
func joinRow(texts pdf.TextHorizontal) string {
	var sb strings.Builder
	var prevEnd float64
	for i, t := range texts {
		if t.S == "" {
			continue
		}
		if i > 0 && sb.Len() > 0 {
			gap := t.X - prevEnd
			if gap > wordGap*t.FontSize && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(t.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	return strings.TrimSpace(sb.String())
}
