// Package retrieval fetches payslip documents and decodes them to text
// for the extraction engine.
package retrieval

import (
	"context"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
)

// Source yields the documents of one run in the order it found them.
// Items that cannot be fetched or decoded are logged and skipped; an
// error means the source as a whole could not be read.
type Source interface {
	Documents(ctx context.Context) ([]extraction.Document, error)
}

// Static is a Source over documents already in memory.
type Static []extraction.Document

func (s Static) Documents(ctx context.Context) ([]extraction.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]extraction.Document, len(s))
	copy(out, s)
	return out, nil
}
