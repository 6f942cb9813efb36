package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
	"github.com/FACorreiaa/payslip-tracker/pkg/storage"
)

// ExportNamespace is the storage namespace archived exports go to.
const ExportNamespace = "exports"

// Sink receives the finalized table of a run.
type Sink interface {
	Write(ctx context.Context, t *aggregation.Table) error
}

// FileSink writes the table to a local path, replacing any previous file,
// and archives a timestamped copy when storage is configured.
type FileSink struct {
	path    string
	writer  Writer
	archive storage.Storage
	logger  *slog.Logger
	now     func() time.Time
}

func NewFileSink(path string, writer Writer, archive storage.Storage, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{
		path:    path,
		writer:  writer,
		archive: archive,
		logger:  logger,
		now:     time.Now,
	}
}

// Path returns the output file location.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(ctx context.Context, t *aggregation.Table) error {
	var buf bytes.Buffer
	if err := s.writer.Write(&buf, t); err != nil {
		return fmt.Errorf("encode %s: %w", s.writer.Format(), err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".payslips-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace output: %w", err)
	}

	s.logger.Info("payslip table written",
		slog.String("path", s.path),
		slog.String("format", s.writer.Format()),
		slog.Int("rows", len(t.Rows)),
	)

	if s.archive == nil {
		return nil
	}

	name := fmt.Sprintf("payslips-%s.%s", s.now().UTC().Format("20060102-150405"), s.writer.Format())
	info, err := s.archive.Upload(ctx, ExportNamespace, name, s.writer.ContentType(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("archive output: %w", err)
	}
	s.logger.Info("payslip table archived",
		slog.String("namespace", ExportNamespace),
		slog.String("id", info.ID.String()),
		slog.String("name", info.Name),
	)
	return nil
}
