package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
)

// DirectorySource reads *.pdf and *.txt payslips from a local directory,
// sorted by file name.
type DirectorySource struct {
	dir     string
	decoder Decoder
	logger  *slog.Logger
}

func NewDirectorySource(dir string, decoder Decoder, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySource{dir: dir, decoder: decoder, logger: logger}
}

func (s *DirectorySource) Documents(ctx context.Context) ([]extraction.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".txt":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]extraction.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.read(name)
		if err != nil {
			s.logger.Warn("skipping payslip file",
				slog.String("file", name),
				slog.Any("error", err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	s.logger.Info("payslip files loaded",
		slog.String("dir", s.dir),
		slog.Int("count", len(docs)),
	)
	return docs, nil
}

func (s *DirectorySource) read(name string) (extraction.Document, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction.Document{}, fmt.Errorf("read file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return extraction.Document{}, fmt.Errorf("stat file: %w", err)
	}

	text := string(data)
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		if s.decoder == nil {
			return extraction.Document{}, fmt.Errorf("no pdf decoder configured")
		}
		text, err = s.decoder.Decode(data)
		if err != nil {
			return extraction.Document{}, err
		}
	}

	return extraction.Document{
		ID:       name,
		Name:     name,
		Text:     text,
		Received: info.ModTime(),
	}, nil
}
