// Package service runs the payslip pipeline: retrieve documents, extract
// records, aggregate them into a table and hand the table to the sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/export"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/payslip/repository"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/retrieval"
	"github.com/FACorreiaa/payslip-tracker/pkg/metrics"
	"github.com/FACorreiaa/payslip-tracker/pkg/money"
)

const tracerName = "github.com/FACorreiaa/payslip-tracker/internal/domain/payslip/service"

// SummaryColumn is the column whose total is logged after each run.
const SummaryColumn = "Total After Deductions"

// RunResult summarises one pipeline run.
type RunResult struct {
	RunID     uuid.UUID
	Documents int
	Extracted int
	Skipped   int
	Failed    int
	Table     *aggregation.Table
}

// Deps are the collaborators of a run. Sinks, Runs and Metrics are optional.
type Deps struct {
	Source    retrieval.Source
	Extractor extraction.Extractor
	Plan      *aggregation.Plan
	Sinks     []export.Sink
	Runs      repository.RunRepository
	Metrics   *metrics.Metrics
}

// Config tunes a run.
type Config struct {
	SourceName string
	Aggregate  aggregation.Options
	Workers    int
	Currency   string
	OutputPath string
}

// Service provides the payslip pipeline
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new pipeline service
func NewService(deps Deps, cfg Config, logger *slog.Logger) (*Service, error) {
	if deps.Source == nil || deps.Extractor == nil || deps.Plan == nil {
		return nil, errors.New("service: source, extractor and plan are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = money.PKR
	}
	// Fail on bad aggregation options now rather than mid-run.
	if _, err := aggregation.New(deps.Plan, cfg.Aggregate); err != nil {
		return nil, err
	}

	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// Run executes the pipeline once. Per-document problems are counted and
// logged; an error means the run produced no output.
func (s *Service) Run(ctx context.Context) (result *RunResult, err error) {
	started := s.now()
	runID := uuid.New()

	ctx, span := s.tracer.Start(ctx, "payslip.run", trace.WithAttributes(
		attribute.String("run.id", runID.String()),
		attribute.String("run.source", s.cfg.SourceName),
		attribute.String("run.strategy", s.deps.Extractor.Name()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.deps.Metrics.Run(started, err)
	}()

	logger := s.logger.With(slog.String("run_id", runID.String()))
	logger.Info("payslip run started",
		slog.String("source", s.cfg.SourceName),
		slog.String("strategy", s.deps.Extractor.Name()),
	)

	docs, err := s.deps.Source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	extractor := &tracedExtractor{inner: s.deps.Extractor, tracer: s.tracer}
	records := extraction.ExtractAll(ctx, extractor, docs, s.cfg.Workers)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract documents: %w", err)
	}

	agg, err := aggregation.New(s.deps.Plan, s.cfg.Aggregate)
	if err != nil {
		return nil, err
	}

	result = &RunResult{RunID: runID, Documents: len(docs)}
	for _, rec := range records {
		switch {
		case rec.Failed():
			result.Failed++
			s.deps.Metrics.Document(metrics.OutcomeFailed)
			logger.Warn("payslip skipped: extraction failed",
				slog.String("document", rec.Source),
				slog.Any("error", rec.Err),
			)
			continue
		case !rec.Salient():
			result.Skipped++
			s.deps.Metrics.Document(metrics.OutcomeSkipped)
			logger.Info("payslip skipped: no values found",
				slog.String("document", rec.Source),
			)
			continue
		}

		if err := agg.Add(rec); err != nil {
			result.Failed++
			s.deps.Metrics.Document(metrics.OutcomeFailed)
			logger.Warn("payslip rejected by aggregator",
				slog.String("document", rec.Source),
				slog.Any("error", err),
			)
			continue
		}
		result.Extracted++
		s.deps.Metrics.Document(metrics.OutcomeExtracted)
		for _, key := range rec.Missing() {
			s.deps.Metrics.MissingField(key)
		}
	}

	result.Table = agg.Finalize()
	span.SetAttributes(
		attribute.Int("run.documents", result.Documents),
		attribute.Int("run.extracted", result.Extracted),
		attribute.Int("run.skipped", result.Skipped),
		attribute.Int("run.failed", result.Failed),
	)

	for _, sink := range s.deps.Sinks {
		if err := sink.Write(ctx, result.Table); err != nil {
			return result, fmt.Errorf("write output: %w", err)
		}
	}

	if s.deps.Runs != nil {
		run := repository.Run{
			ID:         runID,
			StartedAt:  started,
			FinishedAt: s.now(),
			Source:     s.cfg.SourceName,
			Strategy:   s.deps.Extractor.Name(),
			Documents:  result.Documents,
			Extracted:  result.Extracted,
			Skipped:    result.Skipped,
			Failed:     result.Failed,
			OutputPath: s.cfg.OutputPath,
		}
		// History is best effort once the output exists.
		if err := s.deps.Runs.SaveRun(ctx, run, result.Table); err != nil {
			logger.Error("failed to record run history", slog.Any("error", err))
		}
	}

	attrs := []any{
		slog.Int("documents", result.Documents),
		slog.Int("extracted", result.Extracted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", s.now().Sub(started)),
	}
	if result.Table.Column(SummaryColumn) >= 0 {
		total := money.Sum(s.cfg.Currency, result.Table.Total(SummaryColumn))
		attrs = append(attrs, slog.String("total_after_deductions", total.Display()))
	}
	logger.Info("payslip run finished", attrs...)

	return result, nil
}

// tracedExtractor wraps every extraction in its own span.
type tracedExtractor struct {
	inner  extraction.Extractor
	tracer trace.Tracer
}

func (t *tracedExtractor) Name() string {
	return t.inner.Name()
}

func (t *tracedExtractor) Extract(ctx context.Context, doc extraction.Document) extraction.Record {
	ctx, span := t.tracer.Start(ctx, "payslip.extract", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("document.name", doc.Name),
	))
	defer span.End()

	rec := t.inner.Extract(ctx, doc)
	span.SetAttributes(
		attribute.Int("record.found", rec.Found()),
		attribute.StringSlice("record.missing", rec.Missing()),
	)
	if rec.Err != nil {
		span.RecordError(rec.Err)
		span.SetStatus(codes.Error, rec.Err.Error())
	}
	return rec
}
