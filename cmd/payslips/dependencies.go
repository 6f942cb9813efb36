package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/export"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/payslip/repository"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/payslip/service"
	"github.com/FACorreiaa/payslip-tracker/internal/domain/retrieval"
	"github.com/FACorreiaa/payslip-tracker/pkg/config"
	"github.com/FACorreiaa/payslip-tracker/pkg/db"
	"github.com/FACorreiaa/payslip-tracker/pkg/metrics"
	"github.com/FACorreiaa/payslip-tracker/pkg/storage"
)

// Pipeline is the validated extraction and aggregation setup of a layout.
type Pipeline struct {
	Schema    extraction.Schema
	Plan      *aggregation.Plan
	Options   aggregation.Options
	Strategy  string
	Threshold int
}

// buildPipeline turns a layout into a schema, derived plan and extractor
// settings. Every configuration error surfaces here, before any document
// is read.
func buildPipeline(layout *config.Layout) (*Pipeline, error) {
	fields := make([]extraction.FieldSpec, 0, len(layout.Fields))
	for _, f := range layout.Fields {
		def := decimal.Zero
		if f.Default != "" {
			d, err := decimal.NewFromString(f.Default)
			if err != nil {
				return nil, &extraction.ConfigError{Key: f.Key, Err: extraction.ErrInvalidField, Detail: fmt.Sprintf("default %q is not a number", f.Default)}
			}
			def = d
		}
		fields = append(fields, extraction.FieldSpec{
			Label:    f.Label,
			Key:      f.Key,
			Required: f.Required,
			Hidden:   f.Hidden,
			Default:  def,
		})
	}
	schema, err := extraction.NewSchema(fields...)
	if err != nil {
		return nil, err
	}

	derived := make([]aggregation.DerivedColumn, 0, len(layout.Derived))
	for _, d := range layout.Derived {
		derived = append(derived, aggregation.DerivedColumn{Key: d.Key, Formula: d.Formula})
	}
	plan, err := aggregation.NewPlan(schema, derived)
	if err != nil {
		return nil, err
	}

	opts := aggregation.Options{Mode: layout.Period.Mode, PeriodColumn: layout.Period.Column}
	if layout.Period.Anchor != "" {
		anchor, err := extraction.ParsePeriod(layout.Period.Anchor)
		if err != nil {
			return nil, fmt.Errorf("period anchor: %w", err)
		}
		opts.Anchor = anchor
	}

	threshold := layout.ThresholdOr(extraction.DefaultThreshold)
	// Catches unknown strategies and out-of-range thresholds.
	if _, err := extraction.New(layout.Strategy, schema, threshold, nil); err != nil {
		return nil, err
	}
	if _, err := aggregation.New(plan, opts); err != nil {
		return nil, err
	}

	return &Pipeline{
		Schema:    schema,
		Plan:      plan,
		Options:   opts,
		Strategy:  layout.Strategy,
		Threshold: threshold,
	}, nil
}

// loadPipeline reads the configured layout and applies environment overrides.
func loadPipeline(cfg *config.Config) (*Pipeline, error) {
	layout, err := config.LoadLayout(cfg.Extraction.LayoutFile)
	if err != nil {
		return nil, err
	}
	layout.ApplyOverrides(cfg.Extraction)
	return buildPipeline(layout)
}

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *Pipeline

	DB      *db.DB
	Storage storage.Storage
	Metrics *metrics.Metrics

	Source  retrieval.Source
	Sink    *export.FileSink
	Runs    repository.RunRepository
	Service *service.Service
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, pipeline *Pipeline, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initStorage(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initDatabase(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initService(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init service: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context) error {
	st, err := storage.New(ctx, &storage.Config{
		Type:              storage.StorageType(d.Config.Storage.Type),
		LocalPath:         d.Config.Storage.LocalPath,
		S3Bucket:          d.Config.Storage.S3.Bucket,
		S3Region:          d.Config.Storage.S3.Region,
		S3AccessKeyID:     d.Config.Storage.S3.AccessKey,
		S3SecretAccessKey: d.Config.Storage.S3.SecretKey,
		S3Endpoint:        d.Config.Storage.S3.Endpoint,
		S3UseSSL:          d.Config.Storage.S3.UseSSL,
	})
	if err != nil {
		return err
	}
	d.Storage = st
	if st != nil {
		d.Logger.Info("file storage ready", slog.String("type", d.Config.Storage.Type))
	}
	return nil
}

// initDatabase connects and migrates when run history is enabled.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	if !d.Config.Database.Enabled {
		return nil
	}

	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Runs = repository.NewPostgresRunRepository(d.DB.Pool)
	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initService() error {
	decoder := retrieval.NewPDFDecoder(d.Config.Source.PDFPassword)

	switch d.Config.Source.Kind {
	case "dir":
		d.Source = retrieval.NewDirectorySource(d.Config.Source.Dir, decoder, d.Logger)
	default:
		var opts []retrieval.MailboxOption
		if d.Config.Storage.ArchiveSlips && d.Storage != nil {
			opts = append(opts, retrieval.WithArchive(d.Storage))
		}
		d.Source = retrieval.NewMailboxSource(retrieval.MailboxConfig{
			Addr:      d.Config.IMAP.Addr(),
			User:      d.Config.IMAP.User,
			Password:  d.Config.IMAP.Password,
			Mailbox:   d.Config.IMAP.Mailbox,
			Subject:   d.Config.IMAP.Subject,
			PerSecond: d.Config.IMAP.FetchPerSecond,
			Timeout:   d.Config.IMAP.Timeout,
		}, decoder, d.Logger, opts...)
	}

	extractor, err := extraction.New(d.Pipeline.Strategy, d.Pipeline.Schema, d.Pipeline.Threshold, d.Logger)
	if err != nil {
		return err
	}

	writer, err := export.WriterFor(d.Config.Output.Format)
	if err != nil {
		return err
	}
	d.Sink = export.NewFileSink(d.Config.Output.Path, writer, d.Storage, d.Logger)

	svcDeps := service.Deps{
		Source:    d.Source,
		Extractor: extractor,
		Plan:      d.Pipeline.Plan,
		Sinks:     []export.Sink{d.Sink},
		Runs:      d.Runs,
		Metrics:   d.Metrics,
	}

	d.Service, err = service.NewService(svcDeps, service.Config{
		SourceName: d.Config.Source.Kind,
		Aggregate:  d.Pipeline.Options,
		Workers:    d.Config.Extraction.Workers,
		Currency:   d.Config.Output.Currency,
		OutputPath: d.Config.Output.Path,
	}, d.Logger)
	return err
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
