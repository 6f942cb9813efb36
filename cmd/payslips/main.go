// Command payslips fetches payslip PDFs, extracts their amounts and writes
// a monthly spreadsheet.
//
// Usage:
//
//	payslips [run|schedule|validate] [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/pkg/config"
	"github.com/FACorreiaa/payslip-tracker/pkg/cron"
)

const (
	exitOK     = 0
	exitError  = 1
	exitUsage  = 2
	defaultCmd = "run"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the flags shared by every subcommand. Non-empty values take
// precedence over the environment.
type options struct {
	envFile string
	layout  string
	source  string
	dir     string
	out     string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file to load before reading the environment")
	fs.StringVar(&o.layout, "layout", "", "layout file (LAYOUT_FILE)")
	fs.StringVar(&o.source, "source", "", "document source: imap or dir (SOURCE)")
	fs.StringVar(&o.dir, "dir", "", "payslip directory when -source=dir (SOURCE_DIR)")
	fs.StringVar(&o.out, "out", "", "output spreadsheet path (OUTPUT_PATH)")
}

func (o *options) apply() error {
	for key, val := range map[string]string{
		"LAYOUT_FILE": o.layout,
		"SOURCE":      o.source,
		"SOURCE_DIR":  o.dir,
		"OUTPUT_PATH": o.out,
	} {
		if val == "" {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return err
		}
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := defaultCmd
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var opts options
	fs := flag.NewFlagSet("payslips "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	switch cmd {
	case "run", "schedule", "validate":
	default:
		fmt.Fprintf(stderr, "unknown command %q; want run, schedule or validate\n", cmd)
		return exitUsage
	}

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}
	if err := opts.apply(); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}
	pipeline, err := loadPipeline(cfg)
	if err != nil {
		printConfigError(stderr, err)
		return exitError
	}

	logger := newLogger(cfg.Log, stderr)
	slog.SetDefault(logger)

	switch cmd {
	case "validate":
		return validate(cfg, pipeline, stdout, stderr)
	case "schedule":
		return schedule(cfg, pipeline, logger, stderr)
	default:
		return runOnce(cfg, pipeline, logger, stdout)
	}
}

func printConfigError(w io.Writer, err error) {
	var cfgErr *extraction.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(w, "layout error: %v\n", cfgErr)
		return
	}
	fmt.Fprintf(w, "configuration error: %v\n", err)
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func validate(cfg *config.Config, pipeline *Pipeline, stdout, stderr io.Writer) int {
	if err := cron.Validate(cfg.Schedule.Cron); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}

	strategy := pipeline.Strategy
	if strategy == "" {
		strategy = extraction.StrategyFuzzy
	}
	fmt.Fprintf(stdout, "configuration OK\n")
	fmt.Fprintf(stdout, "source:     %s\n", cfg.Source.Kind)
	fmt.Fprintf(stdout, "strategy:   %s (threshold %d)\n", strategy, pipeline.Threshold)
	fmt.Fprintf(stdout, "fields:     %s\n", strings.Join(pipeline.Schema.Keys(), ", "))
	fmt.Fprintf(stdout, "columns:    %s\n", strings.Join(pipeline.Plan.Columns(), ", "))
	fmt.Fprintf(stdout, "evaluation: %s\n", strings.Join(pipeline.Plan.EvaluationOrder(), " -> "))
	fmt.Fprintf(stdout, "output:     %s (%s)\n", cfg.Output.Path, cfg.Output.Format)
	return exitOK
}

func runOnce(cfg *config.Config, pipeline *Pipeline, logger *slog.Logger, stdout io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, pipeline, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		return exitError
	}
	defer deps.Cleanup()

	res, err := deps.Service.Run(ctx)
	if err != nil {
		logger.Error("payslip run failed", slog.Any("error", err))
		return exitError
	}

	fmt.Fprintf(stdout, "%d payslips written to %s (%d skipped, %d failed)\n",
		res.Extracted, deps.Sink.Path(), res.Skipped, res.Failed)
	return exitOK
}

func schedule(cfg *config.Config, pipeline *Pipeline, logger *slog.Logger, stderr io.Writer) int {
	if err := cron.Validate(cfg.Schedule.Cron); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, pipeline, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		return exitError
	}
	defer deps.Cleanup()

	if deps.Metrics != nil {
		go func() {
			if err := deps.Metrics.Serve(ctx, cfg.Observability.MetricsPort, logger); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	scheduler := cron.NewScheduler(ctx, cfg.Schedule.Cron, func(ctx context.Context) error {
		_, err := deps.Service.Run(ctx)
		return err
	}, cron.DefaultTimeout, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		return exitError
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	<-scheduler.Stop().Done()

	runs, failures := scheduler.Stats()
	logger.Info("scheduler stopped", slog.Int64("runs", runs), slog.Int64("failures", failures))
	return exitOK
}
