// Package repository persists payslip run history in PostgreSQL.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
)

// Querier is satisfied by *pgxpool.Pool and by pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Run is one pipeline execution.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	Strategy   string
	Documents  int
	Extracted  int
	Skipped    int
	Failed     int
	OutputPath string
}

// StoredRow is the latest known amounts for one pay period.
type StoredRow struct {
	Period    time.Time
	Label     string
	Source    string
	Amounts   map[string]string
	RunID     uuid.UUID
	UpdatedAt time.Time
}

// RunRepository records runs and keeps one row per pay period, the most
// recent run winning.
type RunRepository interface {
	SaveRun(ctx context.Context, run Run, table *aggregation.Table) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Rows(ctx context.Context) ([]StoredRow, error)
}
