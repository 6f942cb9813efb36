package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/aggregation"
	"github.com/FACorreiaa/payslip-tracker/pkg/money"
)

// PostgresRunRepository implements RunRepository using PostgreSQL
type PostgresRunRepository struct {
	db Querier
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(db Querier) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// SaveRun inserts the run and upserts every table row by period in one
// transaction.
func (r *PostgresRunRepository) SaveRun(ctx context.Context, run Run, table *aggregation.Table) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO payslip_runs (id, started_at, finished_at, source, strategy, documents, extracted, skipped, failed, output_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.Source,
		run.Strategy,
		run.Documents,
		run.Extracted,
		run.Skipped,
		run.Failed,
		run.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if table != nil {
		for _, row := range table.Rows {
			amounts := make(map[string]string, len(row.Amounts))
			for i, a := range row.Amounts {
				amounts[table.AmountColumns[i]] = money.FormatAmount(a)
			}
			payload, mErr := json.Marshal(amounts)
			if mErr != nil {
				err = fmt.Errorf("failed to encode amounts: %w", mErr)
				return err
			}

			period := time.Date(row.Period.Year, row.Period.Month, 1, 0, 0, 0, 0, time.UTC)
			_, err = tx.Exec(ctx, `
				INSERT INTO payslip_rows (period, period_label, source, amounts, run_id)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (period) DO UPDATE SET
					period_label = EXCLUDED.period_label,
					source = EXCLUDED.source,
					amounts = EXCLUDED.amounts,
					run_id = EXCLUDED.run_id,
					updated_at = now()`,
				period,
				row.Label(),
				row.Source,
				payload,
				run.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert row %s: %w", row.Label(), err)
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first.
func (r *PostgresRunRepository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, started_at, finished_at, source, strategy, documents, extracted, skipped, failed, output_path
		FROM payslip_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Source,
			&run.Strategy,
			&run.Documents,
			&run.Extracted,
			&run.Skipped,
			&run.Failed,
			&run.OutputPath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Rows returns every stored period, oldest first.
func (r *PostgresRunRepository) Rows(ctx context.Context) ([]StoredRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT period, period_label, source, amounts, run_id, updated_at
		FROM payslip_rows
		ORDER BY period ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()

	var out []StoredRow
	for rows.Next() {
		var (
			sr      StoredRow
			payload []byte
		)
		if err := rows.Scan(&sr.Period, &sr.Label, &sr.Source, &payload, &sr.RunID, &sr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(payload, &sr.Amounts); err != nil {
			return nil, fmt.Errorf("failed to decode amounts for %s: %w", sr.Label, err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
