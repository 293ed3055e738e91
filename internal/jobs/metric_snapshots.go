package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"FinReportsSaas/internal/config"
	"FinReportsSaas/internal/finparse"
	"FinReportsSaas/internal/logger"
	"FinReportsSaas/internal/statementstore"
)

// SnapshotConfig controls the nightly metric snapshot job.
type SnapshotConfig struct {
	Schedule   string
	TimeZone   string
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
}

func NewDefaultSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		Schedule:   config.DefaultSnapshotSchedule,
		TimeZone:   config.DefaultTimeZone,
		BatchSize:  config.SnapshotBatchSize,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// RunSnapshotScheduler schedules the nightly recomputation of per-period
// category totals and derived metrics for every company's latest statement.
// Snapshots feed the trend endpoints without re-aggregating on every request.
func RunSnapshotScheduler(cfg *SnapshotConfig, db *pgxpool.Pool) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultSnapshotSchedule
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = config.DefaultTimeZone
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = config.SnapshotBatchSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone for snapshot scheduler: %v", err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		logger.GlobalLogger.LogAudit(fmt.Sprintf("Running metric snapshot job at %s", time.Now().In(loc)))
		err := RetryWithBackoff(cfg.MaxRetries, cfg.RetryDelay, func() error {
			return ProcessMetricSnapshots(context.Background(), db)
		})
		if err != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("Metric snapshot job failed: %v", err))
		} else {
			logger.GlobalLogger.LogAudit("Metric snapshot job completed at " + time.Now().In(loc).String())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule snapshot job: %v", err)
	}

	c.Start()
	logger.GlobalLogger.LogAudit("Metric Snapshot Job scheduled for " + cfg.Schedule + " (" + cfg.TimeZone + ")")
	return c, nil
}

// latestStatement is one (company, statement type) pair with its most recent
// confirmed statement.
type latestStatement struct {
	CompanyID     string
	StatementType string
	StatementID   string
}

// ProcessMetricSnapshots recomputes and replaces the metric snapshots of
// every company's latest statement per type. Each company is processed in
// its own transaction so one bad tenant never blocks the rest.
func ProcessMetricSnapshots(ctx context.Context, db *pgxpool.Pool) error {
	rows, err := db.Query(ctx, `
		SELECT DISTINCT ON (company_id, statement_type) company_id, statement_type, id
		FROM finreports.financial_statements
		ORDER BY company_id, statement_type, created_at DESC`)
	if err != nil {
		return fmt.Errorf("list latest statements: %w", err)
	}
	targets := make([]latestStatement, 0)
	for rows.Next() {
		var t latestStatement
		if err := rows.Scan(&t.CompanyID, &t.StatementType, &t.StatementID); err != nil {
			rows.Close()
			return err
		}
		targets = append(targets, t)
	}
	rows.Close()
	if rows.Err() != nil {
		return rows.Err()
	}

	var failed int
	for _, target := range targets {
		if err := snapshotStatement(ctx, db, target); err != nil {
			failed++
			logger.GlobalLogger.LogAudit(fmt.Sprintf(
				"Snapshot failed for company %s (%s): %v", target.CompanyID, target.StatementType, err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshot targets failed", failed, len(targets))
	}
	logger.GlobalLogger.LogAudit(fmt.Sprintf("Snapshots refreshed for %d statement(s)", len(targets)))
	return nil
}

func snapshotStatement(ctx context.Context, db *pgxpool.Pool, target latestStatement) error {
	accountRows, err := statementstore.LoadLineItems(ctx, db, target.StatementID)
	if err != nil {
		return err
	}
	if len(accountRows) == 0 {
		return nil
	}
	agg := finparse.Aggregate(accountRows)

	capturedAt := time.Now()
	copyRows := make([][]interface{}, 0, len(agg.PeriodAnalysis)*8)
	for _, pa := range agg.PeriodAnalysis {
		for category, amount := range pa.TotalsByCategory {
			copyRows = append(copyRows, []interface{}{
				uuid.New().String(), target.CompanyID, target.StatementType, target.StatementID,
				pa.Period.Key(), category, amount.String(),
				pa.Derived.GrossProfit.String(), pa.Derived.EBITDA.String(), pa.Derived.NetIncome.String(),
				capturedAt,
			})
		}
	}
	if len(copyRows) == 0 {
		return nil
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		DELETE FROM finreports.metric_snapshots
		WHERE company_id = $1 AND statement_type = $2`,
		target.CompanyID, target.StatementType)
	if err != nil {
		return err
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"finreports", "metric_snapshots"},
		[]string{
			"id", "company_id", "statement_type", "statement_id",
			"period_key", "category", "amount",
			"gross_profit", "ebitda", "net_income", "captured_at",
		},
		pgx.CopyFromRows(copyRows))
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
