package reports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"FinReportsSaas/api"
	"FinReportsSaas/api/constants"
	"FinReportsSaas/internal/finparse"
	"FinReportsSaas/internal/statementstore"
)

// latestStatementID finds the company's most recent confirmed statement of a
// type. pgx.ErrNoRows passes through for the caller to translate.
func latestStatementID(ctx context.Context, pool *pgxpool.Pool, companyID, statementType string) (string, time.Time, error) {
	var id string
	var createdAt time.Time
	err := pool.QueryRow(ctx, `
		SELECT id, created_at
		FROM finreports.financial_statements
		WHERE company_id = $1 AND statement_type = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		companyID, statementType).Scan(&id, &createdAt)
	return id, createdAt, err
}

// DashboardHandler aggregates the company's latest statement of the requested
// type into per-period category totals, derived metrics, and YTD figures.
func DashboardHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		statementType := statementTypeParam(r)

		statementID, createdAt, err := latestStatementID(ctx, d.Pool, companyID, statementType)
		if errors.Is(err, pgx.ErrNoRows) {
			api.RespondWithError(w, http.StatusNotFound, "No confirmed statements of this type yet.")
			return
		}
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}

		accountRows, err := statementstore.LoadLineItems(ctx, d.Pool, statementID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}

		agg := finparse.Aggregate(accountRows)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"statement_id":   statementID,
			"statement_type": statementType,
			"as_of":          createdAt,
			"aggregation":    agg,
		})
	})
}

type snapshotWire struct {
	ID            string    `json:"id"`
	StatementType string    `json:"statement_type"`
	PeriodKey     string    `json:"period_key"`
	Category      string    `json:"category"`
	Amount        string    `json:"amount"`
	GrossProfit   string    `json:"gross_profit"`
	EBITDA        string    `json:"ebitda"`
	NetIncome     string    `json:"net_income"`
	CapturedAt    time.Time `json:"captured_at"`
}

// SnapshotsHandler returns the nightly metric snapshots for trend views. The
// cron job writes one row per (period, category) with the derived metrics of
// the period duplicated alongside.
func SnapshotsHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		statementType := statementTypeParam(r)

		rows, err := d.Pool.Query(ctx, `
			SELECT id, statement_type, period_key, category, amount::text,
			       gross_profit::text, ebitda::text, net_income::text, captured_at
			FROM finreports.metric_snapshots
			WHERE company_id = $1 AND statement_type = $2
			ORDER BY captured_at DESC, period_key, category
			LIMIT 2000`,
			companyID, statementType)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		defer rows.Close()

		snapshots := make([]snapshotWire, 0)
		for rows.Next() {
			var s snapshotWire
			if err := rows.Scan(&s.ID, &s.StatementType, &s.PeriodKey, &s.Category,
				&s.Amount, &s.GrossProfit, &s.EBITDA, &s.NetIncome, &s.CapturedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			snapshots = append(snapshots, s)
		}
		if rows.Err() != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+rows.Err().Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"snapshots": snapshots,
		})
	})
}
