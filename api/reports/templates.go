package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"FinReportsSaas/api"
	"FinReportsSaas/api/constants"
	"FinReportsSaas/internal/finparse"
)

// loadTemplate fetches the company's saved mapping for a statement type.
// Returns (nil, nil) when none exists.
func loadTemplate(ctx context.Context, pool *pgxpool.Pool, companyID, statementType string) (*finparse.MappingTemplate, error) {
	var (
		tpl             finparse.MappingTemplate
		fingerprint     []byte
		columnRoles     []byte
		periodColumns   []byte
		classifications []byte
	)
	err := pool.QueryRow(ctx, `
		SELECT id, company_id, statement_type, fingerprint, column_roles,
		       period_columns, classifications, currency, updated_at
		FROM finreports.mapping_templates
		WHERE company_id = $1 AND statement_type = $2`,
		companyID, statementType,
	).Scan(&tpl.ID, &tpl.CompanyID, &tpl.StatementType, &fingerprint, &columnRoles,
		&periodColumns, &classifications, &tpl.Currency, &tpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fingerprint, &tpl.Fingerprint); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(columnRoles, &tpl.ColumnRoles); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(periodColumns, &tpl.PeriodColumns); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(classifications, &tpl.Classifications); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// upsertTemplate saves a confirmed mapping, replacing any previous one for
// the same company and statement type.
func upsertTemplate(ctx context.Context, tx pgx.Tx, tpl *finparse.MappingTemplate) error {
	fingerprint, err := json.Marshal(tpl.Fingerprint)
	if err != nil {
		return err
	}
	columnRoles, err := json.Marshal(tpl.ColumnRoles)
	if err != nil {
		return err
	}
	periodColumns, err := json.Marshal(tpl.PeriodColumns)
	if err != nil {
		return err
	}
	classifications, err := json.Marshal(tpl.Classifications)
	if err != nil {
		return err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO finreports.mapping_templates
			(id, company_id, statement_type, fingerprint, column_roles,
			 period_columns, classifications, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (company_id, statement_type) DO UPDATE SET
			fingerprint     = EXCLUDED.fingerprint,
			column_roles    = EXCLUDED.column_roles,
			period_columns  = EXCLUDED.period_columns,
			classifications = EXCLUDED.classifications,
			currency        = EXCLUDED.currency,
			updated_at      = EXCLUDED.updated_at`,
		tpl.ID, tpl.CompanyID, tpl.StatementType, fingerprint, columnRoles,
		periodColumns, classifications, tpl.Currency, time.Now())
	return err
}

func statementTypeParam(r *http.Request) string {
	st := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("statement_type")))
	if st == "" {
		st = finparse.StatementPnL
	}
	return st
}

// GetTemplateHandler returns the company's saved mapping template for a
// statement type, if any.
func GetTemplateHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		tpl, err := loadTemplate(ctx, d.Pool, companyID, statementTypeParam(r))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		if tpl == nil {
			api.RespondWithPayload(w, true, "", map[string]interface{}{"template": nil})
			return
		}
		api.RespondWithPayload(w, true, "", map[string]interface{}{"template": tpl})
	})
}

// DeleteTemplateHandler removes the company's saved mapping so the next
// upload runs full detection again.
func DeleteTemplateHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		tag, err := d.Pool.Exec(ctx, `
			DELETE FROM finreports.mapping_templates
			WHERE company_id = $1 AND statement_type = $2`,
			companyID, statementTypeParam(r))
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		if tag.RowsAffected() == 0 {
			api.RespondWithError(w, http.StatusNotFound, "No mapping template exists for this statement type.")
			return
		}
		api.RespondWithResult(w, true, "")
	})
}
