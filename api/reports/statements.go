package reports

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"FinReportsSaas/api"
	"FinReportsSaas/api/constants"
	"FinReportsSaas/api/utils"
)

type statementSummary struct {
	ID            string    `json:"id"`
	StatementType string    `json:"statement_type"`
	FileName      string    `json:"file_name"`
	Currency      string    `json:"currency"`
	SourceURL     string    `json:"source_url,omitempty"`
	Confidence    float64   `json:"confidence"`
	UploadedBy    string    `json:"uploaded_by"`
	Status        string    `json:"status"`
	LineItems     int       `json:"line_items"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListStatementsHandler returns the company's confirmed statements, newest
// first, paginated.
func ListStatementsHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		pagination, err := utils.ExtractPagination(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		total, err := utils.CountTotal(ctx, d.Pool,
			`SELECT COUNT(*) FROM finreports.financial_statements WHERE company_id = $1`, companyID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		pagination.SetPaginationStats(total)

		rows, err := d.Pool.Query(ctx, `
			SELECT s.id, s.statement_type, s.file_name, s.currency,
			       COALESCE(s.source_url, ''), s.confidence, s.uploaded_by, s.status,
			       (SELECT COUNT(*) FROM finreports.financial_line_items li WHERE li.statement_id = s.id),
			       s.created_at
			FROM finreports.financial_statements s
			WHERE s.company_id = $1
			ORDER BY s.created_at DESC
			LIMIT $2 OFFSET $3`,
			companyID, pagination.Limit, pagination.Offset)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		defer rows.Close()

		statements := make([]statementSummary, 0)
		for rows.Next() {
			var s statementSummary
			if err := rows.Scan(&s.ID, &s.StatementType, &s.FileName, &s.Currency,
				&s.SourceURL, &s.Confidence, &s.UploadedBy, &s.Status,
				&s.LineItems, &s.CreatedAt); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			statements = append(statements, s)
		}
		if rows.Err() != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+rows.Err().Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"statements": statements,
			"pagination": pagination,
		})
	})
}

type lineItemWire struct {
	RowIndex     int    `json:"row_index"`
	AccountCode  string `json:"account_code,omitempty"`
	AccountName  string `json:"account_name"`
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"`
	IsTotal      bool   `json:"is_total,omitempty"`
	IsCalculated bool   `json:"is_calculated,omitempty"`
	PeriodKey    string `json:"period_key"`
	Amount       string `json:"amount"`
	IsInflow     bool   `json:"is_inflow"`
	Currency     string `json:"currency"`
}

// GetLineItemsHandler returns every stored line item of one statement. The
// statement must belong to the caller's company.
func GetLineItemsHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}
		statementID := mux.Vars(r)["id"]

		var exists bool
		err := d.Pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM finreports.financial_statements WHERE id = $1 AND company_id = $2)`,
			statementID, companyID).Scan(&exists)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		if !exists {
			api.RespondWithError(w, http.StatusNotFound, "Statement not found for this company.")
			return
		}

		rows, err := d.Pool.Query(ctx, `
			SELECT row_index, COALESCE(account_code, ''), account_name, category,
			       COALESCE(subcategory, ''), is_total, is_calculated,
			       period_key, amount::text, is_inflow, COALESCE(currency, '')
			FROM finreports.financial_line_items
			WHERE statement_id = $1
			ORDER BY row_index, period_key`,
			statementID)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		defer rows.Close()

		items := make([]lineItemWire, 0)
		for rows.Next() {
			var li lineItemWire
			if err := rows.Scan(&li.RowIndex, &li.AccountCode, &li.AccountName, &li.Category,
				&li.Subcategory, &li.IsTotal, &li.IsCalculated,
				&li.PeriodKey, &li.Amount, &li.IsInflow, &li.Currency); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
				return
			}
			items = append(items, li)
		}
		if rows.Err() != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+rows.Err().Error())
			return
		}

		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"statement_id": statementID,
			"line_items":   items,
		})
	})
}
