package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"FinReportsSaas/api"
	"FinReportsSaas/api/constants"
	"FinReportsSaas/internal/checksum"
	"FinReportsSaas/internal/finparse"
	"FinReportsSaas/internal/uploadcache"
)

const maxUploadBytes = 32 << 20

var allowedUploadExts = map[string]bool{".xlsx": true, ".xls": true, ".csv": true}

// keyedLocks serializes confirms per (company, statement type) so two
// concurrent confirms cannot double-save a template or interleave statement
// writes for the same tenant.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

// friendlyDBError maps common Postgres error codes to messages a user can act
// on. The auth layer runs on lib/pq and the reports layer on pgx, so both
// error shapes are handled.
func friendlyDBError(err error) string {
	var code, constraint string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, constraint = string(pqErr.Code), pqErr.Constraint
	case errors.As(err, &pgErr):
		code, constraint = pgErr.Code, pgErr.ConstraintName
	default:
		return "Database error: " + err.Error()
	}
	switch code {
	case "23505":
		if strings.Contains(constraint, "file_hash") {
			return constants.ErrFileAlreadyUploaded
		}
		return "A record with the same identifying fields already exists."
	case "23503":
		return "The record references a company or statement that does not exist."
	case "23514":
		return "One of the values violates a data rule (check constraint)."
	case "22P02", "22007", "22008":
		return "One of the values has an invalid format for its column."
	default:
		return "Database error: " + err.Error()
	}
}

// parseFirstUsableSheet runs the pipeline over the workbook's sheets in order
// and returns the first sheet that parses. Structural failures on one sheet
// are not fatal while another sheet remains. A template fingerprint mismatch
// triggers one full re-detection pass with the mismatch report attached, so
// the user sees both that the layout changed and what the detector made of it.
func parseFirstUsableSheet(ctx context.Context, sheets []finparse.Sheet, opts finparse.ParseOptions) (*finparse.ParseResult, string, error) {
	var firstMismatch *finparse.MismatchReport
	for _, sheet := range sheets {
		result, err := finparse.ParseStatement(ctx, sheet.Grid, opts)
		if err != nil {
			var serr *finparse.StructuralError
			if errors.As(err, &serr) {
				continue
			}
			return nil, "", err
		}
		if result.Mismatch != nil {
			if firstMismatch == nil {
				firstMismatch = result.Mismatch
			}
			continue
		}
		return result, sheet.Name, nil
	}

	if firstMismatch != nil && opts.Template != nil {
		opts.Template = nil
		result, name, err := parseFirstUsableSheet(ctx, sheets, opts)
		if err != nil {
			return nil, "", err
		}
		result.Mismatch = firstMismatch
		result.Diagnostics.Warnf("saved mapping no longer matches this layout: %s",
			strings.Join(firstMismatch.Reasons, "; "))
		return result, name, nil
	}
	return nil, "", &finparse.StructuralError{Reason: "no parsable sheet in workbook"}
}

// previewRow is the wire shape of one extracted row in the upload preview.
// Amounts are rendered as strings so the UI never loses decimal precision.
type previewRow struct {
	RowIndex     int               `json:"row_index"`
	AccountCode  string            `json:"account_code,omitempty"`
	AccountName  string            `json:"account_name"`
	Signature    string            `json:"signature"`
	Category     string            `json:"category"`
	Subcategory  string            `json:"subcategory,omitempty"`
	IsTotal      bool              `json:"is_total,omitempty"`
	IsCalculated bool              `json:"is_calculated,omitempty"`
	Values       map[string]string `json:"values"`
	Inflow       map[string]bool   `json:"inflow"`
}

type previewPeriod struct {
	Key    string                   `json:"key"`
	Period finparse.CanonicalPeriod `json:"period"`
}

func buildPreview(uploadID string, result *finparse.ParseResult, sheetName, fileName string) map[string]interface{} {
	periodSet := make(map[finparse.CanonicalPeriod]bool)
	for _, pc := range result.Structure.PeriodColumns {
		periodSet[pc.Period] = true
	}
	periods := make([]finparse.CanonicalPeriod, 0, len(periodSet))
	for p := range periodSet {
		periods = append(periods, p)
	}
	finparse.SortPeriods(periods)
	wirePeriods := make([]previewPeriod, 0, len(periods))
	for _, p := range periods {
		wirePeriods = append(wirePeriods, previewPeriod{Key: p.Key(), Period: p})
	}

	rows := make([]previewRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		pr := previewRow{
			RowIndex:     row.RowIndex,
			AccountCode:  row.AccountCode,
			AccountName:  row.AccountName,
			Signature:    row.Signature(),
			Category:     row.Category,
			Subcategory:  row.Subcategory,
			IsTotal:      row.IsTotal,
			IsCalculated: row.IsCalculated,
			Values:       make(map[string]string, len(row.Values)),
			Inflow:       make(map[string]bool, len(row.Values)),
		}
		for period, amount := range row.Values {
			key := period.Key()
			pr.Values[key] = amount.Value.String()
			pr.Inflow[key] = amount.IsInflow
		}
		rows = append(rows, pr)
	}

	payload := map[string]interface{}{
		"upload_id":      uploadID,
		"file_name":      fileName,
		"sheet_name":     sheetName,
		"statement_type": result.StatementType,
		"currency":       result.Currency,
		"used_template":  result.UsedTemplate,
		"periods":        wirePeriods,
		"rows":           rows,
		"diagnostics":    result.Diagnostics,
	}
	if result.Mismatch != nil {
		payload["template_mismatch"] = result.Mismatch
	}
	return payload
}

// UploadStatementHandler accepts a statement file, parses it, and stashes the
// result in the preview cache. Nothing is persisted until the user confirms.
func UploadStatementHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		userID := api.GetUserIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileMissing)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileMissing)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedUploadExts[ext] {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUnsupported)
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil || len(data) == 0 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUnreadable)
			return
		}
		if len(data) > maxUploadBytes {
			api.RespondWithError(w, http.StatusRequestEntityTooLarge, "File exceeds the 32MB upload limit.")
			return
		}

		statementType := strings.ToLower(strings.TrimSpace(r.FormValue("statement_type")))
		if statementType == "" {
			statementType = finparse.StatementPnL
		}
		if statementType != finparse.StatementPnL && statementType != finparse.StatementCashflow {
			api.RespondWithError(w, http.StatusBadRequest, "statement_type must be pnl or cashflow")
			return
		}
		locale := strings.TrimSpace(r.FormValue("locale"))
		currency := strings.ToUpper(strings.TrimSpace(r.FormValue("currency")))

		fileHash := checksum.FileHash(data)

		var exists bool
		err = d.Pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM finreports.financial_statements WHERE company_id = $1 AND file_hash = $2)`,
			companyID, fileHash).Scan(&exists)
		if err != nil {
			api.LogError("upload duplicate check failed: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}
		if exists {
			api.RespondWithError(w, http.StatusConflict, constants.ErrFileAlreadyUploaded)
			return
		}

		sheets, err := finparse.DecodeWorkbook(data)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrFileUnsupported)
			return
		}

		template, err := loadTemplate(ctx, d.Pool, companyID, statementType)
		if err != nil {
			api.LogError("template lookup failed for company %s: %v", companyID, err)
			// Parsing proceeds without the template; the preview still works.
			template = nil
		}

		result, sheetName, err := parseFirstUsableSheet(ctx, sheets, finparse.ParseOptions{
			Locale:        locale,
			StatementType: statementType,
			Currency:      currency,
			Suggest:       d.Suggest,
			Template:      template,
		})
		if err != nil {
			api.RespondWithError(w, http.StatusUnprocessableEntity, constants.ErrNoParsableSheet)
			return
		}

		uploadID := d.Cache.Put(&uploadcache.Entry{
			CompanyID:     companyID,
			UserID:        userID,
			StatementType: statementType,
			Locale:        locale,
			FileName:      header.Filename,
			FileBytes:     data,
			SHA256:        fileHash,
			Result:        result,
		})
		api.LogInfo("statement upload parsed: company=%s file=%s sheet=%s rows=%d confidence=%.2f",
			companyID, header.Filename, sheetName, len(result.Rows), result.Diagnostics.Confidence)

		api.RespondWithPayload(w, true, "", buildPreview(uploadID, result, sheetName, header.Filename))
	})
}

type confirmRequest struct {
	UserID       string                             `json:"user_id"`
	UploadID     string                             `json:"upload_id"`
	SaveTemplate bool                               `json:"save_template"`
	Overrides    map[string]finparse.Classification `json:"overrides"`
}

// ConfirmStatementHandler persists a previewed upload: user corrections are
// applied, the original file is archived, and the statement plus its line
// items land in one transaction. Optionally the confirmed mapping is saved as
// the company's template for that statement type.
func ConfirmStatementHandler(d *Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		companyID := api.GetCompanyIDFromCtx(ctx)
		userID := api.GetUserIDFromCtx(ctx)
		if companyID == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrMissingCompanyID)
			return
		}

		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UploadID == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidJSON)
			return
		}

		entry, ok := d.Cache.Get(req.UploadID)
		if !ok || entry.CompanyID != companyID {
			// An expired preview and a foreign-tenant preview look identical to
			// the caller.
			api.RespondWithError(w, http.StatusNotFound, constants.ErrUploadExpired)
			return
		}
		if !checksum.Matches(entry.FileBytes, entry.SHA256) {
			api.RespondWithError(w, http.StatusInternalServerError, "cached upload failed integrity check")
			return
		}
		result := entry.Result

		mu := d.locks.lock(companyID + "|" + entry.StatementType)
		defer mu.Unlock()

		for i := range result.Rows {
			if cls, found := req.Overrides[result.Rows[i].Signature()]; found {
				finparse.ReclassifyRow(&result.Rows[i], cls)
			}
		}

		statementID := uuid.New().String()
		s3URL := ""
		if url, err := uploadOriginalToS3(ctx, companyID, statementID, entry.FileName, entry.FileBytes); err != nil {
			api.LogError("archive upload failed for %s: %v", entry.FileName, err)
		} else {
			s3URL = url
		}

		tx, err := d.Pool.Begin(ctx)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTxStartFailed+err.Error())
			return
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback(ctx)
			}
		}()

		if _, err := tx.Exec(ctx, `SET LOCAL statement_timeout = '30s'`); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
			return
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO finreports.financial_statements
				(id, company_id, statement_type, file_name, file_hash, currency, locale,
				 source_url, confidence, uploaded_by, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'Confirmed', $11)`,
			statementID, companyID, entry.StatementType, entry.FileName, entry.SHA256,
			result.Currency, entry.Locale, s3URL, result.Diagnostics.Confidence, userID, time.Now())
		if err != nil {
			status := http.StatusInternalServerError
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				status = http.StatusConflict
			}
			api.RespondWithError(w, status, friendlyDBError(err))
			return
		}

		copyRows := make([][]interface{}, 0, len(result.Rows)*4)
		for _, row := range result.Rows {
			periods := make([]finparse.CanonicalPeriod, 0, len(row.Values))
			for p := range row.Values {
				periods = append(periods, p)
			}
			finparse.SortPeriods(periods)
			for _, period := range periods {
				amount := row.Values[period]
				copyRows = append(copyRows, []interface{}{
					statementID, row.RowIndex, row.AccountCode, row.AccountName,
					row.Category, row.Subcategory, row.IsTotal, row.IsCalculated,
					string(period.Kind), period.Year, period.Month, period.Quarter,
					period.Label, period.Key(), amount.Value.String(), amount.IsInflow,
					result.Currency,
				})
			}
		}
		if len(copyRows) > 0 {
			_, err = tx.CopyFrom(ctx,
				pgx.Identifier{"finreports", "financial_line_items"},
				[]string{
					"statement_id", "row_index", "account_code", "account_name",
					"category", "subcategory", "is_total", "is_calculated",
					"period_kind", "period_year", "period_month", "period_quarter",
					"period_label", "period_key", "amount", "is_inflow", "currency",
				},
				pgx.CopyFromRows(copyRows))
			if err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
				return
			}
		}

		templateSaved := false
		if req.SaveTemplate {
			tpl := finparse.BuildTemplate(result, companyID)
			if err := upsertTemplate(ctx, tx, tpl); err != nil {
				api.RespondWithError(w, http.StatusInternalServerError, friendlyDBError(err))
				return
			}
			templateSaved = true
		}

		if err := tx.Commit(ctx); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrTxCommitFailed+err.Error())
			return
		}
		committed = true
		d.Cache.Delete(req.UploadID)

		api.LogInfo("statement confirmed: company=%s statement=%s line_items=%d template_saved=%t",
			companyID, statementID, len(copyRows), templateSaved)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"message":        constants.MsgStatementConfirmed,
			"statement_id":   statementID,
			"line_items":     len(copyRows),
			"template_saved": templateSaved,
			"archive_url":    s3URL,
		})
	})
}
