package statementstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"FinReportsSaas/internal/finparse"
)

// LineItem is one persisted (row, period) cell of a statement.
type LineItem struct {
	RowIndex     int
	AccountCode  string
	AccountName  string
	Category     string
	Subcategory  string
	IsTotal      bool
	IsCalculated bool
	Period       finparse.CanonicalPeriod
	Amount       finparse.Amount
}

// rowAccumulator regroups flat line items into account rows keyed by source
// row index, preserving first-seen order. Row-level fields come from the
// first item of each index; later items only add period values.
type rowAccumulator struct {
	byIndex map[int]*finparse.AccountRow
	order   []int
}

func newRowAccumulator() *rowAccumulator {
	return &rowAccumulator{byIndex: make(map[int]*finparse.AccountRow)}
}

func (a *rowAccumulator) add(item LineItem) {
	row, ok := a.byIndex[item.RowIndex]
	if !ok {
		row = &finparse.AccountRow{
			RowIndex:     item.RowIndex,
			AccountCode:  item.AccountCode,
			AccountName:  item.AccountName,
			Category:     item.Category,
			Subcategory:  item.Subcategory,
			IsTotal:      item.IsTotal,
			IsCalculated: item.IsCalculated,
			Values:       make(map[finparse.CanonicalPeriod]finparse.Amount),
		}
		a.byIndex[item.RowIndex] = row
		a.order = append(a.order, item.RowIndex)
	}
	row.Values[item.Period] = item.Amount
}

func (a *rowAccumulator) rows() []finparse.AccountRow {
	out := make([]finparse.AccountRow, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, *a.byIndex[idx])
	}
	return out
}

// LoadLineItems rebuilds the in-memory account rows of one statement from its
// stored line items, so re-aggregation runs on the same shapes the parser
// produces. Periods come back from their decomposed columns, keeping the
// canonical identity across the round trip.
func LoadLineItems(ctx context.Context, db *pgxpool.Pool, statementID string) ([]finparse.AccountRow, error) {
	rows, err := db.Query(ctx, `
		SELECT row_index, COALESCE(account_code, ''), account_name, category,
		       COALESCE(subcategory, ''), is_total, is_calculated,
		       period_kind, period_year, period_month, period_quarter,
		       COALESCE(period_label, ''), amount::text, is_inflow
		FROM finreports.financial_line_items
		WHERE statement_id = $1
		ORDER BY row_index`,
		statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	acc := newRowAccumulator()
	for rows.Next() {
		var (
			item       LineItem
			kind       string
			amountText string
			isInflow   bool
		)
		if err := rows.Scan(&item.RowIndex, &item.AccountCode, &item.AccountName,
			&item.Category, &item.Subcategory, &item.IsTotal, &item.IsCalculated,
			&kind, &item.Period.Year, &item.Period.Month, &item.Period.Quarter,
			&item.Period.Label, &amountText, &isInflow); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, err
		}
		item.Period.Kind = finparse.PeriodKind(kind)
		item.Amount = finparse.Amount{Value: value, IsInflow: isInflow}
		acc.add(item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return acc.rows(), nil
}
