package finparse

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cell is one decoded spreadsheet cell. Workbook decoding flattens every cell
// to its display text; when that text is a plain number the numeric value is
// kept alongside so callers never re-parse. Error literals (#REF!, #DIV/0!,
// ...) are normalized to empty cells at decode time.
type Cell struct {
	Raw      string
	Number   float64
	IsNumber bool
}

func (c Cell) IsEmpty() bool {
	return strings.TrimSpace(c.Raw) == ""
}

// RawGrid is the ephemeral row-major view of one sheet. It exists only for
// the duration of a single parse and is never mutated after decoding.
type RawGrid [][]Cell

// Sheet pairs a grid with its workbook tab name.
type Sheet struct {
	Name string
	Grid RawGrid
}

// ColumnRole tags what a column contributes to the statement.
type ColumnRole string

const (
	RoleAccountCode ColumnRole = "account_code"
	RoleAccountName ColumnRole = "account_name"
	RolePeriod      ColumnRole = "period"
	RoleIgnore      ColumnRole = "ignore"
)

// PeriodKind distinguishes the normalized period shapes.
type PeriodKind string

const (
	PeriodMonth   PeriodKind = "month"
	PeriodQuarter PeriodKind = "quarter"
	PeriodYear    PeriodKind = "year"
	// PeriodLabel keeps unrecognized header text verbatim so downstream
	// consumers can still display the column.
	PeriodLabel PeriodKind = "label"
)

// CanonicalPeriod is a normalized period identifier, independent of how the
// source header spelled it. It is comparable and usable as a map key.
type CanonicalPeriod struct {
	Kind    PeriodKind `json:"kind"`
	Year    int        `json:"year,omitempty"`
	Month   int        `json:"month,omitempty"`   // 1-12 when Kind == PeriodMonth
	Quarter int        `json:"quarter,omitempty"` // 1-4 when Kind == PeriodQuarter
	Label   string     `json:"label,omitempty"`
}

func MonthPeriod(year, month int) CanonicalPeriod {
	return CanonicalPeriod{Kind: PeriodMonth, Year: year, Month: month}
}

func QuarterPeriod(year, quarter int) CanonicalPeriod {
	return CanonicalPeriod{Kind: PeriodQuarter, Year: year, Quarter: quarter}
}

func YearPeriod(year int) CanonicalPeriod {
	return CanonicalPeriod{Kind: PeriodYear, Year: year}
}

func LabelPeriod(label string) CanonicalPeriod {
	return CanonicalPeriod{Kind: PeriodLabel, Label: label}
}

// Key renders a stable identifier, e.g. "2025-08", "2025-Q1", "2025".
func (p CanonicalPeriod) Key() string {
	switch p.Kind {
	case PeriodMonth:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	case PeriodQuarter:
		return fmt.Sprintf("%04d-Q%d", p.Year, p.Quarter)
	case PeriodYear:
		return fmt.Sprintf("%04d", p.Year)
	default:
		return "label:" + p.Label
	}
}

// ordinal maps a period onto a month scale used for chronological ordering.
// Quarters sort after their last month so a "Q1 Total" column lands after
// March even when the source interleaves it mid-row. Verbatim labels sort
// last, in input order.
func (p CanonicalPeriod) ordinal() int {
	switch p.Kind {
	case PeriodMonth:
		return (p.Year*12 + p.Month - 1) * 4
	case PeriodQuarter:
		return (p.Year*12+p.Quarter*3-1)*4 + 1
	case PeriodYear:
		return (p.Year*12+11)*4 + 2
	default:
		return 1 << 30
	}
}

// Before reports chronological order between two periods.
func (p CanonicalPeriod) Before(q CanonicalPeriod) bool {
	return p.ordinal() < q.ordinal()
}

// SortPeriods orders periods chronologically, labels last.
func SortPeriods(periods []CanonicalPeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		return periods[i].Before(periods[j])
	})
}

// PeriodColumn binds a resolved header to its column index and the currency
// section it belongs to. Columns after a section boundary carry the boundary
// currency until the next boundary or end of row.
type PeriodColumn struct {
	ColumnIndex     int             `json:"column_index"`
	Period          CanonicalPeriod `json:"period"`
	CurrencySection string          `json:"currency_section"`
	LowConfidence   bool            `json:"low_confidence,omitempty"`
}

// Amount is a parsed cell value normalized to a consistent accounting sign:
// Value is a magnitude and IsInflow carries the flow direction, regardless of
// whether the source wrote expenses as negatives or as positive numbers in an
// outflow section.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	IsInflow bool            `json:"is_inflow"`
}

// Signed returns the accounting-signed value (inflows positive).
func (a Amount) Signed() decimal.Decimal {
	if a.IsInflow {
		return a.Value
	}
	return a.Value.Neg()
}

// Classification is the category assignment for one account row.
type Classification struct {
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory,omitempty"`
	IsTotal      bool   `json:"is_total,omitempty"`
	IsCalculated bool   `json:"is_calculated,omitempty"`
}

// AccountRow is the transient projection of one detected account line across
// all period columns. Rows flagged IsTotal or IsCalculated are retained for
// display and cross-checking but excluded from downstream summation.
type AccountRow struct {
	RowIndex     int
	AccountCode  string
	AccountName  string
	Category     string
	Subcategory  string
	IsTotal      bool
	IsCalculated bool
	Values       map[CanonicalPeriod]Amount
}

// Signature is the stable row identity used by mapping templates to replay
// classifications: the normalized account name, prefixed by the code when one
// exists.
func (r AccountRow) Signature() string {
	return RowSignature(r.AccountCode, r.AccountName)
}

func RowSignature(code, name string) string {
	name = strings.ToLower(strings.Join(strings.Fields(name), " "))
	code = strings.TrimSpace(code)
	if code != "" {
		return code + "|" + name
	}
	return name
}

// SheetStructure is the outcome of structure detection on one grid.
type SheetStructure struct {
	HeaderRowIndex int
	DataStartRow   int
	DataEndRow     int // inclusive
	ColumnRoles    map[int]ColumnRole
	PeriodColumns  []PeriodColumn
}

// AccountNameColumn returns the index of the account-name column, or -1.
func (s *SheetStructure) AccountNameColumn() int {
	for idx, role := range s.ColumnRoles {
		if role == RoleAccountName {
			return idx
		}
	}
	return -1
}

// AccountCodeColumn returns the index of the account-code column, or -1.
func (s *SheetStructure) AccountCodeColumn() int {
	for idx, role := range s.ColumnRoles {
		if role == RoleAccountCode {
			return idx
		}
	}
	return -1
}

// Diagnostics accumulates non-fatal findings from one parse. Warnings never
// abort the parse; they gate whether the result needs human review.
type Diagnostics struct {
	Warnings   []string `json:"warnings"`
	Errors     []string `json:"errors"`
	Confidence float64  `json:"confidence"`
}

func (d *Diagnostics) Warnf(format string, args ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// Fingerprint is the lightweight structural identity a mapping template is
// validated against before replay.
type Fingerprint struct {
	ColumnCount int      `json:"column_count"`
	HeaderTexts []string `json:"header_texts"`
}

func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.ColumnCount != other.ColumnCount || len(f.HeaderTexts) != len(other.HeaderTexts) {
		return false
	}
	for i := range f.HeaderTexts {
		if f.HeaderTexts[i] != other.HeaderTexts[i] {
			return false
		}
	}
	return true
}

// MappingTemplate is the persisted, replayable description of a previously
// confirmed layout. Applying a template never mutates it; updates happen only
// through an explicit re-save by the owning company.
type MappingTemplate struct {
	ID              string                    `json:"id"`
	CompanyID       string                    `json:"company_id"`
	StatementType   string                    `json:"statement_type"`
	Fingerprint     Fingerprint               `json:"fingerprint"`
	ColumnRoles     map[int]ColumnRole        `json:"column_roles"`
	PeriodColumns   []PeriodColumn            `json:"period_columns"`
	Classifications map[string]Classification `json:"classifications"`
	Currency        string                    `json:"currency"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// MismatchReport explains why a template could not be replayed against a
// grid. The pipeline never guesses past a mismatch; the caller decides
// whether to fall back to full detection.
type MismatchReport struct {
	Reasons             []string    `json:"reasons"`
	TemplateFingerprint Fingerprint `json:"template_fingerprint"`
	GridFingerprint     Fingerprint `json:"grid_fingerprint"`
}

// ParseResult is the complete outcome of parsing one statement sheet.
type ParseResult struct {
	StatementType string
	Currency      string
	Structure     *SheetStructure
	Rows          []AccountRow
	Diagnostics   Diagnostics
	UsedTemplate  bool
	Mismatch      *MismatchReport

	sourceFingerprint Fingerprint
}

// StructuralError is fatal to the current parse: no usable header, no data
// rows, or an empty grid. No partial result accompanies it.
type StructuralError struct {
	Reason string
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// Statement types accepted by the pipeline.
const (
	StatementPnL      = "pnl"
	StatementCashflow = "cashflow"
)
