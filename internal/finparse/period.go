package finparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PeriodResolution is the outcome of resolving one raw header cell. Exactly
// one of Boundary or OK is meaningful; unrecognized text resolves OK with a
// verbatim label period and LowConfidence set.
type PeriodResolution struct {
	Period        CanonicalPeriod
	OK            bool
	Boundary      bool
	Currency      string
	LowConfidence bool
}

var (
	quarterFirstRe = regexp.MustCompile(`(?i)^q([1-4])[\s\-/_.]*('?\d{2}|\d{4})$`)
	quarterLastRe  = regexp.MustCompile(`(?i)^([1-4])q[\s\-/_.]*('?\d{2}|\d{4})$`)
	fiscalYearRe   = regexp.MustCompile(`(?i)^fy[\s\-]*('?\d{2}|\d{4})$`)
	plainYearRe    = regexp.MustCompile(`^(\d{4})$`)
	monthTokenRe   = regexp.MustCompile(`(?i)^([a-záéíó]{3,12})[\s\-/\.]+('?\d{2}|\d{4})$`)
)

// monthNames maps lowercase English and Spanish month tokens (3-letter and
// full) to month numbers. The Spanish set mirrors the month headers the
// original statements use (Ene-24, Abr-24, Ago-24, Dic-24, ...).
var monthNames = map[string]int{
	"jan": 1, "january": 1, "ene": 1, "enero": 1,
	"feb": 2, "february": 2, "febrero": 2,
	"mar": 3, "march": 3, "marzo": 3,
	"apr": 4, "april": 4, "abr": 4, "abril": 4,
	"may": 5, "mayo": 5,
	"jun": 6, "june": 6, "junio": 6,
	"jul": 7, "july": 7, "julio": 7,
	"aug": 8, "august": 8, "ago": 8, "agosto": 8,
	"sep": 9, "september": 9, "sept": 9, "septiembre": 9,
	"oct": 10, "october": 10, "octubre": 10,
	"nov": 11, "november": 11, "noviembre": 11,
	"dec": 12, "december": 12, "dic": 12, "diciembre": 12,
}

var explicitDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2006",
	"January 2006",
	"Jan-06",
	"Jan-2006",
	"01-2006",
	"2006-01",
}

// normalizeYear maps 2-digit years into the 2000s.
func normalizeYear(tok string) int {
	tok = strings.TrimPrefix(strings.TrimSpace(tok), "'")
	y, err := strconv.Atoi(tok)
	if err != nil {
		return 0
	}
	if y < 100 {
		y += 2000
	}
	return y
}

// isSectionBoundary detects the header marker that switches the statement to
// a secondary-currency section: a literal "Dollars"/"Dólares" cell or any
// header containing a USD code.
func isSectionBoundary(s string) (string, bool) {
	v := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if v == "" {
		return "", false
	}
	if strings.Contains(strings.ToUpper(s), "USD") {
		return "USD", true
	}
	if v == "dollars" || v == "dólares" || v == "dolares" {
		return "USD", true
	}
	return "", false
}

// ResolvePeriod turns one raw header cell into a canonical period or a
// section-boundary marker. Recognized shapes: Excel date serials, explicit
// dates, quarter tokens (Q1 2025 / 1Q25 / q1-25), yearly tokens (2025,
// FY2025, fy 25) and month-year tokens in English or Spanish. Anything else
// is kept verbatim as a low-confidence label so it can still be displayed.
func ResolvePeriod(cell Cell, columnIndex int) PeriodResolution {
	raw := strings.TrimSpace(strings.ReplaceAll(cell.Raw, nbsp, " "))
	if raw == "" {
		return PeriodResolution{}
	}

	if cur, ok := isSectionBoundary(raw); ok {
		return PeriodResolution{Boundary: true, Currency: cur}
	}

	if cell.IsNumber && cell.Number >= minHeaderSerial {
		y, m := SerialToYearMonth(cell.Number)
		return PeriodResolution{Period: MonthPeriod(y, m), OK: true}
	}
	if f, ok := looksLikeSerial(raw); ok {
		y, m := SerialToYearMonth(f)
		return PeriodResolution{Period: MonthPeriod(y, m), OK: true}
	}

	// Quarter-total columns like "Q1-2024 Total" are still quarter periods.
	token := raw
	lower := strings.ToLower(token)
	if strings.HasSuffix(lower, " total") {
		token = strings.TrimSpace(token[:len(token)-len(" total")])
	}

	if m := quarterFirstRe.FindStringSubmatch(token); m != nil {
		q, _ := strconv.Atoi(m[1])
		return PeriodResolution{Period: QuarterPeriod(normalizeYear(m[2]), q), OK: true}
	}
	if m := quarterLastRe.FindStringSubmatch(token); m != nil {
		q, _ := strconv.Atoi(m[1])
		return PeriodResolution{Period: QuarterPeriod(normalizeYear(m[2]), q), OK: true}
	}
	if m := fiscalYearRe.FindStringSubmatch(token); m != nil {
		return PeriodResolution{Period: YearPeriod(normalizeYear(m[1])), OK: true}
	}
	if m := plainYearRe.FindStringSubmatch(token); m != nil {
		y, _ := strconv.Atoi(m[1])
		if y >= 1900 && y <= 2200 {
			return PeriodResolution{Period: YearPeriod(y), OK: true}
		}
	}
	if m := monthTokenRe.FindStringSubmatch(token); m != nil {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			return PeriodResolution{Period: MonthPeriod(normalizeYear(m[2]), month), OK: true}
		}
	}
	// Bare month name with no year is ambiguous; fall through to layouts.
	for _, layout := range explicitDateLayouts {
		if t, err := time.Parse(layout, token); err == nil && t.Year() >= 1900 {
			return PeriodResolution{Period: MonthPeriod(t.Year(), int(t.Month())), OK: true}
		}
	}

	return PeriodResolution{
		Period:        LabelPeriod(raw),
		OK:            true,
		LowConfidence: true,
	}
}
