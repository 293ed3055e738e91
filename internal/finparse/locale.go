package finparse

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountResult is the outcome of parsing a single cell as a monetary value.
// Invalid inputs come back as zero with IsValid=false; callers must surface
// that as a row-level warning instead of dropping the cell silently.
type AmountResult struct {
	Value   decimal.Decimal
	IsValid bool
}

const nbsp = " "

var currencySymbols = []string{"$", "€", "¥", "£", "₹", "US$", "MX$", "R$"}

// localeUsesCommaDecimal reports whether the locale writes decimals with a
// comma (Spanish/LATAM convention: "." groups thousands, "," is the decimal
// mark). English locales are the reverse.
func localeUsesCommaDecimal(locale string) bool {
	l := strings.ToLower(strings.TrimSpace(locale))
	return strings.HasPrefix(l, "es") || strings.HasPrefix(l, "pt")
}

// ParseAmount parses a locale-ambiguous numeric or currency string. Numeric
// inputs pass through unchanged; strings are cleaned of currency symbols,
// whitespace and percent marks, parenthesized negatives become negative, and
// separators follow the locale convention.
func ParseAmount(raw string, locale string) AmountResult {
	s := strings.TrimSpace(strings.ReplaceAll(raw, nbsp, " "))
	if s == "" {
		return AmountResult{Value: decimal.Zero, IsValid: false}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, " ", "")

	if localeUsesCommaDecimal(locale) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" {
		return AmountResult{Value: decimal.Zero, IsValid: false}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return AmountResult{Value: decimal.Zero, IsValid: false}
	}
	if negative {
		d = d.Neg()
	}
	return AmountResult{Value: d, IsValid: true}
}

// ParseAmountCell parses a decoded cell, letting numeric cells bypass the
// string cleaning entirely.
func ParseAmountCell(c Cell, locale string) AmountResult {
	if c.IsNumber {
		return AmountResult{Value: decimal.NewFromFloat(c.Number), IsValid: true}
	}
	return ParseAmount(c.Raw, locale)
}

// excelEpoch is the serial-date origin used by the 1900 date system. Serial 1
// is 1900-01-01; the offset to 1899-12-30 absorbs the fictitious 1900-02-29
// Excel carries for Lotus compatibility, so serials after 1900-02-28 need one
// day subtracted (see SerialToTime).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// minHeaderSerial is the smallest numeric header value interpreted as an
// Excel date serial. 25000 lands in mid-1968, comfortably past any plausible
// plain-number column header.
const minHeaderSerial = 25000

// SerialToTime converts an Excel date serial (fractional part is time of
// day) into a UTC time, matching Excel's 1900 date system exactly. The
// 1899-12-30 epoch already absorbs the fictitious 1900-02-29 for serials
// from 61 on; earlier serials sit one day closer to the real calendar.
func SerialToTime(serial float64) time.Time {
	days := int(serial)
	frac := serial - float64(days)
	if days < 61 {
		days++
	}
	t := excelEpoch.AddDate(0, 0, days)
	return t.Add(time.Duration(frac * float64(24*time.Hour)))
}

// SerialToYearMonth collapses a serial to its canonical (year, month) pair.
func SerialToYearMonth(serial float64) (int, int) {
	t := SerialToTime(serial)
	return t.Year(), int(t.Month())
}

// looksLikeSerial reports whether a string is a bare number in the header
// serial range.
func looksLikeSerial(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if f >= minHeaderSerial {
		return f, true
	}
	return 0, false
}
