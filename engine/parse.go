package engine

import (
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// CELL PARSING — Text to typed cells
// ============================================================================
// Shared by ingestion (helpers), kind inference (schema) and comparisons
// between datetime columns and string literals.
// ============================================================================

var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"nil":  true,
	"-":    true,
}

// IsNullToken reports whether s denotes a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber parses numeric text, accepting thousands separators, a leading
// currency sign and a trailing percent sign.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	for _, p := range []string{"$", "€", "£"} {
		s = strings.TrimPrefix(s, p)
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ParseBool parses the usual spellings of a boolean.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "si", "sí":
		return true, true
	case "false", "no", "n":
		return false, true
	}
	return false, false
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"2-1-2006",
	"02-01-2006",
	"2006-01",
	"Jan-2006",
	"Jan 2006",
	"January 2006",
	"Jan-06",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// monthNames maps English and Spanish month names and abbreviations to
// month numbers.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January, "ene": time.January, "enero": time.January,
	"feb": time.February, "february": time.February, "febrero": time.February,
	"mar": time.March, "march": time.March, "marzo": time.March,
	"apr": time.April, "april": time.April, "abr": time.April, "abril": time.April,
	"may": time.May, "mayo": time.May,
	"jun": time.June, "june": time.June, "junio": time.June,
	"jul": time.July, "july": time.July, "julio": time.July,
	"aug": time.August, "august": time.August, "ago": time.August, "agosto": time.August,
	"sep": time.September, "sept": time.September, "september": time.September, "septiembre": time.September, "setiembre": time.September,
	"oct": time.October, "october": time.October, "octubre": time.October,
	"nov": time.November, "november": time.November, "noviembre": time.November,
	"dec": time.December, "december": time.December, "dic": time.December, "diciembre": time.December,
}

// ParseTime parses date text using the supported layouts, then falls back to
// "<month name> <year>" and "<month name>-<year>" in English or Spanish.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '-' || r == '/' || r == '.'
	})
	if len(fields) == 2 {
		if m, ok := monthNames[fields[0]]; ok {
			if y, err := strconv.Atoi(fields[1]); err == nil && y >= 1000 && y <= 9999 {
				return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}
