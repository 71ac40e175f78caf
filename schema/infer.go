package schema

import (
	"strings"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// KIND INFERENCE — Raw text columns → engine.ColumnKind
// ============================================================================

// dateKeywords mark a column as temporal by name alone (English and Spanish).
var dateKeywords = []string{"date", "fecha", "day", "dia", "día", "month", "mes", "year", "año", "ano", "time", "periodo", "period"}

// NumericThreshold is the share of probed values that must parse as numbers.
const NumericThreshold = 0.9

// TemporalThreshold is the share of values that must parse as dates when the
// column name carries no date keyword.
const TemporalThreshold = 0.8

// NumericProbe is how many leading non-missing values are probed.
const NumericProbe = 100

// HasDateKeyword reports whether a column name suggests dates.
func HasDateKeyword(name string) bool {
	lower := strings.ToLower(name)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/'
	})
	for _, w := range words {
		for _, k := range dateKeywords {
			if w == k {
				return true
			}
		}
	}
	for _, k := range []string{"date", "fecha"} {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// InferKind classifies a column from its raw text. Missing tokens are
// ignored. Checks run in order: boolean, numeric, datetime, categorical.
func InferKind(name string, values []string) engine.ColumnKind {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if !engine.IsNullToken(v) {
			present = append(present, strings.TrimSpace(v))
		}
	}
	if len(present) == 0 {
		return engine.KindCategorical
	}

	boolCount := 0
	for _, v := range present {
		if _, ok := engine.ParseBool(v); ok {
			boolCount++
		}
	}
	if boolCount == len(present) {
		return engine.KindOther
	}

	probe := present
	if len(probe) > NumericProbe {
		probe = probe[:NumericProbe]
	}
	numCount := 0
	for _, v := range probe {
		if _, ok := engine.ParseNumber(v); ok {
			numCount++
		}
	}
	// Numbers win over dates, so a "year" column of bare years stays numeric.
	if float64(numCount) >= NumericThreshold*float64(len(probe)) {
		return engine.KindNumeric
	}

	dateCount := 0
	for _, v := range present {
		if _, ok := engine.ParseTime(v); ok {
			dateCount++
		}
	}
	threshold := TemporalThreshold
	if HasDateKeyword(name) {
		threshold = 0.5
	}
	if float64(dateCount) >= threshold*float64(len(present)) {
		return engine.KindDatetime
	}
	return engine.KindCategorical
}
