// internal/rules/coercion.go
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/solatis/stagekeeper/internal/types"
)

/*
 * Input coercion for analyst-entered text.
 *
 * Thresholds, filter values and day windows arrive as text. Coercion maps
 * that text onto model values by field kind:
 *
 *   - numeric threshold (literal/percentage): float64; anything unparseable
 *     becomes the empty threshold, never zero and never NaN
 *   - reference threshold: always empty (the value comes from another stage)
 *   - other kinds: text kept verbatim
 *   - day windows: positive integer or nil
 *
 * Malformed input is coerced, not reported. Validate reports the resulting
 * empty values where a value is required.
 */

// CoerceThreshold converts threshold input for a target of the given kind.
func CoerceThreshold(input string, kind FieldKind, tt types.ThresholdType) types.Threshold {
	if tt == types.ThresholdReference {
		return types.EmptyThreshold()
	}
	if kind != FieldNumeric {
		return types.TextThreshold(input)
	}
	f, ok := parseFinite(input)
	if !ok {
		return types.EmptyThreshold()
	}
	return types.NumberThreshold(f)
}

// CoerceFilterValue converts filter value input for a field of the given kind.
// Empty input and unparseable numeric input yield null.
func CoerceFilterValue(input string, kind FieldKind) types.FilterValue {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return types.NullValue()
	}
	if kind != FieldNumeric {
		return types.ScalarValue(types.TextScalar(input))
	}
	f, ok := parseFinite(trimmed)
	if !ok {
		return types.NullValue()
	}
	return types.ScalarValue(types.NumberScalar(f))
}

// ParseDays converts day-window input to a positive integer.
// Empty, non-numeric, zero and negative input yield nil; values above
// MaxTimeWindowDays are kept for Validate to report.
func ParseDays(input string) *int {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// parseFinite parses a float64, rejecting blank, NaN and infinite input.
func parseFinite(input string) (float64, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
