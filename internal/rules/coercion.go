// internal/rules/coercion.go
package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Value decoding for compiled leaves.
 *
 * Persisted rule values are strings. Decode turns one into the Go type of the
 * descriptor's ValueKind:
 *
 *   KindBoolean -> bool            KindIntArray     -> []int64
 *   KindInt     -> int64           KindFloatArray   -> []float64
 *   KindFloat   -> float64         KindDecimalArray -> []decimal.Decimal
 *   KindDecimal -> decimal.Decimal KindStringArray  -> []string
 *   KindString  -> string          KindDateArray    -> []time.Time
 *   KindDate    -> time.Time       KindNone         -> raw string
 *
 * Lists are comma separated; blank items are dropped, so an empty value
 * decodes to an empty list (a vacuous constraint). A scalar string is kept
 * as-is; list items, numbers and dates are trimmed. Decimal avoids float rounding
 * on money values.
 */

// ListSeparator separates the items of a persisted list value.
const ListSeparator = ","

// dateLayouts are tried in order when decoding KindDate values.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Decode converts a persisted value into the Go type of kind.
// Returns ErrCoercionFailed for values that do not parse.
func Decode(raw string, kind ValueKind) (any, error) {
	if kind.IsArray() {
		return decodeList(raw, kind.Elem())
	}
	return decodeScalar(raw, kind)
}

func decodeScalar(raw string, kind ValueKind) (any, error) {
	switch kind {
	case KindNone, KindString:
		return raw, nil
	case KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, types.ErrCoercionFailed
		}
		return b, nil
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, types.ErrCoercionFailed
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, types.ErrCoercionFailed
		}
		return f, nil
	case KindDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, types.ErrCoercionFailed
		}
		return d, nil
	case KindDate:
		return parseDate(raw)
	default:
		return nil, types.ErrCoercionFailed
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, types.ErrCoercionFailed
}

func decodeList(raw string, elem ValueKind) (any, error) {
	var items []string
	for _, item := range strings.Split(raw, ListSeparator) {
		if strings.TrimSpace(item) == "" {
			continue
		}
		items = append(items, item)
	}

	switch elem {
	case KindInt:
		return decodeItems[int64](items, elem)
	case KindFloat:
		return decodeItems[float64](items, elem)
	case KindDecimal:
		return decodeItems[decimal.Decimal](items, elem)
	case KindString:
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = strings.TrimSpace(item)
		}
		return out, nil
	case KindDate:
		return decodeItems[time.Time](items, elem)
	default:
		return nil, types.ErrCoercionFailed
	}
}

func decodeItems[T any](items []string, elem ValueKind) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := decodeScalar(item, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v.(T))
	}
	return out, nil
}
