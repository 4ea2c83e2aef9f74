package rules

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Leaf match helpers for handlers.
 *
 * Each helper validates the leaf operator against its descriptor, then picks
 * the operand shape:
 *   - scalar descriptor: Compare(actual, leaf value)
 *   - array descriptor, single actual value: HasListMatch(actual, leaf list)
 *   - array descriptor, many actual values: HasListsMatch when the descriptor
 *     compares sequences, otherwise HasListMatch on the first actual value
 *
 * String comparisons ignore case.
 */

// CheckOperator returns ErrInvalidRuleOperator when the leaf operator is not
// valid for its descriptor.
func CheckOperator(leaf *LeafExpression) error {
	if leaf.Descriptor.IsValidOperator(leaf.Operator) {
		return nil
	}
	return fmt.Errorf("%w: %s is not valid for rule type %s (%s)", types.ErrInvalidRuleOperator, leaf.Operator, leaf.RuleType, leaf.Descriptor.Kind())
}

// MatchInt64 matches a single integer.
func MatchInt64(leaf *LeafExpression, actual int64) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.Kind().IsArray() {
		return HasListMatch(leaf.Operator, actual, leaf.IntValues())
	}
	return Compare(leaf.Operator, actual, leaf.IntValue())
}

// MatchInt64s matches a collection of integers.
func MatchInt64s(leaf *LeafExpression, actual []int64) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.IsComparingSequences() {
		return HasListsMatch(leaf.Operator, actual, leaf.IntValues())
	}
	return MatchInt64(leaf, first(actual))
}

// MatchFloat64 matches a single float.
func MatchFloat64(leaf *LeafExpression, actual float64) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.Kind().IsArray() {
		return HasListMatch(leaf.Operator, actual, leaf.FloatValues())
	}
	return Compare(leaf.Operator, actual, leaf.FloatValue())
}

// MatchDecimal matches a single decimal amount.
func MatchDecimal(leaf *LeafExpression, actual decimal.Decimal) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.Kind().IsArray() {
		return HasListMatchFunc(leaf.Operator, actual, leaf.DecimalValues(), decimal.Decimal.Equal)
	}
	return CompareFunc(leaf.Operator, actual, leaf.DecimalValue(), decimal.Decimal.Cmp)
}

// MatchString matches a single string.
func MatchString(leaf *LeafExpression, actual string) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.Kind().IsArray() {
		return HasListMatchFunc(leaf.Operator, actual, leaf.StringValues(), strings.EqualFold)
	}
	return CompareFunc(leaf.Operator, actual, leaf.StringValue(), compareFold)
}

// MatchStrings matches a collection of strings.
func MatchStrings(leaf *LeafExpression, actual []string) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.IsComparingSequences() {
		return HasListsMatchFunc(leaf.Operator, actual, leaf.StringValues(), compareFold)
	}
	return MatchString(leaf, first(actual))
}

// MatchTime matches a single point in time.
func MatchTime(leaf *LeafExpression, actual time.Time) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	if leaf.Descriptor.Kind().IsArray() {
		return HasListMatchFunc(leaf.Operator, actual, leaf.TimeValues(), time.Time.Equal)
	}
	return CompareFunc(leaf.Operator, actual, leaf.TimeValue(), time.Time.Compare)
}

// MatchBool matches a boolean flag.
func MatchBool(leaf *LeafExpression, actual bool) (bool, error) {
	if err := CheckOperator(leaf); err != nil {
		return false, err
	}
	return CompareFunc(leaf.Operator, actual, leaf.BoolValue(), compareBool)
}

func compareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func first[T any](s []T) T {
	var zero T
	if len(s) == 0 {
		return zero
	}
	return s[0]
}
