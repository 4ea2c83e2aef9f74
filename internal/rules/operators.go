// internal/rules/operators.go
package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Three operand shapes, each with its own operator family:
 *   - scalar vs scalar (Compare): Equal, NotEqual, GreaterThan,
 *     GreaterThanOrEqual, LessThan, LessThanOrEqual
 *   - scalar vs list (HasListMatch): In, NotIn
 *   - list vs list (HasListsMatch): IsEqualTo, IsNotEqualTo, Contains,
 *     NotContains, In, NotIn, AllIn, NotAllIn
 *
 * An operator outside the family of its shape is a configuration defect and
 * returns ErrInvalidRuleOperator; it never silently evaluates to false.
 *
 * Empty right-hand lists mean "no constraint" and match vacuously. For
 * HasListMatch a zero left value never matches In/NotIn: an unset id must not
 * satisfy a membership rule.
 *
 * Sequence equality is order-independent: both sides are sorted before the
 * element-wise comparison, after a cardinality check.
 *
 * All functions here are pure and never block.
 */

// Operator is a rule comparison operator.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpContains
	OpNotContains
	OpAllIn
	OpNotAllIn
	OpIsEqualTo
	OpIsNotEqualTo
)

var operatorNames = [...]string{
	OpUnspecified:        "Unspecified",
	OpEqual:              "Equal",
	OpNotEqual:           "NotEqual",
	OpGreaterThan:        "GreaterThan",
	OpGreaterThanOrEqual: "GreaterThanOrEqual",
	OpLessThan:           "LessThan",
	OpLessThanOrEqual:    "LessThanOrEqual",
	OpIn:                 "In",
	OpNotIn:              "NotIn",
	OpContains:           "Contains",
	OpNotContains:        "NotContains",
	OpAllIn:              "AllIn",
	OpNotAllIn:           "NotAllIn",
	OpIsEqualTo:          "IsEqualTo",
	OpIsNotEqualTo:       "IsNotEqualTo",
}

// symbolic forms accepted in persisted rows alongside the names
var operatorSymbols = map[string]Operator{
	"=":  OpEqual,
	"==": OpEqual,
	"!=": OpNotEqual,
	"<>": OpNotEqual,
	">":  OpGreaterThan,
	">=": OpGreaterThanOrEqual,
	"<":  OpLessThan,
	"<=": OpLessThanOrEqual,
}

func (op Operator) String() string {
	if op < 0 || int(op) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(op))
	}
	return operatorNames[op]
}

// ParseOperator converts a persisted operator name (case-insensitive) or
// symbol. Unknown input yields OpUnspecified, which no descriptor accepts.
func ParseOperator(s string) Operator {
	s = strings.TrimSpace(s)
	if op, ok := operatorSymbols[s]; ok {
		return op
	}
	for i, name := range operatorNames {
		if i != int(OpUnspecified) && strings.EqualFold(name, s) {
			return Operator(i)
		}
	}
	return OpUnspecified
}

// invalidOperator builds the error returned for an operator outside a shape's family.
func invalidOperator(op Operator, shape string) error {
	return fmt.Errorf("%w: %s cannot be applied to %s operands", types.ErrInvalidRuleOperator, op, shape)
}

// Compare applies a scalar comparison operator to ordered values.
func Compare[T cmp.Ordered](op Operator, left, right T) (bool, error) {
	return CompareFunc(op, left, right, cmp.Compare[T])
}

// CompareFunc applies a scalar comparison operator using a three-way compare function.
func CompareFunc[T any](op Operator, left, right T, compare func(a, b T) int) (bool, error) {
	switch op {
	case OpEqual:
		return compare(left, right) == 0, nil
	case OpNotEqual:
		return compare(left, right) != 0, nil
	case OpGreaterThan:
		return compare(left, right) > 0, nil
	case OpGreaterThanOrEqual:
		return compare(left, right) >= 0, nil
	case OpLessThan:
		return compare(left, right) < 0, nil
	case OpLessThanOrEqual:
		return compare(left, right) <= 0, nil
	default:
		return false, invalidOperator(op, "scalar")
	}
}

// HasListMatch checks a single value against a right-hand list with In/NotIn.
func HasListMatch[T comparable](op Operator, value T, right []T) (bool, error) {
	return HasListMatchFunc(op, value, right, func(a, b T) bool { return a == b })
}

// HasListMatchFunc is HasListMatch with a caller-supplied equality function.
// Empty right list matches vacuously. A zero value never matches.
func HasListMatchFunc[T any](op Operator, value T, right []T, equal func(a, b T) bool) (bool, error) {
	if len(right) == 0 {
		return true, nil
	}
	if op != OpIn && op != OpNotIn {
		return false, invalidOperator(op, "value-in-list")
	}

	var zero T
	if equal(value, zero) {
		return false, nil
	}

	found := slices.ContainsFunc(right, func(r T) bool { return equal(value, r) })
	if op == OpIn {
		return found, nil
	}
	return !found, nil
}

// HasListsMatch compares a left collection against a right-hand list.
func HasListsMatch[T cmp.Ordered](op Operator, left, right []T) (bool, error) {
	return HasListsMatchFunc(op, left, right, cmp.Compare[T])
}

// HasListsMatchFunc is HasListsMatch with a caller-supplied three-way compare
// function, used both for element equality and for sorting.
// Empty right list matches vacuously for every operator.
func HasListsMatchFunc[T any](op Operator, left, right []T, compare func(a, b T) int) (bool, error) {
	if len(right) == 0 {
		return true, nil
	}

	inRight := func(v T) bool { return containsFunc(right, v, compare) }
	inLeft := func(v T) bool { return containsFunc(left, v, compare) }
	notIn := func(in func(T) bool) func(T) bool {
		return func(v T) bool { return !in(v) }
	}

	switch op {
	case OpIsEqualTo:
		return sequenceEqual(left, right, compare), nil
	case OpIsNotEqualTo:
		return !sequenceEqual(left, right, compare), nil
	case OpContains:
		// right ⊆ left
		return all(right, inLeft), nil
	case OpNotContains:
		// right ∩ left = ∅
		return all(right, notIn(inLeft)), nil
	case OpIn:
		return slices.ContainsFunc(left, inRight), nil
	case OpNotIn:
		return slices.ContainsFunc(left, notIn(inRight)), nil
	case OpAllIn:
		// left ⊆ right
		return all(left, inRight), nil
	case OpNotAllIn:
		// evaluated from the left side, unlike NotContains
		return all(left, notIn(inRight)), nil
	default:
		return false, invalidOperator(op, "list-to-list")
	}
}

// sequenceEqual compares two collections ignoring order. Cardinality differences
// short-circuit before any element comparison.
func sequenceEqual[T any](left, right []T, compare func(a, b T) int) bool {
	if len(left) != len(right) {
		return false
	}
	l := slices.Clone(left)
	r := slices.Clone(right)
	slices.SortFunc(l, compare)
	slices.SortFunc(r, compare)
	return slices.EqualFunc(l, r, func(a, b T) bool { return compare(a, b) == 0 })
}

func containsFunc[T any](set []T, v T, compare func(a, b T) int) bool {
	for _, elem := range set {
		if compare(elem, v) == 0 {
			return true
		}
	}
	return false
}

func all[T any](s []T, pred func(T) bool) bool {
	for _, v := range s {
		if !pred(v) {
			return false
		}
	}
	return true
}
