// Package types provides the persisted rule definition model shared by the
// store, the compiler and the service layer.
//
// These types mirror the rule_sets and rules tables one to one. They carry no
// evaluation logic; internal/rules turns them into compiled expressions.
package types

import (
	"fmt"
	"strings"
)

// Scope names the domain context a rule set applies to.
type Scope int

const (
	ScopeOther Scope = iota
	ScopeCart
	ScopeCustomer
	ScopeProduct
	ScopeProductAttribute
)

// String returns the persisted name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeCart:
		return "cart"
	case ScopeCustomer:
		return "customer"
	case ScopeProduct:
		return "product"
	case ScopeProductAttribute:
		return "product_attribute"
	default:
		return "other"
	}
}

// ParseScope converts a persisted scope name. Matching is case-insensitive and
// accepts both "product_attribute" and "productattribute".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cart":
		return ScopeCart, nil
	case "customer":
		return ScopeCustomer, nil
	case "product":
		return ScopeProduct, nil
	case "product_attribute", "productattribute":
		return ScopeProductAttribute, nil
	case "other", "":
		return ScopeOther, nil
	default:
		return ScopeOther, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

// LogicalOperator combines the children of a rule set.
type LogicalOperator int

const (
	LogicalAnd LogicalOperator = iota
	LogicalOr
)

// String returns the persisted name of the logical operator.
func (o LogicalOperator) String() string {
	if o == LogicalOr {
		return "or"
	}
	return "and"
}

// ParseLogicalOperator converts "and"/"or" (case-insensitive). Empty means and.
func ParseLogicalOperator(s string) (LogicalOperator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "and", "":
		return LogicalAnd, nil
	case "or":
		return LogicalOr, nil
	default:
		return LogicalAnd, fmt.Errorf("unknown logical operator %q", s)
	}
}
