// internal/rules/descriptor.go
package rules

import (
	"slices"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule descriptors.
 *
 * A descriptor is the metadata of one rule type: its value kind, whether it
 * compares sequences, the operators valid for it and an extension bag used by
 * handlers. The valid operator set is derived from kind x sequence mode in the
 * constructor and never changes afterwards.
 *
 * Operator tables below are process-wide read-only state.
 */

// ValueKind is the decoded type of a rule value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindBoolean
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindDate
	KindIntArray
	KindFloatArray
	KindDecimalArray
	KindStringArray
	KindDateArray
)

func (k ValueKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindIntArray:
		return "int[]"
	case KindFloatArray:
		return "float[]"
	case KindDecimalArray:
		return "decimal[]"
	case KindStringArray:
		return "string[]"
	case KindDateArray:
		return "date[]"
	default:
		return "none"
	}
}

// IsArray reports whether values of this kind decode into a list.
func (k ValueKind) IsArray() bool {
	return k >= KindIntArray && k <= KindDateArray
}

// Elem returns the scalar kind of an array kind, or k itself for scalars.
func (k ValueKind) Elem() ValueKind {
	switch k {
	case KindIntArray:
		return KindInt
	case KindFloatArray:
		return KindFloat
	case KindDecimalArray:
		return KindDecimal
	case KindStringArray:
		return KindString
	case KindDateArray:
		return KindDate
	default:
		return k
	}
}

var (
	orderingOperators   = []Operator{OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual}
	equalityOperators   = []Operator{OpEqual, OpNotEqual}
	membershipOperators = []Operator{OpIn, OpNotIn}
	sequenceOperators   = []Operator{OpIn, OpNotIn, OpAllIn, OpNotAllIn, OpContains, OpNotContains, OpIsEqualTo, OpIsNotEqualTo}
)

// operatorsFor derives the valid operator set of a kind and sequence mode.
func operatorsFor(kind ValueKind, sequences bool) []Operator {
	if kind.IsArray() {
		if sequences {
			return sequenceOperators
		}
		return membershipOperators
	}
	switch kind {
	case KindInt, KindFloat, KindDecimal, KindDate:
		return orderingOperators
	case KindBoolean, KindString:
		return equalityOperators
	default:
		return nil
	}
}

// RuleDescriptor describes one rule type. It is immutable after construction.
type RuleDescriptor struct {
	name      string
	scope     types.Scope
	kind      ValueKind
	sequences bool
	operators []Operator
	metadata  Metadata
	invalid   bool
}

// InvalidRuleDescriptor is returned for rule types nobody registered. It has an
// empty kind, no valid operators and IsValid() == false.
var InvalidRuleDescriptor = &RuleDescriptor{invalid: true}

// DescriptorOption configures a descriptor at construction.
type DescriptorOption func(*RuleDescriptor)

// ComparingSequences selects the list-to-list operator family for array kinds.
func ComparingSequences() DescriptorOption {
	return func(d *RuleDescriptor) {
		d.sequences = true
	}
}

// WithMetadata attaches handler configuration to the descriptor.
func WithMetadata(m Metadata) DescriptorOption {
	return func(d *RuleDescriptor) {
		d.metadata = m
	}
}

// NewRuleDescriptor creates a descriptor and computes its valid operators.
func NewRuleDescriptor(name string, scope types.Scope, kind ValueKind, opts ...DescriptorOption) *RuleDescriptor {
	d := &RuleDescriptor{
		name:  name,
		scope: scope,
		kind:  kind,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.operators = operatorsFor(d.kind, d.sequences)
	return d
}

func (d *RuleDescriptor) Name() string { return d.name }
func (d *RuleDescriptor) Scope() types.Scope { return d.scope }
func (d *RuleDescriptor) Kind() ValueKind { return d.kind }
func (d *RuleDescriptor) IsComparingSequences() bool { return d.sequences }
func (d *RuleDescriptor) Metadata() Metadata { return d.metadata }

// IsValid is false only for InvalidRuleDescriptor.
func (d *RuleDescriptor) IsValid() bool {
	return !d.invalid
}

// ValidOperators returns a copy of the operators valid for this descriptor.
func (d *RuleDescriptor) ValidOperators() []Operator {
	return slices.Clone(d.operators)
}

// IsValidOperator reports whether op may be used with this descriptor.
func (d *RuleDescriptor) IsValidOperator(op Operator) bool {
	return slices.Contains(d.operators, op)
}
