package types

import "errors"

// Sentinel errors for rule compilation and evaluation.
var (
	// ErrInvalidRuleOperator indicates an operator that is not valid for the
	// leaf's value kind and sequence mode. It is a configuration defect.
	ErrInvalidRuleOperator = errors.New("invalid rule operator")

	// ErrCompilationCycle indicates a group reference re-entering a rule set
	// that is already on the active compilation path.
	ErrCompilationCycle = errors.New("rule set group cycle")

	// ErrRuleSetNotFound indicates a rule set id that the store cannot resolve.
	ErrRuleSetNotFound = errors.New("rule set not found")

	// ErrRuleSetInactive indicates evaluation of a disabled root rule set.
	ErrRuleSetInactive = errors.New("rule set is inactive")

	// ErrInvalidRuleValue indicates a persisted value that cannot be decoded
	// into the descriptor's value kind.
	ErrInvalidRuleValue = errors.New("invalid rule value")

	// ErrCoercionFailed indicates a raw value could not be parsed into the requested kind.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrDuplicateDescriptor indicates two descriptors registered under one name.
	ErrDuplicateDescriptor = errors.New("duplicate rule descriptor")

	// ErrDuplicateHandler indicates two handlers registered for one rule type.
	ErrDuplicateHandler = errors.New("duplicate rule handler")

	// ErrScopeMismatch indicates a context whose scope differs from the rule set scope.
	ErrScopeMismatch = errors.New("rule set scope does not match context")

	// ErrInvalidScope indicates an unknown scope name.
	ErrInvalidScope = errors.New("invalid rule scope")
)
