package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/rulekeeper/internal/types"
)

// Handler resolves the runtime value of one rule type from a scope context
// and compares it with the compiled leaf. Handlers may perform I/O; errors
// propagate to the caller of Engine.Evaluate.
type Handler interface {
	Match(ctx context.Context, rc any, leaf *LeafExpression) (bool, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rc any, leaf *LeafExpression) (bool, error)

// Match implements Handler.
func (f HandlerFunc) Match(ctx context.Context, rc any, leaf *LeafExpression) (bool, error) {
	return f(ctx, rc, leaf)
}

// Typed adapts a handler written against a concrete context type. A context of
// any other type fails with ErrScopeMismatch.
func Typed[C any](fn func(ctx context.Context, rc C, leaf *LeafExpression) (bool, error)) Handler {
	return HandlerFunc(func(ctx context.Context, rc any, leaf *LeafExpression) (bool, error) {
		typed, ok := rc.(C)
		if !ok {
			return false, fmt.Errorf("%w: rule type %s got context %T", types.ErrScopeMismatch, leaf.RuleType, rc)
		}
		return fn(ctx, typed, leaf)
	})
}

// HandlerRegistry maps rule type names (case-insensitive) to the handlers of
// one scope. Register during startup only; lookups afterwards are lock-free.
type HandlerRegistry struct {
	scope    types.Scope
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry for scope.
func NewHandlerRegistry(scope types.Scope) *HandlerRegistry {
	return &HandlerRegistry{
		scope:    scope,
		handlers: make(map[string]Handler),
	}
}

// Register adds the handler for ruleType.
func (r *HandlerRegistry) Register(ruleType string, h Handler) error {
	key := strings.ToLower(ruleType)
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("%w: %s in scope %s", types.ErrDuplicateHandler, ruleType, r.scope)
	}
	r.handlers[key] = h
	return nil
}

// Lookup returns the handler for ruleType.
func (r *HandlerRegistry) Lookup(ruleType string) (Handler, bool) {
	h, ok := r.handlers[strings.ToLower(ruleType)]
	return h, ok
}

// Scope returns the scope the handlers serve.
func (r *HandlerRegistry) Scope() types.Scope {
	return r.scope
}
