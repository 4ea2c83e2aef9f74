package rules

import (
	"fmt"
	"log/slog"
	"strings"
)

// EmptyRootPolicy decides the result of a root group without children.
type EmptyRootPolicy int

const (
	// EmptyRootIdentity uses the identity of the root operator: And -> true, Or -> false.
	EmptyRootIdentity EmptyRootPolicy = iota
	// EmptyRootMatch always matches an empty root.
	EmptyRootMatch
	// EmptyRootNoMatch never matches an empty root.
	EmptyRootNoMatch
)

func (p EmptyRootPolicy) String() string {
	switch p {
	case EmptyRootMatch:
		return "match"
	case EmptyRootNoMatch:
		return "no_match"
	default:
		return "identity"
	}
}

// ParseEmptyRootPolicy converts identity, match or no_match.
func ParseEmptyRootPolicy(s string) (EmptyRootPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "identity", "":
		return EmptyRootIdentity, nil
	case "match":
		return EmptyRootMatch, nil
	case "no_match", "nomatch":
		return EmptyRootNoMatch, nil
	default:
		return EmptyRootIdentity, fmt.Errorf("unknown empty root policy %q (expected identity, match or no_match)", s)
	}
}

// Engine evaluates compiled expressions with the handlers of one scope.
// It holds no per-evaluation state and is safe for concurrent use.
type Engine struct {
	handlers  *HandlerRegistry
	logger    *slog.Logger
	emptyRoot EmptyRootPolicy
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEmptyRootPolicy sets the result policy for empty root groups.
func WithEmptyRootPolicy(p EmptyRootPolicy) EngineOption {
	return func(e *Engine) {
		e.emptyRoot = p
	}
}

// NewEngine creates a rules engine for the scope of handlers.
func NewEngine(handlers *HandlerRegistry, opts ...EngineOption) *Engine {
	e := &Engine{
		handlers: handlers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handlers returns the handler registry the engine dispatches to.
func (e *Engine) Handlers() *HandlerRegistry {
	return e.handlers
}
