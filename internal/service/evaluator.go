// Package service ties the definition store, the rule compiler and the rules
// engine together. It is the entry point for both the gRPC API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/scopes"
	"github.com/solatis/rulekeeper/internal/types"
)

var tracer = otel.Tracer("rulekeeper.service")

// Store is the part of the definition store the evaluator reads.
type Store interface {
	LoadGraph(ctx context.Context, rootID int64) (types.RuleSetGraph, error)
	ListRootRuleSets(ctx context.Context, scope types.Scope) ([]*types.RuleSet, error)
}

// Result is the outcome of one top-level evaluation.
type Result struct {
	Matched      bool
	EvaluationID types.EvaluationID
	RuleSetID    int64
}

// Evaluator evaluates stored rule sets against scope contexts. Compiled trees
// are cached by rule set id and graph version. Safe for concurrent use.
type Evaluator struct {
	catalog   *scopes.Catalog
	store     Store
	cache     *rules.Cache
	compilers map[types.Scope]*rules.Compiler
	engines   map[types.Scope]*rules.Engine
	logger    *slog.Logger
}

// New creates an evaluator with one compiler and engine per catalog scope.
func New(catalog *scopes.Catalog, store Store, cfg config.EngineConfig, logger *slog.Logger) (*Evaluator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		catalog:   catalog,
		store:     store,
		cache:     rules.NewCache(cfg.CacheSize),
		compilers: make(map[types.Scope]*rules.Compiler, len(scopes.Scopes)),
		engines:   make(map[types.Scope]*rules.Engine, len(scopes.Scopes)),
		logger:    logger,
	}
	for _, scope := range scopes.Scopes {
		reg, err := catalog.Lookup(scope)
		if err != nil {
			return nil, err
		}
		e.compilers[scope] = rules.NewCompiler(reg.Descriptors)
		e.engines[scope] = rules.NewEngine(reg.Handlers,
			rules.WithLogger(logger),
			rules.WithEmptyRootPolicy(cfg.EmptyRootPolicy),
		)
	}
	return e, nil
}

// Evaluate reports whether rule set ruleSetID matches rc. rc must be the
// context type of the rule set's scope (see scopes.ScopeOf). An inactive rule
// set never matches.
func (e *Evaluator) Evaluate(ctx context.Context, ruleSetID int64, rc any) (Result, error) {
	return e.evaluate(ctx, ruleSetID, func(types.Scope) (any, error) { return rc, nil })
}

// EvaluateJSON decodes data into the context type of the rule set's scope and
// evaluates it.
func (e *Evaluator) EvaluateJSON(ctx context.Context, ruleSetID int64, data []byte) (Result, error) {
	return e.evaluate(ctx, ruleSetID, func(scope types.Scope) (any, error) {
		rc, err := scopes.DecodeContext(scope, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidContext, err)
		}
		return rc, nil
	})
}

// ErrInvalidContext indicates a context document that cannot be decoded.
var ErrInvalidContext = errors.New("invalid evaluation context")

func (e *Evaluator) evaluate(ctx context.Context, ruleSetID int64, contextFor func(types.Scope) (any, error)) (Result, error) {
	result := Result{EvaluationID: types.NewEvaluationID(), RuleSetID: ruleSetID}

	ctx, span := tracer.Start(ctx, "rulekeeper.Evaluate",
		trace.WithAttributes(
			attribute.Int64("rule_set.id", ruleSetID),
			attribute.String("evaluation.id", string(result.EvaluationID)),
		),
	)
	defer span.End()

	logger := e.logger.With(
		slog.String("evaluation_id", string(result.EvaluationID)),
		slog.Int64("rule_set_id", ruleSetID),
	)
	ctx = logging.NewContext(ctx, logger)

	matched, err := e.evaluateRuleSet(ctx, ruleSetID, contextFor)
	if errors.Is(err, types.ErrRuleSetInactive) {
		logger.DebugContext(ctx, "rule set is inactive")
		span.SetAttributes(attribute.Bool("rule_set.active", false))
		return result, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "evaluation failed", slog.Any("error", err))
		return result, err
	}

	span.SetAttributes(attribute.Bool("rule_set.matched", matched))
	logger.DebugContext(ctx, "evaluated rule set", slog.Bool("matched", matched))
	result.Matched = matched
	return result, nil
}

func (e *Evaluator) evaluateRuleSet(ctx context.Context, ruleSetID int64, contextFor func(types.Scope) (any, error)) (bool, error) {
	graph, err := e.store.LoadGraph(ctx, ruleSetID)
	if err != nil {
		return false, err
	}
	root, ok := graph.ResolveRuleSet(ruleSetID)
	if !ok {
		return false, fmt.Errorf("rule set %d: %w", ruleSetID, types.ErrRuleSetNotFound)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("rule_set.scope", root.Scope.String()))

	if !root.IsActive {
		return false, fmt.Errorf("rule set %d: %w", ruleSetID, types.ErrRuleSetInactive)
	}

	rc, err := contextFor(root.Scope)
	if err != nil {
		return false, err
	}
	if scope, ok := scopes.ScopeOf(rc); !ok || scope != root.Scope {
		return false, fmt.Errorf("%w: rule set %d has scope %s, context is %T", types.ErrScopeMismatch, ruleSetID, root.Scope, rc)
	}

	engine, ok := e.engines[root.Scope]
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrInvalidScope, root.Scope)
	}

	compiled, err := e.compile(ctx, root, graph)
	if err != nil {
		return false, err
	}
	return engine.Evaluate(ctx, compiled, rc)
}

// compile returns the cached tree of root, compiling on a miss.
func (e *Evaluator) compile(ctx context.Context, root *types.RuleSet, graph types.RuleSetGraph) (*rules.GroupExpression, error) {
	return e.cache.GetOrCompile(root.ID, graph.Version(), func() (*rules.GroupExpression, error) {
		_, span := tracer.Start(ctx, "rulekeeper.Compile",
			trace.WithAttributes(
				attribute.Int64("rule_set.id", root.ID),
				attribute.Int("rule_set.graph_size", len(graph)),
			),
		)
		defer span.End()

		compiled, err := e.compilers[root.Scope].Compile(root, graph)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return compiled, nil
	})
}

// EvaluateAll evaluates every active top-level rule set of scope against rc
// and returns the ids of those that matched, in id order. Rule sets that fail
// to evaluate are skipped and their errors joined into the returned error.
func (e *Evaluator) EvaluateAll(ctx context.Context, scope types.Scope, rc any) ([]int64, error) {
	ctx, span := tracer.Start(ctx, "rulekeeper.EvaluateAll",
		trace.WithAttributes(attribute.String("rule_set.scope", scope.String())),
	)
	defer span.End()

	sets, err := e.store.ListRootRuleSets(ctx, scope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var matched []int64
	var errs []error
	for _, rs := range sets {
		if !rs.IsActive {
			continue
		}
		result, err := e.Evaluate(ctx, rs.ID, rc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if result.Matched {
			matched = append(matched, rs.ID)
		}
	}

	span.SetAttributes(
		attribute.Int("rule_set.count", len(sets)),
		attribute.Int("rule_set.matched", len(matched)),
	)
	return matched, errors.Join(errs...)
}

// Invalidate drops the compiled tree of a rule set from the cache.
func (e *Evaluator) Invalidate(ruleSetID int64) {
	e.cache.Invalidate(ruleSetID)
}
