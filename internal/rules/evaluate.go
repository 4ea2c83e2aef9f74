// internal/rules/evaluate.go
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Compiled expression evaluation.
 *
 * Walks a GroupExpression tree against one scope context.
 *
 * Evaluation flow:
 *   1. Empty root: apply the engine's EmptyRootPolicy
 *   2. And groups: children in order, stop at the first false (empty -> true)
 *   3. Or groups: children in order, stop at the first true (empty -> false)
 *   4. Leaves: look up the handler by rule type and call it
 *
 * Leaf policy:
 *   - No handler registered (includes InvalidRuleDescriptor leaves): false,
 *     logged at warn level
 *   - Handler or operator error: returned as *LeafError, evaluation stops
 *
 * Children are evaluated sequentially so short-circuiting skips handler I/O
 * of later children. The tree is only read; concurrent evaluations of the
 * same tree need no synchronization. The context is passed to every handler
 * unchanged; the engine imposes no deadline of its own.
 */

// LeafError wraps an error raised while evaluating one leaf.
type LeafError struct {
	RuleID   int64
	RuleType string
	Err      error
}

func (e *LeafError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.RuleID, e.RuleType, e.Err)
}

func (e *LeafError) Unwrap() error {
	return e.Err
}

// Evaluate reports whether root matches the scope context rc.
func (e *Engine) Evaluate(ctx context.Context, root *GroupExpression, rc any) (bool, error) {
	scope := e.handlers.Scope().String()
	start := time.Now()
	defer func() {
		evaluationDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	}()

	matched, err := e.evaluateRoot(ctx, root, rc)
	switch {
	case err != nil:
		evaluationsTotal.WithLabelValues(scope, "error").Inc()
	case matched:
		evaluationsTotal.WithLabelValues(scope, "match").Inc()
	default:
		evaluationsTotal.WithLabelValues(scope, "no_match").Inc()
	}
	return matched, err
}

func (e *Engine) evaluateRoot(ctx context.Context, root *GroupExpression, rc any) (bool, error) {
	if root == nil {
		return false, types.ErrRuleSetNotFound
	}
	if len(root.Children) == 0 {
		switch e.emptyRoot {
		case EmptyRootMatch:
			return true, nil
		case EmptyRootNoMatch:
			return false, nil
		}
	}
	return e.evaluateGroup(ctx, root, rc)
}

// evaluate dispatches on the node type.
func (e *Engine) evaluate(ctx context.Context, expr Expression, rc any) (bool, error) {
	switch x := expr.(type) {
	case *GroupExpression:
		return e.evaluateGroup(ctx, x, rc)
	case *LeafExpression:
		return e.evaluateLeaf(ctx, x, rc)
	default:
		return false, fmt.Errorf("unsupported expression node %T", expr)
	}
}

// evaluateGroup folds children with the group's operator, short-circuiting.
func (e *Engine) evaluateGroup(ctx context.Context, group *GroupExpression, rc any) (bool, error) {
	if group.LogicalOperator == types.LogicalOr {
		for _, child := range group.Children {
			matched, err := e.evaluate(ctx, child, rc)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	for _, child := range group.Children {
		matched, err := e.evaluate(ctx, child, rc)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// evaluateLeaf dispatches one leaf to its handler. Missing handlers fail closed.
func (e *Engine) evaluateLeaf(ctx context.Context, leaf *LeafExpression, rc any) (bool, error) {
	handler, ok := e.handlers.Lookup(leaf.Descriptor.Name())
	if !leaf.Descriptor.IsValid() || !ok {
		missingHandlers.WithLabelValues(e.handlers.Scope().String(), ruleTypeLabel(leaf)).Inc()
		e.logger.WarnContext(ctx, "no handler for rule type, treating as non-match",
			slog.Int64("rule_id", leaf.RuleID),
			slog.String("rule_type", leaf.RuleType),
			slog.String("scope", e.handlers.Scope().String()),
		)
		return false, nil
	}

	matched, err := handler.Match(ctx, rc, leaf)
	if err != nil {
		leafErrors.WithLabelValues(ruleTypeLabel(leaf)).Inc()
		e.logger.DebugContext(ctx, "leaf evaluation failed",
			slog.Int64("rule_id", leaf.RuleID),
			slog.String("rule_type", leaf.RuleType),
			slog.String("operator", leaf.Operator.String()),
			slog.Any("error", err),
		)
		return false, &LeafError{RuleID: leaf.RuleID, RuleType: leaf.RuleType, Err: err}
	}
	return matched, nil
}

// ruleTypeLabel bounds metric label values to registered rule types. Rule
// types without a descriptor come from stored rows and are reported as
// "unknown".
func ruleTypeLabel(leaf *LeafExpression) string {
	if !leaf.Descriptor.IsValid() {
		return unknownRuleType
	}
	return leaf.Descriptor.Name()
}
