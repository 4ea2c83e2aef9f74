// Package api provides the gRPC rule evaluation service of rulekeeper.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/rulekeeper/internal/service"
)

// Evaluator evaluates a stored rule set against a JSON context document.
type Evaluator interface {
	EvaluateJSON(ctx context.Context, ruleSetID int64, data []byte) (service.Result, error)
}

// RuleEvaluationService implements RuleEvaluationServer.
// Thin orchestration layer: request decoding, error mapping and response
// encoding around the service package.
type RuleEvaluationService struct {
	evaluator Evaluator
	logger    *slog.Logger
}

// NewRuleEvaluationService creates service instance with dependencies.
func NewRuleEvaluationService(evaluator Evaluator, logger *slog.Logger) (*RuleEvaluationService, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEvaluationService{evaluator: evaluator, logger: logger}, nil
}
