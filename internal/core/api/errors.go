package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/service"
	"github.com/solatis/rulekeeper/internal/types"
)

// toStatus maps service errors to gRPC status codes.
// Missing rule sets map to NOT_FOUND.
// Defective definitions (operator, value, cycle, scope) map to FAILED_PRECONDITION.
// Undecodable contexts map to INVALID_ARGUMENT.
// Handler failures map to INTERNAL.
// Context timeouts map to DEADLINE_EXCEEDED.
// Anything else is a store failure and maps to UNAVAILABLE.
func toStatus(err error) *status.Status {
	var leaf *rules.LeafError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrRuleSetNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidContext):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrInvalidRuleOperator),
		errors.Is(err, types.ErrInvalidRuleValue),
		errors.Is(err, types.ErrCompilationCycle),
		errors.Is(err, types.ErrScopeMismatch),
		errors.Is(err, types.ErrInvalidScope):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.As(err, &leaf):
		return status.New(codes.Internal, err.Error())
	default:
		return status.New(codes.Unavailable, err.Error())
	}
}
