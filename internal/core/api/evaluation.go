package api

import (
	"context"
	"log/slog"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * rulekeeper.v1.RuleEvaluation wire contract.
 *
 * Messages are google.protobuf.Struct so the service needs no generated code.
 *
 * Evaluate request:
 *   rule_set_id  number, positive integer
 *   context      object, decoded into the rule set's scope context
 *
 * Evaluate response:
 *   matched        bool
 *   evaluation_id  string, UUIDv7
 *   rule_set_id    number
 */

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "rulekeeper.v1.RuleEvaluation"
	// EvaluateMethod is the full method name of Evaluate.
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// RuleEvaluationServer is the server API of rulekeeper.v1.RuleEvaluation.
type RuleEvaluationServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes rulekeeper.v1.RuleEvaluation for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleEvaluationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/v1/evaluation.proto",
}

// RegisterRuleEvaluationServer registers srv with s.
func RegisterRuleEvaluationServer(s grpc.ServiceRegistrar, srv RuleEvaluationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuleEvaluationServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RuleEvaluationServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls rulekeeper.v1.RuleEvaluation.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Evaluate calls the Evaluate method.
func (c *Client) Evaluate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EvaluateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewEvaluateRequest builds an Evaluate request from a context document.
func NewEvaluateRequest(ruleSetID int64, rc map[string]any) (*structpb.Struct, error) {
	if rc == nil {
		rc = map[string]any{}
	}
	return structpb.NewStruct(map[string]any{
		"rule_set_id": ruleSetID,
		"context":     rc,
	})
}

// Evaluate evaluates one rule set against the request context.
func (s *RuleEvaluationService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleSetID, err := ruleSetIDField(req)
	if err != nil {
		return nil, err
	}

	var data []byte
	if rc := req.GetFields()["context"]; rc != nil {
		obj := rc.GetStructValue()
		if obj == nil {
			return nil, status.Error(codes.InvalidArgument, "context must be an object")
		}
		data, err = protojson.Marshal(obj)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "failed to encode context: %v", err)
		}
	}

	result, err := s.evaluator.EvaluateJSON(ctx, ruleSetID, data)
	if err != nil {
		st := toStatus(err)
		s.logger.WarnContext(ctx, "evaluate failed",
			slog.Int64("rule_set_id", ruleSetID),
			slog.String("code", st.Code().String()),
			slog.Any("error", err),
		)
		return nil, st.Err()
	}

	resp, err := structpb.NewStruct(map[string]any{
		"matched":       result.Matched,
		"evaluation_id": string(result.EvaluationID),
		"rule_set_id":   result.RuleSetID,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// ruleSetIDField reads the positive integer rule_set_id of a request.
func ruleSetIDField(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["rule_set_id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "rule_set_id is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "rule_set_id must be a number")
	}
	id := n.NumberValue
	if id != math.Trunc(id) || id <= 0 || id >= math.MaxInt64 {
		return 0, status.Errorf(codes.InvalidArgument, "rule_set_id must be a positive integer, got %v", id)
	}
	return int64(id), nil
}
