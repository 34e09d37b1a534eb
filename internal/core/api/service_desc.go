package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stagekeeper.rules.v1.RuleService"

const (
	methodValidateRule = "/" + ServiceName + "/ValidateRule"
	methodSubmitRule   = "/" + ServiceName + "/SubmitRule"
	methodGetRule      = "/" + ServiceName + "/GetRule"
	methodDeleteRule   = "/" + ServiceName + "/DeleteRule"
	methodSyncRules    = "/" + ServiceName + "/SyncRules"
)

// RuleServiceServer is the server API for the rule service. Requests and
// responses are google.protobuf.Struct documents.
type RuleServiceServer interface {
	ValidateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleServiceServer registers srv on s.
func RegisterRuleServiceServer(s grpc.ServiceRegistrar, srv RuleServiceServer) {
	s.RegisterService(&RuleServiceDesc, srv)
}

// RuleServiceDesc describes the rule service for grpc.Server.
var RuleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateRule", Handler: unaryHandler(methodValidateRule, RuleServiceServer.ValidateRule)},
		{MethodName: "SubmitRule", Handler: unaryHandler(methodSubmitRule, RuleServiceServer.SubmitRule)},
		{MethodName: "GetRule", Handler: unaryHandler(methodGetRule, RuleServiceServer.GetRule)},
		{MethodName: "DeleteRule", Handler: unaryHandler(methodDeleteRule, RuleServiceServer.DeleteRule)},
		{MethodName: "SyncRules", Handler: unaryHandler(methodSyncRules, RuleServiceServer.SyncRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stagekeeper/rules/v1/rule_service.proto",
}

type unaryMethod func(RuleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a RuleServiceServer method to grpc.MethodHandler.
func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RuleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RuleServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RuleServiceClient calls the rule service over a client connection.
type RuleServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRuleServiceClient creates a client over cc.
func NewRuleServiceClient(cc grpc.ClientConnInterface) *RuleServiceClient {
	return &RuleServiceClient{cc: cc}
}

func (c *RuleServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RuleServiceClient) ValidateRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodValidateRule, in, opts...)
}

func (c *RuleServiceClient) SubmitRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSubmitRule, in, opts...)
}

func (c *RuleServiceClient) GetRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetRule, in, opts...)
}

func (c *RuleServiceClient) DeleteRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDeleteRule, in, opts...)
}

func (c *RuleServiceClient) SyncRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodSyncRules, in, opts...)
}
