package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name. Requests and responses are protobuf
// well-known types.
const ServiceName = "coursepayments.v1.PaymentStatusService"

const (
	checkStatusMethod    = "/" + ServiceName + "/CheckStatus"
	hasEntitlementMethod = "/" + ServiceName + "/HasEntitlement"
)

type PaymentStatusServer interface {
	CheckStatus(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	HasEntitlement(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
}

func RegisterPaymentStatusServer(registrar grpc.ServiceRegistrar, srv PaymentStatusServer) {
	registrar.RegisterService(&paymentStatusServiceDesc, srv)
}

var paymentStatusServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckStatus", Handler: checkStatusHandler},
		{MethodName: "HasEntitlement", Handler: hasEntitlementHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coursepayments/v1/payment_status.proto",
}

func checkStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentStatusServer).CheckStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkStatusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentStatusServer).CheckStatus(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func hasEntitlementHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PaymentStatusServer).HasEntitlement(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: hasEntitlementMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PaymentStatusServer).HasEntitlement(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// PaymentStatusClient calls the service over an existing connection.
type PaymentStatusClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentStatusClient(cc grpc.ClientConnInterface) *PaymentStatusClient {
	return &PaymentStatusClient{cc: cc}
}

func (c *PaymentStatusClient) CheckStatus(ctx context.Context, transactionRef string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, checkStatusMethod, wrapperspb.String(transactionRef), out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *PaymentStatusClient) HasEntitlement(ctx context.Context, userID, courseType string, opts ...grpc.CallOption) (bool, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"user_id":     userID,
		"course_type": courseType,
	})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, hasEntitlementMethod, in, out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
