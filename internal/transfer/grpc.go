package transfer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is declared by hand over protobuf well-known wrapper types,
// so no protoc step is needed:
//
//	service Transfer {
//	  rpc Send(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Receive(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	}
const (
	serviceName   = "meshmark.transfer.v1.Transfer"
	methodSend    = "/" + serviceName + "/Send"
	methodReceive = "/" + serviceName + "/Receive"
)

// TransferServer is the server API for the Transfer service.
type TransferServer interface {
	Send(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Receive(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedTransferServer can be embedded to have forward compatible implementations.
type UnimplementedTransferServer struct{}

func (UnimplementedTransferServer) Send(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Send not implemented")
}

func (UnimplementedTransferServer) Receive(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Receive not implemented")
}

// RegisterTransferServer registers the Transfer service on a gRPC server.
func RegisterTransferServer(s grpc.ServiceRegistrar, srv TransferServer) {
	s.RegisterService(&transferServiceDesc, srv)
}

// TransferClient is the client API for the Transfer service.
type TransferClient interface {
	Send(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Receive(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type transferClient struct{ cc grpc.ClientConnInterface }

// NewTransferClient returns a client for the Transfer service on cc.
func NewTransferClient(cc grpc.ClientConnInterface) TransferClient { return &transferClient{cc: cc} }

func (c *transferClient) Send(
	ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, methodSend, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *transferClient) Receive(
	ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption,
) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, methodReceive, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

//nolint:forcetypeassert // the service descriptor guarantees the server type
func sendHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(TransferServer).Send(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSend}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferServer).Send(ctx, req.(*wrapperspb.BytesValue))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:forcetypeassert
func receiveHandler(
	srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(TransferServer).Receive(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodReceive}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransferServer).Receive(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:gochecknoglobals
var transferServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TransferServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Receive", Handler: receiveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meshmark/transfer/v1/transfer.proto",
}
