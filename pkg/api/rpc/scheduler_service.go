package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SchedulerServiceClient is the client API for SchedulerService, shaped
// the way protoc-gen-go-grpc would emit it for the four scheduler RPCs.
type SchedulerServiceClient interface {
	ExecuteQuery(ctx context.Context, in *ExecuteQueryRequest, opts ...grpc.CallOption) (*ExecuteQueryResponse, error)
	PollWork(ctx context.Context, in *PollWorkRequest, opts ...grpc.CallOption) (*PollWorkResponse, error)
	GetJobStatus(ctx context.Context, in *GetJobStatusRequest, opts ...grpc.CallOption) (*GetJobStatusResponse, error)
	GetFileMetadata(ctx context.Context, in *GetFileMetadataRequest, opts ...grpc.CallOption) (*GetFileMetadataResponse, error)
}

type schedulerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSchedulerServiceClient wraps a gRPC client connection.
func NewSchedulerServiceClient(cc grpc.ClientConnInterface) SchedulerServiceClient {
	return &schedulerServiceClient{cc}
}

func (c *schedulerServiceClient) ExecuteQuery(ctx context.Context, in *ExecuteQueryRequest, opts ...grpc.CallOption) (*ExecuteQueryResponse, error) {
	out := new(ExecuteQueryResponse)
	if err := c.cc.Invoke(ctx, "/scheduler.SchedulerService/ExecuteQuery", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerServiceClient) PollWork(ctx context.Context, in *PollWorkRequest, opts ...grpc.CallOption) (*PollWorkResponse, error) {
	out := new(PollWorkResponse)
	if err := c.cc.Invoke(ctx, "/scheduler.SchedulerService/PollWork", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerServiceClient) GetJobStatus(ctx context.Context, in *GetJobStatusRequest, opts ...grpc.CallOption) (*GetJobStatusResponse, error) {
	out := new(GetJobStatusResponse)
	if err := c.cc.Invoke(ctx, "/scheduler.SchedulerService/GetJobStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *schedulerServiceClient) GetFileMetadata(ctx context.Context, in *GetFileMetadataRequest, opts ...grpc.CallOption) (*GetFileMetadataResponse, error) {
	out := new(GetFileMetadataResponse)
	if err := c.cc.Invoke(ctx, "/scheduler.SchedulerService/GetFileMetadata", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SchedulerServiceServer is the server API for SchedulerService.
type SchedulerServiceServer interface {
	ExecuteQuery(context.Context, *ExecuteQueryRequest) (*ExecuteQueryResponse, error)
	PollWork(context.Context, *PollWorkRequest) (*PollWorkResponse, error)
	GetJobStatus(context.Context, *GetJobStatusRequest) (*GetJobStatusResponse, error)
	GetFileMetadata(context.Context, *GetFileMetadataRequest) (*GetFileMetadataResponse, error)
}

// UnimplementedSchedulerServiceServer can be embedded for forward
// compatibility with new methods added to the interface.
type UnimplementedSchedulerServiceServer struct{}

func (UnimplementedSchedulerServiceServer) ExecuteQuery(context.Context, *ExecuteQueryRequest) (*ExecuteQueryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ExecuteQuery not implemented")
}
func (UnimplementedSchedulerServiceServer) PollWork(context.Context, *PollWorkRequest) (*PollWorkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PollWork not implemented")
}
func (UnimplementedSchedulerServiceServer) GetJobStatus(context.Context, *GetJobStatusRequest) (*GetJobStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetJobStatus not implemented")
}
func (UnimplementedSchedulerServiceServer) GetFileMetadata(context.Context, *GetFileMetadataRequest) (*GetFileMetadataResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetFileMetadata not implemented")
}

// RegisterSchedulerServiceServer registers srv on s.
func RegisterSchedulerServiceServer(s grpc.ServiceRegistrar, srv SchedulerServiceServer) {
	s.RegisterService(&schedulerServiceDesc, srv)
}

func schedulerServiceExecuteQueryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExecuteQueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServiceServer).ExecuteQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/scheduler.SchedulerService/ExecuteQuery"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServiceServer).ExecuteQuery(ctx, req.(*ExecuteQueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerServicePollWorkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PollWorkRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServiceServer).PollWork(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/scheduler.SchedulerService/PollWork"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServiceServer).PollWork(ctx, req.(*PollWorkRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerServiceGetJobStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetJobStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServiceServer).GetJobStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/scheduler.SchedulerService/GetJobStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServiceServer).GetJobStatus(ctx, req.(*GetJobStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func schedulerServiceGetFileMetadataHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetFileMetadataRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SchedulerServiceServer).GetFileMetadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/scheduler.SchedulerService/GetFileMetadata"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SchedulerServiceServer).GetFileMetadata(ctx, req.(*GetFileMetadataRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var schedulerServiceDesc = grpc.ServiceDesc{
	ServiceName: "scheduler.SchedulerService",
	HandlerType: (*SchedulerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExecuteQuery", Handler: schedulerServiceExecuteQueryHandler},
		{MethodName: "PollWork", Handler: schedulerServicePollWorkHandler},
		{MethodName: "GetJobStatus", Handler: schedulerServiceGetJobStatusHandler},
		{MethodName: "GetFileMetadata", Handler: schedulerServiceGetFileMetadataHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduler.proto",
}
