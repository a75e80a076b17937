package alarm

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wakealarm.v1.AlarmService"

// AlarmServiceServer is the server API of the alarm service.
type AlarmServiceServer interface {
	Schedule(ctx context.Context, req *ScheduleRequest) (*ScheduleResponse, error)
	Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error)
	Snooze(ctx context.Context, req *SnoozeRequest) (*SnoozeResponse, error)
	Dismiss(ctx context.Context, req *DismissRequest) (*DismissResponse, error)
	GetStatus(ctx context.Context, req *GetStatusRequest) (*GetStatusResponse, error)
	GetActiveSession(ctx context.Context, req *GetActiveSessionRequest) (*GetActiveSessionResponse, error)
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
	WatchSurface(req *WatchSurfaceRequest, stream grpc.ServerStreamingServer[SurfaceEvent]) error
}

// ServiceDesc describes the alarm service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Descriptors are package-level by gRPC convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Schedule", AlarmServiceServer.Schedule),
		unaryMethod("Cancel", AlarmServiceServer.Cancel),
		unaryMethod("Snooze", AlarmServiceServer.Snooze),
		unaryMethod("Dismiss", AlarmServiceServer.Dismiss),
		unaryMethod("GetStatus", AlarmServiceServer.GetStatus),
		unaryMethod("GetActiveSession", AlarmServiceServer.GetActiveSession),
		unaryMethod("List", AlarmServiceServer.List),
		unaryMethod("History", AlarmServiceServer.History),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSurface",
			Handler:       watchSurfaceHandler,
			ServerStreams: true,
		},
	},
	Metadata: "wakealarm/v1/alarm",
}

// RegisterAlarmServiceServer registers srv on the gRPC server.
func RegisterAlarmServiceServer(registrar grpc.ServiceRegistrar, srv AlarmServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](
	name string,
	call func(AlarmServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(AlarmServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AlarmServiceServer), ctx, req.(*Req))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchSurfaceHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchSurfaceRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(AlarmServiceServer).WatchSurface(in, &grpc.GenericServerStream[WatchSurfaceRequest, SurfaceEvent]{
		ServerStream: stream,
	})
}

// AlarmServiceClient is the client API of the alarm service.
type AlarmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmServiceClient creates a client on cc. Every call uses the JSON codec.
func NewAlarmServiceClient(cc grpc.ClientConnInterface) *AlarmServiceClient {
	return &AlarmServiceClient{cc: cc}
}

func (c *AlarmServiceClient) Schedule(ctx context.Context, in *ScheduleRequest, opts ...grpc.CallOption) (*ScheduleResponse, error) {
	return invoke[ScheduleResponse](ctx, c.cc, "Schedule", in, opts)
}

func (c *AlarmServiceClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	return invoke[CancelResponse](ctx, c.cc, "Cancel", in, opts)
}

func (c *AlarmServiceClient) Snooze(ctx context.Context, in *SnoozeRequest, opts ...grpc.CallOption) (*SnoozeResponse, error) {
	return invoke[SnoozeResponse](ctx, c.cc, "Snooze", in, opts)
}

func (c *AlarmServiceClient) Dismiss(ctx context.Context, in *DismissRequest, opts ...grpc.CallOption) (*DismissResponse, error) {
	return invoke[DismissResponse](ctx, c.cc, "Dismiss", in, opts)
}

func (c *AlarmServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, "GetStatus", in, opts)
}

func (c *AlarmServiceClient) GetActiveSession(
	ctx context.Context,
	in *GetActiveSessionRequest,
	opts ...grpc.CallOption,
) (*GetActiveSessionResponse, error) {
	return invoke[GetActiveSessionResponse](ctx, c.cc, "GetActiveSession", in, opts)
}

func (c *AlarmServiceClient) List(ctx context.Context, in *ListRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, "List", in, opts)
}

func (c *AlarmServiceClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "History", in, opts)
}

// WatchSurface opens the lifecycle event stream.
func (c *AlarmServiceClient) WatchSurface(
	ctx context.Context,
	in *WatchSurfaceRequest,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[SurfaceEvent], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("WatchSurface"), callOptions(opts)...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[WatchSurfaceRequest, SurfaceEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, callOptions(opts)...); err != nil {
		return nil, err
	}

	return out, nil
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
