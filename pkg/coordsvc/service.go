package coordsvc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "firewheel.coordsvc.CoordinationService"

// unaryHandler builds a grpc.MethodDesc for one RPC against *Store,
// replacing the per-method boilerplate a protoc-gen-go-go-grpc _grpc.pb.go
// file would otherwise generate.
func unaryHandler[Req any, Resp any](method string, call func(*Store, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Store)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serviceDesc is the hand-written equivalent of a generated
// _grpc.pb.go's ServiceDesc, registered against a *Store.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Store)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetInfo", (*Store).GetInfo),
		unaryHandler("GetExperimentLaunchTime", (*Store).GetExperimentLaunchTime),
		unaryHandler("SetExperimentLaunchTime", (*Store).SetExperimentLaunchTime),
		unaryHandler("GetExperimentStartTime", (*Store).GetExperimentStartTime),
		unaryHandler("SetExperimentStartTime", (*Store).SetExperimentStartTime),
		unaryHandler("InitializeExperimentStartTime", (*Store).InitializeExperimentStartTime),
		unaryHandler("SetVMMapping", (*Store).SetVMMapping),
		unaryHandler("GetVMMappingByUUID", (*Store).GetVMMappingByUUID),
		unaryHandler("DestroyVMMappingByUUID", (*Store).DestroyVMMappingByUUID),
		unaryHandler("ListVMMappings", (*Store).ListVMMappings),
		unaryHandler("CountVMMappingsNotReady", (*Store).CountVMMappingsNotReady),
		unaryHandler("SetVMTimeByUUID", (*Store).SetVMTimeByUUID),
		unaryHandler("SetVMStateByUUID", (*Store).SetVMStateByUUID),
		unaryHandler("DestroyAllVMMappings", (*Store).DestroyAllVMMappings),
		unaryHandler("ClearDb", (*Store).ClearDb),
	},
	Metadata: "coordsvc.proto",
}
