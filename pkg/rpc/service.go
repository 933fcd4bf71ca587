// pkg/rpc/service.go
package rpc

import (
	"context"

	"github.com/dattu/atomicwriter/pkg/storage"
	"google.golang.org/grpc"
)

const ServiceName = "atomicwriter.FileStore"

type PutRequest struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
	// Overwrite nil means the server's configured default.
	Overwrite *bool `json:"overwrite,omitempty"`
}

type KeyRequest struct {
	Key string `json:"key"`
}

type ObjectResponse struct {
	Object storage.Object `json:"object"`
}

type GetResponse struct {
	Data []byte `json:"data"`
}

type DeleteResponse struct {
	Key string `json:"key"`
}

type ListRequest struct{}

type ListResponse struct {
	Keys []string `json:"keys"`
}

// FileStoreServer is the server API for the FileStore service.
type FileStoreServer interface {
	Put(context.Context, *PutRequest) (*ObjectResponse, error)
	Get(context.Context, *KeyRequest) (*GetResponse, error)
	Stat(context.Context, *KeyRequest) (*ObjectResponse, error)
	Verify(context.Context, *KeyRequest) (*ObjectResponse, error)
	Delete(context.Context, *KeyRequest) (*DeleteResponse, error)
	List(context.Context, *ListRequest) (*ListResponse, error)
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv FileStoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: unary("Put", FileStoreServer.Put)},
		{MethodName: "Get", Handler: unary("Get", FileStoreServer.Get)},
		{MethodName: "Stat", Handler: unary("Stat", FileStoreServer.Stat)},
		{MethodName: "Verify", Handler: unary("Verify", FileStoreServer.Verify)},
		{MethodName: "Delete", Handler: unary("Delete", FileStoreServer.Delete)},
		{MethodName: "List", Handler: unary("List", FileStoreServer.List)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "atomicwriter/filestore",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary builds the handler that protoc-gen-go-grpc would generate for one
// method.
func unary[Req, Resp any](name string, call func(FileStoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FileStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FileStoreServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
