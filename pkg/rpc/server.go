// pkg/rpc/server.go
package rpc

import (
	"context"
	"errors"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server exposes a storage.Store over gRPC.
type Server struct {
	store     *storage.Store
	overwrite bool
}

// NewServer serves store; overwrite is the default for Put requests that
// leave it unset.
func NewServer(store *storage.Store, overwrite bool) *Server {
	return &Server{store: store, overwrite: overwrite}
}

var _ FileStoreServer = (*Server)(nil)

func (s *Server) Put(ctx context.Context, req *PutRequest) (*ObjectResponse, error) {
	overwrite := s.overwrite
	if req.Overwrite != nil {
		overwrite = *req.Overwrite
	}
	log := logrus.WithFields(logrus.Fields{"key": req.Key, "bytes": len(req.Data), "overwrite": overwrite})

	obj, err := s.store.Put(req.Key, req.Data, overwrite)
	if err != nil {
		log.WithError(err).Warn("[Put] failed")
		return nil, toStatus(err)
	}
	log.Info("[Put] committed")
	return &ObjectResponse{Object: obj}, nil
}

func (s *Server) Get(ctx context.Context, req *KeyRequest) (*GetResponse, error) {
	data, err := s.store.Get(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetResponse{Data: data}, nil
}

func (s *Server) Stat(ctx context.Context, req *KeyRequest) (*ObjectResponse, error) {
	obj, err := s.store.Stat(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ObjectResponse{Object: obj}, nil
}

func (s *Server) Verify(ctx context.Context, req *KeyRequest) (*ObjectResponse, error) {
	obj, err := s.store.Verify(req.Key)
	if err != nil {
		logrus.WithField("key", req.Key).WithError(err).Warn("[Verify] failed")
		return nil, toStatus(err)
	}
	return &ObjectResponse{Object: obj}, nil
}

func (s *Server) Delete(ctx context.Context, req *KeyRequest) (*DeleteResponse, error) {
	key, err := storage.CleanKey(req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.Delete(key); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("[Delete] failed")
		return nil, toStatus(err)
	}
	return &DeleteResponse{Key: key}, nil
}

func (s *Server) List(ctx context.Context, _ *ListRequest) (*ListResponse, error) {
	keys, err := s.store.Keys()
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListResponse{Keys: keys}, nil
}

// toStatus maps store and writer errors onto gRPC codes. fromStatus is its
// inverse.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		code = codes.InvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, storage.ErrCorrupt):
		code = codes.DataLoss
	case errors.Is(err, atomicfile.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, atomicfile.ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, atomicfile.ErrRollback):
		code = codes.Aborted
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
