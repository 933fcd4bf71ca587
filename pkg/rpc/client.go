// pkg/rpc/client.go
package rpc

import (
	"context"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/storage"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client calls a remote FileStore. Errors are mapped back onto the
// storage and atomicfile sentinels so errors.Is works across the wire.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	err := c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(CodecName))
	return fromStatus(err)
}

// Put writes data under key. A nil overwrite uses the server default.
func (c *Client) Put(ctx context.Context, key string, data []byte, overwrite *bool) (storage.Object, error) {
	out := new(ObjectResponse)
	err := c.invoke(ctx, "Put", &PutRequest{Key: key, Data: data, Overwrite: overwrite}, out)
	return out.Object, err
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out := new(GetResponse)
	if err := c.invoke(ctx, "Get", &KeyRequest{Key: key}, out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Stat(ctx context.Context, key string) (storage.Object, error) {
	out := new(ObjectResponse)
	err := c.invoke(ctx, "Stat", &KeyRequest{Key: key}, out)
	return out.Object, err
}

func (c *Client) Verify(ctx context.Context, key string) (storage.Object, error) {
	out := new(ObjectResponse)
	err := c.invoke(ctx, "Verify", &KeyRequest{Key: key}, out)
	return out.Object, err
}

// Delete removes key from the server; deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) (string, error) {
	out := new(DeleteResponse)
	err := c.invoke(ctx, "Delete", &KeyRequest{Key: key}, out)
	return out.Key, err
}

// List returns every key the server has recorded.
func (c *Client) List(ctx context.Context) ([]string, error) {
	out := new(ListResponse)
	if err := c.invoke(ctx, "List", &ListRequest{}, out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var base error
	switch st.Code() {
	case codes.InvalidArgument:
		base = storage.ErrInvalidKey
	case codes.NotFound:
		base = storage.ErrNotFound
	case codes.DataLoss:
		base = storage.ErrCorrupt
	case codes.AlreadyExists:
		base = atomicfile.ErrAlreadyExists
	case codes.FailedPrecondition:
		base = atomicfile.ErrInvalidState
	case codes.Aborted:
		base = atomicfile.ErrRollback
	default:
		return err
	}
	return errors.Wrap(base, st.Message())
}
