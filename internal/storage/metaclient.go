package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cocaineapp/balancer/internal/netrpc"
)

// symmetricGroupsKey is the well-known key every member group stores its
// couple meta blob under.
const symmetricGroupsKey = "SYMMETRIC_GROUPS_KEY"

// GroupAddressResolver maps a group id to the storage-daemon base URL
// currently hosting its authoritative copy. In production this comes from
// the cluster-info refresh (internal/clustermodel); tests supply a fixed
// map.
type GroupAddressResolver func(groupID int) (string, bool)

// HTTPMetaClient implements lifecycle.GroupMetaClient over the storage
// daemon's key-value HTTP surface via internal/netrpc. The lifecycle
// writer never knows the wire protocol, only that Write/Read/Delete exist.
type HTTPMetaClient struct {
	resolve GroupAddressResolver
	timeout time.Duration
}

// NewHTTPMetaClient builds an HTTPMetaClient that resolves group addresses
// via resolve. timeout bounds every call to a daemon (the configured
// wait_timeout); zero means no per-call deadline beyond the caller's ctx.
func NewHTTPMetaClient(resolve GroupAddressResolver, timeout time.Duration) *HTTPMetaClient {
	return &HTTPMetaClient{resolve: resolve, timeout: timeout}
}

func (c *HTTPMetaClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return netrpc.WithTimeout(ctx, c.timeout)
}

type metaBlob struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

func (c *HTTPMetaClient) Write(ctx context.Context, groupID int, blob []byte) error {
	addr, ok := c.resolve(groupID)
	if !ok {
		return errGroupAddrUnknown(groupID)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return netrpc.PostJSON(ctx, addr+"/meta", metaBlob{Key: symmetricGroupsKey, Value: blob}, nil)
}

func (c *HTTPMetaClient) Read(ctx context.Context, groupID int) ([]byte, error) {
	addr, ok := c.resolve(groupID)
	if !ok {
		return nil, errGroupAddrUnknown(groupID)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var out metaBlob
	if err := netrpc.GetJSON(ctx, addr+"/meta?key="+symmetricGroupsKey, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *HTTPMetaClient) Delete(ctx context.Context, groupID int) error {
	addr, ok := c.resolve(groupID)
	if !ok {
		return errGroupAddrUnknown(groupID)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	return netrpc.Delete(ctx, addr+"/meta?key="+symmetricGroupsKey)
}

type groupAddrError struct {
	groupID int
}

func (e groupAddrError) Error() string {
	return fmt.Sprintf("storage: no known storage-daemon address for group %d", e.groupID)
}

func errGroupAddrUnknown(groupID int) error {
	return groupAddrError{groupID: groupID}
}
