package client

import (
	"context"
	"errors"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
	"github.com/akarls/lumpstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// Client is the typed RPC client for the lump store. It is safe for
// concurrent use.
type Client struct {
	config    common.ClientConfig
	transport transport.IRPCClientTransport
}

// NewClient creates a new RPC client
// It takes a config and a transport as parameters and connects the transport
//
// Usage:
//
//	c, err := client.NewClient(
//		config,
//		unix.NewUnixClientTransport(),
//	)
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
func NewClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
) (*Client, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	return &Client{
		config:    config,
		transport: transport,
	}, nil
}

// Close tears down the underlying transport connections.
func (c *Client) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Lump Operations
// --------------------------------------------------------------------------

// Put stores data under id on the given device. It reports whether the lump
// was created (as opposed to overwritten). Put is never retried.
func (c *Client) Put(ctx context.Context, deviceID string, id engine.LumpID, data []byte) (created bool, err error) {
	req, err := proto.EncodePutRequest(proto.PutRequest{DeviceID: deviceID, LumpID: id, Data: data})
	if err != nil {
		return false, err
	}
	respBytes, err := c.call(ctx, proto.ProcPut, req)
	if err != nil {
		return false, err
	}
	resp, err := proto.DecodePutResponse(respBytes)
	if err != nil {
		return false, err
	}
	return resp.Created, nil
}

// Get fetches the lump stored under id. A missing lump is reported via
// found, not via err.
func (c *Client) Get(ctx context.Context, deviceID string, id engine.LumpID) (data []byte, found bool, err error) {
	req, err := proto.EncodeLumpRequest(proto.LumpRequest{DeviceID: deviceID, LumpID: id})
	if err != nil {
		return nil, false, err
	}
	respBytes, err := c.call(ctx, proto.ProcGet, req)
	if err != nil {
		return nil, false, err
	}
	resp, err := proto.DecodeGetResponse(respBytes)
	if err != nil {
		return nil, false, err
	}
	return resp.Data, resp.Found, nil
}

// Head reports the existence and stored size of a lump without transferring
// its payload.
func (c *Client) Head(ctx context.Context, deviceID string, id engine.LumpID) (size uint32, found bool, err error) {
	req, err := proto.EncodeLumpRequest(proto.LumpRequest{DeviceID: deviceID, LumpID: id})
	if err != nil {
		return 0, false, err
	}
	respBytes, err := c.call(ctx, proto.ProcHead, req)
	if err != nil {
		return 0, false, err
	}
	resp, err := proto.DecodeHeadResponse(respBytes)
	if err != nil {
		return 0, false, err
	}
	return resp.Size, resp.Found, nil
}

// Delete removes the lump stored under id. It reports whether the lump
// existed. Delete is never retried.
func (c *Client) Delete(ctx context.Context, deviceID string, id engine.LumpID) (existed bool, err error) {
	req, err := proto.EncodeLumpRequest(proto.LumpRequest{DeviceID: deviceID, LumpID: id})
	if err != nil {
		return false, err
	}
	respBytes, err := c.call(ctx, proto.ProcDelete, req)
	if err != nil {
		return false, err
	}
	resp, err := proto.DecodeDeleteResponse(respBytes)
	if err != nil {
		return false, err
	}
	return resp.Existed, nil
}

// DeleteRange removes every lump whose id falls into r and returns the
// number of removed lumps. DeleteRange is never retried.
func (c *Client) DeleteRange(ctx context.Context, deviceID string, r engine.Range) (count uint64, err error) {
	req, err := proto.EncodeRangeRequest(proto.RangeRequest{DeviceID: deviceID, Range: r})
	if err != nil {
		return 0, err
	}
	respBytes, err := c.call(ctx, proto.ProcDeleteRange, req)
	if err != nil {
		return 0, err
	}
	resp, err := proto.DecodeDeleteRangeResponse(respBytes)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ListRange returns an iterator over the ids in r, in ascending order. The
// iterator fetches batches lazily; see LumpIterator.
func (c *Client) ListRange(deviceID string, r engine.Range) *LumpIterator {
	return c.ListRangeBatched(deviceID, r, 0)
}

// ListRangeBatched is ListRange with an explicit batch size. A batchSize of
// zero lets the server choose.
func (c *Client) ListRangeBatched(deviceID string, r engine.Range, batchSize uint32) *LumpIterator {
	return &LumpIterator{
		client:    c,
		deviceID:  deviceID,
		rng:       r,
		batchSize: batchSize,
	}
}

// --------------------------------------------------------------------------
// Device Operations
// --------------------------------------------------------------------------

// Usage returns the device-wide usage/capacity record.
func (c *Client) Usage(ctx context.Context, deviceID string) (engine.Usage, error) {
	req, err := proto.EncodeDeviceRequest(proto.DeviceRequest{DeviceID: deviceID})
	if err != nil {
		return engine.Usage{}, err
	}
	respBytes, err := c.call(ctx, proto.ProcUsage, req)
	if err != nil {
		return engine.Usage{}, err
	}
	resp, err := proto.DecodeUsageResponse(respBytes)
	if err != nil {
		return engine.Usage{}, err
	}
	return resp.Usage, nil
}

// Sync asks the device to make all acknowledged mutations durable.
func (c *Client) Sync(ctx context.Context, deviceID string) error {
	req, err := proto.EncodeDeviceRequest(proto.DeviceRequest{DeviceID: deviceID})
	if err != nil {
		return err
	}
	respBytes, err := c.call(ctx, proto.ProcSync, req)
	if err != nil {
		return err
	}
	return proto.DecodeSyncResponse(respBytes)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call submits one request and classifies transport-level failures. Typed
// failures decoded from the response payload pass through unchanged.
func (c *Client) call(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
	resp, err := c.transport.Send(ctx, proc, req)
	if err == nil {
		return resp, nil
	}

	// The caller's deadline (or the configured default) expired
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, proto.Errorf(proto.ErrTimeout, "%s: %v", proto.ProcedureName(proc), err)
	}

	// Anything else from the transport is a connection-level failure
	var e *proto.Error
	if errors.As(err, &e) {
		return nil, e
	}
	return nil, proto.Errorf(proto.ErrTransport, "%s: %v", proto.ProcedureName(proc), err)
}
