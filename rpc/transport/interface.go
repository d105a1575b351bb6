package transport

import (
	"context"

	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is the function a server transport calls for each
// received request frame. It must always return a well-formed response
// payload; classifying failures into response envelopes is the dispatcher's
// job, not the transport's.
type ServerHandleFunc func(proc proto.ProcedureID, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC
// transport layer.
type IRPCServerTransport interface {
	// RegisterHandler registers the handler invoked for every request.
	// Must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts accepting connections and blocks until Close is called
	// or an unrecoverable listener error occurs.
	Listen(config common.ServerConfig) error
	// Close stops the listener. In-flight requests are allowed to finish.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side of the RPC
// transport layer.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration.
	Connect(config common.ClientConfig) error
	// Send submits one request and blocks until the response arrives, the
	// context ends or the connection fails. A context error detaches from
	// the in-flight exchange: a response arriving later is discarded.
	Send(ctx context.Context, proc proto.ProcedureID, req []byte) (resp []byte, err error)
	// Close closes all connections.
	Close() error
}
