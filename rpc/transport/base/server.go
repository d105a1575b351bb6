package base

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
	"github.com/akarls/lumpstore/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific listener operations
type IServerConnector interface {
	// Listen creates a listener for the given endpoint
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// serverTransport implements the core server transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type serverTransport struct {
	connector IServerConnector
	config    common.ServerConfig
	handler   transport.ServerHandleFunc
	listener  net.Listener
	stopping  bool
	mu        sync.Mutex
	wg        sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	t.config = config

	listener, err := t.connector.Listen(config.Transport.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Transport.Endpoint, err)
	}

	t.mu.Lock()
	t.listener = listener
	t.stopping = false
	t.mu.Unlock()

	Logger.Infof("Listening on %s using %s transport", config.Transport.Endpoint, t.connector.GetName())

	for {
		conn, err := listener.Accept()
		if err != nil {
			t.mu.Lock()
			stopping := t.stopping
			t.mu.Unlock()
			if stopping || errors.Is(err, net.ErrClosed) {
				// Orderly shutdown, wait for in-flight requests
				t.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handleConnection(conn)
		}()
	}
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	t.stopping = true
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads request frames from one connection and dispatches
// them to the handler on a bounded number of worker goroutines.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Determine worker count (at least 1)
	workers := t.config.Transport.MaxWorkersPerConn
	if workers < 1 {
		workers = 1
	}

	// Semaphore limiting concurrent requests per connection
	sem := make(chan struct{}, workers)

	// Serializes response writes back onto the shared connection
	var writeMu sync.Mutex

	// In-flight requests for this connection
	var wg sync.WaitGroup

	// Reusable read buffer, workers get their own copy of the payload
	bufSize := t.config.Transport.BufferSize
	if bufSize < frameHeaderSize {
		bufSize = frameHeaderSize
	}
	buf := make([]byte, bufSize)

	for {
		proc, requestID, payload, err := readFrame(conn, buf)
		if err != nil {
			// EOF and friends simply end the connection
			wg.Wait()
			return
		}

		req := make([]byte, len(payload))
		copy(req, payload)

		sem <- struct{}{}
		wg.Add(1)
		go func(proc proto.ProcedureID, requestID uint64, req []byte) {
			defer func() {
				<-sem
				wg.Done()
			}()

			resp := t.handler(proc, req)

			writeMu.Lock()
			err := writeFrame(conn, proc, requestID, resp)
			writeMu.Unlock()
			if err != nil {
				Logger.Warningf("Failed to write response for request %d: %v", requestID, err)
			}
		}(proc, requestID, req)
	}
}
