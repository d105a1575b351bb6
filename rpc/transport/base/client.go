package base

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
	"github.com/akarls/lumpstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint64, chan responseResult]
	connMu       sync.Mutex // Protects writes to the connection
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Close all existing connections
	t.closeConnections()

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	// Initialize client connections
	t.connectionsMu.Lock()
	t.connections = make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)
	t.connectionsMu.Unlock()

	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				conn:         nil, // Will be set by reconnect
				endpoint:     endpoint,
				stopCh:       make(chan struct{}),
				requestChans: xsync.NewMapOf[uint64, chan responseResult](),
				parent:       t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			// Add to our connections list
			t.connectionsMu.Lock()
			t.connections = append(t.connections, clientConn)
			t.connectionsMu.Unlock()

			// Start the response reader
			go clientConn.readResponses()
		}
	}

	// Check if we have at least one connection
	t.connectionsMu.RLock()
	connected := len(t.connections)
	t.connectionsMu.RUnlock()
	if connected == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		connected, len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
	// Apply the configured default timeout when the caller set no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	// Only read-only procedures may be retried: re-submitting a mutation
	// after an ambiguous failure could execute it twice.
	maxAttempts := 1
	if proto.IsReadOnly(proc) && t.config.Transport.RetryCount > 1 {
		maxAttempts = t.config.Transport.RetryCount
	}

	var lastErr error

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < maxAttempts; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := conn.exchange(ctx, proc, req)
		if err == nil {
			return data, nil
		}
		// A context error is final: the caller's deadline decides, not the
		// retry budget.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d for %s failed: %v", i+1, maxAttempts, proto.ProcedureName(proc), err)

		if i < maxAttempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// exchange submits one request frame on this connection and waits for the
// matching response, the context end or a connection failure.
func (c *clientConnection) exchange(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
	// Generate a unique request ID
	requestID := atomic.AddUint64(&c.parent.nextRequestID, 1)

	// Create a channel for the response
	respCh := make(chan responseResult, 1)

	// Register the request; removing the entry detaches from the exchange,
	// a late response then finds no waiter and is dropped by the reader.
	c.requestChans.Store(requestID, respCh)
	defer c.requestChans.Delete(requestID)

	// Lock the connection for the deadline update and the write; reconnect
	// reassigns c.conn under the same lock.
	c.connMu.Lock()
	conn := c.conn
	if conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("connection is closed")
	}

	// Propagate the caller's deadline to the socket write. The zero time
	// clears a deadline left behind by an earlier call on this connection.
	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		c.connMu.Unlock()
		return nil, err
	}

	err := writeFrame(conn, proc, requestID, req)
	c.connMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		// Close the connection
		if conn.conn != nil {
			conn.conn.Close()
		}
	}

	// Empty the list
	t.connections = nil
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		// Check if we should stop
		select {
		case <-c.stopCh:
			return
		default:
		}

		proc, requestID, data, err := readFrame(c.conn, nil)
		if err != nil {
			// The connection broke: every waiter on it gets the error.
			c.failAll(err)

			if c.parent.stopping.Load() {
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}

			Logger.Warningf("Connection to %s broke: %v", c.endpoint, err)
			if err := c.reconnect(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		// Find the corresponding request channel
		if respCh, found := c.requestChans.LoadAndDelete(requestID); found {
			respCh <- responseResult{data, nil}
		} else {
			// The waiter detached (timeout/cancellation): discard.
			Logger.Debugf("Dropped response for detached request %d (%s)", requestID, proto.ProcedureName(proc))
		}
	}
}

// failAll resolves every pending request on this connection with err.
func (c *clientConnection) failAll(err error) {
	c.requestChans.Range(func(requestID uint64, respCh chan responseResult) bool {
		if _, loaded := c.requestChans.LoadAndDelete(requestID); loaded {
			respCh <- responseResult{nil, fmt.Errorf("connection failed: %w", err)}
		}
		return true
	})
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	// Connect to the endpoint
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
