package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport-level knobs of the RPC server.
type ServerTransportConfig struct {
	// Endpoint is the address the server listens on (TCP host:port or a
	// unix socket path, depending on the chosen transport).
	Endpoint string

	// MaxWorkersPerConn limits how many requests of one connection are
	// processed concurrently. Minimum 1.
	MaxWorkersPerConn int

	// BufferSize is the size of the pooled read buffers in bytes.
	BufferSize int

	// TCP specific settings (ignored by the unix transport)
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	ReadBufferSize  int
	WriteBufferSize int
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	Transport ServerTransportConfig

	// TimeoutSecond bounds one engine operation on the server side.
	// Zero means no bound.
	TimeoutSecond int64

	// DrainTimeoutSecond bounds the wait for in-flight operations when a
	// device is deregistered.
	DrainTimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Operation Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Drain Timeout", fmt.Sprintf("%d sec", c.DrainTimeoutSecond))

	addSection("Transport")
	addField("Workers Per Connection", strconv.Itoa(int(math.Max(1, float64(c.Transport.MaxWorkersPerConn)))))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Transport.BufferSize))
	addField("TCP NoDelay", fmt.Sprintf("%t", c.Transport.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport-level knobs of the RPC client.
type ClientTransportConfig struct {
	// Endpoints lists the server addresses to connect to.
	Endpoints []string

	// ConnectionsPerEndpoint controls how many parallel connections are
	// opened per endpoint. Minimum 1.
	ConnectionsPerEndpoint int

	// RetryCount is the number of attempts for read-only procedures.
	// Mutating procedures always get exactly one attempt.
	RetryCount int

	// TCP specific settings (ignored by the unix transport)
	TCPNoDelay      bool
	TCPKeepAliveSec int
	ReadBufferSize  int
	WriteBufferSize int
}

// ClientConfig holds all configuration parameters for the RPC client.
type ClientConfig struct {
	Transport ClientTransportConfig

	// TimeoutSecond is the default per-call timeout applied when the caller
	// passes a context without a deadline. Zero means no default timeout.
	TimeoutSecond int64
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count (read-only)", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
