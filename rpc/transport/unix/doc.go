// Package unix implements a transport layer for the lump store's RPC
// system using Unix domain sockets. It provides optimized communication
// for processes running on the same machine.
//
// This package extends the base transport layer with Unix socket-specific
// connectors while inheriting all core functionality like connection
// pooling, request multiplexing and error handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners and accepts connections
//
// The server removes a stale socket file before listening, so a crashed
// process does not block a restart.
package unix
