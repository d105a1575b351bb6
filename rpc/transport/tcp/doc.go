// Package tcp implements a TCP socket-based transport for the lump store's
// RPC system. It provides concrete implementations of the base package's
// connector interfaces for communication across machines.
//
// This package builds on the base package's transport functionality,
// inheriting connection pooling, request multiplexing and the read-only
// retry policy. See the base package documentation for details on the
// underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// TCP tuning (NoDelay, keep-alive, socket buffer sizes, linger) is driven
// by the transport section of the server and client configuration.
package tcp
