// Package client provides the typed RPC client for the lump store.
//
// A Client wraps a transport.IRPCClientTransport and exposes the storage
// operations with context-first signatures. Every call addresses one device
// by its id; the server resolves the device and executes the operation on
// the engine behind it.
//
// Key Components:
//
//   - Client: typed facade over the procedure table (Put, Get, Head,
//     Delete, DeleteRange, Usage, Sync)
//
//   - LumpIterator: pull-based range listing that pages through batches
//     transparently and survives result sets of any size
//
// Error Semantics:
//
//   - Server-side failures arrive as *proto.Error with the wire error kind.
//   - An expired or canceled context maps to proto.ErrTimeout.
//   - Connection-level failures map to proto.ErrTransport.
//
// Mutating calls are submitted exactly once; only read-only procedures are
// ever retried by the transport underneath.
package client
