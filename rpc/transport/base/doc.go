// Package base implements the medium-independent core of the RPC transport:
// frame encoding, connection management, request multiplexing and the
// per-connection worker pool. The tcp and unix packages supply the actual
// dialers and listeners through the IClientConnector/IServerConnector
// interfaces.
//
// Wire frame (big endian):
//
//	4 bytes  procedure id
//	8 bytes  request id
//	4 bytes  payload length
//	N bytes  payload
//
// The request id pairs a response frame with its waiting caller; responses
// may arrive in any order. The client retries failed sends only for
// procedures the namespace marks read-only: a mutating call is submitted at
// most once per Send, since the layer above cannot tell a lost response from
// an unexecuted request.
package base
