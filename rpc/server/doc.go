// Package server implements the RPC dispatcher that exposes registered
// lump-storage devices to remote callers.
//
// The dispatcher owns the procedure table lookup, request decoding, device
// resolution and the translation of engine failures into the wire error
// taxonomy. It is transport-agnostic: any transport.IRPCServerTransport can
// carry its frames.
//
// Key Components:
//
//   - Server: binds a transport, a device registry and the per-procedure
//     handlers together
//
// Failure Semantics:
//
//   - An unknown procedure id or a malformed request never reaches a storage
//     engine; the caller gets a typed failure response instead.
//   - A panic inside an engine call is contained to the single request and
//     reported as an internal storage error.
//   - Every response is a well-formed failure or success envelope; the
//     dispatcher never drops a request silently.
//
// Per-procedure request counters and latency histograms are exported via
// the VictoriaMetrics metrics set.
package server
