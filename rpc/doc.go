// Package rpc and its subpackages expose local lump-storage devices to
// remote callers.
//
// The layer is split into five packages:
//
//   - proto: the procedure table inside the reserved identifier block, the
//     binary request/response codec and the wire error taxonomy
//
//   - transport: framed request/response transports (unix and tcp sockets
//     over a shared base implementation)
//
//   - registry: the concurrent device registry with drain-on-deregister
//     semantics
//
//   - server: the dispatcher binding transport, registry and storage
//     engines together
//
//   - client: the typed client facade plus the batched range iterator
//
// The wire contract lives entirely in proto; server and client never touch
// raw frames. Transports carry opaque payloads and know nothing about the
// operations they move.
package rpc
