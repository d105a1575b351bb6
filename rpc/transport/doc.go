// Package transport defines the interfaces between the RPC layer and the
// connection-handling code that moves request/response frames across the
// network.
//
// A transport knows nothing about storage operations: it carries opaque
// payload bytes keyed by a procedure identifier and an internally assigned
// request identifier used to multiplex concurrent calls over shared
// connections. Concrete implementations live in the base, tcp and unix
// sub-packages; base holds the medium-independent core and tcp/unix plug in
// their dialers and listeners.
package transport
