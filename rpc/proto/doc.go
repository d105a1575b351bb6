// Package proto defines the wire contract of the storage RPC layer: the
// reserved procedure-identifier namespace, the typed request and response
// envelopes of every operation, the fixed binary codec that carries them and
// the wire-stable error taxonomy.
//
// Both the client and the server use this package symmetrically; nothing in
// it depends on a transport or on a concrete engine.
//
// Wire format
//
// All integers are big endian with fixed widths; nothing varies by platform.
// The transport frame already names the procedure, so a request envelope is
// just [DeviceID][operation payload] where DeviceID is a u16-length-prefixed
// UTF-8 string. A response envelope starts with one status byte: 0 (ok)
// followed by the operation's result payload, or 1 (failure) followed by
// [kind u8][message u16-length-prefixed].
//
// Every Decode function is the exact inverse of its Encode counterpart on the
// valid domain and rejects anything else - truncated input, trailing bytes,
// unknown flag bits - with a DecodeError. Decoding never panics.
//
// Procedure namespace
//
// The block 0x00010000-0x0001FFFF of the 32 bit procedure space is reserved
// for this system. Services co-hosted on the same RPC server must register
// their procedures outside this block; that contract is documented here but
// cannot be enforced from this side. Within the block, ids are assigned
// statically and never reused for a different operation. The table is
// validated when the package loads: an id outside the block or assigned
// twice is a configuration error that panics at startup.
package proto
