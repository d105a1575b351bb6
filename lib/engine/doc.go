// Package engine defines the vocabulary of the local lump-storage engine as
// it is consumed by the RPC layer: the 128 bit lump identifier, the bounds of
// a range query, the usage/capacity record and the fixed set of failure
// causes an engine may report.
//
// The package deliberately contains no storage logic. An Engine implementation
// (see the memengine sub-package for the in-memory reference) owns its own
// write-ahead log, allocator and concurrency discipline; this layer only
// routes typed operations to it and translates its errors onto the wire.
//
// Key Components:
//
//   - LumpID: fixed-width 128 bit key with a total ordering, used both for
//     point operations and as the bound of range queries.
//
//   - Range: two optional LumpID bounds with independent inclusive/exclusive
//     flags. The zero value matches every lump.
//
//   - ErrorKind / Error: the engine-native failure taxonomy. Every error an
//     Engine returns is classified into exactly one kind; KindOf never fails.
//
//   - Engine: the operation interface consumed by the RPC dispatcher. All
//     blocking operations take a context.Context.
package engine
