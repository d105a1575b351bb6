// Package memengine provides an in-memory reference implementation of the
// engine.Engine interface, backed by a B-tree index over lump ids.
//
// It exists so that devices can be served (and the RPC layer tested) without
// a durable storage engine: data lives on the heap, Sync is a no-op and the
// capacity is a configured byte budget rather than a real device size. The
// implementation nevertheless honours the full Engine contract, including
// usage accounting, the max-lump-size limit and the fixed error taxonomy.
package memengine
