package engine

import "context"

// EngineFactory is a function type that creates a new engine instance.
// It abstracts engine construction away from the code that registers devices.
type EngineFactory func() (Engine, error)

// Engine is the operation interface of one local lump-storage device. The RPC
// layer consumes it as-is and delegates all serialization of mutations to the
// implementation; it never wraps an Engine in additional queuing or locking.
//
// All errors returned by an Engine must classify via KindOf. Operations that
// observe a cancelled context return ctx.Err().
type Engine interface {
	// Put stores data under id, overwriting any previous lump. The returned
	// flag is true if the lump was newly created and false on overwrite.
	Put(ctx context.Context, id LumpID, data []byte) (created bool, err error)

	// Get returns the lump stored under id. A missing lump is reported via
	// found=false, not via an error.
	Get(ctx context.Context, id LumpID) (data []byte, found bool, err error)

	// Head reports whether a lump exists under id and, if so, its stored
	// size, without transferring the payload.
	Head(ctx context.Context, id LumpID) (size uint32, found bool, err error)

	// Delete removes the lump stored under id. The returned flag is true if
	// a lump existed.
	Delete(ctx context.Context, id LumpID) (existed bool, err error)

	// DeleteRange removes every lump whose id falls inside r and returns the
	// number of lumps removed.
	DeleteRange(ctx context.Context, r Range) (count uint64, err error)

	// ListRange returns the ids inside r in ascending order. A limit > 0
	// caps the number of returned ids; limit <= 0 means unlimited.
	ListRange(ctx context.Context, r Range, limit int) (ids []LumpID, err error)

	// Usage returns the device's current usage/capacity record.
	Usage(ctx context.Context) (Usage, error)

	// Sync flushes the engine's journal to durable storage.
	Sync(ctx context.Context) error

	// MaxLumpSize returns the largest payload size the engine accepts.
	MaxLumpSize() uint32

	// Close releases the engine. Operations after Close fail with
	// KindInconsistentState.
	Close() error
}
