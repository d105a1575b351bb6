package memengine

import (
	"context"
	"sync"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/google/btree"
)

const (
	defaultCapacityBytes = 1 << 30 // 1 GiB
	defaultMaxLumpSize   = 4 << 20 // 4 MiB
	btreeDegree          = 32
)

// Options configures a memengine instance. The zero value of a field selects
// its default.
type Options struct {
	// CapacityBytes is the byte budget reported as Usage.TotalBytes and
	// enforced on Put.
	CapacityBytes uint64
	// MaxLumpSize is the largest accepted payload.
	MaxLumpSize uint32
}

// lump is one stored entry in the B-tree index.
type lump struct {
	id   engine.LumpID
	data []byte
}

func lumpLess(a, b lump) bool {
	return a.id.Less(b.id)
}

type memEngine struct {
	mu          sync.RWMutex
	tree        *btree.BTreeG[lump]
	usedBytes   uint64
	capacity    uint64
	maxLumpSize uint32
	closed      bool
}

// NewMemEngine creates a new in-memory engine. A nil opts selects defaults.
func NewMemEngine(opts *Options) engine.Engine {
	e := &memEngine{
		tree:        btree.NewG(btreeDegree, lumpLess),
		capacity:    defaultCapacityBytes,
		maxLumpSize: defaultMaxLumpSize,
	}
	if opts != nil {
		if opts.CapacityBytes > 0 {
			e.capacity = opts.CapacityBytes
		}
		if opts.MaxLumpSize > 0 {
			e.maxLumpSize = opts.MaxLumpSize
		}
	}
	return e
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine/interface.go)
// --------------------------------------------------------------------------

func (e *memEngine) Put(ctx context.Context, id engine.LumpID, data []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if uint64(len(data)) > uint64(e.maxLumpSize) {
		return false, engine.Errorf(engine.KindInvalidInput,
			"lump %s: data size %d exceeds max lump size %d", id, len(data), e.maxLumpSize)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, errClosed()
	}

	var oldSize uint64
	old, existed := e.tree.Get(lump{id: id})
	if existed {
		oldSize = uint64(len(old.data))
	}
	newUsed := e.usedBytes - oldSize + uint64(len(data))
	if newUsed > e.capacity {
		return false, engine.Errorf(engine.KindStorageFull,
			"lump %s: %d bytes needed, %d of %d used", id, len(data), e.usedBytes, e.capacity)
	}

	// Copy so later caller mutations cannot reach into the store.
	stored := make([]byte, len(data))
	copy(stored, data)
	e.tree.ReplaceOrInsert(lump{id: id, data: stored})
	e.usedBytes = newUsed
	return !existed, nil
}

func (e *memEngine) Get(ctx context.Context, id engine.LumpID) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, false, errClosed()
	}

	l, found := e.tree.Get(lump{id: id})
	if !found {
		return nil, false, nil
	}
	data := make([]byte, len(l.data))
	copy(data, l.data)
	return data, true, nil
}

func (e *memEngine) Head(ctx context.Context, id engine.LumpID) (uint32, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0, false, errClosed()
	}

	l, found := e.tree.Get(lump{id: id})
	if !found {
		return 0, false, nil
	}
	return uint32(len(l.data)), true, nil
}

func (e *memEngine) Delete(ctx context.Context, id engine.LumpID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, errClosed()
	}

	old, existed := e.tree.Delete(lump{id: id})
	if existed {
		e.usedBytes -= uint64(len(old.data))
	}
	return existed, nil
}

func (e *memEngine) DeleteRange(ctx context.Context, r engine.Range) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errClosed()
	}

	victims := e.collect(r, 0)
	for _, id := range victims {
		if old, existed := e.tree.Delete(lump{id: id}); existed {
			e.usedBytes -= uint64(len(old.data))
		}
	}
	return uint64(len(victims)), nil
}

func (e *memEngine) ListRange(ctx context.Context, r engine.Range, limit int) ([]engine.LumpID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, errClosed()
	}
	return e.collect(r, limit), nil
}

func (e *memEngine) Usage(ctx context.Context) (engine.Usage, error) {
	if err := ctx.Err(); err != nil {
		return engine.Usage{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return engine.Usage{}, errClosed()
	}
	return engine.Usage{UsedBytes: e.usedBytes, TotalBytes: e.capacity}, nil
}

func (e *memEngine) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return errClosed()
	}
	// Nothing to flush, all state is in memory.
	return nil
}

func (e *memEngine) MaxLumpSize() uint32 {
	return e.maxLumpSize
}

func (e *memEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.tree.Clear(false)
	e.usedBytes = 0
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// collect gathers the ids inside r in ascending order, up to limit if > 0.
// The caller must hold at least the read lock.
func (e *memEngine) collect(r engine.Range, limit int) []engine.LumpID {
	ids := make([]engine.LumpID, 0)
	visit := func(l lump) bool {
		if r.HasEnd {
			c := l.id.Compare(r.End)
			if c > 0 || (c == 0 && !r.EndIncl) {
				return false
			}
		}
		if !r.HasStart || r.StartIncl || l.id.Compare(r.Start) != 0 {
			ids = append(ids, l.id)
		}
		return limit <= 0 || len(ids) < limit
	}
	if r.HasStart {
		e.tree.AscendGreaterOrEqual(lump{id: r.Start}, visit)
	} else {
		e.tree.Ascend(visit)
	}
	return ids
}

func errClosed() error {
	return engine.NewError(engine.KindInconsistentState, "engine is closed")
}
