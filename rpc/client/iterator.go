package client

import (
	"context"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/rpc/proto"
)

// LumpIterator walks the lump ids of one range in ascending order, pulling
// one batch at a time from the server. It is not safe for concurrent use.
//
// Usage:
//
//	it := c.ListRange("dev0", engine.RangeAll())
//	for it.Next(ctx) {
//		process(it.ID())
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
type LumpIterator struct {
	client    *Client
	deviceID  string
	rng       engine.Range
	batchSize uint32

	batch []engine.LumpID
	pos   int

	cursor *engine.LumpID
	more   bool // another batch may follow the current one
	begun  bool

	err  error
	done bool
}

// Next advances to the next id, fetching the next batch from the server when
// the current one is exhausted. It returns false when the range is exhausted
// or a fetch failed; the two cases are told apart via Err.
func (it *LumpIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	// Serve from the current batch first
	if it.pos < len(it.batch) {
		it.pos++
		return true
	}

	// Initial fetch, or follow-up fetch while the server signals more
	if it.begun && !it.more {
		it.done = true
		return false
	}

	if err := it.fetch(ctx); err != nil {
		it.err = err
		it.done = true
		return false
	}

	if len(it.batch) == 0 {
		it.done = true
		return false
	}
	it.pos = 1
	return true
}

// ID returns the id at the current position. Only valid after a Next call
// that returned true.
func (it *LumpIterator) ID() engine.LumpID {
	return it.batch[it.pos-1]
}

// Err returns the first error the iterator hit, if any. A fully consumed
// range leaves Err nil.
func (it *LumpIterator) Err() error {
	return it.err
}

// Cursor returns the id the next fetch would restart after, or nil before
// the first batch. It can be used to resume a listing with a fresh iterator.
func (it *LumpIterator) Cursor() *engine.LumpID {
	return it.cursor
}

// fetch pulls the next batch and advances the cursor to its last id.
func (it *LumpIterator) fetch(ctx context.Context) error {
	req, err := proto.EncodeListRequest(proto.ListRequest{
		DeviceID: it.deviceID,
		Range:    it.rng,
		Cursor:   it.cursor,
		Limit:    it.batchSize,
	})
	if err != nil {
		return err
	}
	respBytes, err := it.client.call(ctx, proto.ProcListRange, req)
	if err != nil {
		return err
	}
	resp, err := proto.DecodeListResponse(respBytes)
	if err != nil {
		return err
	}

	it.begun = true
	it.batch = resp.IDs
	it.pos = 0
	it.more = resp.Truncated
	if len(resp.IDs) > 0 {
		last := resp.IDs[len(resp.IDs)-1]
		it.cursor = &last
	}
	return nil
}
