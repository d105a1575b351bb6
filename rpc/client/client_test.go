package client

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
)

// fakeTransport routes Send calls to a test-provided function.
type fakeTransport struct {
	send   func(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error)
	closed bool
}

func (f *fakeTransport) Connect(common.ClientConfig) error { return nil }
func (f *fakeTransport) Close() error                      { f.closed = true; return nil }

func (f *fakeTransport) Send(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
	return f.send(ctx, proc, req)
}

func newTestClient(t *testing.T, send func(ctx context.Context, proc proto.ProcedureID, req []byte) ([]byte, error)) (*Client, *fakeTransport) {
	t.Helper()
	tp := &fakeTransport{send: send}
	c, err := NewClient(common.ClientConfig{}, tp)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c, tp
}

func TestClientPutGetRoundtrip(t *testing.T) {
	stored := map[engine.LumpID][]byte{}

	c, _ := newTestClient(t, func(_ context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
		switch proc {
		case proto.ProcPut:
			r, err := proto.DecodePutRequest(req)
			if err != nil {
				t.Fatalf("server failed to decode put: %v", err)
			}
			_, existed := stored[r.LumpID]
			stored[r.LumpID] = r.Data
			return proto.EncodePutResponse(proto.PutResponse{Created: !existed})
		case proto.ProcGet:
			r, err := proto.DecodeLumpRequest(req)
			if err != nil {
				t.Fatalf("server failed to decode get: %v", err)
			}
			data, found := stored[r.LumpID]
			return proto.EncodeGetResponse(proto.GetResponse{Found: found, Data: data})
		default:
			t.Fatalf("unexpected procedure %s", proto.ProcedureName(proc))
			return nil, nil
		}
	})

	id := engine.NewLumpID(7, 7)
	created, err := c.Put(context.Background(), "dev0", id, []byte("payload"))
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if !created {
		t.Fatalf("expected create")
	}

	data, found, err := c.Get(context.Background(), "dev0", id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("unexpected get result: found=%v data=%q", found, data)
	}

	_, found, err = c.Get(context.Background(), "dev0", engine.NewLumpID(0, 99))
	if err != nil {
		t.Fatalf("get of absent lump failed: %v", err)
	}
	if found {
		t.Fatalf("expected absent lump")
	}
}

func TestClientServerFailurePassThrough(t *testing.T) {
	c, _ := newTestClient(t, func(context.Context, proto.ProcedureID, []byte) ([]byte, error) {
		return proto.EncodeFailureResponse(proto.NewError(proto.ErrDeviceNotFound, "device \"dev0\" not found")), nil
	})

	_, _, err := c.Get(context.Background(), "dev0", engine.NewLumpID(0, 1))
	var e *proto.Error
	if !errors.As(err, &e) || e.Kind != proto.ErrDeviceNotFound {
		t.Fatalf("expected DeviceNotFound, got %v", err)
	}
}

func TestClientTimeoutClassification(t *testing.T) {
	c, _ := newTestClient(t, func(ctx context.Context, _ proto.ProcedureID, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	err := c.Sync(ctx, "dev0")
	var e *proto.Error
	if !errors.As(err, &e) || e.Kind != proto.ErrTimeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestClientTransportErrorClassification(t *testing.T) {
	c, _ := newTestClient(t, func(context.Context, proto.ProcedureID, []byte) ([]byte, error) {
		return nil, errors.New("connection reset by peer")
	})

	_, err := c.Usage(context.Background(), "dev0")
	var e *proto.Error
	if !errors.As(err, &e) || e.Kind != proto.ErrTransport {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClientClose(t *testing.T) {
	c, tp := newTestClient(t, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !tp.closed {
		t.Fatalf("expected transport to be closed")
	}
}

func TestLumpIteratorPagination(t *testing.T) {
	// A fixed ascending id set served in cursor-driven batches
	all := []engine.LumpID{
		engine.NewLumpID(0, 1),
		engine.NewLumpID(0, 2),
		engine.NewLumpID(0, 5),
		engine.NewLumpID(1, 0),
		engine.NewLumpID(2, 3),
	}

	c, _ := newTestClient(t, func(_ context.Context, proc proto.ProcedureID, req []byte) ([]byte, error) {
		if proc != proto.ProcListRange {
			t.Fatalf("unexpected procedure %s", proto.ProcedureName(proc))
		}
		r, err := proto.DecodeListRequest(req)
		if err != nil {
			t.Fatalf("server failed to decode list: %v", err)
		}

		// Restart strictly after the cursor
		rest := all
		if r.Cursor != nil {
			for len(rest) > 0 && rest[0].Compare(*r.Cursor) <= 0 {
				rest = rest[1:]
			}
		}

		limit := int(r.Limit)
		truncated := len(rest) > limit
		if truncated {
			rest = rest[:limit]
		}
		return proto.EncodeListResponse(proto.ListResponse{IDs: rest, Truncated: truncated})
	})

	it := c.ListRangeBatched("dev0", engine.RangeAll(), 2)
	var got []engine.LumpID
	for it.Next(context.Background()) {
		got = append(got, it.ID())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator failed: %v", err)
	}

	if len(got) != len(all) {
		t.Fatalf("expected %d ids, got %d", len(all), len(got))
	}
	for i := range all {
		if got[i] != all[i] {
			t.Fatalf("id %d: expected %v, got %v", i, all[i], got[i])
		}
	}
}

func TestLumpIteratorEmptyRange(t *testing.T) {
	c, _ := newTestClient(t, func(context.Context, proto.ProcedureID, []byte) ([]byte, error) {
		return proto.EncodeListResponse(proto.ListResponse{})
	})

	it := c.ListRange("dev0", engine.RangeAll())
	if it.Next(context.Background()) {
		t.Fatalf("expected no ids")
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Cursor() != nil {
		t.Fatalf("expected nil cursor for an empty listing")
	}
}

func TestLumpIteratorStopsOnError(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(context.Context, proto.ProcedureID, []byte) ([]byte, error) {
		calls++
		if calls == 1 {
			return proto.EncodeListResponse(proto.ListResponse{
				IDs:       []engine.LumpID{engine.NewLumpID(0, 1)},
				Truncated: true,
			})
		}
		return nil, errors.New("connection lost")
	})

	it := c.ListRange("dev0", engine.RangeAll())
	if !it.Next(context.Background()) {
		t.Fatalf("expected first id")
	}
	if it.Next(context.Background()) {
		t.Fatalf("expected iteration to stop on error")
	}
	var e *proto.Error
	if !errors.As(it.Err(), &e) || e.Kind != proto.ErrTransport {
		t.Fatalf("expected TransportError, got %v", it.Err())
	}
	// The error is sticky
	if it.Next(context.Background()) {
		t.Fatalf("expected iterator to stay terminated")
	}
}
