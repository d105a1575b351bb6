package memengine

import (
	"context"
	"reflect"
	"testing"

	"github.com/akarls/lumpstore/lib/engine"
)

func id(n uint64) engine.LumpID {
	return engine.LumpIDFromU64(n)
}

func TestPutGetRoundTrip(t *testing.T) {
	e := NewMemEngine(nil)
	defer e.Close()
	ctx := context.Background()

	created, err := e.Put(ctx, id(42), []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !created {
		t.Errorf("expected first Put to report created=true")
	}

	data, found, err := e.Get(ctx, id(42))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected lump 42 to be found")
	}
	if !reflect.DeepEqual(data, []byte{0xAA, 0xBB}) {
		t.Errorf("data mismatch: got %v", data)
	}

	// Overwrite reports created=false
	created, err = e.Put(ctx, id(42), []byte{0x01})
	if err != nil {
		t.Fatalf("overwrite Put failed: %v", err)
	}
	if created {
		t.Errorf("expected overwrite Put to report created=false")
	}
}

func TestGetAbsent(t *testing.T) {
	e := NewMemEngine(nil)
	defer e.Close()

	data, found, err := e.Get(context.Background(), id(999))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found || data != nil {
		t.Errorf("expected absent lump, got found=%v data=%v", found, data)
	}
}

func TestHead(t *testing.T) {
	e := NewMemEngine(nil)
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Put(ctx, id(7), []byte("bar")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	size, found, err := e.Head(ctx, id(7))
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if !found || size != 3 {
		t.Errorf("expected found=true size=3, got found=%v size=%d", found, size)
	}

	if _, found, _ := e.Head(ctx, id(8)); found {
		t.Errorf("expected Head on absent lump to report found=false")
	}
}

func TestDelete(t *testing.T) {
	e := NewMemEngine(nil)
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Put(ctx, id(1), []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	existed, err := e.Delete(ctx, id(1))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !existed {
		t.Errorf("expected Delete to report existed=true")
	}

	existed, err = e.Delete(ctx, id(1))
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if existed {
		t.Errorf("expected second Delete to report existed=false")
	}
}

func TestListRange(t *testing.T) {
	e := NewMemEngine(nil)
	defer e.Close()
	ctx := context.Background()

	for _, n := range []uint64{10, 20, 49, 50, 5} {
		if _, err := e.Put(ctx, id(n), []byte("v")); err != nil {
			t.Fatalf("Put %d failed: %v", n, err)
		}
	}

	tests := []struct {
		name  string
		r     engine.Range
		limit int
		want  []engine.LumpID
	}{
		{"half open", engine.BoundedRange(id(10), id(50)), 0, []engine.LumpID{id(10), id(20), id(49)}},
		{"all", engine.RangeAll(), 0, []engine.LumpID{id(5), id(10), id(20), id(49), id(50)}},
		{"from", engine.RangeFrom(id(20)), 0, []engine.LumpID{id(20), id(49), id(50)}},
		{"limit", engine.RangeAll(), 2, []engine.LumpID{id(5), id(10)}},
		{
			"exclusive start",
			engine.Range{Start: id(10), HasStart: true, StartIncl: false, End: id(50), HasEnd: true, EndIncl: true},
			0,
			[]engine.LumpID{id(20), id(49), id(50)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ListRange(ctx, tt.r, tt.limit)
			if err != nil {
				t.Fatalf("ListRange failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListRange(%s) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestDeleteRangeAndUsage(t *testing.T) {
	e := NewMemEngine(&Options{CapacityBytes: 1024})
	defer e.Close()
	ctx := context.Background()

	for _, n := range []uint64{1, 2, 3, 4} {
		if _, err := e.Put(ctx, id(n), make([]byte, 10)); err != nil {
			t.Fatalf("Put %d failed: %v", n, err)
		}
	}

	u, err := e.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u.UsedBytes != 40 || u.TotalBytes != 1024 {
		t.Errorf("unexpected usage before delete: %+v", u)
	}

	count, err := e.DeleteRange(ctx, engine.BoundedRange(id(2), id(4)))
	if err != nil {
		t.Fatalf("DeleteRange failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 lumps deleted, got %d", count)
	}

	u, err = e.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u.UsedBytes != 20 {
		t.Errorf("expected 20 bytes used after delete, got %d", u.UsedBytes)
	}
}

func TestLimits(t *testing.T) {
	e := NewMemEngine(&Options{CapacityBytes: 16, MaxLumpSize: 8})
	defer e.Close()
	ctx := context.Background()

	if _, err := e.Put(ctx, id(1), make([]byte, 9)); engine.KindOf(err) != engine.KindInvalidInput {
		t.Errorf("expected InvalidInput for oversized lump, got %v", err)
	}

	if _, err := e.Put(ctx, id(1), make([]byte, 8)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := e.Put(ctx, id(2), make([]byte, 8)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := e.Put(ctx, id(3), []byte{0}); engine.KindOf(err) != engine.KindStorageFull {
		t.Errorf("expected StorageFull on full device, got %v", err)
	}

	// Overwriting an existing lump with the same size must not count twice.
	if _, err := e.Put(ctx, id(1), make([]byte, 8)); err != nil {
		t.Errorf("overwrite at capacity failed: %v", err)
	}
}

func TestClosedEngine(t *testing.T) {
	e := NewMemEngine(nil)
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := e.Put(context.Background(), id(1), []byte("x"))
	if engine.KindOf(err) != engine.KindInconsistentState {
		t.Errorf("expected InconsistentState after Close, got %v", err)
	}
}
