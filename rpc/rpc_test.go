package rpc_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/lib/engine/memengine"
	"github.com/akarls/lumpstore/rpc/client"
	"github.com/akarls/lumpstore/rpc/common"
	"github.com/akarls/lumpstore/rpc/proto"
	"github.com/akarls/lumpstore/rpc/registry"
	"github.com/akarls/lumpstore/rpc/server"
	"github.com/akarls/lumpstore/rpc/transport/unix"
)

// startServer runs a server with the given engine registered as "dev0" on a
// fresh unix socket and returns a connected client.
func startServer(t *testing.T, eng engine.Engine) *client.Client {
	t.Helper()

	socketPath := startServerSocket(t, eng)

	c, err := client.NewClient(common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socketPath},
			ConnectionsPerEndpoint: 2,
			RetryCount:             3,
		},
		TimeoutSecond: 5,
	}, unix.NewUnixClientTransport())
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

// startServerSocket runs a server with the given engine registered as "dev0"
// and returns the unix socket path once the server accepts connections.
func startServerSocket(t *testing.T, eng engine.Engine) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "lumpstore.sock")

	reg := registry.New()
	if err := reg.Register("dev0", eng); err != nil {
		t.Fatalf("failed to register device: %v", err)
	}

	s := server.NewRPCServer(common.ServerConfig{
		Transport: common.ServerTransportConfig{
			Endpoint:          socketPath,
			MaxWorkersPerConn: 4,
			BufferSize:        64 * 1024,
		},
		TimeoutSecond:      5,
		DrainTimeoutSecond: 2,
		LogLevel:           "error",
	}, unix.NewUnixServerTransport(), reg)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve() }()
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("server close failed: %v", err)
		}
		if err := <-serveErr; err != nil {
			t.Errorf("serve returned an error: %v", err)
		}
	})

	// Wait for the socket to appear
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return socketPath
}

func TestEndToEndLumpLifecycle(t *testing.T) {
	c := startServer(t, memengine.NewMemEngine(nil))
	ctx := context.Background()

	id := engine.NewLumpID(0xdead, 0xbeef)
	data := []byte("the quick brown fox")

	created, err := c.Put(ctx, "dev0", id, data)
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if !created {
		t.Fatalf("expected create")
	}

	got, found, err := c.Get(ctx, "dev0", id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || !bytes.Equal(got, data) {
		t.Fatalf("unexpected get result: found=%v data=%q", found, got)
	}

	size, found, err := c.Head(ctx, "dev0", id)
	if err != nil {
		t.Fatalf("head failed: %v", err)
	}
	if !found || size != uint32(len(data)) {
		t.Fatalf("unexpected head result: found=%v size=%d", found, size)
	}

	if err := c.Sync(ctx, "dev0"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	existed, err := c.Delete(ctx, "dev0", id)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !existed {
		t.Fatalf("expected delete to report existence")
	}

	_, found, err = c.Get(ctx, "dev0", id)
	if err != nil {
		t.Fatalf("get after delete failed: %v", err)
	}
	if found {
		t.Fatalf("expected lump to be gone")
	}
}

func TestEndToEndRangeOperations(t *testing.T) {
	c := startServer(t, memengine.NewMemEngine(nil))
	ctx := context.Background()

	const n = 25
	for i := uint64(0); i < n; i++ {
		if _, err := c.Put(ctx, "dev0", engine.NewLumpID(0, i), []byte{byte(i)}); err != nil {
			t.Fatalf("put %d failed: %v", i, err)
		}
	}

	// The iterator pages through the whole range in small batches
	it := c.ListRangeBatched("dev0", engine.RangeAll(), 7)
	var count uint64
	for it.Next(ctx) {
		want := engine.NewLumpID(0, count)
		if it.ID() != want {
			t.Fatalf("position %d: expected %v, got %v", count, want, it.ID())
		}
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator failed: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d ids, got %d", n, count)
	}

	// Delete the first 10 and verify usage went down
	before, err := c.Usage(ctx, "dev0")
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	deleted, err := c.DeleteRange(ctx, "dev0", engine.BoundedRange(engine.NewLumpID(0, 0), engine.NewLumpID(0, 10)))
	if err != nil {
		t.Fatalf("delete range failed: %v", err)
	}
	if deleted != 10 {
		t.Fatalf("expected 10 deletions, got %d", deleted)
	}
	after, err := c.Usage(ctx, "dev0")
	if err != nil {
		t.Fatalf("usage after delete failed: %v", err)
	}
	if after.UsedBytes != before.UsedBytes-10 {
		t.Fatalf("expected usage to drop by 10 bytes, got %d -> %d", before.UsedBytes, after.UsedBytes)
	}
}

func TestEndToEndDeviceNotFound(t *testing.T) {
	c := startServer(t, memengine.NewMemEngine(nil))

	_, _, err := c.Get(context.Background(), "missing", engine.NewLumpID(0, 1))
	var e *proto.Error
	if !errors.As(err, &e) || e.Kind != proto.ErrDeviceNotFound {
		t.Fatalf("expected DeviceNotFound, got %v", err)
	}
}

func TestEndToEndDeadlineDoesNotStickToConnection(t *testing.T) {
	socketPath := startServerSocket(t, memengine.NewMemEngine(nil))

	// No default timeout and a single connection, so a later call reuses
	// the exact connection an earlier deadline was set on.
	c, err := client.NewClient(common.ClientConfig{
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socketPath},
			ConnectionsPerEndpoint: 1,
		},
	}, unix.NewUnixClientTransport())
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	if err := c.Sync(ctx, "dev0"); err != nil {
		t.Fatalf("sync with deadline failed: %v", err)
	}
	cancel()

	// Let the first call's deadline pass, then issue a deadline-free call:
	// it must not inherit the expired write deadline.
	time.Sleep(400 * time.Millisecond)
	if err := c.Sync(context.Background(), "dev0"); err != nil {
		t.Fatalf("deadline-free sync failed: %v", err)
	}
}

// slowEngine delays reads long enough for a short client deadline to expire.
type slowEngine struct {
	engine.Engine
}

func (e *slowEngine) Get(ctx context.Context, id engine.LumpID) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}
	return e.Engine.Get(ctx, id)
}

func TestEndToEndClientTimeout(t *testing.T) {
	c := startServer(t, &slowEngine{Engine: memengine.NewMemEngine(nil)})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.Get(ctx, "dev0", engine.NewLumpID(0, 1))
	var e *proto.Error
	if !errors.As(err, &e) || e.Kind != proto.ErrTimeout {
		t.Fatalf("expected Timeout, got %v", err)
	}

	// The connection survives the abandoned exchange
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if err := c.Sync(ctx2, "dev0"); err != nil {
		t.Fatalf("sync after timeout failed: %v", err)
	}
}
