package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/akarls/lumpstore/lib/engine/memengine"
)

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	eng, release, err := r.Resolve("dev1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if eng == nil {
		t.Fatalf("Resolve returned nil engine")
	}
	release()
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("expected ErrDeviceExists, got %v", err)
	}
}

func TestRegisterFactory(t *testing.T) {
	r := New()

	built := 0
	factory := func() (engine.Engine, error) {
		built++
		return memengine.NewMemEngine(nil), nil
	}

	if err := r.RegisterFactory("dev1", factory); err != nil {
		t.Fatalf("RegisterFactory failed: %v", err)
	}
	if built != 1 {
		t.Fatalf("expected one engine to be built, got %d", built)
	}

	_, release, err := r.Resolve("dev1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	release()

	// A taken id rejects the registration; the extra engine is discarded
	if err := r.RegisterFactory("dev1", factory); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("expected ErrDeviceExists, got %v", err)
	}
	if built != 2 {
		t.Fatalf("expected the factory to run again, got %d builds", built)
	}

	// Factory failures propagate unchanged
	wantErr := errors.New("disk missing")
	err = r.RegisterFactory("dev2", func() (engine.Engine, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error, got %v", err)
	}
	if _, _, err := r.Resolve("dev2"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected no device after factory failure, got %v", err)
	}
}

func TestResolveUnknown(t *testing.T) {
	r := New()
	if _, _, err := r.Resolve("nope"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestResolveConcurrent(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, release, err := r.Resolve("dev1")
				if err != nil {
					t.Errorf("Resolve failed: %v", err)
					return
				}
				release()
				if _, _, err := r.Resolve("missing"); !errors.Is(err, ErrDeviceNotFound) {
					t.Errorf("expected ErrDeviceNotFound, got %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestDeregister(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := r.Deregister("dev1", time.Second); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}

	if _, _, err := r.Resolve("dev1"); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("expected ErrDeviceClosed after deregister, got %v", err)
	}
	if err := r.Deregister("dev1", time.Second); !errors.Is(err, ErrDeviceClosed) {
		t.Errorf("expected ErrDeviceClosed on second deregister, got %v", err)
	}
	if err := r.Deregister("ghost", time.Second); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDeregisterDrainsInflight(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Hold one operation open across the deregistration.
	_, release, err := r.Resolve("dev1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- r.Deregister("dev1", 5*time.Second)
	}()

	// Resolve must start failing once the drain is pending.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, rel, err := r.Resolve("dev1")
		if errors.Is(err, ErrDeviceClosed) {
			break
		}
		if err == nil {
			// Deregister goroutine has not run yet.
			rel()
		}
		if time.Now().After(deadline) {
			t.Fatalf("device never entered closing state: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case err := <-done:
		t.Fatalf("Deregister returned before the in-flight operation finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Deregister failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Deregister did not return after drain completed")
	}
}

func TestDrainTimeout(t *testing.T) {
	r := New()
	if err := r.Register("dev1", memengine.NewMemEngine(nil)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Leak an acquisition on purpose: the drain must give up after the
	// timeout instead of blocking forever.
	if _, _, err := r.Resolve("dev1"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	start := time.Now()
	if err := r.Deregister("dev1", 20*time.Millisecond); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("drain timeout not honoured, took %s", elapsed)
	}
}

func TestIDsAndClose(t *testing.T) {
	r := New()
	for _, id := range []string{"a", "b"} {
		if err := r.Register(id, memengine.NewMemEngine(nil)); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}
	if got := len(r.IDs()); got != 2 {
		t.Errorf("expected 2 open devices, got %d", got)
	}

	if err := r.Close(time.Second); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := len(r.IDs()); got != 0 {
		t.Errorf("expected 0 open devices after Close, got %d", got)
	}
}
