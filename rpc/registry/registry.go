package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akarls/lumpstore/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("registry")

var (
	// ErrDeviceExists is returned by Register for an id that is already
	// taken. Ids are never reused, so this includes closed devices.
	ErrDeviceExists = errors.New("device id already registered")
	// ErrDeviceNotFound is returned by Resolve for an id that was never
	// registered.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceClosed is returned by Resolve once a device is closing or
	// closed.
	ErrDeviceClosed = errors.New("device closed")
)

// Device lifecycle states.
const (
	statusOpen int32 = iota
	statusClosing
	statusClosed
)

// deviceEntry holds one registered engine plus the state needed to drain it.
type deviceEntry struct {
	eng engine.Engine

	status   atomic.Int32
	inflight atomic.Int64

	drainOnce sync.Once
	drained   chan struct{}
}

// acquire reserves the entry for one operation. It fails with
// ErrDeviceClosed once the device left the Open state.
func (e *deviceEntry) acquire() error {
	for {
		if e.status.Load() != statusOpen {
			return ErrDeviceClosed
		}
		e.inflight.Add(1)
		if e.status.Load() == statusOpen {
			return nil
		}
		// Raced with a concurrent Deregister, undo and report closed.
		e.release()
	}
}

// release ends one operation and, if the device is draining, signals the
// drain waiter once the last operation finished.
func (e *deviceEntry) release() {
	if e.inflight.Add(-1) == 0 && e.status.Load() != statusOpen {
		e.signalDrained()
	}
}

func (e *deviceEntry) signalDrained() {
	e.drainOnce.Do(func() { close(e.drained) })
}

// Registry is the shared mapping from device id to a live engine handle.
// All methods are safe for concurrent use.
type Registry struct {
	devices *xsync.MapOf[string, *deviceEntry]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices: xsync.NewMapOf[string, *deviceEntry](),
	}
}

// Register adds a device under id. The registry takes ownership of the
// engine handle: it is closed when the device is deregistered.
func (r *Registry) Register(id string, eng engine.Engine) error {
	entry := &deviceEntry{
		eng:     eng,
		drained: make(chan struct{}),
	}
	if _, loaded := r.devices.LoadOrStore(id, entry); loaded {
		return ErrDeviceExists
	}
	Logger.Infof("registered device %q", id)
	return nil
}

// RegisterFactory builds an engine with factory and registers it under id.
// If the id is already taken, the freshly built engine is closed again and
// ErrDeviceExists is returned.
func (r *Registry) RegisterFactory(id string, factory engine.EngineFactory) error {
	eng, err := factory()
	if err != nil {
		return err
	}
	if err := r.Register(id, eng); err != nil {
		if cerr := eng.Close(); cerr != nil {
			Logger.Warningf("failed to close engine for rejected device %q: %v", id, cerr)
		}
		return err
	}
	return nil
}

// Resolve looks up the engine serving id and reserves it for one operation.
// The caller must invoke the returned release function once the operation
// has finished, successfully or not.
func (r *Registry) Resolve(id string) (engine.Engine, func(), error) {
	entry, ok := r.devices.Load(id)
	if !ok {
		return nil, nil, ErrDeviceNotFound
	}
	if err := entry.acquire(); err != nil {
		return nil, nil, err
	}
	return entry.eng, entry.release, nil
}

// Deregister tears down the device registered under id: it stops admitting
// new operations, waits up to drainTimeout for in-flight operations to
// finish and closes the engine. It returns ErrDeviceNotFound for an unknown
// id and ErrDeviceClosed if the device is already closing or closed.
func (r *Registry) Deregister(id string, drainTimeout time.Duration) error {
	entry, ok := r.devices.Load(id)
	if !ok {
		return ErrDeviceNotFound
	}
	if !entry.status.CompareAndSwap(statusOpen, statusClosing) {
		return ErrDeviceClosed
	}
	Logger.Infof("deregistering device %q", id)

	// A device with no in-flight operations is drained immediately; any
	// operation still running signals via release.
	if entry.inflight.Load() == 0 {
		entry.signalDrained()
	}

	select {
	case <-entry.drained:
	case <-time.After(drainTimeout):
		Logger.Warningf("device %q: drain timed out after %s with %d operations in flight",
			id, drainTimeout, entry.inflight.Load())
	}

	entry.status.Store(statusClosed)
	if err := entry.eng.Close(); err != nil {
		Logger.Errorf("device %q: engine close failed: %v", id, err)
		return err
	}
	Logger.Infof("device %q closed", id)
	return nil
}

// IDs returns the ids of all devices currently accepting operations.
func (r *Registry) IDs() []string {
	var ids []string
	r.devices.Range(func(id string, entry *deviceEntry) bool {
		if entry.status.Load() == statusOpen {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Close deregisters every open device, waiting up to drainTimeout for each.
func (r *Registry) Close(drainTimeout time.Duration) error {
	var firstErr error
	r.devices.Range(func(id string, _ *deviceEntry) bool {
		err := r.Deregister(id, drainTimeout)
		if err != nil && !errors.Is(err, ErrDeviceClosed) && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}
