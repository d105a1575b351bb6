package proto

import (
	"errors"
	"fmt"

	"github.com/akarls/lumpstore/lib/engine"
)

// --------------------------------------------------------------------------
// Wire Error Taxonomy
// --------------------------------------------------------------------------

// ErrorKind is the wire-stable classification of an RPC failure. Codes are
// append-only; a code, once assigned, never changes meaning.
type ErrorKind uint8

const (
	// ErrDecode: malformed request or response bytes. Such a request never
	// reaches the storage engine.
	ErrDecode ErrorKind = 1
	// ErrUnknownProcedure: the ProcedureID is not registered on the server.
	ErrUnknownProcedure ErrorKind = 2
	// ErrDeviceNotFound: the target device was never registered.
	ErrDeviceNotFound ErrorKind = 3
	// ErrDeviceClosed: the target device has been (or is being) torn down.
	ErrDeviceClosed ErrorKind = 4

	// Direct translations of engine failure causes.
	ErrStorageFull       ErrorKind = 5
	ErrInvalidInput      ErrorKind = 6
	ErrInconsistentState ErrorKind = 7
	ErrDeviceBusy        ErrorKind = 8
	ErrInternalStorage   ErrorKind = 9

	// ErrTimeout: the caller's deadline expired. Purely a client-side
	// construct, never produced by the server.
	ErrTimeout ErrorKind = 10
	// ErrTransport: a connection-level failure surfaced unchanged from the
	// transport.
	ErrTransport ErrorKind = 11
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDecode:
		return "DecodeError"
	case ErrUnknownProcedure:
		return "UnknownProcedure"
	case ErrDeviceNotFound:
		return "DeviceNotFound"
	case ErrDeviceClosed:
		return "DeviceClosed"
	case ErrStorageFull:
		return "StorageFull"
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrInconsistentState:
		return "InconsistentState"
	case ErrDeviceBusy:
		return "DeviceBusy"
	case ErrInternalStorage:
		return "InternalStorageError"
	case ErrTimeout:
		return "Timeout"
	case ErrTransport:
		return "TransportError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// valid reports whether k is a known wire code. Used by the response decoder.
func (k ErrorKind) valid() bool {
	return k >= ErrDecode && k <= ErrTransport
}

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error is the typed failure of one RPC call.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("rpc: %s", e.Kind)
	}
	return fmt.Sprintf("rpc: %s: %s", e.Kind, e.Msg)
}

// NewError creates a typed RPC error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates a typed RPC error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err. Errors that are not *Error (or do
// not wrap one) classify as ErrInternalStorage.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternalStorage
}

// FromEngineError maps an engine failure onto the wire taxonomy. The mapping
// is total: every engine kind maps to exactly one wire kind, and anything
// unrecognized maps to InternalStorageError rather than being dropped.
func FromEngineError(err error) *Error {
	kind := ErrInternalStorage
	switch engine.KindOf(err) {
	case engine.KindStorageFull:
		kind = ErrStorageFull
	case engine.KindInvalidInput:
		kind = ErrInvalidInput
	case engine.KindInconsistentState:
		kind = ErrInconsistentState
	case engine.KindDeviceBusy:
		kind = ErrDeviceBusy
	}
	return &Error{Kind: kind, Msg: err.Error()}
}
