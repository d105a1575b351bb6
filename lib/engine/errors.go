package engine

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies an engine failure. The set is fixed: every error an
// Engine returns maps to exactly one kind, and callers that encounter an
// unclassified error must treat it as KindInternal.
type ErrorKind uint8

const (
	// KindInternal is the catch-all for failures the engine cannot attribute
	// to the caller or to a known resource condition.
	KindInternal ErrorKind = iota
	// KindStorageFull indicates the device has no room for the operation.
	KindStorageFull
	// KindInvalidInput indicates a malformed argument (e.g. an oversized lump).
	KindInvalidInput
	// KindInconsistentState indicates the engine detected corruption or was
	// used after Close.
	KindInconsistentState
	// KindDeviceBusy indicates a transient overload; the operation was not
	// executed.
	KindDeviceBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindStorageFull:
		return "StorageFull"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInconsistentState:
		return "InconsistentState"
	case KindDeviceBusy:
		return "DeviceBusy"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// Error is the typed error returned by Engine implementations.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s: %s", e.Kind, e.Msg)
}

// NewError creates a typed engine error.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates a typed engine error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err. Errors that are not *Error (or do
// not wrap one) classify as KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
