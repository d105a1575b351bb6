package proto

import "github.com/akarls/lumpstore/lib/engine"

// --------------------------------------------------------------------------
// Request Envelopes
// --------------------------------------------------------------------------

// LumpRequest addresses a single lump on a device. Used by Get, Head, Put
// (extended with the payload) and Delete.
type LumpRequest struct {
	DeviceID string
	LumpID   engine.LumpID
}

// PutRequest carries a lump mutation.
type PutRequest struct {
	DeviceID string
	LumpID   engine.LumpID
	Data     []byte
}

// RangeRequest addresses a range of lumps on a device. Used by DeleteRange.
type RangeRequest struct {
	DeviceID string
	Range    engine.Range
}

// ListRequest fetches one batch of lump ids inside a range. Cursor, when set,
// restarts the listing strictly after the given id; Limit caps the batch
// size (0 lets the server choose).
type ListRequest struct {
	DeviceID string
	Range    engine.Range
	Cursor   *engine.LumpID
	Limit    uint32
}

// DeviceRequest addresses a device as a whole. Used by Usage and Sync.
type DeviceRequest struct {
	DeviceID string
}

// --------------------------------------------------------------------------
// Response Envelopes
// --------------------------------------------------------------------------

// GetResponse carries the looked-up lump. A missing lump is a successful
// response with Found=false, not a failure.
type GetResponse struct {
	Found bool
	Data  []byte
}

// HeadResponse carries a lump's existence and stored size.
type HeadResponse struct {
	Found bool
	Size  uint32
}

// PutResponse reports whether the put created a new lump (as opposed to
// overwriting one).
type PutResponse struct {
	Created bool
}

// DeleteResponse reports whether a lump existed and was removed.
type DeleteResponse struct {
	Existed bool
}

// DeleteRangeResponse reports the number of lumps removed.
type DeleteRangeResponse struct {
	Count uint64
}

// ListResponse carries one batch of ascending lump ids. Truncated signals
// that more ids remain past the batch and the caller should continue from
// the last id as cursor.
type ListResponse struct {
	IDs       []engine.LumpID
	Truncated bool
}

// UsageResponse carries the device usage/capacity record.
type UsageResponse struct {
	Usage engine.Usage
}
