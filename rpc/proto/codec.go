package proto

import (
	"encoding/binary"
	"math"

	"github.com/akarls/lumpstore/lib/engine"
)

// Range flag bits. Higher bits are reserved and must be zero on the wire.
const (
	rangeHasStart  byte = 1 << 0
	rangeHasEnd    byte = 1 << 1
	rangeStartIncl byte = 1 << 2
	rangeEndIncl   byte = 1 << 3
)

// Response status bytes.
const (
	statusOK      byte = 0
	statusFailure byte = 1
)

// maxDeviceIDLen is fixed by the u16 length prefix of the DeviceID field.
const maxDeviceIDLen = math.MaxUint16

// --------------------------------------------------------------------------
// Request Encoding
// --------------------------------------------------------------------------

// EncodeLumpRequest encodes a Get/Head/Delete request envelope.
func EncodeLumpRequest(req LumpRequest) ([]byte, error) {
	buf, err := appendDeviceID(nil, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return appendLumpID(buf, req.LumpID), nil
}

// EncodePutRequest encodes a Put request envelope.
func EncodePutRequest(req PutRequest) ([]byte, error) {
	if uint64(len(req.Data)) > math.MaxUint32 {
		return nil, Errorf(ErrInvalidInput, "lump data of %d bytes exceeds the wire limit", len(req.Data))
	}
	buf, err := appendDeviceID(nil, req.DeviceID)
	if err != nil {
		return nil, err
	}
	buf = appendLumpID(buf, req.LumpID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(req.Data)))
	return append(buf, req.Data...), nil
}

// EncodeRangeRequest encodes a DeleteRange request envelope.
func EncodeRangeRequest(req RangeRequest) ([]byte, error) {
	buf, err := appendDeviceID(nil, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return appendRange(buf, req.Range), nil
}

// EncodeListRequest encodes a ListRange batch request envelope.
func EncodeListRequest(req ListRequest) ([]byte, error) {
	buf, err := appendDeviceID(nil, req.DeviceID)
	if err != nil {
		return nil, err
	}
	buf = appendRange(buf, req.Range)
	if req.Cursor != nil {
		buf = append(buf, 1)
		buf = appendLumpID(buf, *req.Cursor)
	} else {
		buf = append(buf, 0)
	}
	return binary.BigEndian.AppendUint32(buf, req.Limit), nil
}

// EncodeDeviceRequest encodes a Usage/Sync request envelope.
func EncodeDeviceRequest(req DeviceRequest) ([]byte, error) {
	return appendDeviceID(nil, req.DeviceID)
}

// --------------------------------------------------------------------------
// Request Decoding
// --------------------------------------------------------------------------

// DecodeLumpRequest is the inverse of EncodeLumpRequest.
func DecodeLumpRequest(b []byte) (LumpRequest, error) {
	r := reader{buf: b}
	var req LumpRequest
	var err error
	if req.DeviceID, err = r.deviceID(); err != nil {
		return LumpRequest{}, err
	}
	if req.LumpID, err = r.lumpID(); err != nil {
		return LumpRequest{}, err
	}
	return req, r.done()
}

// DecodePutRequest is the inverse of EncodePutRequest.
func DecodePutRequest(b []byte) (PutRequest, error) {
	r := reader{buf: b}
	var req PutRequest
	var err error
	if req.DeviceID, err = r.deviceID(); err != nil {
		return PutRequest{}, err
	}
	if req.LumpID, err = r.lumpID(); err != nil {
		return PutRequest{}, err
	}
	n, err := r.u32()
	if err != nil {
		return PutRequest{}, err
	}
	if req.Data, err = r.bytes(int(n)); err != nil {
		return PutRequest{}, err
	}
	return req, r.done()
}

// DecodeRangeRequest is the inverse of EncodeRangeRequest.
func DecodeRangeRequest(b []byte) (RangeRequest, error) {
	r := reader{buf: b}
	var req RangeRequest
	var err error
	if req.DeviceID, err = r.deviceID(); err != nil {
		return RangeRequest{}, err
	}
	if req.Range, err = r.lumpRange(); err != nil {
		return RangeRequest{}, err
	}
	return req, r.done()
}

// DecodeListRequest is the inverse of EncodeListRequest.
func DecodeListRequest(b []byte) (ListRequest, error) {
	r := reader{buf: b}
	var req ListRequest
	var err error
	if req.DeviceID, err = r.deviceID(); err != nil {
		return ListRequest{}, err
	}
	if req.Range, err = r.lumpRange(); err != nil {
		return ListRequest{}, err
	}
	flag, err := r.u8()
	if err != nil {
		return ListRequest{}, err
	}
	switch flag {
	case 0:
	case 1:
		id, err := r.lumpID()
		if err != nil {
			return ListRequest{}, err
		}
		req.Cursor = &id
	default:
		return ListRequest{}, Errorf(ErrDecode, "invalid cursor flag 0x%02x", flag)
	}
	if req.Limit, err = r.u32(); err != nil {
		return ListRequest{}, err
	}
	return req, r.done()
}

// DecodeDeviceRequest is the inverse of EncodeDeviceRequest.
func DecodeDeviceRequest(b []byte) (DeviceRequest, error) {
	r := reader{buf: b}
	id, err := r.deviceID()
	if err != nil {
		return DeviceRequest{}, err
	}
	return DeviceRequest{DeviceID: id}, r.done()
}

// --------------------------------------------------------------------------
// Response Encoding
// --------------------------------------------------------------------------

// EncodeFailureResponse encodes a failure envelope. Encoding a failure never
// fails; over-long messages are truncated to the wire limit.
func EncodeFailureResponse(e *Error) []byte {
	msg := e.Msg
	if len(msg) > math.MaxUint16 {
		msg = msg[:math.MaxUint16]
	}
	buf := make([]byte, 0, 4+len(msg))
	buf = append(buf, statusFailure, byte(e.Kind))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg)))
	return append(buf, msg...)
}

// IsFailureResponse reports whether b carries a failure envelope. An empty
// or malformed buffer counts as a failure.
func IsFailureResponse(b []byte) bool {
	return len(b) == 0 || b[0] != statusOK
}

// EncodeGetResponse encodes a successful Get result.
func EncodeGetResponse(resp GetResponse) ([]byte, error) {
	if uint64(len(resp.Data)) > math.MaxUint32 {
		return nil, Errorf(ErrInternalStorage, "lump data of %d bytes exceeds the wire limit", len(resp.Data))
	}
	buf := []byte{statusOK}
	if !resp.Found {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(resp.Data)))
	return append(buf, resp.Data...), nil
}

// EncodeHeadResponse encodes a successful Head result.
func EncodeHeadResponse(resp HeadResponse) ([]byte, error) {
	buf := []byte{statusOK}
	if !resp.Found {
		return append(buf, 0), nil
	}
	buf = append(buf, 1)
	return binary.BigEndian.AppendUint32(buf, resp.Size), nil
}

// EncodePutResponse encodes a successful Put result.
func EncodePutResponse(resp PutResponse) ([]byte, error) {
	return []byte{statusOK, encodeBool(resp.Created)}, nil
}

// EncodeDeleteResponse encodes a successful Delete result.
func EncodeDeleteResponse(resp DeleteResponse) ([]byte, error) {
	return []byte{statusOK, encodeBool(resp.Existed)}, nil
}

// EncodeDeleteRangeResponse encodes a successful DeleteRange result.
func EncodeDeleteRangeResponse(resp DeleteRangeResponse) ([]byte, error) {
	return binary.BigEndian.AppendUint64([]byte{statusOK}, resp.Count), nil
}

// EncodeListResponse encodes one successful ListRange batch.
func EncodeListResponse(resp ListResponse) ([]byte, error) {
	if uint64(len(resp.IDs)) > math.MaxUint32 {
		return nil, Errorf(ErrInternalStorage, "list batch of %d ids exceeds the wire limit", len(resp.IDs))
	}
	buf := make([]byte, 0, 6+16*len(resp.IDs))
	buf = append(buf, statusOK)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(resp.IDs)))
	for _, id := range resp.IDs {
		buf = appendLumpID(buf, id)
	}
	return append(buf, encodeBool(resp.Truncated)), nil
}

// EncodeUsageResponse encodes a successful Usage result.
func EncodeUsageResponse(resp UsageResponse) ([]byte, error) {
	buf := binary.BigEndian.AppendUint64([]byte{statusOK}, resp.Usage.UsedBytes)
	return binary.BigEndian.AppendUint64(buf, resp.Usage.TotalBytes), nil
}

// EncodeSyncResponse encodes a successful Sync result.
func EncodeSyncResponse() ([]byte, error) {
	return []byte{statusOK}, nil
}

// --------------------------------------------------------------------------
// Response Decoding
// --------------------------------------------------------------------------

// DecodeGetResponse is the inverse of EncodeGetResponse. A remote failure is
// returned as a *Error.
func DecodeGetResponse(b []byte) (GetResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return GetResponse{}, err
	}
	present, err := r.presence()
	if err != nil {
		return GetResponse{}, err
	}
	if !present {
		return GetResponse{}, r.done()
	}
	n, err := r.u32()
	if err != nil {
		return GetResponse{}, err
	}
	data, err := r.bytes(int(n))
	if err != nil {
		return GetResponse{}, err
	}
	return GetResponse{Found: true, Data: data}, r.done()
}

// DecodeHeadResponse is the inverse of EncodeHeadResponse.
func DecodeHeadResponse(b []byte) (HeadResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return HeadResponse{}, err
	}
	present, err := r.presence()
	if err != nil {
		return HeadResponse{}, err
	}
	if !present {
		return HeadResponse{}, r.done()
	}
	size, err := r.u32()
	if err != nil {
		return HeadResponse{}, err
	}
	return HeadResponse{Found: true, Size: size}, r.done()
}

// DecodePutResponse is the inverse of EncodePutResponse.
func DecodePutResponse(b []byte) (PutResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return PutResponse{}, err
	}
	created, err := r.boolByte()
	if err != nil {
		return PutResponse{}, err
	}
	return PutResponse{Created: created}, r.done()
}

// DecodeDeleteResponse is the inverse of EncodeDeleteResponse.
func DecodeDeleteResponse(b []byte) (DeleteResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return DeleteResponse{}, err
	}
	existed, err := r.boolByte()
	if err != nil {
		return DeleteResponse{}, err
	}
	return DeleteResponse{Existed: existed}, r.done()
}

// DecodeDeleteRangeResponse is the inverse of EncodeDeleteRangeResponse.
func DecodeDeleteRangeResponse(b []byte) (DeleteRangeResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return DeleteRangeResponse{}, err
	}
	count, err := r.u64()
	if err != nil {
		return DeleteRangeResponse{}, err
	}
	return DeleteRangeResponse{Count: count}, r.done()
}

// DecodeListResponse is the inverse of EncodeListResponse.
func DecodeListResponse(b []byte) (ListResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return ListResponse{}, err
	}
	n, err := r.u32()
	if err != nil {
		return ListResponse{}, err
	}
	if uint64(n)*16 > uint64(r.remaining()) {
		return ListResponse{}, Errorf(ErrDecode, "list count %d exceeds payload", n)
	}
	ids := make([]engine.LumpID, n)
	for i := range ids {
		if ids[i], err = r.lumpID(); err != nil {
			return ListResponse{}, err
		}
	}
	truncated, err := r.boolByte()
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{IDs: ids, Truncated: truncated}, r.done()
}

// DecodeUsageResponse is the inverse of EncodeUsageResponse.
func DecodeUsageResponse(b []byte) (UsageResponse, error) {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return UsageResponse{}, err
	}
	used, err := r.u64()
	if err != nil {
		return UsageResponse{}, err
	}
	total, err := r.u64()
	if err != nil {
		return UsageResponse{}, err
	}
	return UsageResponse{Usage: engine.Usage{UsedBytes: used, TotalBytes: total}}, r.done()
}

// DecodeSyncResponse is the inverse of EncodeSyncResponse.
func DecodeSyncResponse(b []byte) error {
	r := reader{buf: b}
	if err := r.status(); err != nil {
		return err
	}
	return r.done()
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

func appendDeviceID(buf []byte, id string) ([]byte, error) {
	if len(id) == 0 {
		return nil, NewError(ErrInvalidInput, "empty device id")
	}
	if len(id) > maxDeviceIDLen {
		return nil, Errorf(ErrInvalidInput, "device id of %d bytes exceeds the wire limit", len(id))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(id)))
	return append(buf, id...), nil
}

func appendLumpID(buf []byte, id engine.LumpID) []byte {
	buf = binary.BigEndian.AppendUint64(buf, id.Hi)
	return binary.BigEndian.AppendUint64(buf, id.Lo)
}

func appendRange(buf []byte, r engine.Range) []byte {
	var flags byte
	if r.HasStart {
		flags |= rangeHasStart
		if r.StartIncl {
			flags |= rangeStartIncl
		}
	}
	if r.HasEnd {
		flags |= rangeHasEnd
		if r.EndIncl {
			flags |= rangeEndIncl
		}
	}
	buf = append(buf, flags)
	if r.HasStart {
		buf = appendLumpID(buf, r.Start)
	}
	if r.HasEnd {
		buf = appendLumpID(buf, r.End)
	}
	return buf
}

func encodeBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// --------------------------------------------------------------------------
// Decoding Helpers
// --------------------------------------------------------------------------

// reader walks an envelope left to right. Every accessor fails with a
// DecodeError once the input runs short; it never reads past the buffer and
// never panics.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, Errorf(ErrDecode, "truncated input: need %d bytes, have %d", n, r.remaining())
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) u8() (byte, error) {
	if r.remaining() < 1 {
		return 0, NewError(ErrDecode, "truncated input: need 1 byte, have 0")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, Errorf(ErrDecode, "truncated input: need 2 bytes, have %d", r.remaining())
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, Errorf(ErrDecode, "truncated input: need 4 bytes, have %d", r.remaining())
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, Errorf(ErrDecode, "truncated input: need 8 bytes, have %d", r.remaining())
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) boolByte() (bool, error) {
	b, err := r.u8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, Errorf(ErrDecode, "invalid bool byte 0x%02x", b)
	}
}

func (r *reader) presence() (bool, error) {
	return r.boolByte()
}

func (r *reader) lumpID() (engine.LumpID, error) {
	hi, err := r.u64()
	if err != nil {
		return engine.LumpID{}, err
	}
	lo, err := r.u64()
	if err != nil {
		return engine.LumpID{}, err
	}
	return engine.LumpID{Hi: hi, Lo: lo}, nil
}

func (r *reader) deviceID() (string, error) {
	n, err := r.u16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", NewError(ErrDecode, "empty device id")
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) lumpRange() (engine.Range, error) {
	flags, err := r.u8()
	if err != nil {
		return engine.Range{}, err
	}
	if flags&^(rangeHasStart|rangeHasEnd|rangeStartIncl|rangeEndIncl) != 0 {
		return engine.Range{}, Errorf(ErrDecode, "invalid range flags 0x%02x", flags)
	}
	if flags&rangeStartIncl != 0 && flags&rangeHasStart == 0 {
		return engine.Range{}, NewError(ErrDecode, "start-inclusive flag without start bound")
	}
	if flags&rangeEndIncl != 0 && flags&rangeHasEnd == 0 {
		return engine.Range{}, NewError(ErrDecode, "end-inclusive flag without end bound")
	}
	var out engine.Range
	if flags&rangeHasStart != 0 {
		out.HasStart = true
		out.StartIncl = flags&rangeStartIncl != 0
		if out.Start, err = r.lumpID(); err != nil {
			return engine.Range{}, err
		}
	}
	if flags&rangeHasEnd != 0 {
		out.HasEnd = true
		out.EndIncl = flags&rangeEndIncl != 0
		if out.End, err = r.lumpID(); err != nil {
			return engine.Range{}, err
		}
	}
	return out, nil
}

// status consumes the response status byte. For a failure envelope it decodes
// the error payload and returns it as a *Error.
func (r *reader) status() error {
	b, err := r.u8()
	if err != nil {
		return err
	}
	switch b {
	case statusOK:
		return nil
	case statusFailure:
		kindByte, err := r.u8()
		if err != nil {
			return err
		}
		kind := ErrorKind(kindByte)
		if !kind.valid() {
			return Errorf(ErrDecode, "unknown error kind 0x%02x", kindByte)
		}
		n, err := r.u16()
		if err != nil {
			return err
		}
		msg, err := r.bytes(int(n))
		if err != nil {
			return err
		}
		if err := r.done(); err != nil {
			return err
		}
		return &Error{Kind: kind, Msg: string(msg)}
	default:
		return Errorf(ErrDecode, "invalid status byte 0x%02x", b)
	}
}

// done rejects trailing bytes so that decode(encode(v)) is a true bijection.
func (r *reader) done() error {
	if r.remaining() != 0 {
		return Errorf(ErrDecode, "%d trailing bytes after envelope", r.remaining())
	}
	return nil
}
