package base

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/akarls/lumpstore/rpc/proto"
)

// frameHeaderSize is the fixed prefix of every frame:
// 4 bytes procedure id + 8 bytes request id + 4 bytes payload length.
const frameHeaderSize = 16

// writeFrame writes one frame to the connection.
func writeFrame(conn net.Conn, proc proto.ProcedureID, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[:4], uint32(proc))
	binary.BigEndian.PutUint64(header[4:12], requestID)
	binary.BigEndian.PutUint32(header[12:16], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame from the connection using the provided buffer.
// If the buffer is too small for the payload, a temporary one is allocated.
func readFrame(conn net.Conn, buf []byte) (proto.ProcedureID, uint64, []byte, error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	proc := proto.ProcedureID(binary.BigEndian.Uint32(buf[:4]))
	requestID := binary.BigEndian.Uint64(buf[4:12])
	contentLength := binary.BigEndian.Uint32(buf[12:16])

	if contentLength == 0 {
		return proc, requestID, []byte{}, nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}
	return proc, requestID, buf[:contentLength], nil
}
