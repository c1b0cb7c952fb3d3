// Package protocol implements the frame format the socket transport uses to carry
// one doordb call over a Unix stream connection.
//
// A stream has no message boundaries, so every buffer is preceded by a fixed
// 14-byte header giving its length. The sequence number pairs a response frame
// with the request that caused it, which lets several calls share a connection.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │ bodyLen │    body ...    │
//	│ ddb  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic bytes "ddb". A connection that does not start with them is not speaking this protocol.
const (
	MagicNumber byte = 0x64 // 'd'
	MagicByte2  byte = 0x64 // 'd'
	MagicByte3  byte = 0x62 // 'b'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (seq) + 4 (bodyLen)

	// MaxBodyLen bounds the body a peer may announce.
	MaxBodyLen uint32 = 16 << 20
)

// MsgType distinguishes request, response, and heartbeat frames.
type MsgType byte

const (
	MsgTypeRequest   MsgType = 0 // Client → Server: an encoded Query
	MsgTypeResponse  MsgType = 1 // Server → Client: an encoded Envelope
	MsgTypeHeartbeat MsgType = 2 // Keepalive probe (no body)
)

// Codec type constants, mirrored from the codec package so the frame layer stays import-free.
const (
	CodecTypeCBOR   byte = 0
	CodecTypeBinary byte = 1
)

// Header is the fixed 14-byte frame header.
type Header struct {
	CodecType byte    // Encoding of the body: 0=CBOR, 1=Binary
	MsgType   MsgType // Request, Response, or Heartbeat
	Seq       uint32  // Pairs a response with its request
	BodyLen   uint32
}

// Encode writes a complete frame (header + body) to w.
// Callers sharing a writer must serialize calls to Encode.
func Encode(w io.Writer, h *Header, body []byte) error {
	if err := checkBodyLen(len(body)); err != nil {
		return err
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))

	// One write per frame, so a frame is never split by a concurrent writer's short write.
	_, err := w.Write(append(buf, body...))
	return err
}

func checkBodyLen(n int) error {
	if n < 0 || n > int(MaxBodyLen) {
		return fmt.Errorf("body too large: %d bytes", n)
	}
	return nil
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, codec type, message type and body length.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	if headerBuf[4] != CodecTypeCBOR && headerBuf[4] != CodecTypeBinary {
		return nil, nil, fmt.Errorf("unsupported codec type: %d", headerBuf[4])
	}

	msgType := headerBuf[5]
	if msgType != byte(MsgTypeRequest) && msgType != byte(MsgTypeResponse) && msgType != byte(MsgTypeHeartbeat) {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	seq := binary.BigEndian.Uint32(headerBuf[6:10])
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])
	if bodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("body too large: %d bytes", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   MsgType(msgType),
		Seq:       seq,
		BodyLen:   bodyLen,
	}, body, nil
}
