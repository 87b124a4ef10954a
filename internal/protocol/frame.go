// Package protocol implements the relay wire format: the fixed 8-byte frame
// header, the JoinRoom control payload and the per-connection reassembler
// that turns arbitrary byte chunks into complete frames.
//
// Header layout:
//
//	byte 0:     bit7..1 type (7 bits), bit0 control flag
//	bytes 1..3: reserved, zero on send, ignored on receive
//	bytes 4..7: payload length, big-endian uint32
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed size of every frame header.
	HeaderSize = 8
	// JoinPayloadSize is the exact payload size of a JoinRoom frame.
	JoinPayloadSize = 16
	// MaxType is the largest value that fits the 7-bit type field.
	MaxType = 0x7F
)

// Type is the control subtype carried in the upper 7 bits of byte 0.
type Type uint8

const (
	TypeJoinRoom  Type = 1
	TypeLeaveRoom Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeJoinRoom:
		return "join_room"
	case TypeLeaveRoom:
		return "leave_room"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	ErrInvalidType   = errors.New("protocol: type exceeds 7 bits")
	ErrTruncated     = errors.New("protocol: truncated header")
	ErrJoinPayload   = errors.New("protocol: join payload must be 16 bytes")
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// IsFatal reports whether err leaves the byte stream unrecoverable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFrameTooLarge)
}

// Header is the decoded form of the 8-byte frame header.
type Header struct {
	Control    bool
	Type       Type
	PayloadLen uint32
}

// Frame is one complete protocol unit. Payload is owned by the frame and is
// never aliased to a caller's read buffer.
type Frame struct {
	Header  Header
	Payload []byte
}

// IsVoice reports whether the frame carries opaque voice data.
func (f Frame) IsVoice() bool { return !f.Header.Control }

// EncodeHeader packs a header into its 8-byte wire form.
func EncodeHeader(control bool, t Type, payloadLen uint32) ([HeaderSize]byte, error) {
	var b [HeaderSize]byte
	if t > MaxType {
		return b, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
	b[0] = byte(t) << 1
	if control {
		b[0] |= 0x01
	}
	binary.BigEndian.PutUint32(b[4:8], payloadLen)
	return b, nil
}

// DecodeHeader parses the first HeaderSize bytes of b. Reserved bytes are
// ignored.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: have %d bytes", ErrTruncated, len(b))
	}
	return Header{
		Control:    b[0]&0x01 != 0,
		Type:       Type(b[0] >> 1),
		PayloadLen: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// EncodeJoin packs a JoinRoom payload.
func EncodeJoin(roomID, userID uint64) [JoinPayloadSize]byte {
	var b [JoinPayloadSize]byte
	binary.BigEndian.PutUint64(b[0:8], roomID)
	binary.BigEndian.PutUint64(b[8:16], userID)
	return b
}

// DecodeJoin parses a JoinRoom payload.
func DecodeJoin(b []byte) (roomID, userID uint64, err error) {
	if len(b) != JoinPayloadSize {
		return 0, 0, fmt.Errorf("%w: got %d", ErrJoinPayload, len(b))
	}
	return binary.BigEndian.Uint64(b[0:8]), binary.BigEndian.Uint64(b[8:16]), nil
}

// EncodeFrame returns the full wire form of a frame: header followed by payload.
func EncodeFrame(control bool, t Type, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	h, err := EncodeHeader(control, t, uint32(len(payload)))
	if err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize+len(payload))
	copy(out, h[:])
	copy(out[HeaderSize:], payload)
	return out, nil
}

// VoiceFrame wraps payload in a voice header.
func VoiceFrame(payload []byte) []byte {
	b, _ := EncodeFrame(false, 0, payload)
	return b
}

// JoinFrame builds a complete JoinRoom frame.
func JoinFrame(roomID, userID uint64) []byte {
	p := EncodeJoin(roomID, userID)
	b, _ := EncodeFrame(true, TypeJoinRoom, p[:])
	return b
}

// LeaveFrame builds a complete LeaveRoom frame with an empty payload.
func LeaveFrame() []byte {
	b, _ := EncodeFrame(true, TypeLeaveRoom, nil)
	return b
}

// Bytes re-encodes the frame. Reserved bytes are written as zero.
func (f Frame) Bytes() []byte {
	b, _ := EncodeFrame(f.Header.Control, f.Header.Type, f.Payload)
	return b
}
