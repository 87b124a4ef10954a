package protocol

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// DefaultMaxPayload bounds payload_len when the caller does not configure one.
const DefaultMaxPayload = 1 << 20

// Reassembler turns an arbitrary sequence of byte chunks into complete
// frames. It is owned by a single connection goroutine and is not safe for
// concurrent use.
//
// The accumulator only ever holds the unresolved tail of the stream: at most
// HeaderSize bytes while a header is pending, and the declared payload of the
// current frame afterwards.
type Reassembler struct {
	maxPayload uint32

	head    [HeaderSize]byte
	headLen int

	// valid while awaiting a payload
	hdr     Header
	payload []byte
	have    bool

	err error
}

func NewReassembler(maxPayload uint32) *Reassembler {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Reassembler{maxPayload: maxPayload}
}

// Buffered returns the number of bytes held for the frame in progress.
func (r *Reassembler) Buffered() int {
	if r.have {
		return HeaderSize + len(r.payload)
	}
	return r.headLen
}

// Feed consumes one inbound chunk and returns every frame it completes, in
// stream order. The chunk is not retained; callers may reuse it.
//
// Once Feed has returned ErrFrameTooLarge the stream cannot be resynchronized
// and every later call returns the same error.
func (r *Reassembler) Feed(chunk []byte) ([]Frame, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []Frame
	for len(chunk) > 0 || r.ready() {
		if !r.have {
			n := copy(r.head[r.headLen:], chunk)
			r.headLen += n
			chunk = chunk[n:]
			if r.headLen < HeaderSize {
				break
			}
			hdr, _ := DecodeHeader(r.head[:])
			if hdr.PayloadLen > r.maxPayload {
				r.err = fmt.Errorf("%w: payload_len %d exceeds %d", ErrFrameTooLarge, hdr.PayloadLen, r.maxPayload)
				log.Warn().Str("module", "protocol").Uint32("payload_len", hdr.PayloadLen).Uint32("max", r.maxPayload).Msg("oversized frame header")
				return out, r.err
			}
			r.hdr = hdr
			r.have = true
			r.payload = make([]byte, 0, hdr.PayloadLen)
		}

		need := int(r.hdr.PayloadLen) - len(r.payload)
		if need > len(chunk) {
			need = len(chunk)
		}
		r.payload = append(r.payload, chunk[:need]...)
		chunk = chunk[need:]
		if !r.ready() {
			break
		}
		out = append(out, Frame{Header: r.hdr, Payload: r.payload})
		r.reset()
	}
	return out, nil
}

// ready reports whether the pending frame has its full payload.
func (r *Reassembler) ready() bool {
	return r.have && len(r.payload) == int(r.hdr.PayloadLen)
}

func (r *Reassembler) reset() {
	r.headLen = 0
	r.hdr = Header{}
	r.payload = nil
	r.have = false
}
