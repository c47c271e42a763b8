// Package wire implements the server's framed binary protocol: a
// big-endian 32-bit length prefix followed by that many bytes of a
// packed message record.
package wire

import (
	"encoding/binary"
	"fmt"
)

// MaxMessageSize bounds a single record's packed length. It sits in the
// hundreds-of-kilobytes range, matching the scatter/gather buffers a
// terminal session realistically produces between commit points.
const MaxMessageSize = 256 * 1024

// HeaderSize is the length of the length-prefix field.
const HeaderSize = 4

// ErrTooLarge is returned by Decode when a frame's declared length
// exceeds MaxMessageSize.
type ErrTooLarge struct {
	Declared uint32
}

func (e ErrTooLarge) Error() string {
	return fmt.Sprintf("wire: frame length %d exceeds maximum %d", e.Declared, MaxMessageSize)
}

// Encode appends the framed representation of payload (its length prefix
// followed by its bytes) to dst and returns the extended slice.
func Encode(dst []byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxMessageSize {
		return dst, ErrTooLarge{Declared: uint32(len(payload))}
	}

	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst, nil
}

// Decode reads one framed record from the front of buf. It returns the
// payload, the number of bytes of buf consumed (header + payload), and
// ok=false when buf does not yet hold a complete frame (the caller
// should read more and retry). A declared length over MaxMessageSize is
// reported as ErrTooLarge regardless of how much of the payload has
// actually arrived, so the caller can fail the connection without
// waiting for the rest of an oversized frame.
func Decode(buf []byte) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) < HeaderSize {
		return nil, 0, false, nil
	}

	l := binary.BigEndian.Uint32(buf[:HeaderSize])
	if l > MaxMessageSize {
		return nil, 0, false, ErrTooLarge{Declared: l}
	}

	total := HeaderSize + int(l)
	if len(buf) < total {
		return nil, 0, false, nil
	}

	return buf[HeaderSize:total], total, true, nil
}
