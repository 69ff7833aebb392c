// Package wireframe implements the ledger's wire codec: every R⬢ travels as
// exactly one fixed-size, zero-padded frame.
package wireframe

import (
	"bytes"
	"errors"
	"fmt"
)

// Size is the fixed wire frame size every record travels in.
const Size = 4096

var (
	// ErrFrameTooLarge is returned by Encode when the payload cannot fit
	// in a single frame.
	ErrFrameTooLarge = errors.New("wireframe: payload exceeds frame size")
	// ErrBadFrameSize is returned by Decode when given a buffer that is
	// not exactly Size bytes.
	ErrBadFrameSize = errors.New("wireframe: frame must be exactly 4096 bytes")
)

// Encode places payload (a canonically-encoded record) into a Size-byte
// frame, zero-padding the remainder. It fails if payload does not fit.
func Encode(payload []byte) ([Size]byte, error) {
	var frame [Size]byte
	if len(payload) > Size {
		return frame, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(payload), Size)
	}
	copy(frame[:], payload)
	return frame, nil
}

// Decode extracts the payload from a Size-byte frame by locating the last
// non-zero byte. This recovers the exact payload length because every
// canonical record encoding produced by this codebase ends in a non-zero
// byte (a hash or signature field, never an all-zero tail) — see
// canon.Encode and rhex.Pack.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) != Size {
		return nil, ErrBadFrameSize
	}
	last := len(bytes.TrimRight(frame, "\x00")) - 1
	if last < 0 {
		// An all-zero frame decodes to an empty payload; callers treat
		// this as a decode error since no valid record encodes to zero
		// bytes.
		return nil, errors.New("wireframe: frame is all zero padding")
	}
	return frame[:last+1], nil
}
