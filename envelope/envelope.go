// Package envelope frames a serialized CRDT payload with a fixed 3-byte
// header identifying the schema version and the CRDT type, so the
// migration engine and versioned facade can recognize and evolve stored
// bytes without a side-channel schema registry.
package envelope

import "fmt"

// Magic is the first byte of every versioned envelope.
const Magic byte = 0xCF

// HeaderLen is the fixed size, in bytes, of the envelope header.
const HeaderLen = 3

// CRDT type codes recognized by the envelope. 255 (Custom) is the only
// open code: it lets application-defined composites identify themselves
// without registering a new constant here.
const (
	GCounter    byte = 1
	PNCounter   byte = 2
	GSet        byte = 3
	TwoPSet     byte = 4
	LWWRegister byte = 5
	MVRegister  byte = 6
	ORSet       byte = 7
	RGA         byte = 8
	Text        byte = 9
	Custom      byte = 255
)

var knownTypes = map[byte]bool{
	GCounter: true, PNCounter: true, GSet: true, TwoPSet: true,
	LWWRegister: true, MVRegister: true, ORSet: true, RGA: true,
	Text: true, Custom: true,
}

// ErrTooShort is returned by Decode when the input is shorter than
// HeaderLen bytes.
type ErrTooShort struct{ Length int }

func (e *ErrTooShort) Error() string {
	return fmt.Sprintf("envelope: too short: %d bytes, need at least %d", e.Length, HeaderLen)
}

// ErrBadMagic is returned by Decode when byte 0 is not Magic.
type ErrBadMagic struct{ Byte byte }

func (e *ErrBadMagic) Error() string {
	return fmt.Sprintf("envelope: bad magic byte 0x%02x, expected 0x%02x", e.Byte, Magic)
}

// ErrUnknownType is returned by Decode when byte 2 is not a recognized
// CRDT type code.
type ErrUnknownType struct{ Byte byte }

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("envelope: unknown crdt type code 0x%02x", e.Byte)
}

// Encode frames payload with the given schema version and CRDT type code.
func Encode(version byte, crdtType byte, payload []byte) []byte {
	out := make([]byte, HeaderLen+len(payload))
	out[0] = Magic
	out[1] = version
	out[2] = crdtType
	copy(out[HeaderLen:], payload)
	return out
}

// Decode parses an envelope, returning the schema version, CRDT type, and
// payload. It fails with *ErrTooShort, *ErrBadMagic, or *ErrUnknownType.
func Decode(b []byte) (version byte, crdtType byte, payload []byte, err error) {
	if len(b) < HeaderLen {
		return 0, 0, nil, &ErrTooShort{Length: len(b)}
	}
	if b[0] != Magic {
		return 0, 0, nil, &ErrBadMagic{Byte: b[0]}
	}
	if !knownTypes[b[2]] {
		return 0, 0, nil, &ErrUnknownType{Byte: b[2]}
	}
	return b[1], b[2], b[HeaderLen:], nil
}

// PeekVersion reads the schema version byte without validating or
// returning the CRDT type, failing only on a bad magic byte or short
// input.
func PeekVersion(b []byte) (byte, error) {
	if len(b) < HeaderLen {
		return 0, &ErrTooShort{Length: len(b)}
	}
	if b[0] != Magic {
		return 0, &ErrBadMagic{Byte: b[0]}
	}
	return b[1], nil
}

// IsEnvelope reports whether b begins with the envelope magic byte.
// Bytes without the magic are not a malformed envelope: they are opaque
// payload at the caller's current version.
func IsEnvelope(b []byte) bool {
	return len(b) > 0 && b[0] == Magic
}
