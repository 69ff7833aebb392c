package rhex

import "encoding/binary"

// MagicPrefix identifies this wire format: the literal ASCII bytes "RHEX"
// followed by a big-endian u16 version/flags word.
var MagicPrefix = [4]byte{'R', 'H', 'E', 'X'}

// CurrentVersion is the version/flags word written into freshly drafted
// records.
const CurrentVersion uint16 = 1

// Magic is the 6-byte record header.
type Magic [6]byte

// NewMagic builds a Magic with MagicPrefix and the given version.
func NewMagic(version uint16) Magic {
	var m Magic
	copy(m[:4], MagicPrefix[:])
	binary.BigEndian.PutUint16(m[4:6], version)
	return m
}

// Version extracts the big-endian u16 version/flags word.
func (m Magic) Version() uint16 {
	return binary.BigEndian.Uint16(m[4:6])
}

// Valid reports whether m starts with the required "RHEX" prefix.
func (m Magic) Valid() bool {
	return m[0] == MagicPrefix[0] && m[1] == MagicPrefix[1] && m[2] == MagicPrefix[2] && m[3] == MagicPrefix[3]
}
