// Package rhexcrypto collects the cryptographic primitives the R⬢ ledger
// needs: BLAKE3 domain-separated hashing, Ed25519 signing (via the sibling
// crypto/ed25519 package), base64url encoding of hashes and keys, and
// password-based key file encryption.
package rhexcrypto

import "lukechampine.com/blake3"

// HashSize is the width of every hash used by this ledger: pre-hashes,
// current_hash, and content-addressed filenames.
const HashSize = 32

// Hash is a 32-byte BLAKE3 digest.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero hash used as previous_hash for
// genesis records.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// BytesToHash copies b (which must be exactly HashSize long) into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// Domain separation tags, one per purpose that is ever fed into BLAKE3 in
// this codebase. Every hash input is prefixed with exactly one of these so
// that no digest computed for one purpose can ever be replayed as the input
// to another.
const (
	DomainContent = "RHEXv1|CONTENT"
	DomainSigUsher = "RSIG/U/1"
	DomainSigQuorum = "RSIG/Q/1"
	DomainRecord = "RHEXv1|RECORD"
)

// DomainHash computes BLAKE3-256(domain || parts...), concatenating domain
// and every part with no separators, per the pre-hash table in the R⬢
// specification.
func DomainHash(domain string, parts ...[]byte) Hash {
	h := blake3.New(HashSize, nil)
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
