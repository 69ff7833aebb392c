package rhex

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// wireIntent is the canonical on-the-wire shape of Intent, field-named for
// the canon/cbor codec.
type wireIntent struct {
	PreviousHash    []byte     `cbor:"previous_hash"`
	Scope           string     `cbor:"scope"`
	Nonce           string     `cbor:"nonce"`
	AuthorPublicKey []byte     `cbor:"author_public_key"`
	UsherPublicKey  []byte     `cbor:"usher_public_key"`
	RecordType      string     `cbor:"record_type"`
	Data            canon.Value `cbor:"data"`
}

func toWireIntent(in Intent) wireIntent {
	return wireIntent{
		PreviousHash:    append([]byte(nil), in.PreviousHash[:]...),
		Scope:           in.Scope,
		Nonce:           in.Nonce,
		AuthorPublicKey: append([]byte(nil), in.AuthorPublicKey[:]...),
		UsherPublicKey:  append([]byte(nil), in.UsherPublicKey[:]...),
		RecordType:      CanonicalRecordType(in.RecordType),
		Data:            in.Data,
	}
}

func fromWireIntent(w wireIntent) Intent {
	var in Intent
	in.PreviousHash = rhexcrypto.BytesToHash(w.PreviousHash)
	in.Scope = w.Scope
	in.Nonce = w.Nonce
	copy(in.AuthorPublicKey[:], w.AuthorPublicKey)
	copy(in.UsherPublicKey[:], w.UsherPublicKey)
	in.RecordType = CanonicalRecordType(w.RecordType)
	in.Data = w.Data
	return in
}

// CanonicalIntentBytes deterministically encodes intent for use as the
// author pre-hash input.
func CanonicalIntentBytes(in Intent) ([]byte, error) {
	return canon.Encode(toWireIntent(in))
}

type wireSignature struct {
	SigType   uint8  `cbor:"sig_type"`
	PublicKey []byte `cbor:"public_key"`
	Sig       []byte `cbor:"sig"`
}

func toWireSignature(s Signature) wireSignature {
	return wireSignature{
		SigType:   uint8(s.SigType),
		PublicKey: append([]byte(nil), s.PublicKey[:]...),
		Sig:       append([]byte(nil), s.Sig[:]...),
	}
}

// SortSignatures returns a new, stably-sorted copy of sigs ordered by the
// triple (sig_type ascending, public_key bytes ascending, sig bytes
// ascending).
func SortSignatures(sigs []Signature) []Signature {
	out := append([]Signature(nil), sigs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SigType != b.SigType {
			return a.SigType < b.SigType
		}
		if c := bytes.Compare(a.PublicKey[:], b.PublicKey[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.Sig[:], b.Sig[:]) < 0
	})
	return out
}

// CanonicalSignaturesBytes deterministically encodes a (caller-sorted)
// signature slice.
func CanonicalSignaturesBytes(sorted []Signature) ([]byte, error) {
	wire := make([]wireSignature, len(sorted))
	for i, s := range sorted {
		wire[i] = toWireSignature(s)
	}
	return canon.Encode(wire)
}

// ContentPreHash computes the author pre-hash: BLAKE3("RHEXv1|CONTENT" ||
// canonical(intent)).
func ContentPreHash(in Intent) (rhexcrypto.Hash, error) {
	b, err := CanonicalIntentBytes(in)
	if err != nil {
		return rhexcrypto.Hash{}, err
	}
	return rhexcrypto.DomainHash(rhexcrypto.DomainContent, b), nil
}

// UsherPreHash computes BLAKE3("RSIG/U/1" || author_sig || at_be64).
func UsherPreHash(authorSig [64]byte, at uint64) rhexcrypto.Hash {
	var atBE [8]byte
	binary.BigEndian.PutUint64(atBE[:], at)
	return rhexcrypto.DomainHash(rhexcrypto.DomainSigUsher, authorSig[:], atBE[:])
}

// QuorumPreHash computes BLAKE3("RSIG/Q/1" || author_sig || usher_sig).
// usherSig is the all-zero 64-byte value when no usher signature exists yet
// (quorum signing always requires one to exist first, but the pre-hash
// shape is defined the same way regardless).
func QuorumPreHash(authorSig, usherSig [64]byte) rhexcrypto.Hash {
	return rhexcrypto.DomainHash(rhexcrypto.DomainSigQuorum, authorSig[:], usherSig[:])
}

// RecordHash computes current_hash = BLAKE3("RHEXv1|RECORD" ||
// author_pre_hash || at_be64 || canonical(sorted signatures)).
func RecordHash(contentPreHash rhexcrypto.Hash, at uint64, sortedSigs []Signature) (rhexcrypto.Hash, error) {
	sigBytes, err := CanonicalSignaturesBytes(sortedSigs)
	if err != nil {
		return rhexcrypto.Hash{}, err
	}
	var atBE [8]byte
	binary.BigEndian.PutUint64(atBE[:], at)
	return rhexcrypto.DomainHash(rhexcrypto.DomainRecord, contentPreHash[:], atBE[:], sigBytes), nil
}
