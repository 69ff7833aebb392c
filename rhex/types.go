package rhex

import (
	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// Intent is the authored portion of an R⬢: what, where, and by whom. It is
// immutable once the author signature is added.
type Intent struct {
	PreviousHash     rhexcrypto.Hash
	Scope            string
	Nonce            string
	AuthorPublicKey  [ed25519.PublicKeySize]byte
	UsherPublicKey   [ed25519.PublicKeySize]byte
	RecordType       string
	Data             canon.Value
}

// Context is usher-supplied temporal metadata.
type Context struct {
	At uint64
}

// SigType identifies which role produced a Signature.
type SigType uint8

const (
	SigAuthor SigType = 0
	SigUsher  SigType = 1
	SigQuorum SigType = 2
)

// Signature is one entry in a record's ordered signature stack.
type Signature struct {
	SigType   SigType
	PublicKey [ed25519.PublicKeySize]byte
	Sig       [ed25519.SignatureSize]byte
}

// Record is one R⬢: intent + context + signatures + (once finalized) hash.
type Record struct {
	Magic       Magic
	Intent      Intent
	Context     Context
	Signatures  []Signature
	CurrentHash rhexcrypto.Hash
	finalized   bool
}

// Finalized reports whether CurrentHash has been computed and stored.
func (r *Record) Finalized() bool { return r.finalized }

// AuthorSig returns the author signature, if present.
func (r *Record) AuthorSig() (Signature, bool) { return r.sigOf(SigAuthor) }

// UsherSig returns the usher signature, if present.
func (r *Record) UsherSig() (Signature, bool) { return r.sigOf(SigUsher) }

// QuorumSigs returns every quorum signature present, in stored order.
func (r *Record) QuorumSigs() []Signature {
	var out []Signature
	for _, s := range r.Signatures {
		if s.SigType == SigQuorum {
			out = append(out, s)
		}
	}
	return out
}

func (r *Record) sigOf(t SigType) (Signature, bool) {
	for _, s := range r.Signatures {
		if s.SigType == t {
			return s, true
		}
	}
	return Signature{}, false
}
