package rhex

import (
	"bytes"

	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
)

// Draft creates a new, unsigned Record from intent. Drafting never fails.
func Draft(intent Intent) *Record {
	return &Record{
		Magic:   NewMagic(CurrentVersion),
		Intent:  intent,
		Context: Context{At: 0},
	}
}

// AuthorSign appends the author signature over the content pre-hash. It
// fails with ErrAlreadySigned if an author signature is already present.
func AuthorSign(r *Record, author ed25519.PrivateKey) (*Record, error) {
	if _, ok := r.AuthorSig(); ok {
		return nil, ErrAlreadySigned
	}
	pre, err := ContentPreHash(r.Intent)
	if err != nil {
		return nil, ErrEncodingError
	}
	sig := ed25519.Sign(author, pre[:])

	out := clone(r)
	var s Signature
	s.SigType = SigAuthor
	copy(s.PublicKey[:], ed25519.PublicFromPrivate(author))
	copy(s.Sig[:], sig)
	out.Signatures = append(out.Signatures, s)
	return out, nil
}

// UsherSign sets context.At and appends the usher signature over the usher
// pre-hash, which binds this specific (author_sig, at) pair. It fails with
// ErrMissingAuthor or ErrAlreadyUshered.
func UsherSign(r *Record, at uint64, usher ed25519.PrivateKey) (*Record, error) {
	authorSig, ok := r.AuthorSig()
	if !ok {
		return nil, ErrMissingAuthor
	}
	if _, ok := r.UsherSig(); ok {
		return nil, ErrAlreadyUshered
	}

	pre := UsherPreHash(authorSig.Sig, at)
	sig := ed25519.Sign(usher, pre[:])

	out := clone(r)
	out.Context.At = at
	var s Signature
	s.SigType = SigUsher
	copy(s.PublicKey[:], ed25519.PublicFromPrivate(usher))
	copy(s.Sig[:], sig)
	out.Signatures = append(out.Signatures, s)
	return out, nil
}

// QuorumSign appends one quorum signature over the quorum pre-hash, which
// binds this specific (author_sig, usher_sig) pair. It fails with
// ErrMissingAuthor, ErrMissingUsher, or ErrDuplicateQuorumSigner.
func QuorumSign(r *Record, quorum ed25519.PrivateKey) (*Record, error) {
	authorSig, ok := r.AuthorSig()
	if !ok {
		return nil, ErrMissingAuthor
	}
	usherSig, ok := r.UsherSig()
	if !ok {
		return nil, ErrMissingUsher
	}

	pub := ed25519.PublicFromPrivate(quorum)
	for _, s := range r.QuorumSigs() {
		if bytes.Equal(s.PublicKey[:], pub) {
			return nil, ErrDuplicateQuorumSigner
		}
	}

	pre := QuorumPreHash(authorSig.Sig, usherSig.Sig)
	sig := ed25519.Sign(quorum, pre[:])

	out := clone(r)
	var s Signature
	s.SigType = SigQuorum
	copy(s.PublicKey[:], pub)
	copy(s.Sig[:], sig)
	out.Signatures = append(out.Signatures, s)
	return out, nil
}

// Finalize computes and stores current_hash. Finalizing an already-finalized
// record is a no-op if the recomputed hash matches; otherwise it fails with
// ErrHashMismatch.
func Finalize(r *Record) (*Record, error) {
	pre, err := ContentPreHash(r.Intent)
	if err != nil {
		return nil, ErrEncodingError
	}
	sorted := SortSignatures(r.Signatures)
	hash, err := RecordHash(pre, r.Context.At, sorted)
	if err != nil {
		return nil, ErrEncodingError
	}

	out := clone(r)
	out.Signatures = sorted
	if out.finalized {
		if out.CurrentHash != hash {
			return nil, ErrHashMismatch
		}
		return out, nil
	}
	out.CurrentHash = hash
	out.finalized = true
	return out, nil
}

// Validate checks magic, required-signature ordering, recomputes
// current_hash (if present) and verifies every signature against its
// pre-hash.
func Validate(r *Record) error {
	if !r.Magic.Valid() {
		return ErrBadMagic
	}

	authorSig, hasAuthor := r.AuthorSig()
	usherSig, hasUsher := r.UsherSig()
	quorumSigs := r.QuorumSigs()

	if !hasAuthor {
		if hasUsher || len(quorumSigs) > 0 {
			return ErrMissingAuthor
		}
	}
	if !hasUsher && len(quorumSigs) > 0 {
		return ErrMissingUsher
	}

	if hasAuthor {
		pre, err := ContentPreHash(r.Intent)
		if err != nil {
			return ErrEncodingError
		}
		if !ed25519.Verify(ed25519.PublicKey(authorSig.PublicKey[:]), pre[:], authorSig.Sig[:]) {
			return &BadSignatureError{Role: RoleAuthor}
		}
		if !bytes.Equal(authorSig.PublicKey[:], r.Intent.AuthorPublicKey[:]) {
			return &BadSignatureError{Role: RoleAuthor}
		}
	}
	if hasUsher {
		pre := UsherPreHash(authorSig.Sig, r.Context.At)
		if !ed25519.Verify(ed25519.PublicKey(usherSig.PublicKey[:]), pre[:], usherSig.Sig[:]) {
			return &BadSignatureError{Role: RoleUsher}
		}
		if !bytes.Equal(usherSig.PublicKey[:], r.Intent.UsherPublicKey[:]) {
			return &BadSignatureError{Role: RoleUsher}
		}
	}
	seen := map[[ed25519.PublicKeySize]byte]bool{}
	for _, qs := range quorumSigs {
		if seen[qs.PublicKey] {
			return ErrDuplicateQuorumSigner
		}
		seen[qs.PublicKey] = true
		pre := QuorumPreHash(authorSig.Sig, usherSig.Sig)
		if !ed25519.Verify(ed25519.PublicKey(qs.PublicKey[:]), pre[:], qs.Sig[:]) {
			return &BadSignatureError{Role: RoleQuorum}
		}
	}

	if r.finalized {
		pre, err := ContentPreHash(r.Intent)
		if err != nil {
			return ErrEncodingError
		}
		recomputed, err := RecordHash(pre, r.Context.At, SortSignatures(r.Signatures))
		if err != nil {
			return ErrEncodingError
		}
		if recomputed != r.CurrentHash {
			return ErrHashMismatch
		}
	}

	return nil
}

func clone(r *Record) *Record {
	out := *r
	out.Signatures = append([]Signature(nil), r.Signatures...)
	return &out
}
