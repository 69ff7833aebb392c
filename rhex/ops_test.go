package rhex

import (
	"testing"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
)

func mustKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func draftIntent(authorPub, usherPub ed25519.PublicKey) Intent {
	var in Intent
	in.Scope = "root"
	in.Nonce = "n-1"
	in.RecordType = TypeScopeGenesis
	in.Data = canon.Object(map[string]canon.Value{
		"note": canon.String("hello"),
	})
	copy(in.AuthorPublicKey[:], authorPub)
	copy(in.UsherPublicKey[:], usherPub)
	return in
}

// fullySign drives a record through author, usher, and one quorum signer,
// then finalizes it — the S1 genesis round-trip path.
func fullySign(t *testing.T, authorPriv, usherPriv, quorumPriv ed25519.PrivateKey, authorPub, usherPub ed25519.PublicKey) *Record {
	t.Helper()
	r := Draft(draftIntent(authorPub, usherPub))

	r, err := AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	r, err = UsherSign(r, 1000, usherPriv)
	if err != nil {
		t.Fatalf("UsherSign: %v", err)
	}
	r, err = QuorumSign(r, quorumPriv)
	if err != nil {
		t.Fatalf("QuorumSign: %v", err)
	}
	r, err = Finalize(r)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return r
}

// TestGenesisRoundTrip is scenario S1: draft, sign through all three roles,
// finalize, pack, unpack, and validate — the result must validate cleanly
// and current_hash must survive the round trip unchanged.
func TestGenesisRoundTrip(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	r := fullySign(t, authorPriv, usherPriv, quorumPriv, authorPub, usherPub)
	if !r.Finalized() {
		t.Fatal("expected record to be finalized")
	}
	if err := Validate(r); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	packed, err := Pack(r)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if err := Validate(got); err != nil {
		t.Fatalf("Validate(unpacked): %v", err)
	}
	if got.CurrentHash != r.CurrentHash {
		t.Fatal("current_hash did not survive pack/unpack round trip")
	}
}

// TestChainExtension is scenario S2: a second record's intent.previous_hash
// points at the first record's current_hash, and both validate independently.
func TestChainExtension(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	genesis := fullySign(t, authorPriv, usherPriv, quorumPriv, authorPub, usherPub)

	next := draftIntent(authorPub, usherPub)
	next.PreviousHash = genesis.CurrentHash
	next.RecordType = TypeScopeCreate

	r := Draft(next)
	r, err := AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	r, err = UsherSign(r, 2000, usherPriv)
	if err != nil {
		t.Fatalf("UsherSign: %v", err)
	}
	r, err = QuorumSign(r, quorumPriv)
	if err != nil {
		t.Fatalf("QuorumSign: %v", err)
	}
	r, err = Finalize(r)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := Validate(r); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.Intent.PreviousHash != genesis.CurrentHash {
		t.Fatal("chain link does not point at genesis current_hash")
	}
}

// TestTamperDetection is scenario S3: flipping a single byte anywhere in the
// signed content must make Validate reject the record.
func TestTamperDetection(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	r := fullySign(t, authorPriv, usherPriv, quorumPriv, authorPub, usherPub)

	tampered := *r
	tampered.Intent.Nonce = tampered.Intent.Nonce + "x"
	if err := Validate(&tampered); err == nil {
		t.Fatal("expected tampered intent to fail validation")
	}

	tamperedHash := *r
	tamperedHash.CurrentHash[0] ^= 0xff
	if err := Validate(&tamperedHash); err != ErrHashMismatch {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}

	tamperedSig := *r
	tamperedSig.Signatures = append([]Signature(nil), r.Signatures...)
	tamperedSig.Signatures[0].Sig[0] ^= 0xff
	if err := Validate(&tamperedSig); err == nil {
		t.Fatal("expected tampered signature to fail validation")
	}
}

func TestAuthorSignRejectsDoubleSign(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, _ := mustKey(t)
	r := Draft(draftIntent(authorPub, usherPub))
	r, err := AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	if _, err := AuthorSign(r, authorPriv); err != ErrAlreadySigned {
		t.Fatalf("expected ErrAlreadySigned, got %v", err)
	}
}

func TestUsherSignRequiresAuthor(t *testing.T) {
	authorPub, _ := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	r := Draft(draftIntent(authorPub, usherPub))
	if _, err := UsherSign(r, 1, usherPriv); err != ErrMissingAuthor {
		t.Fatalf("expected ErrMissingAuthor, got %v", err)
	}
}

func TestQuorumSignRejectsDuplicateSigner(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	r := Draft(draftIntent(authorPub, usherPub))
	r, _ = AuthorSign(r, authorPriv)
	r, _ = UsherSign(r, 1, usherPriv)
	r, err := QuorumSign(r, quorumPriv)
	if err != nil {
		t.Fatalf("QuorumSign: %v", err)
	}
	if _, err := QuorumSign(r, quorumPriv); err != ErrDuplicateQuorumSigner {
		t.Fatalf("expected ErrDuplicateQuorumSigner, got %v", err)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	r := fullySign(t, authorPriv, usherPriv, quorumPriv, authorPub, usherPub)
	again, err := Finalize(r)
	if err != nil {
		t.Fatalf("re-Finalize: %v", err)
	}
	if again.CurrentHash != r.CurrentHash {
		t.Fatal("idempotent finalize changed current_hash")
	}
}

func TestValidateRejectsBadMagic(t *testing.T) {
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)
	_, quorumPriv := mustKey(t)

	r := fullySign(t, authorPriv, usherPriv, quorumPriv, authorPub, usherPub)
	r.Magic[0] = 'X'
	if err := Validate(r); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestSignaturesSortStable(t *testing.T) {
	_, quorumPrivA := mustKey(t)
	_, quorumPrivB := mustKey(t)
	authorPub, authorPriv := mustKey(t)
	usherPub, usherPriv := mustKey(t)

	r := Draft(draftIntent(authorPub, usherPub))
	r, _ = AuthorSign(r, authorPriv)
	r, _ = UsherSign(r, 1, usherPriv)
	r, _ = QuorumSign(r, quorumPrivA)
	r, _ = QuorumSign(r, quorumPrivB)

	sorted := SortSignatures(r.Signatures)
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		if a.SigType > b.SigType {
			t.Fatal("signatures not sorted by sig_type ascending")
		}
	}
}
