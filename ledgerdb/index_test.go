package ledgerdb

import (
	"testing"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/ledgerdb/memorydb"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/scope"
)

func newTestIndex() *Index {
	return Open(memorydb.New(), 0)
}

func signedTestRecord(t *testing.T) *rhex.Record {
	t.Helper()
	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)
	usherPub, usherPriv, _ := ed25519.GenerateKey(nil)
	_, quorumPriv, _ := ed25519.GenerateKey(nil)

	var in rhex.Intent
	in.Scope = "root"
	in.RecordType = rhex.TypeScopeGenesis
	in.Nonce = "n"
	in.Data = canon.Object(map[string]canon.Value{"unix_ms": canon.Int(1)})
	copy(in.AuthorPublicKey[:], authorPub)
	copy(in.UsherPublicKey[:], usherPub)

	r := rhex.Draft(in)
	r, err := rhex.AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	r, err = rhex.UsherSign(r, 1, usherPriv)
	if err != nil {
		t.Fatalf("UsherSign: %v", err)
	}
	r, err = rhex.QuorumSign(r, quorumPriv)
	if err != nil {
		t.Fatalf("QuorumSign: %v", err)
	}
	r, err = rhex.Finalize(r)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return r
}

func TestPutGetRecordRoundTrip(t *testing.T) {
	idx := newTestIndex()
	r := signedTestRecord(t)
	if err := idx.PutRecord(r); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	got, err := idx.GetRecord(r.CurrentHash)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.CurrentHash != r.CurrentHash {
		t.Fatal("round trip changed current_hash")
	}
}

func TestPutRecordIdempotent(t *testing.T) {
	idx := newTestIndex()
	r := signedTestRecord(t)
	if err := idx.PutRecord(r); err != nil {
		t.Fatalf("first PutRecord: %v", err)
	}
	if err := idx.PutRecord(r); err != nil {
		t.Fatalf("second PutRecord: %v", err)
	}
}

func TestAdvanceHeadStaleRejected(t *testing.T) {
	idx := newTestIndex()
	r := signedTestRecord(t)

	var zero [32]byte
	if err := idx.AdvanceHead("root", zero, r.CurrentHash, r); err != nil {
		t.Fatalf("AdvanceHead: %v", err)
	}
	row, err := idx.GetScope("root")
	if err != nil {
		t.Fatalf("GetScope: %v", err)
	}
	if row.Head != r.CurrentHash {
		t.Fatal("head did not advance")
	}

	// A second writer racing from the same stale previous_hash must fail.
	if err := idx.AdvanceHead("root", zero, r.CurrentHash, r); err != ErrStaleHead {
		t.Fatalf("expected ErrStaleHead, got %v", err)
	}
}

func TestAuthoritiesListedPerScope(t *testing.T) {
	idx := newTestIndex()
	var pk1, pk2 [32]byte
	pk1[0], pk2[0] = 1, 2
	if err := idx.PutAuthority("root", scope.Authority{Name: "a1", PublicKey: pk1}); err != nil {
		t.Fatalf("PutAuthority: %v", err)
	}
	if err := idx.PutAuthority("root", scope.Authority{Name: "a2", PublicKey: pk2}); err != nil {
		t.Fatalf("PutAuthority: %v", err)
	}
	list, err := idx.ListAuthorities("root")
	if err != nil {
		t.Fatalf("ListAuthorities: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 authorities, got %d", len(list))
	}
}

func TestKeyGrantAndRevoke(t *testing.T) {
	idx := newTestIndex()
	var pk [32]byte
	pk[0] = 9
	row := KeyRow{Roles: []string{"root"}, EffectiveMicromark: 0, ExpiresMicromark: 0}
	if err := idx.PutKey("root", pk, row); err != nil {
		t.Fatalf("PutKey: %v", err)
	}
	got, err := idx.GetKey("root", pk)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "root" {
		t.Fatalf("unexpected roles: %v", got.Roles)
	}
	if err := idx.RevokeKey("root", pk); err != nil {
		t.Fatalf("RevokeKey: %v", err)
	}
	if _, err := idx.GetKey("root", pk); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after revoke, got %v", err)
	}
}

func TestPolicyAndRuleRoundTrip(t *testing.T) {
	idx := newTestIndex()
	p := policy.Policy{
		Scope:     "root",
		Defaults:  policy.Defaults{Roles: []string{"root"}, QuorumK: 1, RatePerMark: 80},
		QuorumTTL: 5000,
	}
	var h [32]byte
	h[0] = 7
	if err := idx.PutPolicy(h, p); err != nil {
		t.Fatalf("PutPolicy: %v", err)
	}
	got, err := idx.GetPolicy(h)
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if got.Scope != "root" || got.QuorumTTL != 5000 {
		t.Fatalf("policy round trip mismatch: %+v", got)
	}

	r := policy.Rule{RecordType: "key:grant", AppendRoles: []string{"admin"}, QuorumK: 2, RatePerMark: 5}
	if err := idx.PutRule("root", "key:grant", r); err != nil {
		t.Fatalf("PutRule: %v", err)
	}
	gotRule, err := idx.GetRule("root", "key:grant")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if gotRule.QuorumK != 2 {
		t.Fatalf("rule round trip mismatch: %+v", gotRule)
	}
}

func TestAliasBindAndCollision(t *testing.T) {
	idx := newTestIndex()
	var h1, h2 [32]byte
	h1[0], h2[0] = 1, 2

	if err := idx.PutAlias("alice", "root", h1); err != nil {
		t.Fatalf("PutAlias: %v", err)
	}
	if err := idx.PutAlias("alice", "root", h1); err != nil {
		t.Fatalf("re-binding the same hash should be idempotent: %v", err)
	}
	if err := idx.PutAlias("alice", "root", h2); err != scope.ErrAliasExists {
		t.Fatalf("expected ErrAliasExists for a differing rebind, got %v", err)
	}
	got, err := idx.GetAlias("alice", "root")
	if err != nil {
		t.Fatalf("GetAlias: %v", err)
	}
	if got != h1 {
		t.Fatal("alias resolved to the wrong hash")
	}
}
