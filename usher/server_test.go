package usher

import (
	"net"
	"testing"
	"time"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/clock"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/ledgerdb/memorydb"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
	"github.com/hodeauxledger/rhexledger/scope"
	"github.com/hodeauxledger/rhexledger/wireframe"
)

// newTestServer wires a Server over an in-memory index and a temp-dir disk
// store, returning it alongside the usher key it was built with.
func newTestServer(t *testing.T) (*Server, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	usherPub, usherPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate usher key: %v", err)
	}

	idx := ledgerdb.Open(memorydb.New(), 0)
	disk, err := ledgerdisk.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open disk store: %v", err)
	}

	s := New(idx, disk, scope.New(), clock.New(), usherPub, usherPriv, nil)
	return s, usherPub, usherPriv
}

func genesisIntent(authorPub, usherPub ed25519.PublicKey) rhex.Intent {
	var in rhex.Intent
	in.Scope = "root"
	in.Nonce = "n-1"
	in.RecordType = rhex.TypeScopeGenesis
	in.Data = canon.Object(map[string]canon.Value{
		"note": canon.String("genesis"),
	})
	copy(in.AuthorPublicKey[:], authorPub)
	copy(in.UsherPublicKey[:], usherPub)
	return in
}

func fullySigned(t *testing.T, in rhex.Intent, authorPriv, usherPriv ed25519.PrivateKey, at uint64) *rhex.Record {
	t.Helper()
	r := rhex.Draft(in)
	r, err := rhex.AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	r, err = rhex.UsherSign(r, at, usherPriv)
	if err != nil {
		t.Fatalf("UsherSign: %v", err)
	}
	r, err = rhex.QuorumSign(r, authorPriv)
	if err != nil {
		t.Fatalf("QuorumSign: %v", err)
	}
	r, err = rhex.Finalize(r)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return r
}

func dialServer(t *testing.T, s *Server) *wireframe.Conn {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		s.serveConn(nc)
	}()
	nc, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return wireframe.NewConn(nc)
}

// TestGenesisFinalizedRecordIsPersisted sends a fully-signed genesis record
// and confirms it lands on disk and the scope head advances.
func TestGenesisFinalizedRecordIsPersisted(t *testing.T) {
	s, usherPub, usherPriv := newTestServer(t)
	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)

	r := fullySigned(t, genesisIntent(authorPub, usherPub), authorPriv, usherPriv, 1000)
	packed, err := rhex.Pack(r)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	conn := dialServer(t, s)
	defer conn.Close()
	if err := conn.Send(packed); err != nil {
		t.Fatalf("send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	row, err := s.Index.GetScope("root")
	if err != nil {
		t.Fatalf("GetScope: %v", err)
	}
	if row.Head != r.CurrentHash {
		t.Fatalf("head not advanced: got %v want %v", row.Head, r.CurrentHash)
	}

	chain, err := s.Disk.LoadChain("root")
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("expected 1 record on disk, got %d", len(chain))
	}
}

// TestAuthorOnlyGenesisIsCoSignedAndPersisted sends a real, live
// author-only submission (the usher co-sign path, as opposed to a record
// the client pre-finalizes itself) and confirms the usher co-signs,
// finalizes, and persists it, responding with the finalized record.
func TestAuthorOnlyGenesisIsCoSignedAndPersisted(t *testing.T) {
	s, usherPub, _ := newTestServer(t)
	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)

	r := rhex.Draft(genesisIntent(authorPub, usherPub))
	r, err := rhex.AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	packed, err := rhex.Pack(r)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	conn := dialServer(t, s)
	defer conn.Close()
	if err := conn.Send(packed); err != nil {
		t.Fatalf("send: %v", err)
	}

	resp, err := conn.Recv(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected a co-signed response, got none")
	}
	respRecord, err := rhex.Unpack(resp)
	if err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	if !respRecord.Finalized() {
		t.Fatalf("expected the response record to be finalized")
	}
	if _, ok := respRecord.UsherSig(); !ok {
		t.Fatalf("expected the response record to carry a usher signature")
	}

	row, err := s.Index.GetScope("root")
	if err != nil {
		t.Fatalf("GetScope: %v", err)
	}
	if row.Head != respRecord.CurrentHash {
		t.Fatalf("head not advanced: got %v want %v", row.Head, respRecord.CurrentHash)
	}

	chain, err := s.Disk.LoadChain("root")
	if err != nil {
		t.Fatalf("LoadChain: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("expected 1 record on disk, got %d", len(chain))
	}
}

// TestAuthorOnlyKeyGrantAwaitsQuorum sends a live author-only key:grant
// submission under a policy with a quorum_k the lone author-signing key
// does not satisfy on its own, and confirms the usher co-signs but does
// not finalize or persist it — it comes back awaiting further quorum
// signatures instead of silently vanishing.
func TestAuthorOnlyKeyGrantAwaitsQuorum(t *testing.T) {
	s, usherPub, usherPriv := newTestServer(t)
	rootPub, rootPriv, _ := ed25519.GenerateKey(nil)

	genesis := fullySigned(t, genesisIntent(rootPub, usherPub), rootPriv, usherPriv, 1000)
	if err := sendAndDrain(t, s, genesis); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	granteePub, _, _ := ed25519.GenerateKey(nil)
	var in rhex.Intent
	in.Scope = "root"
	in.Nonce = "n-grant"
	in.RecordType = rhex.TypeKeyGrant
	in.Data = canon.Object(map[string]canon.Value{
		"public_key": canon.String(rhexcrypto.EncodeB64(granteePub)),
		"roles":      canon.String("member"),
	})
	copy(in.AuthorPublicKey[:], rootPub)
	copy(in.UsherPublicKey[:], usherPub)

	policySet := fullySigned(t, policySetIntent(rootPub, usherPub), rootPriv, usherPriv, 2000)
	if err := sendAndDrain(t, s, policySet); err != nil {
		t.Fatalf("seed policy:set: %v", err)
	}

	r := rhex.Draft(in)
	r, err := rhex.AuthorSign(r, rootPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	packed, err := rhex.Pack(r)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	conn := dialServer(t, s)
	defer conn.Close()
	if err := conn.Send(packed); err != nil {
		t.Fatalf("send: %v", err)
	}

	resp, err := conn.Recv(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected a usher-signed response awaiting quorum, got none")
	}
	respRecord, err := rhex.Unpack(resp)
	if err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	if respRecord.Finalized() {
		t.Fatalf("expected the response to remain unfinalized pending quorum")
	}
	if _, ok := respRecord.UsherSig(); !ok {
		t.Fatalf("expected the response to carry a usher signature")
	}
}

// sendAndDrain dials s, sends a pre-finalized record, and drains the
// single response the server sends back, to seed state ahead of a test's
// real assertion without asserting on the seeding step itself.
func sendAndDrain(t *testing.T, s *Server, r *rhex.Record) error {
	t.Helper()
	packed, err := rhex.Pack(r)
	if err != nil {
		return err
	}
	conn := dialServer(t, s)
	defer conn.Close()
	if err := conn.Send(packed); err != nil {
		return err
	}
	_, err = conn.Recv(time.Now().Add(2 * time.Second))
	return err
}

// policySetIntent drafts a policy:set record that requires 2 quorum
// signatures from "root"-role keys for key:grant, so a single author
// signature alone cannot satisfy it.
func policySetIntent(authorPub, usherPub ed25519.PublicKey) rhex.Intent {
	var in rhex.Intent
	in.Scope = "root"
	in.Nonce = "n-policy"
	in.RecordType = rhex.TypePolicySet
	in.Data = canon.Object(map[string]canon.Value{
		"defaults": canon.Object(map[string]canon.Value{
			"roles":         canon.String("root"),
			"quorum_k":      canon.Int(1),
			"rate_per_mark": canon.Int(80),
		}),
		"rules": canon.Array(canon.Object(map[string]canon.Value{
			"record_type":   canon.String(rhex.TypeKeyGrant),
			"append_roles":  canon.String("root"),
			"quorum_k":      canon.Int(2),
			"quorum_roles":  canon.String("root"),
			"rate_per_mark": canon.Int(5),
		})),
	})
	copy(in.AuthorPublicKey[:], authorPub)
	copy(in.UsherPublicKey[:], usherPub)
	return in
}

// TestNotOurUsherRejected sends an author-only record addressed to a
// different usher and expects an error:verify_failed response, with nothing
// persisted.
func TestNotOurUsherRejected(t *testing.T) {
	s, _, _ := newTestServer(t)
	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)
	otherUsherPub, _, _ := ed25519.GenerateKey(nil)

	r := rhex.Draft(genesisIntent(authorPub, otherUsherPub))
	r, err := rhex.AuthorSign(r, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	packed, err := rhex.Pack(r)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	conn := dialServer(t, s)
	defer conn.Close()
	if err := conn.Send(packed); err != nil {
		t.Fatalf("send: %v", err)
	}

	resp, err := conn.Recv(time.Now().Add(2 * time.Second))
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected an error response, got none")
	}
	respRecord, err := rhex.Unpack(resp)
	if err != nil {
		t.Fatalf("unpack response: %v", err)
	}
	if respRecord.Intent.RecordType != rhex.TypeErrorVerify {
		t.Fatalf("expected %s, got %s", rhex.TypeErrorVerify, respRecord.Intent.RecordType)
	}

	if _, err := s.Index.GetScope("root"); err == nil {
		t.Fatalf("expected root scope to remain unseeded")
	}
}

// TestOnlyAuthorSignedDetection exercises the shape-check helper directly
// against each signature-stage shape.
func TestOnlyAuthorSignedDetection(t *testing.T) {
	authorPub, authorPriv, _ := ed25519.GenerateKey(nil)
	usherPub, usherPriv, _ := ed25519.GenerateKey(nil)

	draft := rhex.Draft(genesisIntent(authorPub, usherPub))
	if onlyAuthorSigned(draft) {
		t.Fatalf("an unsigned draft should not count as author-only signed")
	}

	authored, err := rhex.AuthorSign(draft, authorPriv)
	if err != nil {
		t.Fatalf("AuthorSign: %v", err)
	}
	if !onlyAuthorSigned(authored) {
		t.Fatalf("expected author-only record to be detected")
	}

	ushered, err := rhex.UsherSign(authored, 1, usherPriv)
	if err != nil {
		t.Fatalf("UsherSign: %v", err)
	}
	if onlyAuthorSigned(ushered) {
		t.Fatalf("a usher-signed record should not count as author-only")
	}
}
