// Package usher implements the relay server: it accepts connections,
// decodes one frame at a time, validates and policy-checks each record,
// co-signs it as this node's usher key, dispatches and persists records
// that are then final, co-signs the handlers' responses, and writes
// responses back in order.
package usher

import (
	"net"
	"time"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/clock"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/dispatch"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexlog"
	"github.com/hodeauxledger/rhexledger/scope"
	"github.com/hodeauxledger/rhexledger/wireframe"
)

// IdleTimeout is the default per-connection idle window after which,
// absent further input, the server may close.
const IdleTimeout = 500 * time.Millisecond

// Server is the usher relay: an accept loop plus the resources every
// connection's pipeline shares.
type Server struct {
	Index     *ledgerdb.Index
	Disk      *ledgerdisk.Store
	Scopes    *scope.Table
	Clock     *clock.GTClock
	Log       *rhexlog.Logger
	UsherPub  ed25519.PublicKey
	UsherPriv ed25519.PrivateKey
	Limiter   *policy.Limiter

	listener net.Listener
}

// New builds a Server. log defaults to rhexlog's root logger bound with a
// "component=usher" key if nil.
func New(idx *ledgerdb.Index, disk *ledgerdisk.Store, scopes *scope.Table, gtc *clock.GTClock, pub ed25519.PublicKey, priv ed25519.PrivateKey, log *rhexlog.Logger) *Server {
	if log == nil {
		log = rhexlog.New("component", "usher")
	}
	return &Server{
		Index:     idx,
		Disk:      disk,
		Scopes:    scopes,
		Clock:     gtc,
		Log:       log,
		UsherPub:  pub,
		UsherPriv: priv,
		Limiter:   policy.NewLimiter(),
	}
}

// Listen binds addr. Splitting bind from accept lets a Lifecycle's Start
// report a real bind failure synchronously, while the accept loop itself
// runs in the background via Serve.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.Log.Info("usher listening", "addr", ln.Addr().String())
	return nil
}

// Serve runs the accept loop against a listener already bound by Listen,
// until Close is called or the listener errors.
func (s *Server) Serve() error {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(nc)
	}
}

// ListenAndServe binds addr and runs the accept loop until Close is called
// or the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops the accept loop; in-flight connections finish their current
// frame and then close on their own.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) dispatchContext() *dispatch.Context {
	return &dispatch.Context{
		Index:     s.Index,
		Disk:      s.Disk,
		Scopes:    s.Scopes,
		Clock:     s.Clock,
		Log:       s.Log,
		UsherKey:  s.UsherPub,
		UsherPriv: s.UsherPriv,
	}
}

// serveConn runs the full per-connection pipeline until the peer closes or
// goes idle past IdleTimeout, logging accounting on exit.
func (s *Server) serveConn(nc net.Conn) {
	conn := wireframe.NewConn(nc)
	defer conn.Close()

	log := s.Log.New("remote", nc.RemoteAddr().String())
	seenScope := make(map[string]bool)

	for {
		payload, err := conn.Recv(time.Now().Add(IdleTimeout))
		if err != nil {
			log.Warn("recv error", "err", err)
			break
		}
		if payload == nil {
			break
		}

		responses := s.handleFrame(log, payload, seenScope)
		for _, resp := range responses {
			packed, err := rhex.Pack(resp)
			if err != nil {
				log.Error("pack response failed", "err", err)
				continue
			}
			if err := conn.Send(packed); err != nil {
				log.Warn("send error", "err", err)
				break
			}
		}
	}

	log.Info("connection closed",
		"records_in", conn.RecordsIn, "bytes_in", conn.BytesIn,
		"records_out", conn.RecordsOut, "bytes_out", conn.BytesOut)
}

// handleFrame runs one inbound payload through the full pipeline: decode,
// shape check, validate, policy check, co-sign (finalizing once quorum is
// met), dispatch, persist, then co-sign the handler's responses. It never
// panics; every failure mode produces zero or more typed response records.
func (s *Server) handleFrame(log *rhexlog.Logger, payload []byte, seenScope map[string]bool) []*rhex.Record {
	r, err := rhex.Unpack(payload)
	if err != nil {
		log.Warn("decode error", "err", err)
		return nil
	}

	if onlyAuthorSigned(r) && r.Intent.UsherPublicKey != publicKeyArray(s.UsherPub) {
		log.Warn("not our usher", "scope", r.Intent.Scope)
		return []*rhex.Record{s.coSign(s.errorRecord(r, rhex.TypeErrorVerify, ErrNotOurUsher.Error()))}
	}

	if err := rhex.Validate(r); err != nil {
		log.Warn("validate failed", "err", err)
		return []*rhex.Record{s.coSign(s.errorRecord(r, rhex.TypeErrorVerify, err.Error()))}
	}

	recordType := rhex.CanonicalRecordType(r.Intent.RecordType)

	// The policy check (role + quorum + rate) always runs, whatever shape r
	// arrives in. A record that shows up already self-finalized still has
	// to clear the same gate a live author-only submission does; Validate
	// above only proves the signatures present are genuine, not that they
	// were produced by keys actually authorized to append.
	if ok, reason := s.checkPolicy(r, recordType); !ok {
		log.Warn("policy denied", "reason", reason)
		return []*rhex.Record{s.coSign(s.errorRecord(r, rhex.TypeErrorPolicy, reason))}
	}

	r = s.coSign(r)
	if !r.Finalized() {
		// Usher signature collected; the record still needs quorum
		// signatures gathered out of band before it can be dispatched.
		return []*rhex.Record{r}
	}

	ctx := s.dispatchContext()
	firstTime := !seenScope[r.Intent.Scope]
	seenScope[r.Intent.Scope] = true

	out, err := dispatch.Dispatch(ctx, r, firstTime)
	if err != nil {
		log.Error("dispatch error", "record_type", recordType, "err", err)
		return []*rhex.Record{s.coSign(s.errorRecord(r, rhex.TypeErrorPolicy, err.Error()))}
	}

	if err := s.persistIfAppendable(r); err != nil {
		log.Error("persist failed", "err", err)
	}

	for i, resp := range out {
		out[i] = s.coSign(resp)
	}
	return append(out, r)
}

// onlyAuthorSigned reports whether r carries exactly an author signature
// and nothing else — the shape this node must reject unless it is the
// named usher.
func onlyAuthorSigned(r *rhex.Record) bool {
	_, hasAuthor := r.AuthorSig()
	_, hasUsher := r.UsherSig()
	return hasAuthor && !hasUsher && len(r.QuorumSigs()) == 0
}

func publicKeyArray(pub ed25519.PublicKey) [32]byte {
	var out [32]byte
	copy(out[:], pub)
	return out
}

// coSign ensures r carries this node's usher signature, then finalizes it
// once both an author and usher signature are present and — for record
// types with a quorum_k requirement — enough quorum signatures already
// present on r satisfy it. A record still missing quorum signatures comes
// back usher-signed but not finalized, for another round of quorum
// gathering; this only verifies what has already accumulated on r, it does
// not itself solicit quorum signatures from anyone.
func (s *Server) coSign(r *rhex.Record) *rhex.Record {
	if _, hasAuthor := r.AuthorSig(); !hasAuthor {
		return r
	}
	if _, hasUsher := r.UsherSig(); !hasUsher {
		signed, err := rhex.UsherSign(r, uint64(s.Clock.NowMicromarks()), s.UsherPriv)
		if err != nil {
			return r
		}
		r = signed
	}
	if r.Finalized() {
		return r
	}
	if !s.quorumSatisfied(r) {
		return r
	}
	finalized, err := rhex.Finalize(r)
	if err != nil {
		return r
	}
	return finalized
}

// quorumSatisfied reports whether r's record_type requires no quorum, or
// its quorum signatures already meet the active policy's quorum_k from
// signers holding a quorum role, within quorum_ttl of context.at. A scope
// with no active policy yet (its own genesis) has nothing to gate against.
func (s *Server) quorumSatisfied(r *rhex.Record) bool {
	recordType := rhex.CanonicalRecordType(r.Intent.RecordType)
	switch rhex.Major(recordType) {
	case "error", "confirm", "response":
		// Synthetic, usher-authored notifications are never policy-gated
		// ledger appends; nothing quorum-gates them.
		return true
	}
	p, err := s.Index.ActivePolicy(r.Intent.Scope)
	if err != nil {
		return true
	}
	quorumRoles := p.QuorumRoles(recordType)
	quorumSigs := r.QuorumSigs()
	signedAt := make([]uint64, len(quorumSigs))
	hasRole := make([]bool, len(quorumSigs))
	for i, qs := range quorumSigs {
		// context.at is the only authenticated timestamp on a Record (it
		// is set once, by UsherSign); every quorum signature is measured
		// against that same shared clock-of-record.
		signedAt[i] = r.Context.At
		hasRole[i] = policy.HasAnyRole(s.rolesFor(r.Intent.Scope, qs.PublicKey), quorumRoles)
	}
	return policy.QuorumSatisfied(p, recordType, r.Context.At, signedAt, hasRole)
}

// checkPolicy resolves the active policy for r's scope and runs CanAppend
// plus the rate limiter against the author's roles. It also enforces quorum
// whenever r already carries a usher signature — whether that signature was
// added by a prior round trip through this server or the record arrived
// already fully signed and self-finalized by its sender — so a
// pre-finalized record cannot skip straight past quorum by computing its
// own current_hash client-side. A record still awaiting its first usher
// signature has no quorum signatures to check yet (QuorumSign requires one
// structurally); that case is left to coSign's own check once the usher
// signature is added.
func (s *Server) checkPolicy(r *rhex.Record, recordType string) (bool, string) {
	entry, ok := s.Scopes.Lookup(r.Intent.Scope)
	writable := ok && entry.Writable()
	// A fresh scope:genesis for a scope with no prior entry is always
	// writable locally: there is nothing yet to deny it against.
	if recordType == rhex.TypeScopeGenesis && !ok {
		writable = true
	}

	p, err := s.Index.ActivePolicy(r.Intent.Scope)
	if err != nil {
		if recordType == rhex.TypeScopeGenesis {
			return true, ""
		}
		return false, "no active policy for scope"
	}

	roles := s.rolesFor(r.Intent.Scope, r.Intent.AuthorPublicKey)
	at := r.Context.At
	if !policy.CanAppend(p, writable, recordType, roles, at) {
		return false, "policy denied"
	}

	if _, hasUsher := r.UsherSig(); hasUsher {
		if !s.quorumSatisfied(r) {
			return false, "quorum not satisfied"
		}
	}

	rate := p.Defaults.RatePerMark
	for _, rule := range p.Rules {
		if rule.RecordType == recordType {
			rate = rule.RatePerMark
			break
		}
	}
	if err := s.Limiter.Allow(r.Intent.Scope, recordType, r.Intent.AuthorPublicKey, at, rate); err != nil {
		return false, err.Error()
	}
	return true, ""
}

func (s *Server) rolesFor(scopeName string, publicKey [32]byte) []string {
	row, err := s.Index.GetKey(scopeName, publicKey)
	if err != nil {
		return nil
	}
	return row.Roles
}

// persistIfAppendable writes a finalized, policy-accepted record to disk
// and advances the scope head. Records that are not yet finalized (a draft
// still awaiting quorum) are not persisted.
func (s *Server) persistIfAppendable(r *rhex.Record) error {
	if !r.Finalized() {
		return nil
	}
	scopeName := r.Intent.Scope
	isGenesis := rhex.CanonicalRecordType(r.Intent.RecordType) == rhex.TypeScopeGenesis

	if isGenesis {
		// handleScopeGenesis already seeded the scope row with Head set to
		// this record's hash, so there is no prior head to advance from —
		// just persist the record itself.
		if err := s.Disk.PutGenesis(scopeName, r); err != nil {
			return err
		}
		return s.Index.PutRecord(r)
	}

	if err := s.Disk.Put(scopeName, r); err != nil {
		return err
	}
	return s.Index.AdvanceHead(scopeName, r.Intent.PreviousHash, r.CurrentHash, r)
}

// errorRecord builds a draft error:* record authored by this usher,
// carrying the offending record's hash (if finalized) and the error text.
func (s *Server) errorRecord(offending *rhex.Record, recordType, reason string) *rhex.Record {
	var in rhex.Intent
	in.Scope = offending.Intent.Scope
	in.RecordType = recordType
	in.Data = canon.Object(map[string]canon.Value{
		"reason": canon.String(reason),
	})
	copy(in.AuthorPublicKey[:], s.UsherPub)
	copy(in.UsherPublicKey[:], s.UsherPub)

	r := rhex.Draft(in)
	signed, err := rhex.AuthorSign(r, s.UsherPriv)
	if err != nil {
		return r
	}
	return signed
}
