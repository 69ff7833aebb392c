// Package dispatch routes validated, policy-checked R⬢ records to their
// per-record-type handler and produces zero or more response records.
package dispatch

import (
	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/clock"
	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/ledgerdisk"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexlog"
	"github.com/hodeauxledger/rhexledger/scope"
)

// Context bundles every resource a handler may need: the cache index, the
// disk store, the scope registry, this node's clock, and its identity as a
// usher (for handlers that must know whether this node is the one being
// asked to co-sign or serve a request).
type Context struct {
	Index     *ledgerdb.Index
	Disk      *ledgerdisk.Store
	Scopes    *scope.Table
	Clock     *clock.GTClock
	Log       *rhexlog.Logger
	UsherKey  ed25519.PublicKey
	UsherPriv ed25519.PrivateKey
}

// Handler is a total function over one record, returning zero or more
// response records. firstTime distinguishes an initial request (e.g. a
// fresh request:rhex asking for full replay) from a repeat.
type Handler func(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error)

var handlers = map[string]Handler{
	rhex.TypeScopeGenesis: handleScopeGenesis,
	rhex.TypeScopeCreate:  handleScopeCreate,
	rhex.TypeScopeRequest: handleScopeRequest,
	rhex.TypeKeyGrant:     handleKeyGrant,
	rhex.TypeKeyRevoke:    handleKeyRevoke,
	rhex.TypePolicySet:    handlePolicySet,
	rhex.TypeRequestHead:  handleRequestHead,
	rhex.TypeRequestRhex:  handleRequestRhex,
}

// Dispatch routes r to the handler registered for its canonical record_type.
// An unrecognized record_type (including an unknown major) is a no-op: it
// returns no records and no error. Any record_type may additionally carry
// an "alias" field, bound here once the record is finalized.
func Dispatch(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	recordType := rhex.CanonicalRecordType(r.Intent.RecordType)

	var out []*rhex.Record
	if h, ok := handlers[recordType]; ok {
		o, err := h(ctx, r, firstTime)
		if err != nil {
			return nil, err
		}
		out = o
	}

	if err := bindAlias(ctx, r); err != nil {
		return nil, err
	}
	return out, nil
}

// bindAlias binds intent.data["alias"], when present on a finalized record,
// to this record's hash within its scope — the mechanism behind the
// rhex://<scope>/<alias> URL form. There is no dedicated alias:bind
// record_type; any record may carry the field. Re-binding the same name to
// the same hash is a no-op; re-binding it to a different hash is rejected
// by the index (scope.ErrAliasExists).
func bindAlias(ctx *Context, r *rhex.Record) error {
	name := field(r, "alias")
	if name == "" || !r.Finalized() {
		return nil
	}
	return ctx.Index.PutAlias(name, r.Intent.Scope, r.CurrentHash)
}

// field reads a string field out of intent.data, returning "" if absent or
// not a string.
func field(r *rhex.Record, name string) string {
	v, ok := r.Intent.Data.Object[name]
	if !ok || v.Kind != canon.KindString {
		return ""
	}
	return v.Str
}

func intField(r *rhex.Record, name string) (int64, bool) {
	v, ok := r.Intent.Data.Object[name]
	if !ok || v.Kind != canon.KindInt {
		return 0, false
	}
	return v.Int, true
}

// bootstrapRule is the default policy:set rule installed by scope:genesis
// and used as the fallback before any explicit policy:set record exists for
// a scope.
func bootstrapRule() policy.Rule {
	return policy.Rule{
		RecordType:  rhex.TypePolicySet,
		AppendRoles: []string{"root"},
		QuorumK:     1,
		RatePerMark: 80,
	}
}
