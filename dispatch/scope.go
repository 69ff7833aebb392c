package dispatch

import (
	"errors"

	"github.com/hodeauxledger/rhexledger/crypto/ed25519"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/scope"
)

// ErrMissingField is returned when a record is missing an intent.data field
// its record_type requires.
var ErrMissingField = errors.New("dispatch: missing required field")

// handleScopeGenesis establishes a new scope: seeds its cache row, grants
// the author key the fixed "root" role (no role names are read from the
// genesis record), installs the bootstrap default policy, and — for the
// root scope (empty name) — sets the clock epoch from the record's unix_ms
// field.
func handleScopeGenesis(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	scopeName := r.Intent.Scope

	if err := ctx.Index.PutScope(scopeName, ledgerdb.ScopeRow{
		Role: scope.RoleAuthority,
		Head: r.CurrentHash,
	}); err != nil {
		return nil, err
	}

	if err := ctx.Index.PutAuthority(scopeName, scope.Authority{
		Name:      "genesis-author",
		PublicKey: r.Intent.AuthorPublicKey,
		Priority:  0,
	}); err != nil {
		return nil, err
	}

	if err := ctx.Index.PutKey(scopeName, r.Intent.AuthorPublicKey, ledgerdb.KeyRow{
		Roles: []string{"root"},
	}); err != nil {
		return nil, err
	}

	defaultPolicy := policy.Policy{
		Scope:    scopeName,
		Defaults: policy.Defaults{Roles: []string{"root"}, QuorumK: 1, RatePerMark: 80},
		Rules:    []policy.Rule{bootstrapRule()},
	}
	if err := ctx.Index.PutPolicy(r.CurrentHash, defaultPolicy); err != nil {
		return nil, err
	}
	if err := ctx.Index.SetActivePolicy(scopeName, r.CurrentHash); err != nil {
		return nil, err
	}

	if scopeName == "" {
		if ms, ok := intField(r, "unix_ms"); ok {
			ctx.Clock.SetEpoch(ms)
		}
	}

	// A node that ushers a scope's genesis is, by construction, that
	// scope's authority: register it in the local scope table so later
	// submissions to this scope resolve writable (usher/server.go's
	// checkPolicy reads this table, not the cache index).
	if ctx.Scopes != nil && r.Intent.UsherPublicKey == publicKeyArray(ctx.UsherKey) {
		ctx.Scopes.Insert(scope.Entry{Name: scopeName, Role: scope.RoleAuthority, Head: r.CurrentHash})
	}

	return nil, nil
}

func publicKeyArray(pub ed25519.PublicKey) [32]byte {
	var out [32]byte
	copy(out[:], pub)
	return out
}

// handleScopeCreate announces a child scope under the current scope. It
// requires a new_scope field naming the child.
func handleScopeCreate(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	newScope := field(r, "new_scope")
	if newScope == "" {
		return nil, ErrMissingField
	}
	return nil, ctx.Index.PutScope(newScope, ledgerdb.ScopeRow{Role: scope.RoleMirror})
}

// handleScopeRequest asks an authority to create a child scope. It requires
// new_scope and an embedded genesis object; missing fields are a typed
// error, surfaced to the caller (the usher pipeline turns it, like every
// dispatch error, into an error:policy_denied record).
func handleScopeRequest(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	newScope := field(r, "new_scope")
	if newScope == "" {
		return nil, ErrMissingField
	}
	if _, ok := r.Intent.Data.Object["genesis"]; !ok {
		return nil, ErrMissingField
	}
	return nil, nil
}
