package dispatch

import (
	"strings"

	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// targetPublicKey reads the base64url "public_key" field naming the key
// being granted or revoked, falling back to the record's own author key
// when the field is absent (self-registration on first contact).
func targetPublicKey(r *rhex.Record) [32]byte {
	if s := field(r, "public_key"); s != "" {
		if b, err := rhexcrypto.DecodeB64(s); err == nil && len(b) == 32 {
			var out [32]byte
			copy(out[:], b)
			return out
		}
	}
	return r.Intent.AuthorPublicKey
}

// handleKeyGrant upserts a (scope, public_key) role grant read from
// intent.data: public_key (base64url, defaults to the author key), roles
// (comma-separated string), effective_micromark, expires_micromark.
func handleKeyGrant(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	rolesCSV := field(r, "roles")
	var roles []string
	if rolesCSV != "" {
		roles = strings.Split(rolesCSV, ",")
	}
	effective, _ := intField(r, "effective_micromark")
	expires, _ := intField(r, "expires_micromark")

	return nil, ctx.Index.PutKey(r.Intent.Scope, targetPublicKey(r), ledgerdb.KeyRow{
		Roles:              roles,
		EffectiveMicromark: uint64(effective),
		ExpiresMicromark:   uint64(expires),
	})
}

// handleKeyRevoke removes the key row named by intent.data's public_key
// field (or the author key, if absent) within the record's scope.
func handleKeyRevoke(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	return nil, ctx.Index.RevokeKey(r.Intent.Scope, targetPublicKey(r))
}
