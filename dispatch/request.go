package dispatch

import (
	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/rhex"
)

// selfAuthoredDraft builds a draft response record authored by this node
// (author pre-hash signed with UsherPriv) for recordType carrying data. The
// usher pipeline's co-sign step completes it with usher_sign once
// context.at is known.
func selfAuthoredDraft(ctx *Context, scopeName, recordType string, data canon.Value) (*rhex.Record, error) {
	var in rhex.Intent
	in.Scope = scopeName
	in.RecordType = recordType
	in.Data = data
	copy(in.AuthorPublicKey[:], ctx.UsherKey)
	copy(in.UsherPublicKey[:], ctx.UsherKey)

	r := rhex.Draft(in)
	return rhex.AuthorSign(r, ctx.UsherPriv)
}

// handleRequestHead responds with a single draft response:head record
// carrying the current head for the requested scope.
func handleRequestHead(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	scopeName := r.Intent.Scope
	row, err := ctx.Index.GetScope(scopeName)
	if err != nil {
		row.Head = [32]byte{}
	}

	resp, err := selfAuthoredDraft(ctx, scopeName, rhex.TypeResponseHead, canon.Object(map[string]canon.Value{
		"head": canon.Bytes(row.Head[:]),
	}))
	if err != nil {
		return nil, err
	}
	return []*rhex.Record{resp}, nil
}

// handleRequestRhex responds with the requested scope's full chain on
// first contact, or with everything after the requester's last known head
// on subsequent calls.
func handleRequestRhex(ctx *Context, r *rhex.Record, firstTime bool) ([]*rhex.Record, error) {
	scopeName := r.Intent.Scope
	chain, err := ctx.Disk.LoadChain(scopeName)
	if err != nil {
		return nil, err
	}

	if firstTime {
		return chain, nil
	}

	since := field(r, "since")
	if since == "" {
		return chain, nil
	}
	idx := -1
	for i, rec := range chain {
		if rec.CurrentHash.String() == since {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(chain) {
		return nil, nil
	}
	return chain[idx+1:], nil
}
