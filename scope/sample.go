package scope

import (
	"errors"
	"math/rand"
)

// ErrEmptySet is returned by the sampling functions when given no candidates.
var ErrEmptySet = errors.New("scope: empty authority set")

// PickWeighted draws one authority from candidates with probability
// proportional to Weight(), using r as the source of randomness (callers
// pass a *rand.Rand seeded however they like; production code should use a
// crypto/rand-seeded source).
func PickWeighted(r *rand.Rand, candidates []Authority) (Authority, error) {
	if len(candidates) == 0 {
		return Authority{}, ErrEmptySet
	}
	total := 0
	for _, a := range candidates {
		total += a.Weight()
	}
	if total <= 0 {
		return candidates[0], nil
	}
	draw := r.Intn(total)
	for _, a := range candidates {
		draw -= a.Weight()
		if draw < 0 {
			return a, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

// PickKWeightedUnique draws k distinct authorities from candidates by
// repeated weighted sampling with removal. If k >= len(candidates), every
// candidate is returned.
func PickKWeightedUnique(r *rand.Rand, candidates []Authority, k int) ([]Authority, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptySet
	}
	if k >= len(candidates) {
		out := make([]Authority, len(candidates))
		copy(out, candidates)
		return out, nil
	}
	pool := make([]Authority, len(candidates))
	copy(pool, candidates)

	out := make([]Authority, 0, k)
	for i := 0; i < k; i++ {
		picked, err := PickWeighted(r, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, picked)
		pool = removeByName(pool, picked)
	}
	return out, nil
}

func removeByName(pool []Authority, victim Authority) []Authority {
	out := make([]Authority, 0, len(pool)-1)
	removed := false
	for _, a := range pool {
		if !removed && a.Name == victim.Name && a.PublicKey == victim.PublicKey {
			removed = true
			continue
		}
		out = append(out, a)
	}
	return out
}

// Resolver answers which authorities govern a scope, given a lookup source.
type Resolver struct {
	table *Table
	root  []Authority
}

// NewResolver builds a hierarchical authority resolver backed by a scope
// registry and a bootstrap root-authorities list.
func NewResolver(table *Table, rootAuthorities []Authority) *Resolver {
	return &Resolver{table: table, root: rootAuthorities}
}

// Authorities resolves the confirming set for name by walking: the scope
// itself, then each dotted ancestor, then the bootstrap root list. The
// first non-empty result wins.
func (res *Resolver) Authorities(name string) []Authority {
	for _, candidate := range Ancestors(name) {
		if e, ok := res.table.Lookup(candidate); ok && len(e.Authorities) > 0 {
			return e.Authorities
		}
	}
	return res.root
}
