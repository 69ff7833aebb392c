// Package scope implements the scope registry and authority selection:
// which servers are trusted to co-sign and confirm records for a given
// scope, and how a quorum subset of them is chosen.
package scope

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hodeauxledger/rhexledger/rhexcrypto"
)

// Role is a scope's relationship to this node.
type Role string

const (
	RoleAuthority Role = "authority"
	RoleMirror    Role = "mirror"
)

// Entry is one row of the scope registry, distinct from an R⬢ record.
type Entry struct {
	Name        string          `json:"name"`
	Role        Role            `json:"role"`
	LastSynced  uint64          `json:"last_synced"`
	Policy      rhexcrypto.Hash `json:"policy"`
	Authorities []Authority     `json:"authorities"`
	Head        rhexcrypto.Hash `json:"head"`
}

// Writable reports whether this node may append to the scope locally.
func (e Entry) Writable() bool { return e.Role == RoleAuthority }

// Authority is one member of a scope's confirming quorum set.
type Authority struct {
	Name      string          `json:"name"`
	Host      string          `json:"host"`
	Port      int             `json:"port"`
	Proto     string          `json:"proto"`
	PublicKey rhexcrypto.Hash `json:"public_key"`
	Priority  int             `json:"priority"` // 0 (highest) .. 100 (lowest)
}

// Weight converts priority to a sampling weight; lower priority means
// higher weight, and every authority has weight >= 1.
func (a Authority) Weight() int {
	return 101 - a.Priority
}

// ByzantineK returns the minimum number of confirming signatures needed to
// tolerate Byzantine faults among N authorities: 1 if N < 4, else the
// "2f+1 of 3f+1" threshold rounded up, ceil((2N+2)/3).
func ByzantineK(n int) int {
	if n < 4 {
		return 1
	}
	return (2*n + 2 + 2) / 3 // ceil division: (2n+2 + 3-1) / 3
}

// table is the registry, an ordered set of scope entries keyed by name. It
// is safe to read concurrently; callers serialize writes (ledgerdb holds
// the per-scope mutex during ingest).
type Table struct {
	order   []string
	entries map[string]Entry
}

// New returns an empty scope registry.
func New() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// ErrNotFound is returned by Lookup when no entry exists for name.
var ErrNotFound = errors.New("scope: not found")

// Lookup returns the entry for name, if present.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Insert adds or replaces the entry for e.Name, preserving first-insertion
// order for entries not already present.
func (t *Table) Insert(e Entry) {
	if _, exists := t.entries[e.Name]; !exists {
		t.order = append(t.order, e.Name)
	}
	t.entries[e.Name] = e
}

// Remove deletes the entry for name, if present.
func (t *Table) Remove(name string) {
	if _, exists := t.entries[name]; !exists {
		return
	}
	delete(t.entries, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// All returns every entry in insertion order.
func (t *Table) All() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.entries[n])
	}
	return out
}

// wireTable is the preferred on-disk shape of scope_table.json.
type wireTable struct {
	Scopes []Entry `json:"scopes"`
}

// MarshalJSON emits the preferred `{"scopes":[...]}` shape.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTable{Scopes: t.All()})
}

// UnmarshalJSON accepts either the preferred `{"scopes":[...]}` object or a
// bare JSON array of entries.
func (t *Table) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	var entries []Entry
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(b, &entries); err != nil {
			return err
		}
	} else {
		var w wireTable
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		entries = w.Scopes
	}
	t.entries = make(map[string]Entry, len(entries))
	t.order = nil
	for _, e := range entries {
		t.Insert(e)
	}
	return nil
}

// Ancestors returns the hierarchical ancestor chain of a dotted scope name,
// nearest first: "a.b.c" -> ["a.b.c", "a.b", "a"].
func Ancestors(name string) []string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for i := len(parts); i > 0; i-- {
		out = append(out, strings.Join(parts[:i], "."))
	}
	return out
}
