// Package ledgerdisk persists R⬢ chains to a content-addressed directory
// tree: one subdirectory per scope, one file per record named after its
// current_hash, and a scope_table.json registry at the root.
package ledgerdisk

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
	"github.com/hodeauxledger/rhexledger/scope"
)

// ErrMissingGenesis is returned when a scope directory has no
// all-zero-hash genesis file.
var ErrMissingGenesis = errors.New("ledgerdisk: missing genesis record")

// Store is a ledger_path rooted disk tree.
type Store struct {
	root string
}

// Open returns a Store rooted at ledgerPath, creating the directory if it
// does not exist.
func Open(ledgerPath string) (*Store, error) {
	if err := os.MkdirAll(ledgerPath, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: ledgerPath}, nil
}

// ScopeTablePath returns the path to scope_table.json.
func (s *Store) ScopeTablePath() string {
	return filepath.Join(s.root, "scope_table.json")
}

// LoadScopeTable reads and parses scope_table.json. A missing file yields
// an empty table, not an error (a fresh ledger_path has none yet).
func (s *Store) LoadScopeTable() (*scope.Table, error) {
	tbl := scope.New()
	data, err := os.ReadFile(s.ScopeTablePath())
	if errors.Is(err, os.ErrNotExist) {
		return tbl, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tbl.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return tbl, nil
}

// SaveScopeTable writes tbl to scope_table.json atomically.
func (s *Store) SaveScopeTable(tbl *scope.Table) error {
	data, err := tbl.MarshalJSON()
	if err != nil {
		return err
	}
	return writeFileAtomic(s.ScopeTablePath(), data, 0o644)
}

// scopeDir returns the directory for a scope name; the root scope (empty
// name) is the store's own root directory.
func (s *Store) scopeDir(scopeName string) string {
	if scopeName == "" {
		return s.root
	}
	return filepath.Join(s.root, scopeName)
}

// recordPath returns the <hex(hash)>.rhex path for a record in scopeName.
func (s *Store) recordPath(scopeName string, hash rhexcrypto.Hash) string {
	return filepath.Join(s.scopeDir(scopeName), hex.EncodeToString(hash[:])+".rhex")
}

// Put persists a finalized, non-genesis record to disk atomically under
// <hex(current_hash)>.rhex. The record must already be finalized; callers
// run rhex.Validate first.
func (s *Store) Put(scopeName string, r *rhex.Record) error {
	return s.put(scopeName, r, r.CurrentHash)
}

// PutGenesis persists a finalized genesis record under the all-zero-hash
// filename, the convention that lets LoadChain find it without knowing its
// hash in advance.
func (s *Store) PutGenesis(scopeName string, r *rhex.Record) error {
	var zero rhexcrypto.Hash
	return s.put(scopeName, r, zero)
}

func (s *Store) put(scopeName string, r *rhex.Record, filenameHash rhexcrypto.Hash) error {
	if !r.Finalized() {
		return rhex.ErrNotFinalized
	}
	dir := s.scopeDir(scopeName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	packed, err := rhex.Pack(r)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.recordPath(scopeName, filenameHash), packed, 0o644)
}

// Get reads and unpacks the record with the given hash from scopeName. It
// does not validate the record; callers run rhex.Validate before trusting
// the result.
func (s *Store) Get(scopeName string, hash rhexcrypto.Hash) (*rhex.Record, error) {
	data, err := os.ReadFile(s.recordPath(scopeName, hash))
	if err != nil {
		return nil, err
	}
	return rhex.Unpack(data)
}

// LoadChain walks scopeName's chain starting at the genesis record, stored
// under the all-zero-hash filename by convention, then follows
// current_hash -> <hex(current_hash)>.rhex links (the general naming rule,
// which applies to every non-genesis record) until the next file is
// missing — that record is the scope's current head. It returns the chain
// in order, genesis first. A scope with no genesis file yields
// ErrMissingGenesis.
func (s *Store) LoadChain(scopeName string) ([]*rhex.Record, error) {
	var zero rhexcrypto.Hash
	genesis, err := s.Get(scopeName, zero)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMissingGenesis
	}
	if err != nil {
		return nil, err
	}

	chain := []*rhex.Record{genesis}
	head := genesis.CurrentHash
	for {
		next, err := s.Get(scopeName, head)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, next)
		head = next.CurrentHash
	}
	return chain, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
