package ledgerdb

import (
	"errors"
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/policy"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
	"github.com/hodeauxledger/rhexledger/scope"
)

// Table key prefixes. One byte is enough: there are seven tables and no
// prefix may be a prefix of another's, which a fixed one-byte tag
// guarantees regardless of what scope/record_type/name strings follow.
const (
	prefixScope     = 's'
	prefixRhex      = 'r'
	prefixAuthority = 'a'
	prefixKey       = 'k'
	prefixPolicy    = 'p'
	prefixRule      = 'u'
	prefixAlias     = 'l'
)

// ErrStaleHead is returned when two concurrent writers race to advance the
// same scope's head from the same previous_hash; the loser must retry
// against the new head.
var ErrStaleHead = errors.New("ledgerdb: stale head")

// ErrNotFound is returned by table lookups that miss.
var ErrNotFound = errors.New("ledgerdb: not found")

// ScopeRow is the scopes table's columns.
type ScopeRow struct {
	Role       scope.Role
	LastSynced uint64
	Head       rhexcrypto.Hash
	// PolicyHash is the current_hash of the most recently applied
	// policy:set record for this scope (or the bootstrap policy's key,
	// installed by scope:genesis).
	PolicyHash rhexcrypto.Hash
}

// KeyRow is the keys table's columns: a key's role grant within one scope.
type KeyRow struct {
	Roles              []string
	EffectiveMicromark uint64
	ExpiresMicromark   uint64
}

// Index is the cache: a single KeyValueStore partitioned by table prefix,
// with a per-scope mutex serializing head advances and a fastcache
// read-through layer in front of the hottest table (rhex, keyed by hash).
type Index struct {
	store KeyValueStore

	headMu sync.Mutex
	locks  map[string]*sync.Mutex

	rhexCache *fastcache.Cache
}

// Open wraps store as a cache index. cacheBytes sizes the fastcache
// read-through layer for the rhex table (0 disables it).
func Open(store KeyValueStore, cacheBytes int) *Index {
	idx := &Index{store: store, locks: make(map[string]*sync.Mutex)}
	if cacheBytes > 0 {
		idx.rhexCache = fastcache.New(cacheBytes)
	}
	return idx
}

func (idx *Index) scopeLock(scopeName string) *sync.Mutex {
	idx.headMu.Lock()
	defer idx.headMu.Unlock()
	l, ok := idx.locks[scopeName]
	if !ok {
		l = &sync.Mutex{}
		idx.locks[scopeName] = l
	}
	return l
}

func key(prefix byte, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p) + 1
	}
	out := make([]byte, 0, n)
	out = append(out, prefix)
	for _, p := range parts {
		out = append(out, 0)
		out = append(out, p...)
	}
	return out
}

func encodeRow(v interface{}) []byte {
	b, err := canon.Encode(v)
	if err != nil {
		panic("ledgerdb: row encoding error: " + err.Error())
	}
	return b
}

// --- scopes table ---

// PutScope idempotently upserts a scope's (role, last_synced, head) row.
func (idx *Index) PutScope(name string, row ScopeRow) error {
	return idx.store.Put(key(prefixScope, []byte(name)), encodeRow(row))
}

// GetScope reads a scope's row.
func (idx *Index) GetScope(name string) (ScopeRow, error) {
	var row ScopeRow
	b, err := idx.store.Get(key(prefixScope, []byte(name)))
	if err != nil {
		return row, ErrNotFound
	}
	if err := canon.Decode(b, &row); err != nil {
		return row, err
	}
	return row, nil
}

// AdvanceHead moves scopeName's head from expectedPrevious to newHead,
// persisting record r to the rhex table in the same call. It holds the
// scope's mutex for the duration, and fails with ErrStaleHead if another
// writer already moved the head away from expectedPrevious.
func (idx *Index) AdvanceHead(scopeName string, expectedPrevious, newHead rhexcrypto.Hash, r *rhex.Record) error {
	l := idx.scopeLock(scopeName)
	l.Lock()
	defer l.Unlock()

	row, err := idx.GetScope(scopeName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if row.Head != expectedPrevious {
		return ErrStaleHead
	}
	if err := idx.PutRecord(r); err != nil {
		return err
	}
	row.Head = newHead
	return idx.PutScope(scopeName, row)
}

// --- rhex table ---

// rhexRow mirrors the columns of the rhex cache table: the packed record
// plus the fields a cache consumer needs without a full unpack.
type rhexRow struct {
	Packed     []byte
	Scope      string
	RecordType string
}

// PutRecord idempotently stores a finalized record keyed by current_hash.
func (idx *Index) PutRecord(r *rhex.Record) error {
	if !r.Finalized() {
		return rhex.ErrNotFinalized
	}
	k := key(prefixRhex, r.CurrentHash[:])
	if ok, _ := idx.store.Has(k); ok {
		return nil
	}
	packed, err := rhex.Pack(r)
	if err != nil {
		return err
	}
	row := rhexRow{Packed: packed, Scope: r.Intent.Scope, RecordType: r.Intent.RecordType}
	b := encodeRow(row)
	if err := idx.store.Put(k, b); err != nil {
		return err
	}
	if idx.rhexCache != nil {
		idx.rhexCache.Set(r.CurrentHash[:], b)
	}
	return nil
}

// GetRecord reads and unpacks the record stored under hash.
func (idx *Index) GetRecord(hash rhexcrypto.Hash) (*rhex.Record, error) {
	var row rhexRow
	if idx.rhexCache != nil {
		if b := idx.rhexCache.Get(nil, hash[:]); b != nil {
			if err := canon.Decode(b, &row); err == nil {
				return rhex.Unpack(row.Packed)
			}
		}
	}
	b, err := idx.store.Get(key(prefixRhex, hash[:]))
	if err != nil {
		return nil, ErrNotFound
	}
	if err := canon.Decode(b, &row); err != nil {
		return nil, err
	}
	if idx.rhexCache != nil {
		idx.rhexCache.Set(hash[:], b)
	}
	return rhex.Unpack(row.Packed)
}

// --- authorities table ---

// PutAuthority upserts one (scope, public_key) authority row.
func (idx *Index) PutAuthority(scopeName string, a scope.Authority) error {
	return idx.store.Put(key(prefixAuthority, []byte(scopeName), a.PublicKey[:]), encodeRow(a))
}

// ListAuthorities returns every authority row for scopeName.
func (idx *Index) ListAuthorities(scopeName string) ([]scope.Authority, error) {
	prefix := key(prefixAuthority, []byte(scopeName), nil)
	it := idx.store.NewIterator(prefix)
	defer it.Release()

	var out []scope.Authority
	for it.Next() {
		var a scope.Authority
		if err := canon.Decode(it.Value(), &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// --- keys table ---

// PutKey upserts a (scope, public_key) role grant.
func (idx *Index) PutKey(scopeName string, publicKey [32]byte, row KeyRow) error {
	return idx.store.Put(key(prefixKey, []byte(scopeName), publicKey[:]), encodeRow(row))
}

// GetKey reads a (scope, public_key) role grant.
func (idx *Index) GetKey(scopeName string, publicKey [32]byte) (KeyRow, error) {
	var row KeyRow
	b, err := idx.store.Get(key(prefixKey, []byte(scopeName), publicKey[:]))
	if err != nil {
		return row, ErrNotFound
	}
	if err := canon.Decode(b, &row); err != nil {
		return row, err
	}
	return row, nil
}

// RevokeKey removes a (scope, public_key) role grant.
func (idx *Index) RevokeKey(scopeName string, publicKey [32]byte) error {
	return idx.store.Delete(key(prefixKey, []byte(scopeName), publicKey[:]))
}

// --- policies table ---

// PutPolicy upserts the policy keyed by its authoring record's current_hash.
func (idx *Index) PutPolicy(hash rhexcrypto.Hash, p policy.Policy) error {
	return idx.store.Put(key(prefixPolicy, hash[:]), encodeRow(p))
}

// SetActivePolicy records hash as the scope's current policy pointer,
// leaving the rest of the scope's row untouched.
func (idx *Index) SetActivePolicy(scopeName string, hash rhexcrypto.Hash) error {
	row, err := idx.GetScope(scopeName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	row.PolicyHash = hash
	return idx.PutScope(scopeName, row)
}

// ActivePolicy resolves and returns the scope's current policy.
func (idx *Index) ActivePolicy(scopeName string) (policy.Policy, error) {
	row, err := idx.GetScope(scopeName)
	if err != nil {
		return policy.Policy{}, err
	}
	return idx.GetPolicy(row.PolicyHash)
}

// GetPolicy reads the policy keyed by hash.
func (idx *Index) GetPolicy(hash rhexcrypto.Hash) (policy.Policy, error) {
	var p policy.Policy
	b, err := idx.store.Get(key(prefixPolicy, hash[:]))
	if err != nil {
		return p, ErrNotFound
	}
	if err := canon.Decode(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// --- rules table ---

// PutRule upserts a (scope, record_type) rule row, independent of whichever
// Policy currently references it (rules are addressable for inspection and
// reuse across policy:set revisions).
func (idx *Index) PutRule(scopeName, recordType string, r policy.Rule) error {
	return idx.store.Put(key(prefixRule, []byte(scopeName), []byte(recordType)), encodeRow(r))
}

// GetRule reads a (scope, record_type) rule row.
func (idx *Index) GetRule(scopeName, recordType string) (policy.Rule, error) {
	var r policy.Rule
	b, err := idx.store.Get(key(prefixRule, []byte(scopeName), []byte(recordType)))
	if err != nil {
		return r, ErrNotFound
	}
	if err := canon.Decode(b, &r); err != nil {
		return r, err
	}
	return r, nil
}

// --- aliases table ---

// PutAlias idempotently binds (name, scope) -> hash, rejecting a collision
// with an existing different binding.
func (idx *Index) PutAlias(name, scopeName string, hash rhexcrypto.Hash) error {
	k := key(prefixAlias, []byte(name), []byte(scopeName))
	existing, err := idx.store.Get(k)
	if err == nil {
		var prior rhexcrypto.Hash
		if decErr := canon.Decode(existing, &prior); decErr == nil && prior != hash {
			return scope.ErrAliasExists
		}
		return nil
	}
	return idx.store.Put(k, encodeRow(hash))
}

// GetAlias resolves (name, scope) -> hash.
func (idx *Index) GetAlias(name, scopeName string) (rhexcrypto.Hash, error) {
	var h rhexcrypto.Hash
	b, err := idx.store.Get(key(prefixAlias, []byte(name), []byte(scopeName)))
	if err != nil {
		return h, ErrNotFound
	}
	if err := canon.Decode(b, &h); err != nil {
		return h, err
	}
	return h, nil
}

// Close releases the backing store.
func (idx *Index) Close() error {
	return idx.store.Close()
}
