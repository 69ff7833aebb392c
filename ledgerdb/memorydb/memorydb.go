// Package memorydb is an in-memory ledgerdb.KeyValueStore, used as a test
// double and as the backing store for short-lived mirror processes that
// never persist to disk.
package memorydb

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hodeauxledger/rhexledger/ledgerdb"
)

// ErrNotFound mirrors goleveldb's leveldb.ErrNotFound so callers can treat
// both backing stores identically.
var ErrNotFound = errors.New("memorydb: key not found")

// Database is a simple, mutex-guarded map-backed KeyValueStore.
type Database struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty Database.
func New() *Database {
	return &Database{data: make(map[string][]byte)}
}

func (db *Database) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (db *Database) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	db.data[string(key)] = cp
	return nil
}

func (db *Database) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *Database) Close() error { return nil }

// NewBatch returns a Batch that buffers writes until Write is called.
func (db *Database) NewBatch() ledgerdb.Batch {
	return &batch{db: db}
}

// NewIterator walks every key with the given prefix, in sorted order.
func (db *Database) NewIterator(prefix []byte) ledgerdb.Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []string
	for k := range db.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	return &iterator{db: db, keys: keys, pos: -1}
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db   *Database
	ops  []batchOp
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error {
	for _, op := range b.ops {
		if op.delete {
			if err := b.db.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := b.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

type iterator struct {
	db   *Database
	keys []string
	pos  int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Key() []byte {
	return []byte(it.keys[it.pos])
}

func (it *iterator) Value() []byte {
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	return it.db.data[it.keys[it.pos]]
}

func (it *iterator) Release() {}
