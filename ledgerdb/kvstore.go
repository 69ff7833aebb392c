// Package ledgerdb implements the cache index: a derived, rebuildable
// key/value mirror of the on-disk R⬢ chains, used for head tracking,
// authority/policy/rule/alias lookup, and fast hash-addressed record reads.
package ledgerdb

// KeyValueReader wraps the two read methods of a backing store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the two write methods of a backing store.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Batch accumulates writes for atomic application, mirroring the backing
// store's own batch primitive.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
}

// Batcher constructs a Batch bound to its parent store.
type Batcher interface {
	NewBatch() Batch
}

// Iterator walks a key range in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// Iteratee constructs an Iterator over every key with the given prefix.
type Iteratee interface {
	NewIterator(prefix []byte) Iterator
}

// KeyValueStore is the full backing-store contract: every concrete store
// (goleveldb, in-memory) and every consumer (the Index) programs against
// this interface, not a concrete type, so tests can swap in memorydb.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	Iteratee
	Close() error
}
