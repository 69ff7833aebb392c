package ledgerdb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a goleveldb-backed KeyValueStore, the persistent backing
// store for a running usherd's cache.db directory.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if necessary) a goleveldb database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

func (s *LevelStore) Get(key []byte) ([]byte, error) {
	return s.db.Get(key, nil)
}

func (s *LevelStore) Put(key []byte, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *LevelStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

func (s *LevelStore) NewBatch() Batch {
	return &levelBatch{db: s.db, b: new(leveldb.Batch)}
}

func (s *LevelStore) NewIterator(prefix []byte) Iterator {
	return &levelIterator{it: s.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

type levelBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *levelBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelBatch) ValueSize() int { return b.size }

func (b *levelBatch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *levelBatch) Reset() {
	b.b.Reset()
	b.size = 0
}

type levelIterator struct {
	it iterator
}

// iterator is the subset of goleveldb's iterator.Iterator this package
// uses; declared locally so levelIterator needs no direct import-cycle
// workaround.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

func (li *levelIterator) Next() bool    { return li.it.Next() }
func (li *levelIterator) Key() []byte   { return append([]byte(nil), li.it.Key()...) }
func (li *levelIterator) Value() []byte { return append([]byte(nil), li.it.Value()...) }
func (li *levelIterator) Release()      { li.it.Release() }
