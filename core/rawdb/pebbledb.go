// pebbledb.go backs the Database interface with a cockroachdb/pebble
// instance: an embedded, crash-safe LSM store. This replaces a hand-rolled
// flat-file WAL with a real engine, the same role LevelDB/Pebble play in
// go-ethereum's freezer-adjacent chaindata store.
package rawdb

import (
	"github.com/cockroachdb/pebble"
)

// PebbleDB is a Database backed by a pebble instance on disk.
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens (or creates) a pebble database at dir.
func NewPebbleDB(dir string) (*PebbleDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(val))
	copy(cp, val)
	closer.Close()
	return cp, nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// NewBatch returns a pebble write batch wrapped as our Batch interface.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

// NewIterator returns an iterator over all keys sharing prefix.
func (p *PebbleDB) NewIterator(prefix []byte) Iterator {
	upper := upperBound(prefix)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return &memoryIterator{pos: -1}
	}
	return &pebbleIterator{it: it, first: true}
}

// upperBound computes the exclusive upper bound for a prefix scan by
// incrementing the last non-0xff byte, or nil (unbounded) for an all-0xff
// prefix.
func upperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(key, value []byte) error {
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int {
	return b.batch.Len()
}

func (b *pebbleBatch) Write() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.batch.Reset()
}

type pebbleIterator struct {
	it    *pebble.Iterator
	first bool
}

func (it *pebbleIterator) Next() bool {
	if it.first {
		it.first = false
		return it.it.First()
	}
	return it.it.Next()
}

func (it *pebbleIterator) Key() []byte {
	k := it.it.Key()
	cp := make([]byte, len(k))
	copy(cp, k)
	return cp
}

func (it *pebbleIterator) Value() []byte {
	v := it.it.Value()
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp
}

func (it *pebbleIterator) Release() {
	it.it.Close()
}

var _ Database = (*PebbleDB)(nil)
