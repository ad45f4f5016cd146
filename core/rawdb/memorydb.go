// memorydb.go is the in-memory Database used by tests and by the commit
// engine's own test harness: the same interface the pebble store
// implements, minus durability. Batches buffer their operations and
// apply them under one lock acquisition, so a batch is atomic with
// respect to concurrent readers, the same contract the engine relies
// on from pebble.
package rawdb

import (
	"bytes"
	"sort"
	"sync"
)

// MemoryDB is a map-backed Database. Safe for concurrent use.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDB creates an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{data: make(map[string][]byte)}
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.data[string(key)]
	return ok, nil
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

func (db *MemoryDB) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemoryDB) Close() error { return nil }

// NewBatch returns a buffered batch that applies atomically on Write.
func (db *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: db}
}

// NewIterator returns an iterator over a snapshot of all keys sharing
// prefix, in ascending key order.
func (db *MemoryDB) NewIterator(prefix []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []string
	for k := range db.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	items := make([]keyval, len(keys))
	for i, k := range keys {
		items[i] = keyval{key: []byte(k), value: append([]byte(nil), db.data[k]...)}
	}
	return &memoryIterator{items: items, pos: -1}
}

// Len reports the number of stored entries.
func (db *MemoryDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.data)
}

type memoryOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	db   *MemoryDB
	ops  []memoryOp
	size int
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

func (b *memoryBatch) ValueSize() int { return b.size }

func (b *memoryBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, string(op.key))
			continue
		}
		b.db.data[string(op.key)] = op.value
	}
	return nil
}

func (b *memoryBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

type keyval struct {
	key, value []byte
}

type memoryIterator struct {
	items []keyval
	pos   int
}

func (it *memoryIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *memoryIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *memoryIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].value
}

func (it *memoryIterator) Release() {}
