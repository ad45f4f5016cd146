// Package addrtable implements the dual-keyed index<->address bijection:
// a persistent forward/reverse pair backed by rawdb, with an
// in-memory staging overlay for the block currently being committed.
// Inserts are only meaningful while a batch is open; reads consult the
// overlay first, then fall through to the persistent store.
package addrtable

import (
	"encoding/binary"
	"errors"

	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
)

// ImmutableFloor is the first index the ingestor ever allocates (2^18);
// everything below is reserved for an external registrar.
const ImmutableFloor = 1 << 18

// Table is the address table with its staging overlay. It is not safe for
// concurrent writers; the commit engine's single-writer discipline is
// the only caller that mutates it.
type Table struct {
	db rawdb.Database

	overlayForward map[uint64]types.Address
	overlayReverse map[types.Address]uint64

	nextIndex     uint64
	baseNextIndex uint64
}

// New loads a Table from db, resuming nextIndex from persisted metadata or
// initializing it to ImmutableFloor if no metadata record exists yet
// (fresh database).
func New(db rawdb.Database) (*Table, error) {
	next := uint64(ImmutableFloor)
	raw, err := db.Get(rawdb.NextIndexKey())
	switch {
	case err == nil:
		next = binary.BigEndian.Uint64(raw)
	case errors.Is(err, rawdb.ErrNotFound):
		// fresh database, keep the default
	default:
		return nil, err
	}

	return &Table{
		db:             db,
		nextIndex:      next,
		baseNextIndex:  next,
		overlayForward: make(map[uint64]types.Address),
		overlayReverse: make(map[types.Address]uint64),
	}, nil
}

// NextIndex returns the next index that will be assigned, including any
// staged-but-not-yet-persisted inserts.
func (t *Table) NextIndex() uint64 { return t.nextIndex }

// BeginBatch opens a new staging window. Any overlay left over from a
// batch that was neither committed nor discarded is dropped.
func (t *Table) BeginBatch() {
	t.baseNextIndex = t.nextIndex
	t.overlayForward = make(map[uint64]types.Address)
	t.overlayReverse = make(map[types.Address]uint64)
}

// DiscardBatch throws away the current staging overlay and rewinds
// nextIndex to its value when BeginBatch was called.
func (t *Table) DiscardBatch() {
	t.nextIndex = t.baseNextIndex
	t.overlayForward = make(map[uint64]types.Address)
	t.overlayReverse = make(map[types.Address]uint64)
}

// FinishBatch closes out a successfully persisted batch: the overlay's
// entries are now assumed durable, so staging starts clean from here.
func (t *Table) FinishBatch() {
	t.baseNextIndex = t.nextIndex
	t.overlayForward = make(map[uint64]types.Address)
	t.overlayReverse = make(map[types.Address]uint64)
}

// LookupByIndex resolves index to its address, consulting the staging
// overlay before the persistent store.
func (t *Table) LookupByIndex(index uint64) (types.Address, bool, error) {
	if addr, ok := t.overlayForward[index]; ok {
		return addr, true, nil
	}
	return t.PersistedAddress(index)
}

// PersistedAddress reads forward(index) directly from the persistent
// store, bypassing the staging overlay. Used during reorg rollback, where
// the range being rolled back was committed in a prior batch.
func (t *Table) PersistedAddress(index uint64) (types.Address, bool, error) {
	raw, err := t.db.Get(rawdb.ForwardKey(index))
	if errors.Is(err, rawdb.ErrNotFound) {
		return types.Address{}, false, nil
	}
	if err != nil {
		return types.Address{}, false, err
	}
	return types.BytesToAddress(raw), true, nil
}

// LookupByAddress resolves an address to its index, consulting the
// staging overlay before the persistent store.
func (t *Table) LookupByAddress(addr types.Address) (uint64, bool, error) {
	if index, ok := t.overlayReverse[addr]; ok {
		return index, true, nil
	}
	raw, err := t.db.Get(rawdb.ReverseKey(addr.Bytes()))
	if errors.Is(err, rawdb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rawdb.DecodeIndex(raw), true, nil
}

// Insert returns addr's existing index if already witnessed (overlay or
// persisted), otherwise allocates nextIndex, stages the new forward and
// reverse entries, and advances nextIndex. The bool return reports
// whether a new index was allocated: an address is bound to the index
// of its first witness, permanently.
func (t *Table) Insert(addr types.Address) (uint64, bool, error) {
	if index, ok, err := t.LookupByAddress(addr); err != nil {
		return 0, false, err
	} else if ok {
		return index, false, nil
	}

	index := t.nextIndex
	t.overlayForward[index] = addr
	t.overlayReverse[addr] = index
	t.nextIndex++
	return index, true, nil
}

// StagedForward returns the forward entries accumulated in the current
// staging overlay, for the commit engine to fold into its write batch.
func (t *Table) StagedForward() map[uint64]types.Address {
	return t.overlayForward
}

// StagedReverse returns the reverse entries accumulated in the current
// staging overlay, for the commit engine to fold into its write batch.
func (t *Table) StagedReverse() map[types.Address]uint64 {
	return t.overlayReverse
}

// BaseNextIndex returns nextIndex as it stood when the current batch was
// opened, i.e. the first index allocated by this batch (or the value
// nextIndex will revert to on discard). The commit engine persists this
// alongside the new head so a subsequent single-block rollback knows
// where the rolled-back range begins.
func (t *Table) BaseNextIndex() uint64 { return t.baseNextIndex }

// SetNextIndex forcibly resets nextIndex and its batch baseline. Used by
// reorg rollback once the persisted range has been deleted.
func (t *Table) SetNextIndex(index uint64) {
	t.nextIndex = index
	t.baseNextIndex = index
}
