// head.go implements the singleton head-metadata record: the tuple
// (latest_block_number, latest_block_hash, trie_root, next_index) plus
// the one retained prior root/hash/next_index triple a single-block
// rollback needs.
package commit

import (
	"encoding/binary"

	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
)

// Head is the indexer's committed state as of the last successful commit.
type Head struct {
	Number   uint64
	Hash     types.Hash
	Root     types.Hash
	NextIdx  uint64
	PrevRoot types.Hash
	PrevNum  uint64
	PrevHash types.Hash
	PrevNext uint64

	// HasPrior reports whether PrevRoot/PrevNum/PrevHash/PrevNext describe
	// a real predecessor state eligible for a single-block rollback.
	HasPrior bool

	// PrevNone reports that the predecessor state is "nothing committed":
	// this head pinned the first ever block, and rolling it back clears
	// the head record instead of restoring a prior one.
	PrevNone bool
}

// loadHead reads the persisted head record, or reports ok=false if no
// metadata exists yet (fresh database).
func loadHead(db rawdb.Database) (h Head, ok bool, err error) {
	root, err := db.Get(rawdb.HeadRootKey())
	if err == rawdb.ErrNotFound {
		return Head{}, false, nil
	}
	if err != nil {
		return Head{}, false, err
	}
	h.Root = types.BytesToHash(root)

	numRaw, err := db.Get(rawdb.HeadBlockNumberKey())
	if err != nil {
		return Head{}, false, err
	}
	h.Number = binary.BigEndian.Uint64(numRaw)

	hashRaw, err := db.Get(rawdb.HeadBlockHashKey())
	if err != nil {
		return Head{}, false, err
	}
	h.Hash = types.BytesToHash(hashRaw)

	nextRaw, err := db.Get(rawdb.NextIndexKey())
	if err != nil {
		return Head{}, false, err
	}
	h.NextIdx = binary.BigEndian.Uint64(nextRaw)

	if raw, err := db.Get(rawdb.PrevRootKey()); err == nil {
		h.PrevRoot = types.BytesToHash(raw)
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}
	if raw, err := db.Get(rawdb.PrevBlockNumberKey()); err == nil {
		h.PrevNum = binary.BigEndian.Uint64(raw)
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}
	if raw, err := db.Get(rawdb.PrevBlockHashKey()); err == nil {
		h.PrevHash = types.BytesToHash(raw)
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}
	if raw, err := db.Get(rawdb.PrevNextIndexKey()); err == nil {
		h.PrevNext = binary.BigEndian.Uint64(raw)
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}
	if raw, err := db.Get(rawdb.HasPriorKey()); err == nil {
		h.HasPrior = len(raw) == 1 && raw[0] == 1
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}
	if raw, err := db.Get(rawdb.PrevNoneKey()); err == nil {
		h.PrevNone = len(raw) == 1 && raw[0] == 1
	} else if err != rawdb.ErrNotFound {
		return Head{}, false, err
	}

	return h, true, nil
}

// writeHead stages h into batch, atomically with everything else the
// commit writes.
func writeHead(batch rawdb.Batch, h Head) error {
	if err := batch.Put(rawdb.HeadRootKey(), h.Root.Bytes()); err != nil {
		return err
	}
	if err := batch.Put(rawdb.HeadBlockNumberKey(), encodeUint64(h.Number)); err != nil {
		return err
	}
	if err := batch.Put(rawdb.HeadBlockHashKey(), h.Hash.Bytes()); err != nil {
		return err
	}
	if err := batch.Put(rawdb.NextIndexKey(), encodeUint64(h.NextIdx)); err != nil {
		return err
	}
	if err := batch.Put(rawdb.PrevRootKey(), h.PrevRoot.Bytes()); err != nil {
		return err
	}
	if err := batch.Put(rawdb.PrevBlockNumberKey(), encodeUint64(h.PrevNum)); err != nil {
		return err
	}
	if err := batch.Put(rawdb.PrevBlockHashKey(), h.PrevHash.Bytes()); err != nil {
		return err
	}
	if err := batch.Put(rawdb.PrevNextIndexKey(), encodeUint64(h.PrevNext)); err != nil {
		return err
	}
	hasPrior := byte(0)
	if h.HasPrior {
		hasPrior = 1
	}
	if err := batch.Put(rawdb.HasPriorKey(), []byte{hasPrior}); err != nil {
		return err
	}
	prevNone := byte(0)
	if h.PrevNone {
		prevNone = 1
	}
	return batch.Put(rawdb.PrevNoneKey(), []byte{prevNone})
}

// clearHead stages the deletion of the whole head record, used when a
// rollback rewinds past the first committed block.
func clearHead(batch rawdb.Batch) error {
	for _, key := range rawdb.HeadMetadataKeys() {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
