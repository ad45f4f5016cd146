package rawdb

import "encoding/binary"

// Key prefixes for the index database schema. Each logical table gets a
// single-byte prefix so the forward, reverse, trie node and metadata
// namespaces can share one physical store without key collisions, the
// same approach go-ethereum uses for headers/bodies/receipts.
var (
	// ForwardPrefix maps an index (5-byte big-endian) to its address.
	ForwardPrefix = []byte("f")

	// ReversePrefix maps an address (20 bytes) to its index (5-byte BE).
	ReversePrefix = []byte("r")

	// TrieNodePrefix maps a node hash to its RLP-encoded trie node.
	TrieNodePrefix = []byte("t")

	// Metadata keys: current trie root, next index to assign, head block.
	headRootKey   = []byte("m-root")
	nextIndexKey  = []byte("m-next")
	headBlockKey  = []byte("m-head-num")
	headHashKey   = []byte("m-head-hash")

	// Metadata keys pinning the state of the block/batch immediately
	// before the current head, so a single-block rollback can restore
	// next_index and the head hash atomically alongside the retained
	// prior trie root.
	prevRootKey      = []byte("m-prev-root")
	prevNextIndexKey = []byte("m-prev-next")
	prevBlockKey     = []byte("m-prev-head-num")
	prevHashKey      = []byte("m-prev-head-hash")

	// hasPriorKey flags whether the prev-* keys above describe a real
	// predecessor state. It is false only when the head has never been
	// committed, or immediately after a rollback (depth > 1 is not
	// supported): in both cases a further rollback has nothing valid to
	// revert to.
	hasPriorKey = []byte("m-has-prior")

	// prevNoneKey flags that the retained prior state is "nothing
	// committed yet": rolling back the first ever block must clear the
	// head record entirely rather than restore a zero-valued one.
	prevNoneKey = []byte("m-prev-none")
)

// indexWidth is the number of bytes used to store an index as a key: wide
// enough for the 4-word immutable range's ceiling (2^40-1 fits in 5 bytes).
const indexWidth = 5

// EncodeIndex encodes an index as a fixed-width 5-byte big-endian key, so
// forward-table iteration order matches numeric index order.
func EncodeIndex(index uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return buf[8-indexWidth:]
}

// DecodeIndex reverses EncodeIndex.
func DecodeIndex(key []byte) uint64 {
	var buf [8]byte
	copy(buf[8-indexWidth:], key)
	return binary.BigEndian.Uint64(buf[:])
}

// ForwardKey builds the forward-table key for an index.
func ForwardKey(index uint64) []byte {
	return append(append([]byte{}, ForwardPrefix...), EncodeIndex(index)...)
}

// ReverseKey builds the reverse-table key for an address.
func ReverseKey(addr []byte) []byte {
	return append(append([]byte{}, ReversePrefix...), addr...)
}

// TrieNodeKey builds the trie-node-table key for a node hash.
func TrieNodeKey(hash []byte) []byte {
	return append(append([]byte{}, TrieNodePrefix...), hash...)
}

// HeadRootKey returns the metadata key for the last-committed trie root.
func HeadRootKey() []byte { return headRootKey }

// NextIndexKey returns the metadata key for the next index to assign.
func NextIndexKey() []byte { return nextIndexKey }

// HeadBlockNumberKey returns the metadata key for the last-committed block number.
func HeadBlockNumberKey() []byte { return headBlockKey }

// HeadBlockHashKey returns the metadata key for the last-committed block hash.
func HeadBlockHashKey() []byte { return headHashKey }

// PrevRootKey returns the metadata key for the trie root pinned before the
// most recently committed block/batch.
func PrevRootKey() []byte { return prevRootKey }

// PrevNextIndexKey returns the metadata key for next_index as it stood
// before the most recently committed block/batch.
func PrevNextIndexKey() []byte { return prevNextIndexKey }

// PrevBlockNumberKey returns the metadata key for the block number before
// the most recently committed block/batch.
func PrevBlockNumberKey() []byte { return prevBlockKey }

// PrevBlockHashKey returns the metadata key for the block hash before the
// most recently committed block/batch.
func PrevBlockHashKey() []byte { return prevHashKey }

// HasPriorKey returns the metadata key flagging whether the prev-* keys
// describe a real, rollback-eligible predecessor state.
func HasPriorKey() []byte { return hasPriorKey }

// PrevNoneKey returns the metadata key flagging that the retained prior
// state predates the first commit.
func PrevNoneKey() []byte { return prevNoneKey }

// HeadMetadataKeys lists every singleton head-metadata key, for callers
// that clear the record as a unit.
func HeadMetadataKeys() [][]byte {
	return [][]byte{
		headRootKey, nextIndexKey, headBlockKey, headHashKey,
		prevRootKey, prevNextIndexKey, prevBlockKey, prevHashKey,
		hasPriorKey, prevNoneKey,
	}
}
