// database.go persists the trie: a dirty-node staging cache over a
// disk-backed reader, plus ResolvableTrie, which lazily pages committed
// subtries back in by hash. Node storage is append-only; orphaned nodes
// from superseded roots are never pruned, which keeps every historical
// root reachable for rollback and external verification.
package trie

import (
	"bytes"
	"errors"
	"sync"

	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/crypto"
)

// ErrNodeNotFound is returned when a referenced node is in neither the
// dirty cache nor the backing store.
var ErrNodeNotFound = errors.New("trie: node not found in database")

// NodeReader retrieves trie nodes by hash.
type NodeReader interface {
	// Node retrieves the RLP-encoded trie node with the given hash.
	Node(hash types.Hash) ([]byte, error)
}

// NodeWriter stores trie nodes by hash.
type NodeWriter interface {
	// Put stores a trie node keyed by its hash.
	Put(hash types.Hash, data []byte) error
}

// NodeDatabase holds dirty (not yet persisted) nodes in memory over a
// disk-backed reader for committed ones.
type NodeDatabase struct {
	mu    sync.RWMutex
	dirty map[types.Hash][]byte
	disk  NodeReader // nil for a purely in-memory database
	size  int        // dirty bytes
}

// NewNodeDatabase creates a node database over disk, which may be nil for
// in-memory use (tests, the integrity check's scratch trie).
func NewNodeDatabase(disk NodeReader) *NodeDatabase {
	return &NodeDatabase{
		dirty: make(map[types.Hash][]byte),
		disk:  disk,
	}
}

// Node returns the encoding of the node with the given hash, consulting
// the dirty cache before the backing store.
func (db *NodeDatabase) Node(hash types.Hash) ([]byte, error) {
	if hash == (types.Hash{}) {
		return nil, ErrNodeNotFound
	}

	db.mu.RLock()
	if data, ok := db.dirty[hash]; ok {
		db.mu.RUnlock()
		return data, nil
	}
	db.mu.RUnlock()

	if db.disk != nil {
		return db.disk.Node(hash)
	}
	return nil, ErrNodeNotFound
}

// InsertNode stages a node encoding for the next Commit.
func (db *NodeDatabase) InsertNode(hash types.Hash, data []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.dirty[hash]; !ok {
		db.size += len(data)
	}
	db.dirty[hash] = data
}

// DirtySize reports the byte size of staged nodes.
func (db *NodeDatabase) DirtySize() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.size
}

// DirtyCount reports how many nodes are staged.
func (db *NodeDatabase) DirtyCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.dirty)
}

// Commit hands every staged node to writer and clears the stage. The
// caller folds the writes into its own atomic batch; a failed batch
// write re-stages nothing, but the nodes are reproduced by re-committing
// the same trie contents.
func (db *NodeDatabase) Commit(writer NodeWriter) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for hash, data := range db.dirty {
		if err := writer.Put(hash, data); err != nil {
			return err
		}
	}
	db.dirty = make(map[types.Hash][]byte)
	db.size = 0
	return nil
}

// NodeReaderFunc adapts a plain function to NodeReader. The caller owns
// the key scheme; this package never sees storage keys, only node hashes.
type NodeReaderFunc func(hash types.Hash) ([]byte, error)

func (f NodeReaderFunc) Node(hash types.Hash) ([]byte, error) { return f(hash) }

// NodeWriterFunc adapts a plain function to NodeWriter.
type NodeWriterFunc func(hash types.Hash, data []byte) error

func (f NodeWriterFunc) Put(hash types.Hash, data []byte) error { return f(hash, data) }

// CommitTrie hashes t bottom-up, staging every node of 32 encoded bytes
// or more into db, and returns the root hash. The trie keeps its
// expanded in-memory form, so a later commit can re-derive the same
// nodes if this one's batch never lands.
func CommitTrie(t *Trie, db *NodeDatabase) (types.Hash, error) {
	if t.root == nil {
		return emptyRoot, nil
	}

	h := newHasher()
	root, cached := commitNode(h, t.root, db)
	t.root = cached

	switch n := root.(type) {
	case hashNode:
		return types.BytesToHash(n), nil
	default:
		enc, err := encodeNode(root)
		if err != nil {
			return types.Hash{}, err
		}
		hash := crypto.Keccak256Hash(enc)
		db.InsertNode(hash, enc)
		return hash, nil
	}
}

// commitNode returns (reference, cached) like hasher.hash, additionally
// staging every hash-referenced node into db on the way up.
func commitNode(h *hasher, n node, db *NodeDatabase) (node, node) {
	switch n := n.(type) {
	case nil:
		return nil, nil

	case valueNode:
		return n, n

	case hashNode:
		return n, n

	case *shortNode:
		collapsed := n.copy()
		collapsed.Key = nibblesToCompact(n.Key)

		cached := n.copy()
		if _, ok := n.Val.(valueNode); !ok {
			childH, childC := commitNode(h, n.Val, db)
			collapsed.Val = childH
			cached.Val = childC
		}

		enc, err := encodeNode(collapsed)
		if err != nil {
			return collapsed, cached
		}
		if len(enc) >= 32 {
			hash := crypto.Keccak256(enc)
			db.InsertNode(types.BytesToHash(hash), enc)
			hn := hashNode(hash)
			cached.flags.hash = hn
			cached.flags.dirty = false
			return hn, cached
		}
		return collapsed, cached

	case *branchNode:
		collapsed := n.copy()
		cached := n.copy()

		for i := 0; i < 16; i++ {
			if n.Children[i] != nil {
				childH, childC := commitNode(h, n.Children[i], db)
				collapsed.Children[i] = childH
				cached.Children[i] = childC
			}
		}

		enc, err := encodeNode(collapsed)
		if err != nil {
			return collapsed, cached
		}
		if len(enc) >= 32 {
			hash := crypto.Keccak256(enc)
			db.InsertNode(types.BytesToHash(hash), enc)
			hn := hashNode(hash)
			cached.flags.hash = hn
			cached.flags.dirty = false
			return hn, cached
		}
		return collapsed, cached
	}

	return n, n
}

// ResolvableTrie is a Trie that pages persisted subtries back in from a
// NodeDatabase as lookups, inserts and proofs touch them. The commit
// engine holds one rooted at the last committed trie_root.
type ResolvableTrie struct {
	Trie
	db *NodeDatabase
}

// NewResolvableTrie opens the trie committed under root. The zero hash
// and the empty-trie root both open an empty trie.
func NewResolvableTrie(root types.Hash, db *NodeDatabase) (*ResolvableTrie, error) {
	t := &ResolvableTrie{
		db: db,
	}
	if root == emptyRoot || root == (types.Hash{}) {
		return t, nil
	}

	rootNode, err := t.resolveHash(hashNode(root[:]))
	if err != nil {
		return nil, err
	}
	t.root = rootNode
	return t, nil
}

// Get returns the value under key, resolving persisted nodes as needed.
func (t *ResolvableTrie) Get(key []byte) ([]byte, error) {
	value, found := t.resolveGet(t.root, keyToNibbles(key), 0)
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (t *ResolvableTrie) resolveGet(n node, key []byte, pos int) ([]byte, bool) {
	switch n := n.(type) {
	case nil:
		return nil, false
	case valueNode:
		return []byte(n), true
	case *shortNode:
		if len(key)-pos < len(n.Key) || !bytes.Equal(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, false
		}
		return t.resolveGet(n.Val, key, pos+len(n.Key))
	case *branchNode:
		if pos >= len(key) {
			return t.resolveGet(n.Children[16], key, pos)
		}
		return t.resolveGet(n.Children[key[pos]], key, pos+1)
	case hashNode:
		resolved, err := t.resolveHash(n)
		if err != nil {
			return nil, false
		}
		return t.resolveGet(resolved, key, pos)
	default:
		return nil, false
	}
}

// resolveHash pages in the node persisted under hash.
func (t *ResolvableTrie) resolveHash(hash hashNode) (node, error) {
	h := types.BytesToHash(hash)
	data, err := t.db.Node(h)
	if err != nil {
		return nil, err
	}
	return decodeNode(hash, data)
}

// Put stores value under key, resolving persisted nodes along the path.
func (t *ResolvableTrie) Put(key, value []byte) error {
	if len(value) == 0 {
		return t.Trie.Delete(key)
	}
	k := keyToNibbles(key)
	n, err := t.resolveInsert(t.root, nil, k, valueNode(value))
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *ResolvableTrie) resolveInsert(n node, prefix, key []byte, value node) (node, error) {
	if hn, ok := n.(hashNode); ok {
		resolved, err := t.resolveHash(hn)
		if err != nil {
			return nil, err
		}
		return t.resolveInsert(resolved, prefix, key, value)
	}
	return t.Trie.insert(n, prefix, key, value)
}

// Hash computes the current root commitment.
func (t *ResolvableTrie) Hash() types.Hash {
	return t.Trie.Hash()
}

// Commit stages the trie's nodes into the node database and returns the
// root hash.
func (t *ResolvableTrie) Commit() (types.Hash, error) {
	return CommitTrie(&t.Trie, t.db)
}

// Prove generates a Merkle proof for key, resolving hashNode references
// from the node database as it descends. This is what lets the query
// adapter's Proof method work on a trie most of whose branches were never
// touched by Get/Put in this process's lifetime.
func (t *ResolvableTrie) Prove(key []byte) ([][]byte, error) {
	if t.root == nil {
		return nil, ErrNotFound
	}
	t.Hash()

	hexKey := keyToNibbles(key)
	var proof [][]byte
	found, err := t.proveResolving(t.root, hexKey, 0, &proof)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return proof, nil
}

func (t *ResolvableTrie) proveResolving(n node, key []byte, pos int, proof *[][]byte) (bool, error) {
	switch n := n.(type) {
	case nil:
		return false, nil

	case hashNode:
		resolved, err := t.resolveHash(n)
		if err != nil {
			return false, err
		}
		return t.proveResolving(resolved, key, pos, proof)

	case *shortNode:
		collapsed := n.copy()
		collapsed.Key = nibblesToCompact(n.Key)
		collapsed.Val = collapseForProof(n.Val)
		enc, err := encodeShortNode(collapsed)
		if err != nil {
			return false, err
		}
		*proof = append(*proof, enc)

		if len(key)-pos < len(n.Key) || !bytes.Equal(n.Key, key[pos:pos+len(n.Key)]) {
			return false, nil
		}
		return t.proveResolving(n.Val, key, pos+len(n.Key), proof)

	case *branchNode:
		collapsed := collapseBranchForProof(n)
		enc, err := encodeBranchNode(collapsed)
		if err != nil {
			return false, err
		}
		*proof = append(*proof, enc)

		if pos >= len(key) {
			return n.Children[16] != nil, nil
		}
		return t.proveResolving(n.Children[key[pos]], key, pos+1, proof)

	case valueNode:
		return true, nil

	default:
		return false, nil
	}
}
