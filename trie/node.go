// Package trie maintains the checkpoint trie: a Merkle Patricia Trie over
// (5-byte big-endian index, RLP-encoded address) pairs whose root hash is
// the indexer's state commitment at each committed block height.
package trie

// node is one in-memory trie node. Four shapes exist: branchNode and
// shortNode carry structure, valueNode carries a stored value, and
// hashNode stands in for a node that lives in the node database and has
// not been resolved into memory.
type node interface {
	// cache returns the node's memoized hash, and whether the node has
	// been mutated since that hash was computed.
	cache() (hashNode, bool)
}

// branchNode fans out on one nibble of the key. Children[0..15] are the
// per-nibble subtries; Children[16] holds a value terminating exactly at
// this node. Index keys are all the same length, so that slot stays nil
// in practice, but the shape is kept general for proof verification.
type branchNode struct {
	Children [17]node
	flags    nodeCache
}

// shortNode compresses a run of key nibbles. With a terminator on the key
// it is a leaf and Val is a valueNode; without one it is an extension and
// Val is the subtrie below the shared prefix.
type shortNode struct {
	Key   []byte // nibbles, possibly ending in the terminator
	Val   node
	flags nodeCache
}

// hashNode is the 32-byte reference to a persisted node.
type hashNode []byte

// valueNode is the raw stored value: here, an RLP-encoded address.
type valueNode []byte

// nodeCache memoizes a node's hash across Hash calls.
type nodeCache struct {
	hash  hashNode
	dirty bool
}

func (n *branchNode) cache() (hashNode, bool) { return n.flags.hash, n.flags.dirty }
func (n *shortNode) cache() (hashNode, bool)  { return n.flags.hash, n.flags.dirty }
func (n hashNode) cache() (hashNode, bool)    { return nil, true }
func (n valueNode) cache() (hashNode, bool)   { return nil, true }

func (n *branchNode) copy() *branchNode {
	cp := *n
	return &cp
}

func (n *shortNode) copy() *shortNode {
	cp := *n
	return &cp
}
