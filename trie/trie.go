// trie.go is the in-memory trie: insert, lookup and delete over nibble
// paths, with structural invariants (no dangling extensions, branches
// with at least two occupants) restored on every mutation. It resolves
// nothing from disk; ResolvableTrie layers that on top.
package trie

import (
	"bytes"
	"errors"

	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/crypto"
	"github.com/monicindex/monicindex/rlp"
)

// ErrNotFound is returned when a key has no value in the trie.
var ErrNotFound = errors.New("trie: key not found")

// emptyRoot commits the empty trie: Keccak256(RLP("")).
var emptyRoot = crypto.Keccak256Hash(func() []byte {
	b, _ := rlp.EncodeToBytes([]byte{})
	return b
}())

// Trie is the in-memory Merkle Patricia Trie.
type Trie struct {
	root node
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{}
}

// Get returns the value stored under key, or ErrNotFound.
func (t *Trie) Get(key []byte) ([]byte, error) {
	value, found := t.get(t.root, keyToNibbles(key), 0)
	if !found {
		return nil, ErrNotFound
	}
	return value, nil
}

func (t *Trie) get(n node, key []byte, pos int) ([]byte, bool) {
	switch n := n.(type) {
	case nil:
		return nil, false
	case valueNode:
		return []byte(n), true
	case *shortNode:
		if len(key)-pos < len(n.Key) || !bytes.Equal(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, false
		}
		return t.get(n.Val, key, pos+len(n.Key))
	case *branchNode:
		if pos >= len(key) {
			return t.get(n.Children[16], key, pos)
		}
		return t.get(n.Children[key[pos]], key, pos+1)
	case hashNode:
		// Unresolved reference; the plain Trie never loads from disk.
		return nil, false
	default:
		return nil, false
	}
}

// Put stores value under key. An empty value deletes the key.
func (t *Trie) Put(key, value []byte) error {
	if len(value) == 0 {
		return t.Delete(key)
	}
	k := keyToNibbles(key)
	n, err := t.insert(t.root, nil, k, valueNode(value))
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *Trie) insert(n node, prefix, key []byte, value node) (node, error) {
	if len(key) == 0 {
		if v, ok := n.(valueNode); ok {
			if bytes.Equal(v, value.(valueNode)) {
				return v, nil
			}
		}
		return value, nil
	}

	switch n := n.(type) {
	case nil:
		return &shortNode{Key: key, Val: value, flags: nodeCache{dirty: true}}, nil

	case *shortNode:
		matchLen := commonPrefixLen(key, n.Key)
		if matchLen == len(n.Key) {
			// Whole short key shared: descend and rebuild this node.
			nn, err := t.insert(n.Val, append(prefix, key[:matchLen]...), key[matchLen:], value)
			if err != nil {
				return nil, err
			}
			return &shortNode{Key: n.Key, Val: nn, flags: nodeCache{dirty: true}}, nil
		}
		// Keys diverge inside the short key: split into a branch carrying
		// both remainders, keeping the shared prefix as an extension.
		branch := &branchNode{flags: nodeCache{dirty: true}}
		existingChild, err := t.insert(nil, append(prefix, n.Key[:matchLen+1]...), n.Key[matchLen+1:], n.Val)
		if err != nil {
			return nil, err
		}
		branch.Children[n.Key[matchLen]] = existingChild
		newChild, err := t.insert(nil, append(prefix, key[:matchLen+1]...), key[matchLen+1:], value)
		if err != nil {
			return nil, err
		}
		branch.Children[key[matchLen]] = newChild
		if matchLen > 0 {
			return &shortNode{Key: key[:matchLen], Val: branch, flags: nodeCache{dirty: true}}, nil
		}
		return branch, nil

	case *branchNode:
		nn := n.copy()
		nn.flags = nodeCache{dirty: true}
		child, err := t.insert(n.Children[key[0]], append(prefix, key[0]), key[1:], value)
		if err != nil {
			return nil, err
		}
		nn.Children[key[0]] = child
		return nn, nil

	case hashNode:
		return nil, errors.New("trie: cannot insert into unresolved hash node")

	default:
		return nil, errors.New("trie: unknown node type")
	}
}

// Delete removes key from the trie; deleting an absent key is a no-op.
func (t *Trie) Delete(key []byte) error {
	k := keyToNibbles(key)
	n, err := t.delete(t.root, nil, k)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *Trie) delete(n node, prefix, key []byte) (node, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil

	case *shortNode:
		matchLen := commonPrefixLen(key, n.Key)
		if matchLen < len(n.Key) {
			// Key not present below this node.
			return n, nil
		}
		if matchLen == len(key) {
			return nil, nil
		}
		child, err := t.delete(n.Val, append(prefix, key[:len(n.Key)]...), key[len(n.Key):])
		if err != nil {
			return nil, err
		}
		switch child := child.(type) {
		case nil:
			return nil, nil
		case *shortNode:
			// Fold the child's key into ours so no short node ever points
			// directly at another short node.
			return &shortNode{Key: concat(n.Key, child.Key), Val: child.Val, flags: nodeCache{dirty: true}}, nil
		default:
			return &shortNode{Key: n.Key, Val: child, flags: nodeCache{dirty: true}}, nil
		}

	case *branchNode:
		nn := n.copy()
		nn.flags = nodeCache{dirty: true}
		child, err := t.delete(n.Children[key[0]], append(prefix, key[0]), key[1:])
		if err != nil {
			return nil, err
		}
		nn.Children[key[0]] = child
		// A branch with a single occupant collapses into a short node.
		remaining := -1
		for i := 0; i < 17; i++ {
			if nn.Children[i] != nil {
				if remaining >= 0 {
					return nn, nil
				}
				remaining = i
			}
		}
		if remaining < 0 {
			return nil, nil
		}
		if remaining == 16 {
			return &shortNode{
				Key:   []byte{nibbleTerminator},
				Val:   nn.Children[16],
				flags: nodeCache{dirty: true},
			}, nil
		}
		child = nn.Children[remaining]
		if cnode, ok := child.(*shortNode); ok {
			return &shortNode{Key: concat([]byte{byte(remaining)}, cnode.Key), Val: cnode.Val, flags: nodeCache{dirty: true}}, nil
		}
		return &shortNode{
			Key:   []byte{byte(remaining)},
			Val:   child,
			flags: nodeCache{dirty: true},
		}, nil

	case valueNode:
		if len(key) == 0 {
			return nil, nil
		}
		return n, nil

	case hashNode:
		return nil, errors.New("trie: cannot delete from unresolved hash node")

	default:
		return nil, errors.New("trie: unknown node type")
	}
}

// Hash computes the Keccak-256 root commitment of the trie's current
// contents.
func (t *Trie) Hash() types.Hash {
	if t.root == nil {
		return emptyRoot
	}
	h := newHasher()
	hashed, cached := h.hash(t.root, true)
	t.root = cached
	switch n := hashed.(type) {
	case hashNode:
		return types.BytesToHash(n)
	default:
		// The hasher forces a hash for the root, so this branch only
		// guards against a future change to that contract.
		enc, _ := encodeNode(hashed)
		return crypto.Keccak256Hash(enc)
	}
}

// Len counts the stored pairs by walking the whole trie.
func (t *Trie) Len() int {
	return countValues(t.root)
}

// Empty reports whether the trie has no entries.
func (t *Trie) Empty() bool {
	return t.root == nil
}


func countValues(n node) int {
	switch n := n.(type) {
	case nil:
		return 0
	case valueNode:
		return 1
	case *shortNode:
		return countValues(n.Val)
	case *branchNode:
		count := 0
		for i := 0; i < 17; i++ {
			count += countValues(n.Children[i])
		}
		return count
	case hashNode:
		return 0
	default:
		return 0
	}
}

func concat(a, b []byte) []byte {
	r := make([]byte, len(a)+len(b))
	copy(r, a)
	copy(r[len(a):], b)
	return r
}
