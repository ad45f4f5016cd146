package rawdb

import (
	"bytes"
	"testing"
)

func TestEncodeIndexWidthAndOrder(t *testing.T) {
	if got := len(EncodeIndex(0)); got != 5 {
		t.Fatalf("EncodeIndex width = %d, want 5", got)
	}
	// Big-endian keys must sort in numeric order; this is what makes
	// forward-table iteration walk indices in allocation order.
	prev := EncodeIndex(1 << 18)
	for _, idx := range []uint64{1<<18 + 1, 1 << 20, 1 << 28, 1<<40 - 1} {
		cur := EncodeIndex(idx)
		if bytes.Compare(prev, cur) >= 0 {
			t.Fatalf("EncodeIndex not monotone at %d", idx)
		}
		prev = cur
	}
}

func TestEncodeDecodeIndex(t *testing.T) {
	for _, idx := range []uint64{0, 1, 1 << 18, 1 << 28, 1<<40 - 1} {
		if got := DecodeIndex(EncodeIndex(idx)); got != idx {
			t.Fatalf("DecodeIndex(EncodeIndex(%d)) = %d", idx, got)
		}
	}
}

func TestKeyNamespacesDisjoint(t *testing.T) {
	fwd := ForwardKey(1 << 18)
	rev := ReverseKey(bytes.Repeat([]byte{0}, 20))
	trie := TrieNodeKey(bytes.Repeat([]byte{0}, 32))

	if fwd[0] == rev[0] || fwd[0] == trie[0] || rev[0] == trie[0] {
		t.Fatal("table prefixes collide")
	}
	for _, meta := range [][]byte{
		HeadRootKey(), NextIndexKey(), HeadBlockNumberKey(), HeadBlockHashKey(),
		PrevRootKey(), PrevNextIndexKey(), PrevBlockNumberKey(), PrevBlockHashKey(), HasPriorKey(),
	} {
		if bytes.HasPrefix(meta, ForwardPrefix) || bytes.HasPrefix(meta, ReversePrefix) || bytes.HasPrefix(meta, TrieNodePrefix) {
			t.Fatalf("metadata key %q collides with a table prefix", meta)
		}
	}
}

func TestForwardKeyEmbedsIndex(t *testing.T) {
	key := ForwardKey(262144)
	if !bytes.HasPrefix(key, ForwardPrefix) {
		t.Fatal("missing forward prefix")
	}
	if got := DecodeIndex(key[len(ForwardPrefix):]); got != 262144 {
		t.Fatalf("embedded index = %d", got)
	}
}
