package trie

import (
	"bytes"
	"testing"

	"github.com/monicindex/monicindex/crypto"
)

func TestEncodeLeafNode(t *testing.T) {
	n := &shortNode{
		Key: nibblesToCompact([]byte{1, 2, nibbleTerminator}),
		Val: valueNode("value"),
	}
	enc, err := encodeNode(n)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) == 0 || enc[0] < 0xc0 {
		t.Fatalf("leaf encoding should be an RLP list, got %x", enc)
	}
	dec, err := decodeNode(nil, enc)
	if err != nil {
		t.Fatalf("decode back: %v", err)
	}
	sn, ok := dec.(*shortNode)
	if !ok {
		t.Fatalf("decoded %T, want *shortNode", dec)
	}
	if string(sn.Val.(valueNode)) != "value" {
		t.Fatalf("value = %q", sn.Val)
	}
}

func TestEncodeBranchNodeShape(t *testing.T) {
	n := &branchNode{}
	n.Children[3] = valueNode("a")
	n.Children[16] = valueNode("end")
	enc, err := encodeNode(n)
	if err != nil {
		t.Fatal(err)
	}
	elems, err := splitNodeList(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(elems) != 17 {
		t.Fatalf("branch has %d elements, want 17", len(elems))
	}
	if string(elems[3]) != "a" || string(elems[16]) != "end" {
		t.Fatalf("element content wrong: %q %q", elems[3], elems[16])
	}
}

func TestSmallNodesInline(t *testing.T) {
	h := newHasher()
	n := &shortNode{Key: []byte{1, nibbleTerminator}, Val: valueNode("x"), flags: nodeCache{dirty: true}}
	ref, _ := h.hash(n, false)
	if _, isHash := ref.(hashNode); isHash {
		t.Fatal("sub-32-byte node should inline, not hash")
	}
}

func TestForceHashesRoot(t *testing.T) {
	h := newHasher()
	n := &shortNode{Key: []byte{1, nibbleTerminator}, Val: valueNode("x"), flags: nodeCache{dirty: true}}
	ref, _ := h.hash(n, true)
	hn, isHash := ref.(hashNode)
	if !isHash {
		t.Fatal("force should hash even a small node")
	}
	if len(hn) != 32 {
		t.Fatalf("hash length = %d", len(hn))
	}
}

func TestLargeNodeHashMatchesEncoding(t *testing.T) {
	h := newHasher()
	big := bytes.Repeat([]byte{0xab}, 64)
	n := &shortNode{Key: []byte{1, 2, 3, nibbleTerminator}, Val: valueNode(big), flags: nodeCache{dirty: true}}

	ref, cached := h.hash(n, false)
	hn, isHash := ref.(hashNode)
	if !isHash {
		t.Fatal("64-byte value must force a hashed node")
	}

	collapsed := n.copy()
	collapsed.Key = nibblesToCompact(n.Key)
	enc, err := encodeNode(collapsed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hn, crypto.Keccak256(enc)) {
		t.Fatal("hash does not match Keccak256 of the canonical encoding")
	}

	// The cached node memoizes the hash for the next pass.
	if gotHash, dirty := cached.cache(); dirty || !bytes.Equal(gotHash, hn) {
		t.Fatal("cached node should hold the clean memoized hash")
	}
}

func TestHashIsDeterministic(t *testing.T) {
	build := func() node {
		n := &branchNode{flags: nodeCache{dirty: true}}
		n.Children[1] = &shortNode{Key: []byte{2, nibbleTerminator}, Val: valueNode(bytes.Repeat([]byte{1}, 40)), flags: nodeCache{dirty: true}}
		n.Children[7] = &shortNode{Key: []byte{3, nibbleTerminator}, Val: valueNode(bytes.Repeat([]byte{2}, 40)), flags: nodeCache{dirty: true}}
		return n
	}
	h1, _ := newHasher().hash(build(), true)
	h2, _ := newHasher().hash(build(), true)
	if !bytes.Equal(h1.(hashNode), h2.(hashNode)) {
		t.Fatal("identical nodes hashed differently")
	}
}

func TestWrapListPayload(t *testing.T) {
	short := wrapListPayload([]byte{0x01, 0x02})
	if short[0] != 0xc2 || len(short) != 3 {
		t.Fatalf("short list header = %x", short)
	}

	long := wrapListPayload(bytes.Repeat([]byte{0}, 60))
	if long[0] != 0xf8 || long[1] != 60 {
		t.Fatalf("long list header = %x", long[:2])
	}
}

func TestPutUintBigEndian(t *testing.T) {
	cases := []struct {
		in   uint64
		want []byte
	}{
		{1, []byte{1}},
		{255, []byte{255}},
		{256, []byte{1, 0}},
		{1 << 16, []byte{1, 0, 0}},
		{1 << 24, []byte{1, 0, 0, 0}},
	}
	for _, tc := range cases {
		if got := putUintBigEndian(tc.in); !bytes.Equal(got, tc.want) {
			t.Fatalf("putUintBigEndian(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
