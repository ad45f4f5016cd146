// encoding.go converts between the three key representations the trie
// moves through:
//
//	key bytes: the 5-byte big-endian index, as stored by the address table
//	nibbles:   one byte per hex digit, with an optional trailing terminator
//	compact:   hex-prefix encoding, packing flag bits and nibbles for RLP
//
// Nibbles are what the insert/lookup walk operates on; compact is what
// shortNode keys look like inside hashed and persisted nodes.
package trie

// nibbleTerminator marks the end of a leaf key in nibble form. It never
// appears in extension keys.
const nibbleTerminator = 16

// keyToNibbles expands key bytes into nibbles and appends the terminator.
func keyToNibbles(key []byte) []byte {
	out := make([]byte, len(key)*2+1)
	for i, b := range key {
		out[i*2] = b >> 4
		out[i*2+1] = b & 0x0f
	}
	out[len(out)-1] = nibbleTerminator
	return out
}

// nibblesToKey packs nibbles (terminator allowed and dropped) back into
// key bytes. The remaining nibble count must be even.
func nibblesToKey(nib []byte) []byte {
	if hasTerminator(nib) {
		nib = nib[:len(nib)-1]
	}
	if len(nib)&1 != 0 {
		panic("trie: odd nibble count in nibblesToKey")
	}
	key := make([]byte, len(nib)/2)
	packNibbles(nib, key)
	return key
}

// nibblesToCompact produces the hex-prefix encoding: the first byte's high
// nibble carries a leaf flag (0x20) and an odd-length flag (0x10), and an
// odd leading nibble rides in its low half.
func nibblesToCompact(nib []byte) []byte {
	flag := byte(0)
	if hasTerminator(nib) {
		flag = 0x20
		nib = nib[:len(nib)-1]
	}
	buf := make([]byte, len(nib)/2+1)
	buf[0] = flag
	if len(nib)&1 == 1 {
		buf[0] |= 0x10 | nib[0]
		nib = nib[1:]
	}
	packNibbles(nib, buf[1:])
	return buf
}

// compactToNibbles reverses nibblesToCompact, restoring the terminator
// for leaf keys.
func compactToNibbles(compact []byte) []byte {
	if len(compact) == 0 {
		return compact
	}
	base := keyToNibbles(compact)
	base = base[:len(base)-1] // keyToNibbles' terminator, not HP's

	// base[0] is the flag nibble: bit 0 set means odd length (the padding
	// nibble is real data), bit 1 set means leaf.
	skip := 2 - base[0]&1
	if base[0]&2 != 0 {
		out := make([]byte, len(base)-int(skip)+1)
		copy(out, base[skip:])
		out[len(out)-1] = nibbleTerminator
		return out
	}
	return base[skip:]
}

// packNibbles writes nibble pairs into dst, high nibble first.
func packNibbles(nib []byte, dst []byte) {
	for bi, ni := 0, 0; ni < len(nib); bi, ni = bi+1, ni+2 {
		dst[bi] = nib[ni]<<4 | nib[ni+1]
	}
}

// commonPrefixLen counts the shared leading elements of a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// hasTerminator reports whether nib ends with the leaf terminator.
func hasTerminator(nib []byte) bool {
	return len(nib) > 0 && nib[len(nib)-1] == nibbleTerminator
}
