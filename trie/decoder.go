// decoder.go turns persisted RLP node encodings back into in-memory
// nodes. It is the read half of the encoding in hasher.go; the two must
// agree byte for byte or resolved subtries would re-hash differently.
package trie

import (
	"errors"
	"fmt"
)

var errDecodeInvalid = errors.New("trie: invalid encoded node")

// decodeNode parses one RLP-encoded node. hash is the reference it was
// loaded under and seeds the parsed node's hash cache.
func decodeNode(hash hashNode, data []byte) (node, error) {
	if len(data) == 0 {
		return nil, errDecodeInvalid
	}

	elems, err := splitNodeList(data)
	if err != nil {
		return nil, fmt.Errorf("trie decode: %w", err)
	}

	switch len(elems) {
	case 2:
		return parseShortNode(hash, elems)
	case 17:
		return parseBranchNode(hash, elems)
	default:
		return nil, fmt.Errorf("%w: expected 2 or 17 elements, got %d", errDecodeInvalid, len(elems))
	}
}

// parseShortNode decodes a 2-element list: [compact key, value-or-child].
func parseShortNode(hash hashNode, elems [][]byte) (node, error) {
	key := compactToNibbles(elems[0])

	if hasTerminator(key) {
		return &shortNode{
			Key: key,
			Val: valueNode(elems[1]),
			flags: nodeCache{
				hash:  hash,
				dirty: false,
			},
		}, nil
	}

	child, err := decodeRef(elems[1])
	if err != nil {
		return nil, err
	}
	return &shortNode{
		Key: key,
		Val: child,
		flags: nodeCache{
			hash:  hash,
			dirty: false,
		},
	}, nil
}

// parseBranchNode decodes a 17-element list of child references plus the
// terminating value slot.
func parseBranchNode(hash hashNode, elems [][]byte) (node, error) {
	n := &branchNode{
		flags: nodeCache{
			hash:  hash,
			dirty: false,
		},
	}
	for i := 0; i < 16; i++ {
		if len(elems[i]) == 0 {
			continue
		}
		child, err := decodeRef(elems[i])
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	if len(elems[16]) > 0 {
		n.Children[16] = valueNode(elems[16])
	}
	return n, nil
}

// decodeRef decodes a child slot: 32 bytes is a hash reference, anything
// shorter is an inlined node encoded in place.
func decodeRef(data []byte) (node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) == 32 {
		return hashNode(data), nil
	}
	return decodeNode(nil, data)
}

// decodeLength reads a big-endian length of lenLen bytes.
func decodeLength(data []byte, lenLen int) int {
	var length int
	for i := 0; i < lenLen; i++ {
		length = length<<8 | int(data[i])
	}
	return length
}

// splitNodeList strips a node's outer RLP list header and splits the
// payload into per-element byte slices. String elements come back as
// their content; nested lists (inlined child nodes) keep their header so
// decodeRef can recurse into them.
func splitNodeList(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, errDecodeInvalid
	}

	prefix := data[0]
	if prefix < 0xc0 {
		return nil, fmt.Errorf("%w: expected list, got string prefix 0x%02x", errDecodeInvalid, prefix)
	}
	var payload []byte

	switch {
	case prefix <= 0xf7:
		length := int(prefix - 0xc0)
		if 1+length > len(data) {
			return nil, errDecodeInvalid
		}
		payload = data[1 : 1+length]
	default:
		lenLen := int(prefix - 0xf7)
		if 1+lenLen > len(data) {
			return nil, errDecodeInvalid
		}
		length := decodeLength(data[1:1+lenLen], lenLen)
		if 1+lenLen+length > len(data) {
			return nil, errDecodeInvalid
		}
		payload = data[1+lenLen : 1+lenLen+length]
	}

	var elems [][]byte
	for len(payload) > 0 {
		elem, rest, err := splitNodeElem(payload)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		payload = rest
	}
	return elems, nil
}

// splitNodeElem takes one RLP element off the front of data.
func splitNodeElem(data []byte) (content []byte, rest []byte, err error) {
	if len(data) == 0 {
		return nil, nil, errDecodeInvalid
	}

	prefix := data[0]
	switch {
	case prefix <= 0x7f:
		// single literal byte
		return data[:1], data[1:], nil

	case prefix == 0x80:
		// empty string
		return nil, data[1:], nil

	case prefix <= 0xb7:
		// short string
		length := int(prefix - 0x80)
		if 1+length > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[1 : 1+length], data[1+length:], nil

	case prefix <= 0xbf:
		// long string
		lenLen := int(prefix - 0xb7)
		if 1+lenLen > len(data) {
			return nil, nil, errDecodeInvalid
		}
		length := decodeLength(data[1:1+lenLen], lenLen)
		end := 1 + lenLen + length
		if end > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[1+lenLen : end], data[end:], nil

	case prefix <= 0xf7:
		// short list, kept whole (header included) for decodeRef
		length := int(prefix - 0xc0)
		end := 1 + length
		if end > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[:end], data[end:], nil

	default:
		// long list, kept whole
		lenLen := int(prefix - 0xf7)
		if 1+lenLen > len(data) {
			return nil, nil, errDecodeInvalid
		}
		length := decodeLength(data[1:1+lenLen], lenLen)
		end := 1 + lenLen + length
		if end > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[:end], data[end:], nil
	}
}
