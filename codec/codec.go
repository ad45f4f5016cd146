// codec.go converts between indices and their monic word phrases. The
// checksum rule is range-dependent: below the immutable range it is
// computed from the index itself; at or above it, it is computed from
// the witnessed address, which makes Encode and Decode functions of a
// lookup capability rather than pure functions.
package codec

import (
	"strings"

	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/crypto"
	"github.com/monicindex/monicindex/ierrors"
)

// immutableFloor is the first index the ingestor ever allocates (2^18).
const immutableFloor = 1 << 18

// maxIndex is the exclusive upper bound of the index space (2^40).
const maxIndex = 1 << 40

// AddressLookup resolves an allocated index to its witnessed address. It is
// the collaborator the codec needs to compute or verify a checksum in the
// immutable range, and to decode a monic back to an index in that range.
type AddressLookup func(index uint64) (types.Address, bool)

// payloadWidths are the candidate payload bit-widths, smallest first; the
// word count is its position (index 0 -> 1 word, ... index 3 -> 4 words).
var payloadWidths = [4]int{7, 18, 28, 40}

// Encode converts index to its monic word phrase. lookup is consulted only
// when index falls in the immutable range ([2^18, 2^40)); it may be nil
// for indices below that range.
func Encode(index uint64, lookup AddressLookup) (string, error) {
	if index >= maxIndex {
		return "", ierrors.Wrap(ierrors.ErrUnknown, errIndexOutOfRange(index))
	}

	width := widthFor(index)
	checksum, err := checksumFor(index, lookup)
	if err != nil {
		return "", err
	}

	payloadBits := width + 4
	wordCount := (payloadBits + 10) / 11 // round up to a whole number of 11-bit words
	totalBits := wordCount * 11
	// combined holds only payloadBits significant bits; reading 11-bit
	// chunks out to totalBits zero-extends the high end to pad up to a
	// whole number of words (needed for the 3-word case: 28+4=32 bits of
	// payload+checksum round up to 33).
	combined := (uint64(checksum) << width) | index

	words := make([]string, wordCount)
	for i := 0; i < wordCount; i++ {
		shift := totalBits - 11*(i+1)
		chunk := (combined >> uint(shift)) & 0x7FF
		words[i] = wordlist[chunk]
	}
	return strings.Join(words, " "), nil
}

// Decode converts a monic word phrase back to its index. lookup is
// consulted only when the recovered index falls in the immutable range.
func Decode(monic string, lookup AddressLookup) (uint64, error) {
	words := strings.Fields(monic)
	wordCount := len(words)
	if wordCount < 1 || wordCount > 4 {
		return 0, ierrors.ErrInvalidMonic
	}

	var combined uint64
	for _, w := range words {
		chunk, ok := wordIndex[w]
		if !ok {
			return 0, ierrors.ErrInvalidMonic
		}
		combined = (combined << 11) | uint64(chunk)
	}

	// The payload width is fixed by word count, not simply
	// totalBits-4: the 3-word case pads 32 significant bits (28 payload +
	// 4 checksum) up to 33 encoded bits, so totalBits-4 would recover the
	// wrong width. The high padding bits (if any) are zero by construction
	// of Encode and are simply not examined here.
	width := payloadWidths[wordCount-1]

	checksum := byte((combined >> uint(width)) & 0xF)
	index := combined & ((uint64(1) << uint(width)) - 1)

	expected, err := checksumFor(index, lookup)
	if err != nil {
		return 0, err
	}
	if checksum != expected {
		return 0, ierrors.ErrInvalidChecksum
	}
	return index, nil
}

// widthFor returns the smallest payload width (7/18/28/40) that contains
// index.
func widthFor(index uint64) int {
	for _, w := range payloadWidths {
		if index < uint64(1)<<uint(w) {
			return w
		}
	}
	return payloadWidths[len(payloadWidths)-1]
}

// checksumFor computes the 4-bit checksum for index: keccak256 of the
// index itself below the immutable floor, keccak256 of the witnessed
// address at or above it.
func checksumFor(index uint64, lookup AddressLookup) (byte, error) {
	if index < immutableFloor {
		h := crypto.Keccak256(minimalBigEndian(index))
		return h[0] >> 4, nil
	}

	if lookup == nil {
		return 0, ierrors.ErrUnknown
	}
	addr, ok := lookup(index)
	if !ok {
		return 0, ierrors.ErrUnknown
	}
	h := crypto.Keccak256(addr.Bytes())
	return h[0] >> 4, nil
}

// minimalBigEndian encodes index as big-endian bytes with no leading zero
// byte, except that zero itself encodes as a single zero byte.
func minimalBigEndian(index uint64) []byte {
	if index == 0 {
		return []byte{0}
	}
	var buf [8]byte
	buf[0] = byte(index >> 56)
	buf[1] = byte(index >> 48)
	buf[2] = byte(index >> 40)
	buf[3] = byte(index >> 32)
	buf[4] = byte(index >> 24)
	buf[5] = byte(index >> 16)
	buf[6] = byte(index >> 8)
	buf[7] = byte(index)

	i := 0
	for i < len(buf)-1 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func errIndexOutOfRange(index uint64) error {
	return &indexRangeError{index: index}
}

type indexRangeError struct{ index uint64 }

func (e *indexRangeError) Error() string {
	return "codec: index out of the [0, 2^40) range"
}
