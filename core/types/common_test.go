package types

import "testing"

func TestBytesToHash(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	h := BytesToHash(b)
	if h[HashLength-1] != 0x03 || h[HashLength-2] != 0x02 || h[HashLength-3] != 0x01 {
		t.Fatalf("BytesToHash failed: got %x", h)
	}
	for i := 0; i < HashLength-3; i++ {
		if h[i] != 0 {
			t.Fatalf("BytesToHash did not left-pad: byte %d is %x", i, h[i])
		}
	}
}

func TestBytesToHash_LongerThan32(t *testing.T) {
	b := make([]byte, 40)
	for i := range b {
		b[i] = byte(i)
	}
	h := BytesToHash(b)
	for i := 0; i < HashLength; i++ {
		if h[i] != byte(i+8) {
			t.Fatalf("byte %d got %x, want %x", i, h[i], byte(i+8))
		}
	}
}

func TestHexToHash(t *testing.T) {
	h := HexToHash("0xdead")
	if h[HashLength-1] != 0xad || h[HashLength-2] != 0xde {
		t.Fatalf("HexToHash failed: got %x", h)
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatal("zero hash should be zero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Fatal("non-zero hash should not be zero")
	}
}

func TestTopicToAddress(t *testing.T) {
	topic := HexToHash("0x00000000000000000000000" + "000000000000000000000000000000000000001"[1:])
	addr := HexToAddress("0x0000000000000000000000000000000000000001")
	var topicBytes Hash
	copy(topicBytes[HashLength-AddressLength:], addr[:])
	got := TopicToAddress(topicBytes)
	if got != addr {
		t.Fatalf("TopicToAddress got %x, want %x", got, addr)
	}
	_ = topic
}

func TestAddressHexRoundtrip(t *testing.T) {
	a := HexToAddress("0xAbCdEf0123456789abcdef0123456789abcdef01")
	if a.Hex() != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("Hex did not normalize to lowercase: %s", a.Hex())
	}
}
