package rlp

import (
	"bytes"
	"testing"
)

func TestEncodeUint(t *testing.T) {
	tests := []struct {
		name string
		val  uint64
		want []byte
	}{
		{"uint(0)", 0, []byte{0x80}},
		{"uint(15)", 15, []byte{0x0f}},
		{"uint(127)", 127, []byte{0x7f}},
		{"uint(128)", 128, []byte{0x81, 0x80}},
		{"uint(1024)", 1024, []byte{0x82, 0x04, 0x00}},
		{"uint(256)", 256, []byte{0x82, 0x01, 0x00}},
		{"uint(1)", 1, []byte{0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeToBytes(tt.val)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("%s: got %x, want %x", tt.name, got, tt.want)
			}
		})
	}
}

func TestEncodeBytes(t *testing.T) {
	tests := []struct {
		name string
		val  []byte
		want []byte
	}{
		{"empty bytes", []byte{}, []byte{0x80}},
		{"single byte 0x00", []byte{0x00}, []byte{0x00}},
		{"single byte 0x7f", []byte{0x7f}, []byte{0x7f}},
		{"single byte 0x80", []byte{0x80}, []byte{0x81, 0x80}},
		{"three bytes", []byte{0x01, 0x02, 0x03}, []byte{0x83, 0x01, 0x02, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeToBytes(tt.val)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("%s: got %x, want %x", tt.name, got, tt.want)
			}
		})
	}
}

func TestEncodeLongBytes(t *testing.T) {
	data := bytes.Repeat([]byte{0x2a}, 56)
	got, err := EncodeToBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	// len(data) = 56, which is >55, so: [0xb8, 0x38, ...data]
	if got[0] != 0xb8 {
		t.Fatalf("long string prefix: got %x, want 0xb8", got[0])
	}
	if got[1] != 0x38 {
		t.Fatalf("long string length: got %x, want 0x38", got[1])
	}
	if !bytes.Equal(got[2:], data) {
		t.Fatal("long string data mismatch")
	}
}

func TestEncodeFixedArray(t *testing.T) {
	// Mirrors how a types.Address ([20]byte) is encoded as a struct field.
	var addr [20]byte
	addr[19] = 0x42
	got, err := EncodeToBytes(addr)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte{0x80 + 20}, addr[:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("fixed array: got %x, want %x", got, want)
	}
}

func TestEncodeStruct(t *testing.T) {
	type TestStruct struct {
		Address [20]byte
		Nonce   uint64
	}
	var s TestStruct
	s.Address[19] = 0x42
	s.Nonce = 5
	got, err := EncodeToBytes(s)
	if err != nil {
		t.Fatal(err)
	}
	addrEnc := append([]byte{0x80 + 20}, s.Address[:]...)
	payload := append(append([]byte{}, addrEnc...), 0x05)
	want := append([]byte{0xc0 + byte(len(payload))}, payload...)
	if !bytes.Equal(got, want) {
		t.Fatalf("struct: got %x, want %x", got, want)
	}
}

func TestEncodeUnexportedFieldSkipped(t *testing.T) {
	type TestStruct struct {
		Nonce    uint64
		internal uint64
	}
	got, err := EncodeToBytes(TestStruct{Nonce: 5, internal: 99})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xc1, 0x05}
	if !bytes.Equal(got, want) {
		t.Fatalf("struct with unexported field: got %x, want %x", got, want)
	}
}

func TestEncodeUnsupportedKind(t *testing.T) {
	if _, err := EncodeToBytes("a string is not a shape monicindex produces"); err != ErrUnsupportedType {
		t.Fatalf("EncodeToBytes(string) = %v, want ErrUnsupportedType", err)
	}
}
