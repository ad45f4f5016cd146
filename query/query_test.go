package query

import (
	"testing"

	"github.com/monicindex/monicindex/addrtable"
	"github.com/monicindex/monicindex/codec"
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
)

type fakeEngine struct {
	forward map[uint64]types.Address
	reverse map[types.Address]uint64
	root    types.Hash
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		forward: make(map[uint64]types.Address),
		reverse: make(map[types.Address]uint64),
	}
}

func (f *fakeEngine) set(index uint64, addr types.Address) {
	f.forward[index] = addr
	f.reverse[addr] = index
}

func (f *fakeEngine) LookupByIndex(index uint64) (types.Address, bool, error) {
	a, ok := f.forward[index]
	return a, ok, nil
}

func (f *fakeEngine) LookupByAddress(addr types.Address) (uint64, bool, error) {
	i, ok := f.reverse[addr]
	return i, ok, nil
}

func (f *fakeEngine) Proof(index uint64) ([][]byte, error) { return [][]byte{{0x01}}, nil }

func (f *fakeEngine) TrieRoot() types.Hash { return f.root }

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func TestByIndexKnownImmutable(t *testing.T) {
	f := newFakeEngine()
	f.set(addrtable.ImmutableFloor, addr(1))
	a := New(f)

	got, err := a.ByIndex(addrtable.ImmutableFloor)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != addr(1) {
		t.Fatalf("Address = %x, want %x", got.Address, addr(1))
	}
	if got.Monic == "" {
		t.Fatal("expected a non-empty monic phrase")
	}

	roundTripped, err := a.ByMonic(got.Monic)
	if err != nil {
		t.Fatal(err)
	}
	if roundTripped != got {
		t.Fatalf("ByMonic(%q) = %+v, want %+v", got.Monic, roundTripped, got)
	}
}

func TestByIndexUnallocatedImmutableIsNotFound(t *testing.T) {
	a := New(newFakeEngine())
	_, err := a.ByIndex(addrtable.ImmutableFloor)
	if err != ierrors.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestByIndexMutableRangeIsUnknown(t *testing.T) {
	a := New(newFakeEngine())
	_, err := a.ByIndex(100)
	if err != ierrors.ErrUnknown {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}
}

func TestByAddressUnknownIsNotFound(t *testing.T) {
	a := New(newFakeEngine())
	_, err := a.ByAddress(addr(9))
	if err != ierrors.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestByMonicMalformedIsInvalidMonic(t *testing.T) {
	a := New(newFakeEngine())
	_, err := a.ByMonic("not a real phrase at all")
	if err != ierrors.ErrInvalidMonic {
		t.Fatalf("err = %v, want ErrInvalidMonic", err)
	}
}

func TestByMonicMutableRangeRoundTrips(t *testing.T) {
	a := New(newFakeEngine())
	monic, err := codec.Encode(42, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.ByMonic(monic)
	if err != ierrors.ErrUnknown {
		t.Fatalf("err = %v, want ErrUnknown (mutable range, no table entry)", err)
	}
}

func TestByAddressAndByIndexAgree(t *testing.T) {
	f := newFakeEngine()
	f.set(addrtable.ImmutableFloor+5, addr(7))
	a := New(f)

	byIdx, err := a.ByIndex(addrtable.ImmutableFloor + 5)
	if err != nil {
		t.Fatal(err)
	}
	byAddr, err := a.ByAddress(addr(7))
	if err != nil {
		t.Fatal(err)
	}
	if byIdx != byAddr {
		t.Fatalf("ByIndex = %+v, ByAddress = %+v, want equal", byIdx, byAddr)
	}
}

func TestProofCarriesRootAndIndex(t *testing.T) {
	f := newFakeEngine()
	f.root = types.Hash{1, 2, 3}
	a := New(f)

	p, err := a.Proof(addrtable.ImmutableFloor)
	if err != nil {
		t.Fatal(err)
	}
	if p.Root != f.root {
		t.Fatalf("Root = %x, want %x", p.Root, f.root)
	}
	if p.Index != addrtable.ImmutableFloor {
		t.Fatalf("Index = %d, want %d", p.Index, addrtable.ImmutableFloor)
	}
}
