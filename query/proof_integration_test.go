package query_test

import (
	"context"
	"testing"

	"github.com/monicindex/monicindex/addrtable"
	"github.com/monicindex/monicindex/commit"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/query"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

// TestProofVerifiesAgainstRealTrie exercises Proof/VerifyProof end-to-end
// against a real commit engine, not the package's own fake, to make sure
// the ResolvableTrie-backed proof path actually round-trips.
func TestProofVerifiesAgainstRealTrie(t *testing.T) {
	e, err := commit.New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	block := &types.Block{Header: &types.Header{Number: 0, Author: addr(1)}}
	if err := e.CommitBlock(context.Background(), block); err != nil {
		t.Fatal(err)
	}

	a := query.New(e)
	p, err := a.Proof(addrtable.ImmutableFloor)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := query.VerifyProof(p, addr(1))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected proof to verify for the genesis author's address")
	}

	ok, err = query.VerifyProof(p, addr(2))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected proof to fail verification against a different address")
	}
}
