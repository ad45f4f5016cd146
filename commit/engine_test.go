package commit

import (
	"context"
	"testing"

	"github.com/monicindex/monicindex/addrtable"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func hash(b byte) types.Hash {
	var h types.Hash
	h[len(h)-1] = b
	return h
}

func addrPtr(a types.Address) *types.Address { return &a }

// TestGenesisAuthor: a lone author in an otherwise empty block claims
// the first index.
func TestGenesisAuthor(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	block := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	if err := e.CommitBlock(context.Background(), block); err != nil {
		t.Fatal(err)
	}

	head, ok := e.Head()
	if !ok {
		t.Fatal("expected a committed head")
	}
	if head.NextIdx != addrtable.ImmutableFloor+1 {
		t.Fatalf("NextIdx = %d, want %d", head.NextIdx, addrtable.ImmutableFloor+1)
	}
	got, ok, err := e.LookupByIndex(addrtable.ImmutableFloor)
	if err != nil || !ok || got != addr(1) {
		t.Fatalf("LookupByIndex(floor) = (%x, %v, %v), want (%x, true, nil)", got, ok, err, addr(1))
	}
	if head.Root.IsZero() {
		t.Fatal("expected a non-zero trie root")
	}
}

// TestSingleTransferOrdering: author, sender, recipient are assigned in
// traversal order.
func TestSingleTransferOrdering(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	A, B, C := addr(0xA), addr(0xB), addr(0xC)
	block := &types.Block{
		Header: &types.Header{Number: 0, Hash: hash(1), Author: A},
		Transactions: []*types.Transaction{
			{From: B, To: &C},
		},
		Receipts: []*types.Receipt{{}},
	}
	if err := e.CommitBlock(context.Background(), block); err != nil {
		t.Fatal(err)
	}

	wantOrder := []types.Address{A, B, C}
	for i, want := range wantOrder {
		idx := uint64(addrtable.ImmutableFloor + i)
		got, ok, err := e.LookupByIndex(idx)
		if err != nil || !ok || got != want {
			t.Fatalf("LookupByIndex(%d) = (%x, %v), want %x", idx, got, ok, want)
		}
	}
}

// TestDuplicateWithinBlockAllocatesOnce: repeated appearances of one
// address within a block allocate a single index.
func TestDuplicateWithinBlockAllocatesOnce(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	A := addr(1)
	block := &types.Block{
		Header: &types.Header{Number: 0, Hash: hash(1), Author: A},
		Transactions: []*types.Transaction{
			{From: A, To: addrPtr(A)}, // A appears repeatedly
		},
		Receipts: []*types.Receipt{{}},
	}
	if err := e.CommitBlock(context.Background(), block); err != nil {
		t.Fatal(err)
	}
	head, _ := e.Head()
	if head.NextIdx != addrtable.ImmutableFloor+1 {
		t.Fatalf("NextIdx = %d, want %d (only one distinct address)", head.NextIdx, addrtable.ImmutableFloor+1)
	}
}

// TestReorgDepthOne: a parent-hash mismatch rolls the last block back
// and a refetched replacement commits cleanly.
func TestReorgDepthOne(t *testing.T) {
	db := rawdb.NewMemoryDB()
	e, err := New(db, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	n0 := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	if err := e.CommitBlock(context.Background(), n0); err != nil {
		t.Fatal(err)
	}
	preRollbackHead, _ := e.Head()

	// block 1 claims a different parent than n0's hash: a reorg.
	badN1 := &types.Block{
		Header: &types.Header{Number: 1, Hash: hash(99), ParentHash: hash(42), Author: addr(2)},
	}
	err = e.CommitBlock(context.Background(), badN1)
	if err != ErrReorgApplied {
		t.Fatalf("CommitBlock(mismatched parent) = %v, want ErrReorgApplied", err)
	}

	headAfterRollback, ok := e.Head()
	if ok {
		t.Fatalf("expected no committed head after rolling back the only block, got %+v", headAfterRollback)
	}
	if e.NextBlockNumber() != 0 {
		t.Fatalf("NextBlockNumber() = %d, want 0 after rollback", e.NextBlockNumber())
	}

	// Re-apply block 0 (refetched) and a correct block 1.
	n0Again := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	if err := e.CommitBlock(context.Background(), n0Again); err != nil {
		t.Fatal(err)
	}
	reappliedHead, _ := e.Head()
	if reappliedHead.Root != preRollbackHead.Root {
		t.Fatalf("root after re-applying block 0 = %x, want %x", reappliedHead.Root, preRollbackHead.Root)
	}

	goodN1 := &types.Block{
		Header: &types.Header{Number: 1, Hash: hash(2), ParentHash: hash(1), Author: addr(3)},
	}
	if err := e.CommitBlock(context.Background(), goodN1); err != nil {
		t.Fatal(err)
	}
	finalHead, _ := e.Head()
	if finalHead.Root == reappliedHead.Root {
		t.Fatal("expected a new trie root after committing block 1")
	}
}

// TestRollbackThenReapplyIsIdentical: rolling back the last block and
// re-applying it yields identical trie_root, next_index, and address
// assignments.
func TestRollbackThenReapplyIsIdentical(t *testing.T) {
	db := rawdb.NewMemoryDB()
	e, err := New(db, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	block := func() *types.Block {
		C := addr(3)
		return &types.Block{
			Header: &types.Header{Number: 0, Hash: hash(7), Author: addr(1)},
			Transactions: []*types.Transaction{
				{From: addr(2), To: &C},
			},
			Receipts: []*types.Receipt{{}},
		}
	}

	if err := e.CommitBlock(context.Background(), block()); err != nil {
		t.Fatal(err)
	}
	head1, _ := e.Head()

	// Force a rollback by committing a block that doesn't chain onto head1.
	bogus := &types.Block{Header: &types.Header{Number: 1, Hash: hash(250), ParentHash: hash(251), Author: addr(9)}}
	if err := e.CommitBlock(context.Background(), bogus); err != ErrReorgApplied {
		t.Fatalf("expected ErrReorgApplied, got %v", err)
	}

	if err := e.CommitBlock(context.Background(), block()); err != nil {
		t.Fatal(err)
	}
	head2, _ := e.Head()

	if head1.Root != head2.Root {
		t.Fatalf("root mismatch after rollback+reapply: %x != %x", head1.Root, head2.Root)
	}
	if head1.NextIdx != head2.NextIdx {
		t.Fatalf("NextIdx mismatch after rollback+reapply: %d != %d", head1.NextIdx, head2.NextIdx)
	}
}

func TestIntegrityCheckPassesAfterCommit(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	block := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	if err := e.CommitBlock(context.Background(), block); err != nil {
		t.Fatal(err)
	}
	if err := e.IntegrityCheck(); err != nil {
		t.Fatalf("IntegrityCheck() = %v, want nil", err)
	}
}

func TestCommitBatchUpdatesHeadOncePerBatch(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	b0 := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	b1 := &types.Block{Header: &types.Header{Number: 1, Hash: hash(2), ParentHash: hash(1), Author: addr(2)}}
	b2 := &types.Block{Header: &types.Header{Number: 2, Hash: hash(3), ParentHash: hash(2), Author: addr(3)}}

	if err := e.CommitBatch(context.Background(), []*types.Block{b0, b1, b2}); err != nil {
		t.Fatal(err)
	}
	head, ok := e.Head()
	if !ok || head.Number != 2 {
		t.Fatalf("head.Number = %d (ok=%v), want 2", head.Number, ok)
	}
	if head.NextIdx != addrtable.ImmutableFloor+3 {
		t.Fatalf("NextIdx = %d, want %d", head.NextIdx, addrtable.ImmutableFloor+3)
	}
}

func TestNonContiguousBatchRejected(t *testing.T) {
	e, err := New(rawdb.NewMemoryDB(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	b0 := &types.Block{Header: &types.Header{Number: 0, Hash: hash(1), Author: addr(1)}}
	b2 := &types.Block{Header: &types.Header{Number: 2, Hash: hash(3), ParentHash: hash(99), Author: addr(3)}}
	if err := e.CommitBatch(context.Background(), []*types.Block{b0, b2}); err == nil {
		t.Fatal("expected an error for a non-contiguous batch")
	}
}
