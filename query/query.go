// Package query is the read-only query adapter: it resolves an index,
// address or monic phrase to the other two, and produces Merkle
// inclusion proofs for forward-table entries.
package query

import (
	"github.com/monicindex/monicindex/addrtable"
	"github.com/monicindex/monicindex/codec"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
	"github.com/monicindex/monicindex/rlp"
	"github.com/monicindex/monicindex/trie"
)

// Engine is the subset of the commit engine the query adapter depends on.
// Keeping it as an interface here, rather than importing *commit.Engine
// directly, lets the adapter be exercised against a fake in tests without
// pulling in the commit engine's storage/trie machinery.
type Engine interface {
	LookupByIndex(index uint64) (types.Address, bool, error)
	LookupByAddress(addr types.Address) (uint64, bool, error)
	Proof(index uint64) ([][]byte, error)
	TrieRoot() types.Hash
}

// Adapter serves the three read operations the HTTP layer exposes.
type Adapter struct {
	engine Engine
}

// New builds an Adapter over engine.
func New(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// Result is the {index, address, monic} triple returned by ByIndex,
// ByAddress and ByMonic.
type Result struct {
	Index   uint64
	Address types.Address
	Monic   string
}

// Proof is a Merkle inclusion proof for Result.Index's forward-table
// entry, verifiable against Root with trie.VerifyProof.
type Proof struct {
	Index uint64
	Root  types.Hash
	Nodes [][]byte
}

// ByIndex resolves index to its witnessed address and monic phrase.
//
// Indices below the immutable floor (2^18) are reserved for an external
// registrar this package does not implement; they report ErrUnknown
// unless already present in the table.
func (a *Adapter) ByIndex(index uint64) (Result, error) {
	addr, ok, err := a.engine.LookupByIndex(index)
	if err != nil {
		return Result{}, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}
	if !ok {
		return Result{}, a.missing(index)
	}
	monic, err := codec.Encode(index, a.lookup)
	if err != nil {
		return Result{}, err
	}
	return Result{Index: index, Address: addr, Monic: monic}, nil
}

// ByAddress resolves addr to its allocated index and monic phrase.
func (a *Adapter) ByAddress(addr types.Address) (Result, error) {
	index, ok, err := a.engine.LookupByAddress(addr)
	if err != nil {
		return Result{}, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}
	if !ok {
		return Result{}, ierrors.ErrNotFound
	}
	monic, err := codec.Encode(index, a.lookup)
	if err != nil {
		return Result{}, err
	}
	return Result{Index: index, Address: addr, Monic: monic}, nil
}

// ByMonic decodes monic to an index and resolves it to its address.
// Returns ErrInvalidMonic/ErrInvalidChecksum (from codec.Decode) or
// ErrUnknown/ErrNotFound for a well-formed phrase with no mapped address.
func (a *Adapter) ByMonic(monic string) (Result, error) {
	index, err := codec.Decode(monic, a.lookup)
	if err != nil {
		return Result{}, err
	}
	addr, ok, err := a.engine.LookupByIndex(index)
	if err != nil {
		return Result{}, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}
	if !ok {
		return Result{}, a.missing(index)
	}
	return Result{Index: index, Address: addr, Monic: monic}, nil
}

// Proof returns a Merkle inclusion proof for index, additive to the
// three operations above.
func (a *Adapter) Proof(index uint64) (Proof, error) {
	nodes, err := a.engine.Proof(index)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Index: index, Root: a.engine.TrieRoot(), Nodes: nodes}, nil
}

// VerifyProof checks that p proves addr is the witnessed address at
// p.Index against p.Root, using the same RLP encoding the commit engine
// stores values under.
func VerifyProof(p Proof, addr types.Address) (bool, error) {
	val, err := rlp.EncodeToBytes(addr.Bytes())
	if err != nil {
		return false, err
	}
	got, err := trie.VerifyProof(p.Root, rawdb.EncodeIndex(p.Index), p.Nodes)
	if err != nil {
		return false, err
	}
	return got != nil && string(got) == string(val), nil
}

// missing classifies a not-found index per the mutable/immutable split:
// a mutable index with no table entry is Unknown (no registrar is wired
// up), an immutable index with no table entry is NotFound (it has simply
// never been allocated yet).
func (a *Adapter) missing(index uint64) error {
	if index < addrtable.ImmutableFloor {
		return ierrors.ErrUnknown
	}
	return ierrors.ErrNotFound
}

// lookup adapts Engine.LookupByIndex to codec.AddressLookup.
func (a *Adapter) lookup(index uint64) (types.Address, bool) {
	addr, ok, err := a.engine.LookupByIndex(index)
	if err != nil {
		return types.Address{}, false
	}
	return addr, ok
}
