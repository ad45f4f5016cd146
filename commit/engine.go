// Package commit implements the commit engine: the
// extract/stage/verify/persist pipeline that drives one block (or one
// configured batch of blocks) at a time from the ingestor's ordered
// address stream into the address table and trie checkpoint, finishing
// with a single atomic KV write per batch.
package commit

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/monicindex/monicindex/addrtable"
	"github.com/monicindex/monicindex/core/rawdb"
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
	"github.com/monicindex/monicindex/ingest"
	"github.com/monicindex/monicindex/metrics"
	"github.com/monicindex/monicindex/rlp"
	"github.com/monicindex/monicindex/trie"
)

// ErrReorgApplied is returned by CommitBlock/CommitBatch when the
// submitted block's parent did not match the stored head. The engine has
// already rolled back the previously committed block by the time this
// returns; the caller should refetch the block at the now-current height
// and resubmit it.
var ErrReorgApplied = errors.New("commit: parent mismatch, rolled back one block; refetch and retry")

var (
	errNoHeadToRollback = errors.New("commit: no committed head to roll back")
	errNoPriorRoot      = errors.New("commit: no retained prior state, rollback depth > 1")
	errRootMismatch     = errors.New("commit: committed trie root does not match verified root")
	errBatchNotContig   = errors.New("commit: batch blocks are not contiguous by parent hash")
	errEmptyBatch       = errors.New("commit: empty batch")
)

// Engine is the single-writer commit engine. It is not safe for
// concurrent callers; the single-writer discipline means exactly one
// goroutine drives CommitBlock/CommitBatch/Rollback.
type Engine struct {
	db      rawdb.Database
	table   *addrtable.Table
	nodeDB  *trie.NodeDatabase
	trieSt  *trie.ResolvableTrie
	head    Head
	hasHead bool
	start   uint64
	log     log.Logger
	metrics *metrics.Metrics
}

// New creates an Engine over db, resuming from persisted head metadata or
// initializing fresh state at startBlock if none exists. m may be nil
// to disable metrics reporting.
func New(db rawdb.Database, startBlock uint64, m *metrics.Metrics) (*Engine, error) {
	table, err := addrtable.New(db)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	nodeDB := trie.NewNodeDatabase(trie.NodeReaderFunc(func(hash types.Hash) ([]byte, error) {
		data, err := db.Get(rawdb.TrieNodeKey(hash.Bytes()))
		if err != nil {
			return nil, trie.ErrNodeNotFound
		}
		return data, nil
	}))

	head, hasHead, err := loadHead(db)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	tr, err := trie.NewResolvableTrie(head.Root, nodeDB)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrIntegrityViolation, err)
	}

	return &Engine{
		db:      db,
		table:   table,
		nodeDB:  nodeDB,
		trieSt:  tr,
		head:    head,
		hasHead: hasHead,
		start:   startBlock,
		log:     log.New("module", "commit.engine"),
		metrics: m,
	}, nil
}

// NextBlockNumber returns the height of the next block the caller should
// fetch and submit.
func (e *Engine) NextBlockNumber() uint64 {
	if !e.hasHead {
		return e.start
	}
	return e.head.Number + 1
}

// Head returns the engine's current committed head.
func (e *Engine) Head() (Head, bool) { return e.head, e.hasHead }

// TrieRoot returns the current trie root, matching the head's trie_root
// once a block has been committed.
func (e *Engine) TrieRoot() types.Hash { return e.trieSt.Hash() }

// Proof returns a Merkle inclusion proof for index's forward-table entry,
// verifiable against TrieRoot() with trie.VerifyProof, so an external
// verifier can check any (index, address) binding against the small
// root commitment.
func (e *Engine) Proof(index uint64) ([][]byte, error) {
	proof, err := e.trieSt.Prove(rawdb.EncodeIndex(index))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrNotFound, err)
	}
	return proof, nil
}

// CommitBlock runs a single block through extract/stage/verify/persist.
func (e *Engine) CommitBlock(ctx context.Context, block *types.Block) error {
	return e.CommitBatch(ctx, []*types.Block{block})
}

// CommitBatch runs a contiguous run of blocks through extract/stage/
// verify/persist, updating head metadata exactly once to reflect the
// batch's last block. Reads against the engine
// observe either the pre-batch or the post-batch state, never a partial
// view, because the staging overlay is only visible to this single
// writer until the atomic batch.Write() below succeeds.
func (e *Engine) CommitBatch(ctx context.Context, blocks []*types.Block) error {
	if len(blocks) == 0 {
		return ierrors.Wrap(ierrors.ErrMalformedBlock, errEmptyBatch)
	}

	if e.hasHead && blocks[0].ParentHash() != e.head.Hash {
		if err := e.rollback(); err != nil {
			return err
		}
		return ErrReorgApplied
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].ParentHash() != blocks[i-1].Hash() {
			return ierrors.Wrap(ierrors.ErrMalformedBlock, errBatchNotContig)
		}
	}

	start := time.Now()
	e.table.BeginBatch()
	newAddresses := 0
	for _, block := range blocks {
		addrs, err := ingest.Addresses(block)
		if err != nil {
			e.discard()
			return err
		}
		for _, a := range addrs {
			idx, isNew, err := e.table.Insert(a)
			if err != nil {
				e.discard()
				return ierrors.Wrap(ierrors.ErrStorageFailure, err)
			}
			if !isNew {
				continue
			}
			newAddresses++
			val, encErr := rlp.EncodeToBytes(a.Bytes())
			if encErr != nil {
				e.discard()
				return ierrors.Wrap(ierrors.ErrStorageFailure, encErr)
			}
			if err := e.trieSt.Put(rawdb.EncodeIndex(idx), val); err != nil {
				e.discard()
				return ierrors.Wrap(ierrors.ErrStorageFailure, err)
			}
		}
	}

	newRoot := e.trieSt.Hash()
	last := blocks[len(blocks)-1]
	if err := e.persist(newRoot, last, len(blocks)); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.MarkBlocksIngested(len(blocks))
		e.metrics.AddressesIndexed.Add(float64(newAddresses))
		e.metrics.NextIndex.Set(float64(e.head.NextIdx))
		e.metrics.CommitLatency.Observe(time.Since(start).Seconds())
	}
	return nil
}

// discard throws away everything the in-flight batch staged: the address
// table's overlay, and any keys already inserted into the in-memory trie.
// The trie is reloaded from the last committed root so a retried block
// cannot inherit stale keys from a failed or abandoned attempt.
func (e *Engine) discard() {
	e.table.DiscardBatch()
	tr, err := trie.NewResolvableTrie(e.head.Root, e.nodeDB)
	if err != nil {
		// The committed root's nodes are durable, so this only fires on a
		// storage fault; the next commit attempt will surface it.
		e.log.Error("failed to reload trie after discard", "root", e.head.Root.Hex(), "err", err)
		return
	}
	e.trieSt = tr
}

// persist is the final pipeline phase: a single atomic KV write containing
// every new forward/reverse entry, every new/updated trie node, and the
// updated head metadata.
func (e *Engine) persist(newRoot types.Hash, last *types.Block, blockCount int) error {
	batch := e.db.NewBatch()

	for idx, addr := range e.table.StagedForward() {
		if err := batch.Put(rawdb.ForwardKey(idx), addr.Bytes()); err != nil {
			e.discard()
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
	}
	for addr, idx := range e.table.StagedReverse() {
		if err := batch.Put(rawdb.ReverseKey(addr.Bytes()), rawdb.EncodeIndex(idx)); err != nil {
			e.discard()
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
	}

	committedRoot, err := e.trieSt.Commit()
	if err != nil {
		e.discard()
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}
	if committedRoot != newRoot {
		e.discard()
		return ierrors.Wrap(ierrors.ErrIntegrityViolation, errRootMismatch)
	}

	writer := trie.NodeWriterFunc(func(hash types.Hash, data []byte) error {
		return batch.Put(rawdb.TrieNodeKey(hash.Bytes()), data)
	})
	if err := e.nodeDB.Commit(writer); err != nil {
		e.discard()
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	newHead := Head{
		Number:   last.Number(),
		Hash:     last.Hash(),
		Root:     committedRoot,
		NextIdx:  e.table.NextIndex(),
		PrevRoot: e.head.Root,
		PrevNum:  e.head.Number,
		PrevHash: e.head.Hash,
		PrevNext: e.table.BaseNextIndex(),
		HasPrior: true,
		PrevNone: !e.hasHead,
	}
	if err := writeHead(batch, newHead); err != nil {
		e.discard()
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	if err := batch.Write(); err != nil {
		// The overlay is discarded. StorageFailure is a fatal kind; the
		// ingest loop retries it a bounded number of times before stopping.
		e.discard()
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	e.table.FinishBatch()
	e.head = newHead
	e.hasHead = true
	e.log.Debug("committed block range", "blocks", blockCount, "head", newHead.Number, "root", newHead.Root.Hex())
	return nil
}

// rollback undoes the most recent commit: it deletes the
// address-table range the most recently committed block/batch allocated,
// reverts the trie root and next_index to the retained prior values, and
// discards the now-stale retained state (a further rollback is reported
// as ReorgTooDeep, since depth > 1 is unsupported).
func (e *Engine) rollback() error {
	if !e.hasHead {
		return ierrors.Wrap(ierrors.ErrReorgTooDeep, errNoHeadToRollback)
	}
	h := e.head
	if !h.HasPrior {
		return ierrors.Wrap(ierrors.ErrReorgTooDeep, errNoPriorRoot)
	}

	batch := e.db.NewBatch()
	for idx := h.PrevNext; idx < h.NextIdx; idx++ {
		addr, ok, err := e.table.PersistedAddress(idx)
		if err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
		if !ok {
			continue
		}
		if err := batch.Delete(rawdb.ForwardKey(idx)); err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
		if err := batch.Delete(rawdb.ReverseKey(addr.Bytes())); err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
	}

	newHead := Head{
		Number:   h.PrevNum,
		Hash:     h.PrevHash,
		Root:     h.PrevRoot,
		NextIdx:  h.PrevNext,
		PrevRoot: h.PrevRoot,
		PrevNum:  h.PrevNum,
		PrevHash: h.PrevHash,
		PrevNext: h.PrevNext,
		HasPrior: false,
	}
	if h.PrevNone {
		// The rolled-back block was the first ever committed: clear the
		// head record so a restart resumes at the configured start block.
		if err := clearHead(batch); err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
		newHead = Head{NextIdx: h.PrevNext}
	} else if err := writeHead(batch, newHead); err != nil {
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}
	if err := batch.Write(); err != nil {
		return ierrors.Wrap(ierrors.ErrStorageFailure, err)
	}

	tr, err := trie.NewResolvableTrie(newHead.Root, e.nodeDB)
	if err != nil {
		return ierrors.Wrap(ierrors.ErrIntegrityViolation, err)
	}
	e.trieSt = tr
	e.table.SetNextIndex(newHead.NextIdx)
	e.head = newHead
	e.hasHead = !h.PrevNone
	if e.metrics != nil {
		e.metrics.ReorgsHandled.Inc()
	}
	e.log.Warn("rolled back single block", "restoredHead", newHead.Number, "restoredRoot", newHead.Root.Hex())
	return nil
}

// LookupByIndex resolves an allocated index to its witnessed address,
// consulting any in-flight staging overlay first. It is the read path the
// query adapter and the codec's address lookup both depend on.
func (e *Engine) LookupByIndex(index uint64) (types.Address, bool, error) {
	return e.table.LookupByIndex(index)
}

// LookupByAddress resolves a witnessed address to its index.
func (e *Engine) LookupByAddress(addr types.Address) (uint64, bool, error) {
	return e.table.LookupByAddress(addr)
}

// IntegrityCheck recomputes the trie root from the persisted forward map
// and compares it against the stored trie_root. It is used both at
// startup and by the standalone cmd/monic-verify tool.
func (e *Engine) IntegrityCheck() error {
	if !e.hasHead {
		return nil
	}
	fresh := trie.New()
	for idx := uint64(addrtable.ImmutableFloor); idx < e.head.NextIdx; idx++ {
		addr, ok, err := e.table.PersistedAddress(idx)
		if err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
		if !ok {
			return ierrors.Wrap(ierrors.ErrIntegrityViolation, errMissingForward(idx))
		}
		val, err := rlp.EncodeToBytes(addr.Bytes())
		if err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
		if err := fresh.Put(rawdb.EncodeIndex(idx), val); err != nil {
			return ierrors.Wrap(ierrors.ErrStorageFailure, err)
		}
	}
	if fresh.Hash() != e.head.Root {
		return ierrors.Wrap(ierrors.ErrIntegrityViolation, errRootMismatch)
	}
	return nil
}

type missingForwardError uint64

func (e missingForwardError) Error() string {
	return "commit: no forward entry for an index below next_index"
}

func errMissingForward(idx uint64) error { return missingForwardError(idx) }
