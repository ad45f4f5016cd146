package ingest

import (
	"context"

	"github.com/monicindex/monicindex/core/types"
)

// ChainSource is the upstream collaborator the ingestor pulls blocks
// from. A concrete
// implementation streams blocks, transactions, receipts and withdrawals
// from an Ethereum-compatible JSON-RPC endpoint; RPCSource is the one
// shipped with this module.
type ChainSource interface {
	// BlockByNumber fetches the full block at the given height, including
	// its transactions (paired with receipts) and withdrawals, in
	// canonical order. It returns ierrors.ErrUpstreamUnavailable on a
	// transport failure and ierrors.ErrMalformedBlock if the upstream
	// response cannot be interpreted as a well-formed block.
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
}
