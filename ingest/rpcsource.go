// rpcsource.go adapts go-ethereum's ethclient to the ChainSource
// collaborator. It is the concrete implementation the daemon wires in;
// tests exercise the traversal and commit engine against in-memory
// blocks instead.
package ingest

import (
	"context"
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	monictypes "github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/ierrors"
)

// RPCSource fetches blocks, receipts and withdrawals from an upstream
// Ethereum-compatible JSON-RPC endpoint via ethclient, recovering each
// transaction's sender against the endpoint's chain ID.
type RPCSource struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	chainID *big.Int
	log     log.Logger
}

// DialRPCSource connects to rawurl and caches the chain ID needed to
// recover transaction senders (go-ethereum transactions carry a signature,
// not a sender field, so the sender must be recovered against a signer
// bound to the chain ID).
func DialRPCSource(ctx context.Context, rawurl string) (*RPCSource, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrUpstreamUnavailable, err)
	}
	eth := ethclient.NewClient(client)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrUpstreamUnavailable, err)
	}

	return &RPCSource{
		eth:     eth,
		rpc:     client,
		chainID: chainID,
		log:     log.New("module", "ingest.rpcsource"),
	}, nil
}

// BlockByNumber implements ChainSource.
func (s *RPCSource) BlockByNumber(ctx context.Context, number uint64) (*monictypes.Block, error) {
	gb, err := s.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, ierrors.Wrap(ierrors.ErrUpstreamUnavailable, err)
	}

	header := &monictypes.Header{
		Number:     gb.NumberU64(),
		Hash:       monictypes.BytesToHash(gb.Hash().Bytes()),
		ParentHash: monictypes.BytesToHash(gb.ParentHash().Bytes()),
		Author:     monictypes.BytesToAddress(gb.Coinbase().Bytes()),
	}

	signer := gethtypes.LatestSignerForChainID(s.chainID)

	txs := gb.Transactions()
	transactions := make([]*monictypes.Transaction, len(txs))
	receipts := make([]*monictypes.Receipt, len(txs))
	for i, tx := range txs {
		from, err := gethtypes.Sender(signer, tx)
		if err != nil {
			return nil, ierrors.Wrap(ierrors.ErrMalformedBlock,
				fmt.Errorf("recover sender for tx %s: %w", tx.Hash(), err))
		}

		var to *monictypes.Address
		if dst := tx.To(); dst != nil {
			a := monictypes.BytesToAddress(dst.Bytes())
			to = &a
		}

		transactions[i] = &monictypes.Transaction{
			Hash:  monictypes.BytesToHash(tx.Hash().Bytes()),
			From:  monictypes.BytesToAddress(from.Bytes()),
			To:    to,
			Nonce: tx.Nonce(),
		}

		receipt, err := s.eth.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, ierrors.Wrap(ierrors.ErrUpstreamUnavailable,
				fmt.Errorf("fetch receipt for tx %s: %w", tx.Hash(), err))
		}
		receipts[i] = convertReceipt(receipt)
	}

	var withdrawals []*monictypes.Withdrawal
	for _, w := range gb.Withdrawals() {
		withdrawals = append(withdrawals, &monictypes.Withdrawal{
			Index:   w.Index,
			Address: monictypes.BytesToAddress(w.Address.Bytes()),
		})
	}

	return &monictypes.Block{
		Header:       header,
		Transactions: transactions,
		Receipts:     receipts,
		Withdrawals:  withdrawals,
	}, nil
}

func convertReceipt(r *gethtypes.Receipt) *monictypes.Receipt {
	logs := make([]*monictypes.Log, len(r.Logs))
	for i, lg := range r.Logs {
		topics := make([]monictypes.Hash, len(lg.Topics))
		for j, t := range lg.Topics {
			topics[j] = monictypes.BytesToHash(t.Bytes())
		}
		logs[i] = &monictypes.Log{
			Address: monictypes.BytesToAddress(lg.Address.Bytes()),
			Topics:  topics,
			Data:    lg.Data,
		}
	}
	return &monictypes.Receipt{
		TxHash: monictypes.BytesToHash(r.TxHash.Bytes()),
		Logs:   logs,
	}
}

// HeadNumber returns the upstream chain's current head height.
func (s *RPCSource) HeadNumber(ctx context.Context) (uint64, error) {
	head, err := s.eth.BlockNumber(ctx)
	if err != nil {
		return 0, ierrors.Wrap(ierrors.ErrUpstreamUnavailable, err)
	}
	return head, nil
}

// Close releases the underlying RPC connection.
func (s *RPCSource) Close() { s.rpc.Close() }
