// traversal.go implements the fixed per-block address extraction order:
// author, then each transaction's sender/recipient/log topics, then
// withdrawal recipients. It is a pure function of an already-fetched
// Block; duplicates are emitted verbatim, deduplication being the
// commit engine's job.
package ingest

import (
	"github.com/monicindex/monicindex/core/types"
	"github.com/monicindex/monicindex/crypto"
	"github.com/monicindex/monicindex/ierrors"
	"github.com/monicindex/monicindex/rlp"
)

// Addresses returns the ordered candidate-address stream for block.
// Contract-creation transactions (To == nil) contribute the
// created-contract address computed as keccak256(rlp([sender,
// nonce]))[12:], derived locally even when the upstream receipt carries
// no contractAddress field.
func Addresses(block *types.Block) ([]types.Address, error) {
	if block == nil || block.Header == nil {
		return nil, ierrors.Wrap(ierrors.ErrMalformedBlock, errNilBlock)
	}
	if len(block.Receipts) != len(block.Transactions) {
		return nil, ierrors.Wrap(ierrors.ErrMalformedBlock, errReceiptMismatch)
	}

	var out []types.Address

	out = append(out, block.Header.Author)

	for i, tx := range block.Transactions {
		if tx == nil {
			return nil, ierrors.Wrap(ierrors.ErrMalformedBlock, errNilTx)
		}
		out = append(out, tx.From)

		if tx.To != nil {
			out = append(out, *tx.To)
		} else {
			out = append(out, ContractAddress(tx.From, tx.Nonce))
		}

		receipt := block.Receipts[i]
		if receipt == nil {
			continue
		}
		for _, lg := range receipt.Logs {
			out = append(out, logAddresses(lg)...)
		}
	}

	for _, w := range block.Withdrawals {
		if w == nil {
			continue
		}
		out = append(out, w.Address)
	}

	return out, nil
}

// logAddresses extracts the addresses a single log contributes. Logs
// whose topic0 matches a recognized signature but whose topic count
// doesn't match the canonical shape are skipped outright rather than
// partially decoded, to avoid misclassifying non-standard events that
// share a signature.
func logAddresses(lg *types.Log) []types.Address {
	if lg == nil || len(lg.Topics) == 0 {
		return nil
	}
	sig := lg.Topics[0]

	switch {
	case sig == TransferSig && len(lg.Topics) == 3:
		return []types.Address{
			types.TopicToAddress(lg.Topics[1]),
			types.TopicToAddress(lg.Topics[2]),
		}
	case sig == TransferSingleSig && len(lg.Topics) == 4:
		return []types.Address{
			types.TopicToAddress(lg.Topics[1]),
			types.TopicToAddress(lg.Topics[2]),
			types.TopicToAddress(lg.Topics[3]),
		}
	case sig == TransferBatchSig && len(lg.Topics) == 4:
		return []types.Address{
			types.TopicToAddress(lg.Topics[1]),
			types.TopicToAddress(lg.Topics[2]),
			types.TopicToAddress(lg.Topics[3]),
		}
	default:
		return nil
	}
}

// contractCreation is the RLP shape hashed to derive a created contract's
// address: rlp([sender, nonce]).
type contractCreation struct {
	Sender types.Address
	Nonce  uint64
}

// ContractAddress computes the address assigned to a contract created
// by sender at the given nonce.
func ContractAddress(sender types.Address, nonce uint64) types.Address {
	enc, err := rlp.EncodeToBytes(contractCreation{Sender: sender, Nonce: nonce})
	if err != nil {
		// Encoding a fixed-shape struct of an Address and a uint64 cannot
		// fail; a panic here would indicate a broken rlp encoder.
		panic("ingest: rlp-encode contract creation tuple: " + err.Error())
	}
	h := crypto.Keccak256(enc)
	return types.BytesToAddress(h[len(h)-20:])
}

var (
	errNilBlock        = plainError("ingest: nil block or header")
	errReceiptMismatch = plainError("ingest: receipts/transactions length mismatch")
	errNilTx           = plainError("ingest: nil transaction in block")
)

type plainError string

func (e plainError) Error() string { return string(e) }
