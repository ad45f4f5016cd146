package types

// Header carries the subset of a block header the indexer's traversal
// needs. Unlike go-ethereum's Header, the hash is not recomputed from
// the RLP encoding: it is taken as reported by the upstream RPC
// collaborator, which is assumed canonical.
type Header struct {
	Number     uint64
	Hash       Hash
	ParentHash Hash
	Author     Address // miner/beneficiary/producer
}

// Log represents a single event emitted by a transaction receipt.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// Receipt carries the logs produced by a transaction.
type Receipt struct {
	TxHash Hash
	Logs   []*Log
}

// Transaction carries the fields the traversal consults: sender,
// recipient (nil on contract creation) and nonce.
type Transaction struct {
	Hash  Hash
	From  Address
	To    *Address // nil on contract creation
	Nonce uint64
}

// Withdrawal represents a validator withdrawal recipient (EIP-4895).
// Blocks before the fork that introduced withdrawals carry none.
type Withdrawal struct {
	Index   uint64
	Address Address
}

// Block is the unit the ingestor consumes: a header plus its transactions
// (each already paired with its receipt) and withdrawals, in the exact
// order the upstream RPC reports them.
type Block struct {
	Header       *Header
	Transactions []*Transaction
	Receipts     []*Receipt // Receipts[i] corresponds to Transactions[i]
	Withdrawals  []*Withdrawal
}

// Number returns the block height.
func (b *Block) Number() uint64 { return b.Header.Number }

// Hash returns the block hash as reported by the upstream source.
func (b *Block) Hash() Hash { return b.Header.Hash }

// ParentHash returns the parent block hash.
func (b *Block) ParentHash() Hash { return b.Header.ParentHash }

// Author returns the block's miner/beneficiary/producer address.
func (b *Block) Author() Address { return b.Header.Author }
