// signatures.go hardcodes the three log-topic signature hashes the
// traversal recognizes: the canonical keccak256 digests of the
// ERC-20/721 and ERC-1155 event signature strings, fixed here rather
// than recomputed at runtime.
package ingest

import "github.com/monicindex/monicindex/core/types"

// TransferSig is topic[0] for Transfer(address,address,uint256), emitted by
// both ERC-20 and ERC-721 tokens. The traversal distinguishes the two only
// by topic count (3 topics total).
var TransferSig = types.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// TransferSingleSig is topic[0] for
// TransferSingle(address,address,address,uint256,uint256), the ERC-1155
// single-transfer event.
var TransferSingleSig = types.HexToHash("0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62")

// TransferBatchSig is topic[0] for
// TransferBatch(address,address,address,uint256[],uint256[]), the
// ERC-1155 batch-transfer event. Only the topics are consulted; the data
// payload (the two array arguments) is never decoded.
var TransferBatchSig = types.HexToHash("0x4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb")
