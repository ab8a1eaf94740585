package watcher

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// eventTopic0 computes the log topic0 for a canonical Solidity event
// signature (keccak256 of the signature string).
func eventTopic0(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Arbitrum: the batch identifier is the sequencer inbox's indexed
// batchSequenceNumber; proof/finalized identifiers are the rollup
// core's indexed assertionHash.
const (
	arbitrumSequencerBatchDeliveredSig = "SequencerBatchDelivered(uint256,bytes32,bytes32,bytes32,uint256,uint8)"
	arbitrumAssertionCreatedSig        = "AssertionCreated(bytes32,bytes32,bytes32,uint256,bytes32,uint256,address,uint64)"
	arbitrumAssertionConfirmedSig      = "AssertionConfirmed(bytes32,bytes32,bytes32)"
)

func decodeArbitrumBatchDelivered(l types.Log) (*string, error) {
	return indexedUint256AsDecimalString(l, 1)
}

func decodeArbitrumAssertionCreated(l types.Log) (*string, error) {
	return indexedBytes32AsHex(l, 1)
}

func decodeArbitrumAssertionConfirmed(l types.Log) (*string, error) {
	return indexedBytes32AsHex(l, 1)
}

// Starknet: the state update's block hash (a non-indexed field in
// `data`) identifies the batch; LogMessageToL2's indexed selector is
// informational only, since MessageLog never advances status.
const (
	starknetLogStateUpdateSig = "LogStateUpdate(uint256,int256,uint256)"
	starknetLogMessageToL2Sig = "LogMessageToL2(address,uint256,uint256,uint256[],uint256,uint256)"
)

func decodeStarknetLogStateUpdate(l types.Log) (*string, error) {
	// globalRoot, blockNumber, blockHash: three non-indexed uint256/int256
	// words packed in data; blockHash is the third word.
	return dataWordAsDecimalString(l, 2)
}

func decodeStarknetLogMessageToL2(l types.Log) (*string, error) {
	return indexedUint256AsDecimalString(l, 3)
}

// Base / Optimism: the dispute game's indexed rootClaim identifies the
// proposal; the portal's indexed withdrawalHash identifies the
// finalized withdrawal.
const (
	opDisputeGameCreatedSig = "DisputeGameCreated(address,uint32,bytes32)"
	opWithdrawalProvenSig   = "WithdrawalProven(bytes32,address,address)"
)

func decodeOPDisputeGameCreated(l types.Log) (*string, error) {
	return indexedBytes32AsHex(l, 3)
}

func decodeOPWithdrawalProven(l types.Log) (*string, error) {
	return indexedBytes32AsHex(l, 1)
}

// zkSync: all three lifecycle events carry their batch number as an
// indexed uint256.
const (
	zksyncBlockCommitSig        = "BlockCommit(uint256,bytes32,bytes32)"
	zksyncBlocksVerificationSig = "BlocksVerification(uint256,uint256)"
	zksyncBlockExecutionSig     = "BlockExecution(uint256,bytes32,bytes32)"
)

func decodeZkSyncBlockCommit(l types.Log) (*string, error) {
	return indexedUint256AsDecimalString(l, 1)
}

func decodeZkSyncBlocksVerification(l types.Log) (*string, error) {
	return indexedUint256AsDecimalString(l, 2)
}

func decodeZkSyncBlockExecution(l types.Log) (*string, error) {
	return indexedUint256AsDecimalString(l, 1)
}

// indexedUint256AsDecimalString reads topic[idx] (1-based: topic0 is
// the signature hash) as a uint256 and renders it as a decimal string.
// A missing topic yields a nil batchNumber, not an error: the event is
// unidentified, not undecodable.
func indexedUint256AsDecimalString(l types.Log, idx int) (*string, error) {
	if idx >= len(l.Topics) {
		return nil, nil
	}
	v := new(big.Int).SetBytes(l.Topics[idx].Bytes())
	s := v.String()
	return &s, nil
}

// indexedBytes32AsHex reads topic[idx] as a 32-byte hash and renders it
// as a lowercase 0x-prefixed hex string (assertion hashes, claim roots,
// withdrawal hashes).
func indexedBytes32AsHex(l types.Log, idx int) (*string, error) {
	if idx >= len(l.Topics) {
		return nil, nil
	}
	s := l.Topics[idx].Hex()
	return &s, nil
}

// dataWordAsDecimalString reads the wordIdx'th 32-byte word out of a
// log's non-indexed data and renders it as a decimal string.
func dataWordAsDecimalString(l types.Log, wordIdx int) (*string, error) {
	start := wordIdx * 32
	if start+32 > len(l.Data) {
		return nil, nil
	}
	v := new(big.Int).SetBytes(l.Data[start : start+32])
	s := v.String()
	return &s, nil
}
