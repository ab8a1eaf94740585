// Package watcher runs one ingestion pipeline per rollup: it decodes
// raw L1 logs into uniform rollup.Event values and hands them to the
// Hub, serially per rollup to preserve ordering. The per-rollup
// (contract, topic0, decoder) triples are data, not code paths, so
// adding a rollup is a registry change in NewRollupSpec.
package watcher

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

// decodeFunc extracts the rollup-specific commitment identifier from a
// raw log already known (by topic0) to be this event. A nil batchNumber
// with a nil error means the identifier could not be parsed; such an
// event is still forwarded but never advances status.
type decodeFunc func(l types.Log) (batchNumber *string, err error)

// eventSpec binds one contract event signature to the internal
// EventType it decodes into.
type eventSpec struct {
	signature string
	eventType rollup.EventType
	decode    decodeFunc
}

func (e eventSpec) topic0() common.Hash {
	return eventTopic0(e.signature)
}

// ContractFilter is one (address, topic0 set) pair a watcher subscribes
// to; a single rollup may have more than one contract (e.g. Arbitrum's
// sequencer inbox and rollup core).
type ContractFilter struct {
	Address common.Address
	Events  []eventSpec
}

// RollupSpec parameterizes one watcher: a rollup id plus the set of
// (contract address, topic0) filter pairs and the decoders that
// classify what they carry.
type RollupSpec struct {
	Rollup    rollup.ID
	Contracts []ContractFilter
}

// Addresses returns every contract address this spec's watcher must
// subscribe to.
func (s RollupSpec) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(s.Contracts))
	for _, c := range s.Contracts {
		addrs = append(addrs, c.Address)
	}
	return addrs
}

// Topic0s returns every event signature hash this spec's watcher must
// subscribe to, across all of its contracts.
func (s RollupSpec) Topic0s() []common.Hash {
	var out []common.Hash
	for _, c := range s.Contracts {
		for _, e := range c.Events {
			out = append(out, e.topic0())
		}
	}
	return out
}

// lookup finds the eventSpec matching a log's contract address and
// topic0, or false if this RollupSpec does not recognize it.
func (s RollupSpec) lookup(l types.Log) (eventSpec, bool) {
	if len(l.Topics) == 0 {
		return eventSpec{}, false
	}
	for _, c := range s.Contracts {
		if c.Address != l.Address {
			continue
		}
		for _, e := range c.Events {
			if e.topic0() == l.Topics[0] {
				return e, true
			}
		}
	}
	return eventSpec{}, false
}

// NewRollupSpec builds the RollupSpec for one rollup from its configured
// contract addresses.
func NewRollupSpec(id rollup.ID, addresses Addresses) RollupSpec {
	switch id {
	case rollup.Arbitrum:
		return RollupSpec{
			Rollup: id,
			Contracts: []ContractFilter{
				{Address: addresses.Primary, Events: []eventSpec{
					{signature: arbitrumSequencerBatchDeliveredSig, eventType: rollup.BatchDelivered, decode: decodeArbitrumBatchDelivered},
				}},
				{Address: addresses.Core, Events: []eventSpec{
					{signature: arbitrumAssertionCreatedSig, eventType: rollup.ProofSubmitted, decode: decodeArbitrumAssertionCreated},
					{signature: arbitrumAssertionConfirmedSig, eventType: rollup.ProofVerified, decode: decodeArbitrumAssertionConfirmed},
				}},
			},
		}
	case rollup.Starknet:
		return RollupSpec{
			Rollup: id,
			Contracts: []ContractFilter{
				{Address: addresses.Primary, Events: []eventSpec{
					{signature: starknetLogStateUpdateSig, eventType: rollup.StateUpdate, decode: decodeStarknetLogStateUpdate},
					{signature: starknetLogMessageToL2Sig, eventType: rollup.MessageLog, decode: decodeStarknetLogMessageToL2},
				}},
			},
		}
	case rollup.Base, rollup.Optimism:
		return RollupSpec{
			Rollup: id,
			Contracts: []ContractFilter{
				{Address: addresses.Core, Events: []eventSpec{
					{signature: opDisputeGameCreatedSig, eventType: rollup.DisputeGameCreated, decode: decodeOPDisputeGameCreated},
				}},
				{Address: addresses.Portal, Events: []eventSpec{
					{signature: opWithdrawalProvenSig, eventType: rollup.WithdrawalProven, decode: decodeOPWithdrawalProven},
				}},
			},
		}
	case rollup.ZkSync:
		return RollupSpec{
			Rollup: id,
			Contracts: []ContractFilter{
				{Address: addresses.Primary, Events: []eventSpec{
					{signature: zksyncBlockCommitSig, eventType: rollup.BlockCommit, decode: decodeZkSyncBlockCommit},
					{signature: zksyncBlocksVerificationSig, eventType: rollup.BlocksVerification, decode: decodeZkSyncBlocksVerification},
					{signature: zksyncBlockExecutionSig, eventType: rollup.BlockExecution, decode: decodeZkSyncBlockExecution},
				}},
			},
		}
	default:
		return RollupSpec{Rollup: id}
	}
}

// Addresses holds the L1 contract addresses one rollup is configured
// with, one field per {ROLLUP}_ADDRESS / {ROLLUP}_CORE /
// {ROLLUP}_PORTAL env var. Not every rollup uses every field:
// Arbitrum uses Primary (sequencer inbox) + Core (rollup core);
// Starknet and zkSync use only Primary; Base/Optimism use Core
// (dispute game factory) + Portal.
type Addresses struct {
	Primary common.Address
	Core    common.Address
	Portal  common.Address
}
