// Package rollup holds the value types shared by every component of
// rollupwatch: the rollup identifier enum, the uniform event shape
// decoded from L1 logs, the mutable per-rollup status record, sequencer
// liveness metrics, and the health thresholds that drive the assessor.
package rollup

import (
	"fmt"
)

// ID is the closed set of rollups rollupwatch knows how to track.
type ID int

const (
	Arbitrum ID = iota
	Starknet
	Base
	Optimism
	ZkSync

	numRollupIDs
)

// AllIDs returns every supported rollup, in a stable order.
func AllIDs() []ID {
	return []ID{Arbitrum, Starknet, Base, Optimism, ZkSync}
}

func (r ID) String() string {
	switch r {
	case Arbitrum:
		return "arbitrum"
	case Starknet:
		return "starknet"
	case Base:
		return "base"
	case Optimism:
		return "optimism"
	case ZkSync:
		return "zksync"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// MarshalText (not MarshalJSON) so the ID also renders as its name when
// used as a JSON map key in the snapshot endpoints.
func (r ID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ParseID maps a route/flag-style lowercase name back to an ID.
func ParseID(name string) (ID, bool) {
	for _, id := range AllIDs() {
		if id.String() == name {
			return id, true
		}
	}
	return 0, false
}

// EventType enumerates the internal event shapes a watcher may emit,
// decoded from a rollup-specific L1 contract event.
type EventType int

const (
	BatchDelivered EventType = iota
	ProofSubmitted
	ProofVerified
	StateUpdate
	MessageLog
	DisputeGameCreated
	WithdrawalProven
	BlockCommit
	BlocksVerification
	BlockExecution
)

func (e EventType) String() string {
	switch e {
	case BatchDelivered:
		return "BatchDelivered"
	case ProofSubmitted:
		return "ProofSubmitted"
	case ProofVerified:
		return "ProofVerified"
	case StateUpdate:
		return "StateUpdate"
	case MessageLog:
		return "MessageLog"
	case DisputeGameCreated:
		return "DisputeGameCreated"
	case WithdrawalProven:
		return "WithdrawalProven"
	case BlockCommit:
		return "BlockCommit"
	case BlocksVerification:
		return "BlocksVerification"
	case BlockExecution:
		return "BlockExecution"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Class is the lifecycle bucket an EventType advances in RollupStatus.
// A single EventType may advance more than one class (Starknet's
// StateUpdate collapses all three; Base/OP's DisputeGameCreated
// advances two).
type Class int

const (
	ClassNone Class = iota
	ClassBatch
	ClassProof
	ClassFinalized
)

// Classes returns the lifecycle classes the given event type advances.
func (e EventType) Classes() []Class {
	switch e {
	case BatchDelivered, BlockCommit:
		return []Class{ClassBatch}
	case ProofSubmitted, BlocksVerification:
		return []Class{ClassProof}
	case ProofVerified, WithdrawalProven, BlockExecution:
		return []Class{ClassFinalized}
	case StateUpdate:
		return []Class{ClassBatch, ClassProof, ClassFinalized}
	case DisputeGameCreated:
		return []Class{ClassBatch, ClassProof}
	case MessageLog:
		return nil
	default:
		return nil
	}
}

// Event is the uniform, broadcast unit emitted by a watcher for every
// decoded L1 log, regardless of which rollup or contract produced it.
//
// Invariant: BlockNumber > 0, TxHash is non-empty, and Timestamp is the
// L1 block's own timestamp, never wall clock.
type Event struct {
	Rollup      ID        `json:"rollup"`
	EventType   EventType `json:"event_type"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	// BatchNumber is nil when the log's identifier could not be parsed;
	// the event is still broadcast but must not advance status.
	BatchNumber *string `json:"batch_number"`
	Timestamp   int64   `json:"timestamp"`
}

func (e Event) Valid() bool {
	return e.BlockNumber > 0 && e.TxHash != "" && e.Timestamp > 0
}

// Status is the mutable, authoritative per-rollup commitment state held
// by the Hub. The three (value, tx) pairs each reflect the most recent
// event of their semantic class.
type Status struct {
	LatestBatch       *string `json:"latest_batch"`
	LatestBatchTx     *string `json:"latest_batch_tx"`
	LatestProof       *string `json:"latest_proof"`
	LatestProofTx     *string `json:"latest_proof_tx"`
	LatestFinalized   *string `json:"latest_finalized"`
	LatestFinalizedTx *string `json:"latest_finalized_tx"`
	LastUpdated       int64   `json:"last_updated"`

	// LastBatchUpdated/LastProofUpdated track when each individual class
	// last advanced, independent of LastUpdated (which tracks the most
	// recent event of ANY class). The health assessor's cadence checks
	// need these, not just the overall LastUpdated.
	LastBatchUpdated int64 `json:"last_batch_updated"`
	LastProofUpdated int64 `json:"last_proof_updated"`
}

// SequencerMetrics is the per-rollup L2 liveness record the Sequencer
// Poller publishes into the Hub. IsProducing is derived, never stored.
type SequencerMetrics struct {
	LatestBlock                  uint64  `json:"latest_block"`
	LatestBlockTimestamp         int64   `json:"latest_block_timestamp"`
	BlocksPerSecond              float64 `json:"blocks_per_second"`
	SecondsSinceLastBlockAdvance int64   `json:"seconds_since_last_block_advance"`
	LastPolled                   int64   `json:"last_polled"`
}

// IsProducing is a pure function of SecondsSinceLastBlockAdvance and the
// configured downtime threshold.
func (m SequencerMetrics) IsProducing(downThreshold int64) bool {
	return m.SecondsSinceLastBlockAdvance < downThreshold
}

// SequencerView is the wire form of SequencerMetrics, with the derived
// is_producing field materialized against a concrete threshold.
type SequencerView struct {
	SequencerMetrics
	IsProducing bool `json:"is_producing"`
}

func (m SequencerMetrics) View(downThreshold int64) SequencerView {
	return SequencerView{SequencerMetrics: m, IsProducing: m.IsProducing(downThreshold)}
}

// DefaultSequencerDownThresholdSecs is the default for
// SEQUENCER_DOWNTIME_THRESHOLD_SECS, overridable via config.
const DefaultSequencerDownThresholdSecs = 30

// ThresholdSet is the immutable (after startup) per-rollup health
// configuration. Invariant: BatchCadenceSecs <= DelayedSecs <= HaltedSecs.
type ThresholdSet struct {
	BatchCadenceSecs int64
	ProofCadenceSecs int64
	DelayedSecs      int64
	HaltedSecs       int64
}

func (t ThresholdSet) Check() error {
	if t.BatchCadenceSecs > t.DelayedSecs {
		return fmt.Errorf("batch_cadence_secs (%d) must be <= delayed_secs (%d)", t.BatchCadenceSecs, t.DelayedSecs)
	}
	if t.DelayedSecs > t.HaltedSecs {
		return fmt.Errorf("delayed_secs (%d) must be <= halted_secs (%d)", t.DelayedSecs, t.HaltedSecs)
	}
	return nil
}

// HealthStatus is the four-way classification produced by the assessor.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Delayed
	Halted
	Disconnected
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Delayed:
		return "delayed"
	case Halted:
		return "halted"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("unknown(%d)", int(h))
	}
}

func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// HealthReport is derived on demand by the assessor; it is never stored.
type HealthReport struct {
	Rollup           ID           `json:"rollup"`
	Status           HealthStatus `json:"status"`
	LastEventAgeSecs *int64       `json:"last_event_age_secs"`
	LastBatchAgeSecs *int64       `json:"last_batch_age_secs"`
	LastProofAgeSecs *int64       `json:"last_proof_age_secs"`
	Issues           []string     `json:"issues"`
}
