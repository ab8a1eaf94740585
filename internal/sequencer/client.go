package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const headCallTimeout = 5 * time.Second

// HeadSource abstracts the L2 head query: the current block number and
// its timestamp. EVM rollups answer it over standard Ethereum JSON-RPC;
// Starknet answers it over its own JSON-RPC method.
type HeadSource interface {
	GetHead(ctx context.Context) (blockNumber uint64, blockTimestamp int64, err error)
}

// EthHeadSource reads the head block of an EVM L2 over HTTP JSON-RPC
// (eth_getBlockByNumber(latest, false)).
type EthHeadSource struct {
	client *ethclient.Client
}

func DialEthHead(ctx context.Context, url string) (*EthHeadSource, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L2 endpoint: %w", err)
	}
	return &EthHeadSource{client: client}, nil
}

func (s *EthHeadSource) GetHead(ctx context.Context) (uint64, int64, error) {
	ctxt, cancel := context.WithTimeout(ctx, headCallTimeout)
	defer cancel()
	header, err := s.client.HeaderByNumber(ctxt, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch L2 head: %w", err)
	}
	return header.Number.Uint64(), int64(header.Time), nil
}

// StarknetHeadSource reads the head block of a Starknet node. Starknet
// does not speak Ethereum JSON-RPC; its head query is
// starknet_getBlockWithTxHashes("latest"), which carries the block
// number and timestamp directly in the result object.
type StarknetHeadSource struct {
	client *rpc.Client
}

func DialStarknetHead(ctx context.Context, url string) (*StarknetHeadSource, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial Starknet endpoint: %w", err)
	}
	return &StarknetHeadSource{client: client}, nil
}

func (s *StarknetHeadSource) GetHead(ctx context.Context) (uint64, int64, error) {
	ctxt, cancel := context.WithTimeout(ctx, headCallTimeout)
	defer cancel()
	var head struct {
		BlockNumber uint64 `json:"block_number"`
		Timestamp   int64  `json:"timestamp"`
	}
	if err := s.client.CallContext(ctxt, &head, "starknet_getBlockWithTxHashes", "latest"); err != nil {
		return 0, 0, fmt.Errorf("failed to fetch Starknet head: %w", err)
	}
	return head.BlockNumber, head.Timestamp, nil
}
