// Package settlement reads confirmed state commitments from the core
// contract on the settlement layer.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/source"
)

type (
	// EthClient is the slice of the settlement RPC surface the watcher uses.
	EthClient interface {
		HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
		CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
		FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	}

	// Metrics records metrics for settlement reads.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Core contract view selectors and the state update event signature.
var (
	selStateRoot        = ethcrypto.Keccak256([]byte("stateRoot()"))[:4]
	selStateBlockNumber = ethcrypto.Keccak256([]byte("stateBlockNumber()"))[:4]
	selStateBlockHash   = ethcrypto.Keccak256([]byte("stateBlockHash()"))[:4]
	topicLogStateUpdate = ethcrypto.Keccak256Hash([]byte("LogStateUpdate(uint256,int256,uint256)"))
)

// Config tunes the settlement watcher.
type Config struct {
	// CoreContract is the rollup core contract address.
	CoreContract common.Address
	// Confirmations, when non-zero, treats latest-N as final instead of the
	// node's finalized tag. For nodes that do not serve the tag.
	Confirmations uint64
	// LogLookback is how many settlement blocks RootAt scans backwards for
	// the state update event before giving up.
	LogLookback uint64
	// LogChunk is the block span of a single FilterLogs call.
	LogChunk uint64
}

const (
	defaultLogLookback = 50_000
	defaultLogChunk    = 5_000
)

// Confirmed is a state commitment the settlement layer has finalized.
type Confirmed struct {
	// Height is the rollup block height the commitment settles.
	Height uint64
	// Root is the settled global state root.
	Root felt.Felt
	// BlockHash is the settled rollup block hash.
	BlockHash felt.Felt
	// SettlementBlock is the finalized settlement-layer block the values
	// were read at.
	SettlementBlock uint64
}

// Source reads the core contract. All reads are pinned to a finalized
// settlement block, so results never reorg out from under the caller.
type Source struct {
	client  EthClient
	cfg     Config
	metrics Metrics
	logger  *zap.Logger
}

// New constructs a settlement source over an RPC client.
func New(client EthClient, cfg Config, metrics Metrics, logger *zap.Logger) (*Source, error) {
	if client == nil {
		return nil, errors.New("settlement client is required")
	}
	if metrics == nil {
		return nil, errors.New("settlement metrics is required")
	}
	if cfg.CoreContract == (common.Address{}) {
		return nil, errors.New("core contract address is required")
	}
	if cfg.LogLookback == 0 {
		cfg.LogLookback = defaultLogLookback
	}
	if cfg.LogChunk == 0 {
		cfg.LogChunk = defaultLogChunk
	}
	return &Source{
		client:  client,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("settlement"),
	}, nil
}

// Latest returns the newest finalized state commitment. Returns
// source.ErrNotConfirmed before the first state update settles.
func (s *Source) Latest(ctx context.Context) (confirmed Confirmed, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe("latest", err, started)
	}()

	settledAt, err := s.finalizedBlock(ctx)
	if err != nil {
		return Confirmed{}, err
	}

	heightWord, err := s.call(ctx, selStateBlockNumber, settledAt)
	if err != nil {
		return Confirmed{}, fmt.Errorf("read state block number: %w", err)
	}
	height, ok := decodeInt256(heightWord)
	if !ok {
		// The core contract reports a negative block number until the
		// first state update lands.
		return Confirmed{}, source.ErrNotConfirmed
	}

	rootWord, err := s.call(ctx, selStateRoot, settledAt)
	if err != nil {
		return Confirmed{}, fmt.Errorf("read state root: %w", err)
	}
	root, err := felt.FromBytes(rootWord)
	if err != nil {
		return Confirmed{}, fmt.Errorf("settled root is not a field element: %w", err)
	}

	hashWord, err := s.call(ctx, selStateBlockHash, settledAt)
	if err != nil {
		return Confirmed{}, fmt.Errorf("read state block hash: %w", err)
	}
	blockHash, err := felt.FromBytes(hashWord)
	if err != nil {
		return Confirmed{}, fmt.Errorf("settled block hash is not a field element: %w", err)
	}

	return Confirmed{
		Height:          height,
		Root:            root,
		BlockHash:       blockHash,
		SettlementBlock: settledAt,
	}, nil
}

// RootAt returns the settled root for a specific rollup height, scanning the
// state update event history backwards from the finalized settlement block.
// Returns source.ErrNotConfirmed when the height has not settled or its event
// is older than the lookback window.
func (s *Source) RootAt(ctx context.Context, height uint64) (root felt.Felt, err error) {
	started := time.Now()
	defer func() {
		s.metrics.Observe("root_at", err, started)
	}()

	latest, err := s.Latest(ctx)
	if err != nil {
		return felt.Felt{}, err
	}
	if height > latest.Height {
		return felt.Felt{}, source.ErrNotConfirmed
	}
	if height == latest.Height {
		return latest.Root, nil
	}

	oldest := uint64(0)
	if latest.SettlementBlock > s.cfg.LogLookback {
		oldest = latest.SettlementBlock - s.cfg.LogLookback
	}

	for to := latest.SettlementBlock; to >= oldest; {
		from := oldest
		if to > s.cfg.LogChunk && to-s.cfg.LogChunk > oldest {
			from = to - s.cfg.LogChunk
		}

		logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{s.cfg.CoreContract},
			Topics:    [][]common.Hash{{topicLogStateUpdate}},
		})
		if err != nil {
			return felt.Felt{}, fmt.Errorf("filter state update logs: %w", err)
		}

		for i := len(logs) - 1; i >= 0; i-- {
			update, err := decodeStateUpdate(&logs[i])
			if err != nil {
				s.logger.Warn("skipping malformed state update log",
					zap.Uint64("settlement_block", logs[i].BlockNumber), zap.Error(err))
				continue
			}
			if update.Height == height {
				return update.Root, nil
			}
			if update.Height < height {
				// Events settle in height order; no older event can match.
				return felt.Felt{}, source.ErrNotConfirmed
			}
		}

		if from == oldest {
			break
		}
		to = from - 1
	}
	return felt.Felt{}, source.ErrNotConfirmed
}

func (s *Source) finalizedBlock(ctx context.Context) (uint64, error) {
	if s.cfg.Confirmations > 0 {
		head, err := s.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("read settlement head: %w", err)
		}
		headNumber := head.Number.Uint64()
		if headNumber < s.cfg.Confirmations {
			return 0, nil
		}
		return headNumber - s.cfg.Confirmations, nil
	}

	header, err := s.client.HeaderByNumber(ctx, big.NewInt(rpc.FinalizedBlockNumber.Int64()))
	if err != nil {
		return 0, fmt.Errorf("read finalized settlement block: %w", err)
	}
	return header.Number.Uint64(), nil
}

func (s *Source) call(ctx context.Context, selector []byte, atBlock uint64) ([]byte, error) {
	ret, err := s.client.CallContract(ctx, ethereum.CallMsg{
		To:   &s.cfg.CoreContract,
		Data: selector,
	}, new(big.Int).SetUint64(atBlock))
	if err != nil {
		return nil, err
	}
	if len(ret) != 32 {
		return nil, fmt.Errorf("expected a 32-byte return, got %d bytes", len(ret))
	}
	return ret, nil
}

// decodeInt256 reads a non-negative int256 word as uint64; ok is false for
// negative or oversized values.
func decodeInt256(word []byte) (uint64, bool) {
	if len(word) != 32 || word[0]&0x80 != 0 {
		return 0, false
	}
	n := new(big.Int).SetBytes(word)
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

type stateUpdate struct {
	Height uint64
	Root   felt.Felt
}

// decodeStateUpdate unpacks a LogStateUpdate event: three unindexed words,
// global root, rollup block number (int256) and rollup block hash.
func decodeStateUpdate(log *types.Log) (stateUpdate, error) {
	if len(log.Data) != 96 {
		return stateUpdate{}, fmt.Errorf("expected 96 bytes of event data, got %d", len(log.Data))
	}
	root, err := felt.FromBytes(log.Data[:32])
	if err != nil {
		return stateUpdate{}, fmt.Errorf("event root is not a field element: %w", err)
	}
	height, ok := decodeInt256(log.Data[32:64])
	if !ok {
		return stateUpdate{}, errors.New("event block number is negative or oversized")
	}
	return stateUpdate{Height: height, Root: root}, nil
}
