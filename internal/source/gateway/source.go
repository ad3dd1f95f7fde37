package gateway

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
)

// Source adapts the gateway client to the block feed the sync pipeline
// consumes.
type Source struct {
	client *Client
	logger *zap.Logger
}

// NewSource wraps a gateway client.
func NewSource(client *Client, logger *zap.Logger) *Source {
	return &Source{client: client, logger: logger.Named("gatewaySource")}
}

// BlockByHeight fetches the block at height with its state diff. Returns
// source.ErrBlockNotYetAvailable past the sequencer head.
func (s *Source) BlockByHeight(ctx context.Context, height uint64) (*core.BlockWithDiff, error) {
	update, err := s.client.StateUpdateWithBlock(ctx, height)
	if err != nil {
		return nil, err
	}
	block, err := update.ToCore()
	if err != nil {
		return nil, fmt.Errorf("malformed gateway response for height %d: %w", height, err)
	}
	if block.Header.Number != height {
		return nil, fmt.Errorf("asked gateway for height %d, got %d", height, block.Header.Number)
	}
	return block, nil
}

// Head returns the sequencer's latest block height.
func (s *Source) Head(ctx context.Context) (uint64, error) {
	return s.client.Head(ctx)
}
