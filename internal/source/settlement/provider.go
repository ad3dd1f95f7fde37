package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/source"
)

type (
	// BlockFetcher serves block bodies. The settlement layer settles only
	// commitments, so bodies still come from a gateway-style fetcher.
	BlockFetcher interface {
		BlockByHeight(ctx context.Context, height uint64) (*core.BlockWithDiff, error)
	}
)

// BlockProvider serves blocks capped to settlement finality: a height is
// available only once its commitment has settled, and the body's declared
// root is cross-checked against the settled one before it is handed out.
// Slower than the gateway but never serves a block that can reorg.
type BlockProvider struct {
	source  *Source
	fetcher BlockFetcher
	logger  *zap.Logger
}

// NewBlockProvider combines a settlement source with a block fetcher.
func NewBlockProvider(src *Source, fetcher BlockFetcher, logger *zap.Logger) (*BlockProvider, error) {
	if src == nil {
		return nil, errors.New("settlement source is required")
	}
	if fetcher == nil {
		return nil, errors.New("block fetcher is required")
	}
	return &BlockProvider{
		source:  src,
		fetcher: fetcher,
		logger:  logger.Named("settlementBlocks"),
	}, nil
}

// BlockByHeight returns the block at height once it has settled. Returns
// source.ErrBlockNotYetAvailable for heights past finality.
func (p *BlockProvider) BlockByHeight(ctx context.Context, height uint64) (*core.BlockWithDiff, error) {
	settledRoot, err := p.source.RootAt(ctx, height)
	if errors.Is(err, source.ErrNotConfirmed) {
		return nil, source.ErrBlockNotYetAvailable
	}
	if err != nil {
		return nil, err
	}

	block, err := p.fetcher.BlockByHeight(ctx, height)
	if err != nil {
		return nil, err
	}
	if !block.Header.GlobalStateRoot.Equal(&settledRoot) {
		return nil, fmt.Errorf("fetched block %d declares root %s, settlement layer settled %s",
			height, block.Header.GlobalStateRoot, settledRoot)
	}
	return block, nil
}

// Head returns the highest settled height.
func (p *BlockProvider) Head(ctx context.Context) (uint64, error) {
	confirmed, err := p.source.Latest(ctx)
	if err != nil {
		return 0, err
	}
	return confirmed.Height, nil
}
