package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/source"
	"github.com/microbecode/madara/internal/source/settlement"
)

// blockFetcher streams consecutive blocks from a source into a bounded
// channel. One session serves one contiguous range; the orchestrator cancels
// and respawns it after a rollback.
type blockFetcher struct {
	source BlockSource
	poll   time.Duration
	sleep  func(context.Context, time.Duration) error
	logger *zap.Logger
}

func (f *blockFetcher) run(ctx context.Context, from uint64, out chan<- *core.BlockWithDiff) {
	defer close(out)

	next := from
	for ctx.Err() == nil {
		block, err := f.source.BlockByHeight(ctx, next)
		switch {
		case errors.Is(err, source.ErrBlockNotYetAvailable):
			if f.sleep(ctx, f.poll) != nil {
				return
			}
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("fetch failed, backing off",
				zap.Uint64("height", next), zap.Duration("sleep", f.poll), zap.Error(err))
			if f.sleep(ctx, f.poll) != nil {
				return
			}
			continue
		}

		select {
		case out <- block:
			next++
		case <-ctx.Done():
			return
		}
	}
}

// settlementPoller publishes the newest finalized commitment at an interval.
// The channel holds one element; an unread value is replaced, never queued.
type settlementPoller struct {
	source SettlementSource
	poll   time.Duration
	sleep  func(context.Context, time.Duration) error
	logger *zap.Logger
}

func (p *settlementPoller) run(ctx context.Context, out chan settlement.Confirmed) {
	for ctx.Err() == nil {
		confirmed, err := p.source.Latest(ctx)
		switch {
		case errors.Is(err, source.ErrNotConfirmed):
			// Nothing settled yet.
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("settlement poll failed", zap.Error(err))
		default:
			select {
			case out <- confirmed:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- confirmed:
				default:
				}
			}
		}

		if p.sleep(ctx, p.poll) != nil {
			return
		}
	}
}
