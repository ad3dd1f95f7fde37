package sync

import (
	"context"
	"time"

	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/source/settlement"
	"github.com/microbecode/madara/internal/state"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// BlockSource serves blocks with their state diffs by height.
	BlockSource interface {
		BlockByHeight(ctx context.Context, height uint64) (*core.BlockWithDiff, error)
		Head(ctx context.Context) (uint64, error)
	}

	// SettlementSource reads finalized commitments from the settlement layer.
	SettlementSource interface {
		Latest(ctx context.Context) (settlement.Confirmed, error)
		RootAt(ctx context.Context, height uint64) (felt.Felt, error)
	}

	// StateEngine stages, verifies and commits state versions. The
	// orchestrator is its only writer.
	StateEngine interface {
		Cursor() (core.Cursor, error)
		Stage(ctx context.Context, height uint64, diff *core.StateDiff) (*state.Staged, error)
		Commitment(staged *state.Staged) felt.Felt
		Commit(staged *state.Staged, header *core.Header, progress core.Progress) (core.Cursor, error)
		SaveProgress(progress core.Progress) error
		RollbackTo(height uint64) (core.Cursor, error)
		RootOf(height uint64) (felt.Felt, error)
		HeaderByHeight(height uint64) (*core.Header, error)
	}

	// Metrics records metrics for the sync pipeline.
	Metrics interface {
		ObserveApply(err error, mutations int, started time.Time)
		ObserveReorg(discarded uint64)
		SetHead(height uint64)
		SetSourceHeight(sourceName string, height uint64)
	}
)
