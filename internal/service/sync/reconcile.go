package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/felt"
	"github.com/microbecode/madara/internal/source"
)

// reconcile resolves a divergence between the local chain and the network at
// the contested height. The settlement layer arbitrates: the local chain is
// rolled back to the highest height whose root it settled identically, and
// the discarded range resyncs through the settlement-capped provider.
// Repeated attempts for the same height exhaust the retry budget and halt
// the orchestrator.
func (s *Service) reconcile(ctx context.Context, contested uint64) error {
	s.setState(StateReconciling)
	s.setReconciling(true)
	defer s.setReconciling(false)

	if exhausted := s.chargeContested(contested); exhausted {
		return s.halt(fmt.Errorf("height %d still contested after %d reconciliation attempts: %w",
			contested, s.cfg.RetryBudget, ErrHalted))
	}

	cursor := s.Cursor()
	if !cursor.HasHead() {
		// Empty chain: nothing to roll back, the contested block was bad
		// source data. Refetch, through the settlement-capped provider when
		// the height has settled.
		s.distrustThrough(contested)
		s.restartFetcher(cursor.NextHeight)
		return nil
	}
	head := cursor.Head()

	if contested > head {
		// The contested block is not committed locally. Check the local
		// head against the authority before refetching: a divergence there
		// means the committed chain itself is off the settled branch.
		agrees, err := s.agreesWithSettled(ctx, head)
		if err != nil {
			return err
		}
		if agrees {
			s.distrustThrough(contested)
			s.restartFetcher(cursor.NextHeight)
			return nil
		}
		contested = head
	}

	settledRoot, err := s.settledRootAt(ctx, contested)
	if err != nil {
		return err
	}
	localRoot, err := s.state.RootOf(contested)
	if err != nil {
		return fmt.Errorf("read local root of height %d: %w", contested, err)
	}
	if localRoot.Equal(&settledRoot) {
		// Already on the settled branch; the mismatch came from bad data
		// above it.
		s.restartFetcher(cursor.NextHeight)
		return nil
	}
	if contested == 0 {
		return s.halt(fmt.Errorf("local genesis disagrees with the settlement layer: %w", ErrHalted))
	}

	agreed, found, err := s.highestAgreedHeight(ctx, contested-1)
	if err != nil {
		return err
	}
	if !found {
		return s.halt(fmt.Errorf("local chain disagrees with the settlement layer down to genesis: %w", ErrHalted))
	}

	discarded := head - agreed
	rolled, err := s.state.RollbackTo(agreed)
	if err != nil {
		return fmt.Errorf("rollback to height %d: %w", agreed, err)
	}
	s.setCursor(rolled)
	s.metrics.ObserveReorg(discarded)
	s.metrics.SetHead(agreed)
	s.logger.Info("rolled back to settlement-agreed height",
		zap.Uint64("height", agreed),
		zap.Uint64("discarded", discarded))

	// Resync the discarded range from the settlement-authoritative branch.
	s.distrustThrough(contested)
	s.restartFetcher(rolled.NextHeight)
	return nil
}

func (s *Service) settledRootAt(ctx context.Context, height uint64) (felt.Felt, error) {
	root, err := s.settlement.RootAt(ctx, height)
	if errors.Is(err, source.ErrNotConfirmed) {
		// The authority has not settled the height yet; nothing to
		// arbitrate with. Retried on the next attempt.
		return felt.Felt{}, fmt.Errorf("height %d is contested but not settled yet: %w", height, err)
	}
	if err != nil {
		return felt.Felt{}, fmt.Errorf("read settled root of height %d: %w", height, err)
	}
	return root, nil
}

// agreesWithSettled reports whether the local root at height matches the
// settled one. Heights the settlement layer has not reached yet cannot be
// arbitrated and count as agreement.
func (s *Service) agreesWithSettled(ctx context.Context, height uint64) (bool, error) {
	settledRoot, err := s.settlement.RootAt(ctx, height)
	if errors.Is(err, source.ErrNotConfirmed) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read settled root of height %d: %w", height, err)
	}
	localRoot, err := s.state.RootOf(height)
	if err != nil {
		return false, fmt.Errorf("read local root of height %d: %w", height, err)
	}
	return localRoot.Equal(&settledRoot), nil
}

// highestAgreedHeight walks downward from the given height to the highest
// height where the local root equals the settled root.
func (s *Service) highestAgreedHeight(ctx context.Context, from uint64) (uint64, bool, error) {
	for h := from; ; h-- {
		localRoot, err := s.state.RootOf(h)
		if err != nil {
			return 0, false, fmt.Errorf("read local root of height %d: %w", h, err)
		}

		settledRoot, err := s.settlement.RootAt(ctx, h)
		switch {
		case errors.Is(err, source.ErrNotConfirmed):
			// Older than the settlement event window; anything that far
			// below finality is ancient history. Accept it as agreed.
			s.logger.Warn("settled root unavailable below event window, assuming agreement",
				zap.Uint64("height", h))
			return h, true, nil
		case err != nil:
			return 0, false, fmt.Errorf("read settled root of height %d: %w", h, err)
		}

		if localRoot.Equal(&settledRoot) {
			return h, true, nil
		}
		if h == 0 {
			return 0, false, nil
		}
	}
}

// chargeContested counts a reconciliation attempt against the contested
// height's budget; true when the budget is exhausted.
func (s *Service) chargeContested(height uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contested != height {
		s.contested = height
		s.contestedTries = 0
	}
	s.contestedTries++
	return s.contestedTries > s.cfg.RetryBudget
}

func (s *Service) clearContested() {
	s.mu.Lock()
	s.contested = 0
	s.contestedTries = 0
	s.mu.Unlock()
}

func (s *Service) distrustThrough(height uint64) {
	s.mu.Lock()
	if height > s.distrustUntil {
		s.distrustUntil = height
	}
	s.mu.Unlock()
}

// setReconciling flips the cursor's reconcile flag and persists it, so an
// interrupted reconciliation is visible after a restart.
func (s *Service) setReconciling(active bool) {
	s.mu.Lock()
	s.cursor.Reconciling = active
	s.mu.Unlock()
	if err := s.state.SaveProgress(s.progress()); err != nil {
		s.logger.Warn("persist reconcile flag", zap.Error(err))
	}
}

func (s *Service) halt(err error) error {
	s.mu.Lock()
	s.stateName = StateHalted
	s.haltErr = err
	s.mu.Unlock()
	s.logger.Error("sync halted, operator intervention required", zap.Error(err))
	return err
}
