// Package sync drives the chain head forward: it pulls blocks from the
// sources, stages them against the state engine, verifies commitments and
// reconciles the local chain against the settlement layer on divergence.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/clock"
	"github.com/microbecode/madara/internal/core"
	"github.com/microbecode/madara/internal/source"
	"github.com/microbecode/madara/internal/source/settlement"
	"github.com/microbecode/madara/internal/state"
)

// ErrHalted is returned once the orchestrator has given up on reconciling
// and requires operator intervention via Restart.
var ErrHalted = errors.New("sync halted")

// StateName is the orchestrator's externally visible state.
type StateName string

const (
	StateIdle        StateName = "idle"
	StateFetching    StateName = "fetching"
	StateApplying    StateName = "applying"
	StateVerifying   StateName = "verifying"
	StateCommitting  StateName = "committing"
	StateReconciling StateName = "reconciling"
	StatePaused      StateName = "paused"
	StateHalted      StateName = "halted"
)

// Config tunes the orchestrator.
type Config struct {
	// PollInterval is the idle wait between head checks.
	PollInterval time.Duration
	// StallTimeout is how long the gateway feed may stay silent before the
	// settlement-capped provider is tried for the next height.
	StallTimeout time.Duration
	// QueueSize bounds the gateway block feed; the producer blocks when the
	// orchestrator falls behind.
	QueueSize int
	// RetryBudget is the number of reconciliation attempts per contested
	// height before the orchestrator halts.
	RetryBudget int
	// DisableRootVerification skips the commitment-vs-header check. The
	// commitment is still computed and stored. Testing knob.
	DisableRootVerification bool
}

const (
	defaultPollInterval = 2 * time.Second
	defaultStallTimeout = 30 * time.Second
	defaultQueueSize    = 64
	defaultRetryBudget  = 3
)

// Service is the sync orchestrator: the single writer of the state engine.
type Service struct {
	logger     *zap.Logger
	gateway    BlockSource
	fallback   BlockSource
	settlement SettlementSource
	state      StateEngine
	metrics    Metrics
	notifier   *Notifier
	cfg        Config
	sleep      func(context.Context, time.Duration) error

	runCtx    context.Context
	confirmed chan settlement.Confirmed

	// fetcher session; replaced on rollback so the stream restarts at the
	// new head.
	fetchCancel context.CancelFunc
	blocks      chan *core.BlockWithDiff

	mu          stdsync.Mutex
	stateName   StateName
	cursor      core.Cursor
	gatewayHead uint64
	settledHead uint64
	haltErr     error
	paused      bool
	restart     bool
	wake        chan struct{}

	// reconciliation budget for the currently contested height
	contested      uint64
	contestedTries int

	// heights at or below this bound are fetched through the
	// settlement-capped provider instead of the gateway
	distrustUntil uint64
}

// New builds the orchestrator.
func New(
	gateway BlockSource,
	fallback BlockSource,
	settlementSource SettlementSource,
	stateEngine StateEngine,
	metrics Metrics,
	notifier *Notifier,
	logger *zap.Logger,
	cfg Config,
) (*Service, error) {
	if gateway == nil || fallback == nil || settlementSource == nil {
		return nil, errors.New("all sync sources are required")
	}
	if stateEngine == nil {
		return nil, errors.New("state engine is required")
	}
	if metrics == nil {
		return nil, errors.New("sync metrics is required")
	}
	if notifier == nil {
		notifier = NewNotifier(logger)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = defaultStallTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = defaultRetryBudget
	}

	return &Service{
		logger:     logger.Named("sync"),
		gateway:    gateway,
		fallback:   fallback,
		settlement: settlementSource,
		state:      stateEngine,
		metrics:    metrics,
		notifier:   notifier,
		cfg:        cfg,
		sleep:      clock.SleepWithContext,
		stateName:  StateIdle,
		wake:       make(chan struct{}, 1),
	}, nil
}

// Notifier returns the head notifier consumers subscribe on.
func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// Run drives the pipeline until the context is canceled. Recovery is
// implicit: the cursor is re-read from the last durable commit, discarding
// any staged-but-uncommitted work of a previous run.
func (s *Service) Run(ctx context.Context) error {
	cursor, err := s.state.Cursor()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	s.setCursor(cursor)
	if cursor.HasHead() {
		s.metrics.SetHead(cursor.Head())
	}
	s.logger.Info("starting sync", zap.Uint64("next_height", cursor.NextHeight))

	s.runCtx = ctx
	s.confirmed = make(chan settlement.Confirmed, 1)
	poller := &settlementPoller{
		source: s.settlement,
		poll:   s.cfg.PollInterval,
		sleep:  s.sleep,
		logger: s.logger.Named("settlementPoller"),
	}
	go poller.run(ctx, s.confirmed)

	s.startFetcher(cursor.NextHeight)
	defer s.stopFetcher()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, ErrHalted):
			if err := s.awaitRestart(ctx); err != nil {
				return err
			}
		default:
			s.logger.Warn("sync iteration failed, backing off",
				zap.Error(err), zap.Duration("sleep", s.cfg.PollInterval))
			if sleepErr := s.sleep(ctx, s.cfg.PollInterval); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

func (s *Service) step(ctx context.Context) error {
	if s.isPaused() {
		s.setState(StatePaused)
		return s.awaitResume(ctx)
	}

	if err := s.drainConfirmed(ctx); err != nil {
		return err
	}

	s.setState(StateFetching)
	block, err := s.nextBlock(ctx)
	if err != nil {
		return err
	}
	if block == nil {
		s.setState(StateIdle)
		return s.sleep(ctx, s.cfg.PollInterval)
	}
	return s.apply(ctx, block)
}

// nextBlock returns the block for the cursor's next height, or nil when no
// source has it yet.
func (s *Service) nextBlock(ctx context.Context) (*core.BlockWithDiff, error) {
	next := s.Cursor().NextHeight

	// Heights the settlement layer already finalized are served through the
	// finality-capped provider while the gateway is distrusted. A height the
	// settlement layer has not reached falls through to the gateway stream.
	if next <= s.distrustBound() {
		block, err := s.fallback.BlockByHeight(ctx, next)
		switch {
		case err == nil:
			return block, nil
		case errors.Is(err, source.ErrBlockNotYetAvailable):
		default:
			return nil, fmt.Errorf("settlement-capped fetch of height %d: %w", next, err)
		}
	}

	timer := time.NewTimer(s.cfg.StallTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case block, ok := <-s.blocks:
			if !ok {
				return nil, errors.New("gateway block feed closed")
			}
			if block.Header.Number < next {
				// Stale leftovers from before a rollback.
				continue
			}
			if block.Header.Number > next {
				s.restartFetcher(next)
				return nil, fmt.Errorf("gateway feed skipped to height %d, want %d", block.Header.Number, next)
			}
			s.trackGatewayFetched(block.Header.Number)
			return block, nil
		case confirmed := <-s.confirmed:
			if err := s.handleConfirmed(confirmed); err != nil {
				return nil, err
			}
			if s.Cursor().NextHeight != next {
				// A settled-root conflict rolled the head back; re-enter
				// the fetch step at the new height.
				return nil, nil
			}
		case <-timer.C:
			s.logger.Debug("gateway feed stalled, trying settlement-capped provider",
				zap.Uint64("height", next))
			block, err := s.fallback.BlockByHeight(ctx, next)
			switch {
			case errors.Is(err, source.ErrBlockNotYetAvailable):
				return nil, nil
			case err != nil:
				s.logger.Warn("settlement-capped fetch failed", zap.Uint64("height", next), zap.Error(err))
				return nil, nil
			}
			return block, nil
		}
	}
}

func (s *Service) apply(ctx context.Context, block *core.BlockWithDiff) error {
	started := time.Now()
	cursor := s.Cursor()
	header := block.Header

	if cursor.HasHead() && !header.ParentHash.Equal(&cursor.HeadHash) {
		s.logger.Warn("parent hash does not extend local head",
			zap.Uint64("height", header.Number),
			zap.Stringer("parent", header.ParentHash),
			zap.Stringer("head", cursor.HeadHash))
		return s.reconcile(ctx, header.Number)
	}

	s.setState(StateApplying)
	staged, err := s.state.Stage(ctx, header.Number, block.Diff)
	if err != nil {
		s.metrics.ObserveApply(err, 0, started)
		if errors.Is(err, state.ErrInvalidDiff) {
			// Non-fatal stall: the height is not advanced and will be
			// refetched, through the settlement-capped provider when the
			// height has already settled.
			s.noteBadHeight(header.Number)
			s.restartFetcher(cursor.NextHeight)
		}
		return fmt.Errorf("stage height %d: %w", header.Number, err)
	}

	s.setState(StateVerifying)
	if !s.cfg.DisableRootVerification {
		commitment := s.state.Commitment(staged)
		if !commitment.Equal(&header.GlobalStateRoot) {
			s.metrics.ObserveApply(fmt.Errorf("commitment mismatch"), 0, started)
			s.logger.Warn("computed commitment disagrees with declared root",
				zap.Uint64("height", header.Number),
				zap.Stringer("computed", commitment),
				zap.Stringer("declared", header.GlobalStateRoot))
			return s.reconcile(ctx, header.Number)
		}
	}

	s.setState(StateCommitting)
	next, err := s.state.Commit(staged, header, s.progress())
	s.metrics.ObserveApply(err, block.Diff.Length(), started)
	if err != nil {
		return fmt.Errorf("commit height %d: %w", header.Number, err)
	}

	s.setCursor(next)
	s.clearContested()
	s.metrics.SetHead(next.Head())
	s.notifier.Publish(next.Head())
	s.logger.Info("new head",
		zap.Uint64("height", next.Head()),
		zap.Stringer("root", next.Root),
		zap.Int("mutations", block.Diff.Length()))
	s.setState(StateIdle)
	return nil
}

// drainConfirmed folds the settlement poller's newest observation into the
// local view without blocking.
func (s *Service) drainConfirmed(_ context.Context) error {
	select {
	case confirmed := <-s.confirmed:
		return s.handleConfirmed(confirmed)
	default:
		return nil
	}
}

func (s *Service) handleConfirmed(confirmed settlement.Confirmed) error {
	s.mu.Lock()
	s.settledHead = confirmed.Height
	if confirmed.Height > s.cursor.SettlementFetched {
		s.cursor.SettlementFetched = confirmed.Height
	}
	cursor := s.cursor
	s.mu.Unlock()
	s.metrics.SetSourceHeight("settlement", confirmed.Height)

	if !cursor.HasHead() || confirmed.Height > cursor.Head() {
		return nil
	}

	localRoot, err := s.state.RootOf(confirmed.Height)
	if err != nil {
		return fmt.Errorf("read local root of settled height %d: %w", confirmed.Height, err)
	}
	if localRoot.Equal(&confirmed.Root) {
		return nil
	}

	s.logger.Warn("settlement layer finalized a different root",
		zap.Uint64("height", confirmed.Height),
		zap.Stringer("local", localRoot),
		zap.Stringer("settled", confirmed.Root))
	return s.reconcile(s.runCtx, confirmed.Height)
}

func (s *Service) startFetcher(from uint64) {
	fetchCtx, cancel := context.WithCancel(s.runCtx)
	s.fetchCancel = cancel
	s.blocks = make(chan *core.BlockWithDiff, s.cfg.QueueSize)

	fetcher := &blockFetcher{
		source: s.gateway,
		poll:   s.cfg.PollInterval,
		sleep:  s.sleep,
		logger: s.logger.Named("gatewayFetcher"),
	}
	go fetcher.run(fetchCtx, from, s.blocks)
}

func (s *Service) stopFetcher() {
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
}

func (s *Service) restartFetcher(from uint64) {
	s.stopFetcher()
	s.startFetcher(from)
}

func (s *Service) trackGatewayFetched(height uint64) {
	s.mu.Lock()
	if height > s.gatewayHead {
		s.gatewayHead = height
	}
	if height > s.cursor.GatewayFetched {
		s.cursor.GatewayFetched = height
	}
	s.mu.Unlock()
	s.metrics.SetSourceHeight("gateway", height)
}

func (s *Service) setState(name StateName) {
	s.mu.Lock()
	s.stateName = name
	s.mu.Unlock()
}

func (s *Service) setCursor(cursor core.Cursor) {
	s.mu.Lock()
	// Preserve in-memory fetch bookkeeping across commits.
	if s.cursor.GatewayFetched > cursor.GatewayFetched {
		cursor.GatewayFetched = s.cursor.GatewayFetched
	}
	if s.cursor.SettlementFetched > cursor.SettlementFetched {
		cursor.SettlementFetched = s.cursor.SettlementFetched
	}
	s.cursor = cursor
	s.mu.Unlock()
}

// Cursor returns the orchestrator's view of sync progress.
func (s *Service) Cursor() core.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// progress snapshots the in-memory source bookkeeping for persistence.
func (s *Service) progress() core.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Progress{
		GatewayFetched:    s.cursor.GatewayFetched,
		SettlementFetched: s.cursor.SettlementFetched,
		Reconciling:       s.cursor.Reconciling,
	}
}

func (s *Service) distrustBound() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distrustUntil
}

// noteBadHeight routes a height through the settlement-capped provider on
// its retry, when the settlement layer already covers it.
func (s *Service) noteBadHeight(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height <= s.settledHead && height > s.distrustUntil {
		s.distrustUntil = height
	}
}
