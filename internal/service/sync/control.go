package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/core"
)

// Status is the orchestrator's externally visible condition.
type Status struct {
	State  StateName   `json:"state"`
	Cursor core.Cursor `json:"cursor"`
	// GatewayHead is the highest height observed from the gateway.
	GatewayHead uint64 `json:"gateway_head"`
	// SettlementHead is the highest height the settlement layer finalized.
	SettlementHead uint64 `json:"settlement_head"`
	// Lag is how many blocks the local head trails the highest known source
	// head.
	Lag uint64 `json:"lag"`
	// Error carries the fatal error when State is halted.
	Error string `json:"error,omitempty"`
}

// Status reports the current state. It always reflects the true internal
// condition, including halted.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:          s.stateName,
		Cursor:         s.cursor,
		GatewayHead:    s.gatewayHead,
		SettlementHead: s.settledHead,
	}
	if s.haltErr != nil {
		status.Error = s.haltErr.Error()
	}

	best := max(s.gatewayHead, s.settledHead)
	if s.cursor.HasHead() && best > s.cursor.Head() {
		status.Lag = best - s.cursor.Head()
	} else if !s.cursor.HasHead() {
		status.Lag = best
	}
	return status
}

// Pause suspends the pipeline between steps. Progress is never lost: the
// persisted cursor stays where the last commit left it.
func (s *Service) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.logger.Info("sync pause requested")
}

// Resume lifts a pause. A halted sync is not resumed; it needs Restart.
func (s *Service) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.logger.Info("sync resume requested")
	s.poke()
}

// Restart clears a halt and resumes from the persisted cursor. Also lifts a
// pause.
func (s *Service) Restart() {
	s.mu.Lock()
	s.paused = false
	s.restart = true
	s.mu.Unlock()
	s.logger.Info("sync restart requested")
	s.poke()
}

func (s *Service) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Service) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// awaitResume parks the loop until Resume, Restart or shutdown.
func (s *Service) awaitResume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
		if !s.isPaused() {
			return nil
		}
	}
}

// awaitRestart parks a halted loop until Restart or shutdown, then reloads
// the cursor and restarts the block feed.
func (s *Service) awaitRestart(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}

		s.mu.Lock()
		requested := s.restart
		s.restart = false
		s.mu.Unlock()
		if !requested {
			continue
		}

		cursor, err := s.state.Cursor()
		if err != nil {
			return errors.Join(ErrHalted, err)
		}
		s.mu.Lock()
		s.haltErr = nil
		s.stateName = StateIdle
		s.contested = 0
		s.contestedTries = 0
		s.cursor = cursor
		s.mu.Unlock()

		s.restartFetcher(cursor.NextHeight)
		s.logger.Info("sync restarted", zap.Uint64("next_height", cursor.NextHeight))
		return nil
	}
}
