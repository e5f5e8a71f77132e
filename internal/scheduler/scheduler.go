// Package scheduler runs background maintenance on a cron cadence.
// Its only job today is closing conversations that have gone idle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/parlo-ai/parlo/internal/store"
)

// Sweeper closes conversations with no activity past the idle timeout.
type Sweeper struct {
	store       store.Store
	schedule    cron.Schedule
	idleTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper parses the cron spec (standard five-field format) and builds
// the sweeper.
func NewSweeper(st store.Store, cronSpec string, idleTimeout time.Duration, logger *slog.Logger) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", cronSpec, err)
	}
	return &Sweeper{
		store:       st,
		schedule:    schedule,
		idleTimeout: idleTimeout,
		logger:      logger,
	}, nil
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(loopCtx)
	s.logger.Info("idle-conversation sweeper started", "idle_timeout", s.idleTimeout)
	return nil
}

// Stop cancels the loop and waits for it to drain.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep closes every active conversation whose last message predates the
// idle cutoff. Exposed so the serve command can trigger an initial pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idleTimeout)
	closed, err := s.store.CloseIdleConversations(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "idle sweep failed", "error", err)
		return
	}
	if closed > 0 {
		s.logger.InfoContext(ctx, "closed idle conversations", "count", closed, "cutoff", cutoff)
	}
}
