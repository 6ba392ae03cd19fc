package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Interval runs a job immediately and then on a fixed cadence until stopped.
type Interval struct {
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewInterval returns a scheduler with the given cadence.
func NewInterval(interval time.Duration) *Interval {
	return &Interval{interval: interval}
}

// Start launches the job loop. The first run fires right away; later runs
// follow the configured interval. Ticks are skipped while a run is still
// in flight because the loop is single-threaded.
func (s *Interval) Start(ctx context.Context, job func(time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		job(time.Now())

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				job(now)
			}
		}
	}()
	return nil
}

// Stop halts the loop and waits for any in-flight run to finish, bounded
// by the given context.
func (s *Interval) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
