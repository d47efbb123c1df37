package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DueProcessor books whatever is due at now. *services.RecurringProcessor
// implements it.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs a DueProcessor on startup and then on every tick.
type Scheduler struct {
	processor DueProcessor
	interval  time.Duration
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(processor DueProcessor, interval time.Duration) *Scheduler {
	return &Scheduler{
		processor: processor,
		interval:  interval,
		now:       time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %v", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval)
	return nil
}

// Stop gracefully stops the scheduler and waits for the current run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	now := s.now()
	count, err := s.processor.ProcessDue(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled processing failed", "error", err)
		return
	}
	slog.DebugContext(ctx, "Scheduled processing complete",
		"processed", count,
		"next_check", now.Add(s.interval).Format("15:04:05"))
}
