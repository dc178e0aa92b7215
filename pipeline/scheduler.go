package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/lmstrack/models"
)

// RunFunc performs one run; (*Runner).Run satisfies it.
type RunFunc func(ctx context.Context, runID string) (*Summary, error)

// Scheduler runs scrapes on an interval and on demand, never two at once.
// It is safe for concurrent use.
type Scheduler struct {
	ctx      context.Context
	run      RunFunc
	interval time.Duration

	mu      sync.Mutex
	running bool
	current string
	last    *Summary

	wg sync.WaitGroup
}

// NewScheduler creates a Scheduler whose runs use ctx; cancelling ctx stops
// the ticker and aborts a run in progress.
func NewScheduler(ctx context.Context, run RunFunc, interval time.Duration) *Scheduler {
	return &Scheduler{ctx: ctx, run: run, interval: interval}
}

// Start begins periodic runs, the first one immediately. A zero interval
// disables the schedule; Trigger still works.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		slog.Info("scheduled runs disabled")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
	slog.Info("scheduled runs enabled", "interval", s.interval)
}

func (s *Scheduler) tick() {
	if _, err := s.RunNow(s.ctx); errors.Is(err, models.ErrBusy) {
		slog.Warn("scheduled run skipped, previous run still in progress")
	}
}

// RunNow runs synchronously. It returns models.ErrBusy if a run is in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*Summary, error) {
	id, ok := s.acquire()
	if !ok {
		return nil, models.ErrBusy
	}
	return s.execute(ctx, id)
}

// Trigger starts a run in the background and returns its ID. It returns
// models.ErrBusy if a run is in progress.
func (s *Scheduler) Trigger() (string, error) {
	id, ok := s.acquire()
	if !ok {
		return "", models.ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(s.ctx, id)
	}()
	return id, nil
}

func (s *Scheduler) acquire() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", false
	}
	s.running = true
	s.current = NewRunID()
	return s.current, true
}

func (s *Scheduler) execute(ctx context.Context, id string) (*Summary, error) {
	sum, err := s.run(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.current = ""
	if sum != nil {
		s.last = sum
	}
	return sum, err
}

// Running reports whether a run is in progress and its ID.
func (s *Scheduler) Running() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.running
}

// Last returns the summary of the most recent finished run, or nil.
func (s *Scheduler) Last() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Wait blocks until the ticker goroutine and background runs have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
