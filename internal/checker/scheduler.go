package checker

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Scheduler drives the checker on a fixed interval. Deployments that rely on
// an external time-based trigger hitting the cron endpoint simply never
// start it.
type Scheduler struct {
	checker   *Checker
	interval  time.Duration
	stopCh    chan struct{}
	isRunning atomic.Bool
}

// NewScheduler creates a new scheduler
func NewScheduler(checker *Checker, interval time.Duration) *Scheduler {
	return &Scheduler{
		checker:  checker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	if !s.isRunning.CompareAndSwap(false, true) {
		log.Println("scheduler: already running")
		return
	}

	log.Printf("scheduler: started with interval %v", s.interval)

	// Run immediately on start
	s.runCycle()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle()
			case <-s.stopCh:
				log.Println("scheduler: stopped")
				return
			}
		}
	}()
}

// Stop stops the scheduler. Safe to call more than once.
func (s *Scheduler) Stop() {
	if s.isRunning.CompareAndSwap(true, false) {
		close(s.stopCh)
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning.Load()
}

// runCycle executes a single price check run. Each cycle gets the interval
// as its wall-clock budget so runs never pile up.
func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if _, err := s.checker.Run(ctx); err != nil {
		log.Printf("scheduler: run failed: %v", err)
	}
}
