package miner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Scheduler paces submissions at a fixed transactions-per-minute target.
// The interval between ticks is 60s / tpm.
type Scheduler struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewScheduler validates the rate and derives the tick interval. A rate
// of zero or less has no defined interval and is a configuration error.
func NewScheduler(tpm int) (*Scheduler, error) {
	if tpm <= 0 {
		return nil, errors.Errorf("transactions per minute must be positive, got %d", tpm)
	}
	interval := time.Minute / time.Duration(tpm)
	return &Scheduler{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Interval returns the wait between ticks.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Wait suspends until the next tick is due, or until ctx is cancelled.
// The first call after construction returns immediately.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
