// Package miner runs the mining loop: one transaction submission per
// scheduled tick, with periodic chain status refreshes, until it is
// stopped or the miner runs out of funds.
package miner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/orange-mining/ora-miner/internal/logger"
	"github.com/orange-mining/ora-miner/pkg/types"
)

// ErrInsufficientBalance stops the loop when the miner's available balance
// falls below the configured floor.
var ErrInsufficientBalance = errors.New("miner has insufficient funds")

// Submitter submits a single mine transaction. seq is the zero-based
// submission sequence number, carried in the transaction note.
type Submitter interface {
	Submit(ctx context.Context, fee uint64, seq uint64) types.SubmissionResult
}

// ChainReader provides the application and miner state the loop reports
// and acts on.
type ChainReader interface {
	ApplicationData(ctx context.Context) (types.ApplicationData, error)
	MinerData(ctx context.Context) (types.MinerData, error)
}

// Options configures a mining run.
type Options struct {
	Network types.Network
	TPM     int
	Fee     uint64 // flat fee per transaction, microalgos

	// StopOnError makes submission failures fatal. The default is to log
	// and keep going, treating them as transient.
	StopOnError bool

	// BalanceFloor is the available balance (microalgos) below which the
	// run stops with ErrInsufficientBalance.
	BalanceFloor uint64

	// StatusInterval is how often chain state is refreshed and a stats
	// line is logged. Defaults to 10s.
	StatusInterval time.Duration
}

// Miner drives submissions at the scheduled rate.
type Miner struct {
	chain     ChainReader
	submitter Submitter
	scheduler *Scheduler
	logger    *logger.Logger
	opts      Options

	attempts uint64 // ticks taken, successful or not
	sent     uint64 // successful submissions

	done chan struct{}
	once sync.Once
}

// New creates a miner. The rate is validated here, before any submission.
func New(chain ChainReader, submitter Submitter, log *logger.Logger, opts Options) (*Miner, error) {
	scheduler, err := NewScheduler(opts.TPM)
	if err != nil {
		return nil, err
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 10 * time.Second
	}
	return &Miner{
		chain:     chain,
		submitter: submitter,
		scheduler: scheduler,
		logger:    log,
		opts:      opts,
		done:      make(chan struct{}),
	}, nil
}

// Stop requests a halt. The loop observes it within one tick.
func (m *Miner) Stop() {
	m.once.Do(func() { close(m.done) })
}

// Run mines until ctx is cancelled, Stop is called, or an unrecoverable
// condition is hit. A requested stop returns nil.
func (m *Miner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := m.waitForStart(ctx); err != nil {
		return err
	}

	var lastStatus time.Time
	for {
		// The first wait consumes the limiter's initial token and returns
		// immediately; every later wait paces the loop at the tick interval.
		if err := m.scheduler.Wait(ctx); err != nil {
			m.logger.Printf("Stopping after %d transactions.", m.sent)
			return nil
		}
		if ctx.Err() != nil {
			m.logger.Printf("Stopping after %d transactions.", m.sent)
			return nil
		}

		if time.Since(lastStatus) >= m.opts.StatusInterval || lastStatus.IsZero() {
			if err := m.refreshStatus(ctx); err != nil {
				return err
			}
			lastStatus = time.Now()
		}

		seq := m.attempts
		m.attempts++
		result := m.submitter.Submit(ctx, m.opts.Fee, seq)
		if result.Success() {
			m.sent++
			m.logger.Printf("tick %d: sent %s (round %d)", seq, result.TxID, result.ConfirmedRound)
		} else {
			if ctx.Err() != nil {
				m.logger.Printf("Stopping after %d transactions.", m.sent)
				return nil
			}
			m.logger.Printf("tick %d: submission failed: %v", seq, result.Err)
			if m.opts.StopOnError {
				return errors.Wrapf(result.Err, "tick %d", seq)
			}
		}
	}
}

// waitForStart blocks until the application's start timestamp has passed.
func (m *Miner) waitForStart(ctx context.Context) error {
	for {
		app, err := m.chain.ApplicationData(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		now := time.Now().Unix()
		if now >= int64(app.StartTimestamp) {
			m.logger.Println("Mining starts...")
			return nil
		}
		m.logger.Printf("Waiting for mining to begin... %d seconds left", int64(app.StartTimestamp)-now)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
	}
}

// refreshStatus fetches chain state, logs a stats line, and enforces the
// balance floor. Fetch errors are logged and skipped; mining continues on
// the schedule.
func (m *Miner) refreshStatus(ctx context.Context) error {
	app, err := m.chain.ApplicationData(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Printf("status refresh failed: %v", err)
		}
		return nil
	}
	miner, err := m.chain.MinerData(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Printf("status refresh failed: %v", err)
		}
		return nil
	}

	ownPct := 0.0
	if app.LastMinerEffort > 0 {
		ownPct = float64(miner.OwnEffort) / float64(app.LastMinerEffort) * 100.0
	}
	m.logger.Printf("%s: sent %d transactions, block %d, current effort %d, last effort %d, own effort %d (%.1f%%)",
		strings.ToUpper(string(m.opts.Network)), m.sent, app.Block,
		app.CurrentMinerEffort, app.LastMinerEffort, miner.OwnEffort, ownPct)

	if miner.AvailableBalance < m.opts.BalanceFloor {
		return errors.Wrapf(ErrInsufficientBalance, "available balance %d below threshold %d",
			miner.AvailableBalance, m.opts.BalanceFloor)
	}
	return nil
}
