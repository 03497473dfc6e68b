package miner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orange-mining/ora-miner/internal/logger"
	"github.com/orange-mining/ora-miner/pkg/types"
)

type fakeChain struct {
	app   types.ApplicationData
	miner types.MinerData
}

func (f *fakeChain) ApplicationData(ctx context.Context) (types.ApplicationData, error) {
	return f.app, nil
}

func (f *fakeChain) MinerData(ctx context.Context) (types.MinerData, error) {
	return f.miner, nil
}

func healthyChain() *fakeChain {
	return &fakeChain{
		app: types.ApplicationData{
			ID:              100,
			Asset:           200,
			Block:           5,
			LastMinerEffort: 80,
		},
		miner: types.MinerData{
			OwnEffort:        40,
			AvailableBalance: 10_000_000,
		},
	}
}

type submitCall struct {
	fee uint64
	seq uint64
}

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []submitCall
	failOn map[uint64]error
	after  func(callCount int)
}

func (f *fakeSubmitter) Submit(ctx context.Context, fee uint64, seq uint64) types.SubmissionResult {
	f.mu.Lock()
	f.calls = append(f.calls, submitCall{fee: fee, seq: seq})
	n := len(f.calls)
	err := f.failOn[seq]
	f.mu.Unlock()

	if f.after != nil {
		f.after(n)
	}
	if err != nil {
		return types.SubmissionResult{Err: err}
	}
	return types.SubmissionResult{TxID: fmt.Sprintf("TX%d", seq), ConfirmedRound: 1000 + seq}
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestMiner(t *testing.T, chain ChainReader, sub Submitter, opts Options, buf *bytes.Buffer) *Miner {
	t.Helper()
	m, err := New(chain, sub, logger.NewWriter(buf), opts)
	require.NoError(t, err)
	return m
}

func TestNewRejectsInvalidRate(t *testing.T) {
	_, err := New(healthyChain(), &fakeSubmitter{}, logger.NewWriter(&bytes.Buffer{}), Options{TPM: 0})
	require.Error(t, err)
}

func TestRunSubmitsOncePerTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &fakeSubmitter{after: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	var buf bytes.Buffer
	m := newTestMiner(t, healthyChain(), sub, Options{Network: types.Testnet, TPM: 60000, Fee: 2000}, &buf)

	require.NoError(t, m.Run(ctx))

	require.Len(t, sub.calls, 3)
	for i, call := range sub.calls {
		require.Equal(t, uint64(2000), call.fee)
		require.Equal(t, uint64(i), call.seq)
	}
	require.Contains(t, buf.String(), "TESTNET: sent")
	require.Contains(t, buf.String(), "sent TX0")
}

func TestRunContinuesOnFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &fakeSubmitter{
		failOn: map[uint64]error{1: errors.New("overspend")},
		after: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	var buf bytes.Buffer
	m := newTestMiner(t, healthyChain(), sub, Options{Network: types.Testnet, TPM: 60000, Fee: 2000}, &buf)

	require.NoError(t, m.Run(ctx))

	require.Len(t, sub.calls, 3) // tick 2 failed, tick 3 still attempted
	require.Contains(t, buf.String(), "tick 1: submission failed")
	require.Contains(t, buf.String(), "overspend")
}

func TestRunStopsOnFailureWhenConfigured(t *testing.T) {
	sub := &fakeSubmitter{failOn: map[uint64]error{1: errors.New("overspend")}}
	var buf bytes.Buffer
	m := newTestMiner(t, healthyChain(), sub, Options{Network: types.Testnet, TPM: 60000, Fee: 2000, StopOnError: true}, &buf)

	err := m.Run(context.Background())
	require.ErrorContains(t, err, "tick 1")
	require.ErrorContains(t, err, "overspend")
	require.Equal(t, 2, sub.callCount())
}

func TestRunStopObservedMidWait(t *testing.T) {
	var m *Miner
	sub := &fakeSubmitter{after: func(n int) {
		if n == 1 {
			m.Stop()
		}
	}}
	var buf bytes.Buffer
	// One transaction per minute: without prompt cancellation this would
	// block for 60s between ticks.
	m = newTestMiner(t, healthyChain(), sub, Options{Network: types.Testnet, TPM: 1, Fee: 2000}, &buf)

	start := time.Now()
	require.NoError(t, m.Run(context.Background()))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 1, sub.callCount())
	require.Contains(t, buf.String(), "Stopping after 1 transactions")
}

func TestRunStopsWhenBalanceBelowFloor(t *testing.T) {
	chain := healthyChain()
	chain.miner.AvailableBalance = 10

	sub := &fakeSubmitter{}
	var buf bytes.Buffer
	m := newTestMiner(t, chain, sub, Options{Network: types.Testnet, TPM: 60, Fee: 2000, BalanceFloor: 1_000_000}, &buf)

	err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, 0, sub.callCount()) // stopped before any submission
}

func TestRunCancelledWhileWaitingForStart(t *testing.T) {
	chain := healthyChain()
	chain.app.StartTimestamp = uint64(time.Now().Add(time.Hour).Unix())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	sub := &fakeSubmitter{}
	var buf bytes.Buffer
	m := newTestMiner(t, chain, sub, Options{Network: types.Testnet, TPM: 60, Fee: 2000}, &buf)

	start := time.Now()
	require.NoError(t, m.Run(ctx))
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 0, sub.callCount())
	require.Contains(t, buf.String(), "Waiting for mining to begin")
}
