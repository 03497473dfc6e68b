package miner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerInterval(t *testing.T) {
	tests := []struct {
		tpm      int
		expected time.Duration
	}{
		{tpm: 1, expected: time.Minute},
		{tpm: 6, expected: 10 * time.Second},
		{tpm: 60, expected: time.Second},
		{tpm: 120, expected: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		s, err := NewScheduler(tt.tpm)
		require.NoError(t, err)
		require.Equal(t, tt.expected, s.Interval())
	}
}

// interval * tpm must equal one minute, up to integer-division truncation.
func TestSchedulerIntervalProperty(t *testing.T) {
	for tpm := 1; tpm <= 240; tpm++ {
		s, err := NewScheduler(tpm)
		require.NoError(t, err)
		diff := time.Minute - s.Interval()*time.Duration(tpm)
		require.GreaterOrEqual(t, diff, time.Duration(0), "tpm=%d", tpm)
		require.Less(t, diff, time.Duration(tpm), "tpm=%d", tpm)
	}
}

func TestSchedulerRejectsNonPositiveRate(t *testing.T) {
	for _, tpm := range []int{0, -1, -60} {
		_, err := NewScheduler(tpm)
		require.Error(t, err, "tpm=%d", tpm)
	}
}

func TestSchedulerWaitObservesCancellation(t *testing.T) {
	s, err := NewScheduler(1) // 60s interval
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Wait(ctx)) // first tick is immediate

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	require.Error(t, s.Wait(ctx))
	require.Less(t, time.Since(start), 5*time.Second)
}
