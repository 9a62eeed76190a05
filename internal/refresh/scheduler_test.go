package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("every now and then", time.UTC, 0, func(context.Context) error { return nil })
	assert.Error(t, err)

	_, err = New("*/15 * * * *", time.UTC, 0, nil)
	assert.Error(t, err)
}

func TestScheduledRuns(t *testing.T) {
	var calls atomic.Int32
	s, err := New("@every 1s", time.UTC, time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()
	assert.False(t, s.Next().IsZero())

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNowRecordsResult(t *testing.T) {
	boom := errors.New("backend down")
	s, err := New("*/15 * * * *", time.UTC, 0, func(ctx context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunNow(context.Background()), boom)
	last := s.Last()
	assert.ErrorIs(t, last.Err, boom)
	assert.False(t, last.At.IsZero())
}

func TestRunHonorsTimeout(t *testing.T) {
	s, err := New("*/15 * * * *", time.UTC, 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.ErrorIs(t, s.RunNow(context.Background()), context.DeadlineExceeded)
}

func TestStopIsIdempotent(t *testing.T) {
	s, err := New("*/15 * * * *", time.UTC, 0, func(context.Context) error { return nil })
	require.NoError(t, err)
	s.Stop()
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
