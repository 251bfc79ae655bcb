package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCycler counts cycles and can hold each one open until released.
type fakeCycler struct {
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
	mu      sync.Mutex
}

func (f *fakeCycler) CollectOnce(ctx context.Context) error {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeCycler) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestNewSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&fakeCycler{}, 0, logr.Discard())
	defer s.Stop()

	assert.Equal(t, DefaultInterval, s.Interval())
	assert.False(t, s.Started())
	assert.Zero(t, s.Status().Cycles)
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	cycler := &fakeCycler{}
	mock := clock.NewMock()
	s := NewScheduler(cycler, 30*time.Second, logr.Discard())
	s.SetClock(mock)

	go s.Start(context.Background())

	// First cycle runs immediately
	require.Eventually(t, func() bool { return cycler.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Started())

	// Advancing less than the interval does nothing
	mock.Add(10 * time.Second)
	assert.Equal(t, int32(1), cycler.calls.Load())

	require.Eventually(t, func() bool {
		mock.Add(30 * time.Second)
		return cycler.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Started())
	assert.GreaterOrEqual(t, s.Status().Cycles, 3)
}

func TestSchedulerStopsOnContext(t *testing.T) {
	s := NewScheduler(&fakeCycler{}, time.Hour, logr.Discard())
	s.SetClock(clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, s.Started, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
	s.Stop()
}

func TestSchedulerTracksFailures(t *testing.T) {
	cycler := &fakeCycler{err: errors.New("boom")}
	s := NewScheduler(cycler, time.Minute, logr.Discard())
	defer s.Stop()

	assert.EqualError(t, s.RunNow(context.Background()), "boom")
	assert.EqualError(t, s.RunNow(context.Background()), "boom")

	st := s.Status()
	assert.Equal(t, 2, st.ConsecutiveFails)
	assert.Equal(t, "boom", st.LastError)
	assert.False(t, st.Running)

	cycler.setErr(nil)
	require.NoError(t, s.RunNow(context.Background()))
	st = s.Status()
	assert.Zero(t, st.ConsecutiveFails)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 3, st.Cycles)
}

func TestSchedulerManualTriggerJoinsInFlightCycle(t *testing.T) {
	cycler := &fakeCycler{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 4),
	}
	s := NewScheduler(cycler, time.Hour, logr.Discard())
	defer s.Stop()

	first := make(chan error, 1)
	go func() { first <- s.RunNow(context.Background()) }()
	<-cycler.entered
	assert.True(t, s.Status().Running)

	second := make(chan error, 1)
	go func() { second <- s.RunNow(context.Background()) }()

	// Give the second caller a chance to join before releasing the cycle
	time.Sleep(20 * time.Millisecond)
	close(cycler.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), cycler.calls.Load())
}

func TestSchedulerTrigger(t *testing.T) {
	cycler := &fakeCycler{}
	s := NewScheduler(cycler, time.Hour, logr.Discard())

	s.Trigger()
	require.Eventually(t, func() bool { return cycler.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.Equal(t, 1, s.Status().Cycles)
}

func TestRunNowHonorsCallerContext(t *testing.T) {
	cycler := &fakeCycler{gate: make(chan struct{})}
	s := NewScheduler(cycler, time.Hour, logr.Discard())
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.RunNow(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
