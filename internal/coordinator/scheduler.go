package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the pause between the end of one cycle and the start of the next.
const DefaultInterval = 60 * time.Second

// cycleKey is the single-flight key shared by scheduled and manual cycles.
const cycleKey = "collect"

// Cycler runs one collection cycle. *Collector implements it.
type Cycler interface {
	CollectOnce(ctx context.Context) error
}

// CycleStatus summarizes the scheduler's recent activity.
// Thread-safe: Protected by Scheduler's mutex when accessed.
type CycleStatus struct {
	LastStart        time.Time `json:"last_start"`
	LastFinish       time.Time `json:"last_finish"`
	LastError        string    `json:"last_error,omitempty"`
	Cycles           int       `json:"cycles"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	Running          bool      `json:"running"`
}

// Scheduler runs collection cycles on a fixed interval and on demand.
// Scheduled cycles never overlap: the interval is waited out after a cycle
// completes. A manual trigger that arrives while a cycle is in flight joins
// that cycle instead of starting another one.
// Thread-safe: All methods are safe for concurrent access.
type Scheduler struct {
	cycler   Cycler
	clock    clock.Clock
	log      logr.Logger
	group    singleflight.Group
	ctx      context.Context    // Context for cancellation
	cancel   context.CancelFunc // Cancel function for shutdown
	interval time.Duration
	mu       sync.RWMutex // Protects status and started
	wg       sync.WaitGroup
	status   CycleStatus
	started  bool
}

// NewScheduler creates a scheduler that calls cycler every interval.
// A non-positive interval falls back to DefaultInterval.
//
// Parameters:
//   - cycler: collection cycle to run (usually *Collector)
//   - interval: pause between cycles
//   - log: base logger
//
// Returns:
//   - *Scheduler: ready to Start
//
// Example:
//
//	sched := NewScheduler(collector, 60*time.Second, log)
//	go sched.Start(ctx)
//	defer sched.Stop()
func NewScheduler(cycler Cycler, interval time.Duration, log logr.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cycler:   cycler,
		clock:    clock.New(),
		log:      log.WithName("scheduler"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetClock replaces the time source. Must be called before Start.
func (s *Scheduler) SetClock(clk clock.Clock) {
	s.clock = clk
}

// Interval returns the configured pause between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start runs the first cycle immediately and then one cycle per interval.
// This method blocks until ctx or the scheduler itself is canceled.
//
// Parameters:
//   - ctx: Context for cancellation (nil uses the scheduler's internal context)
//
// Example:
//
//	go sched.Start(ctx)
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	if ctx == nil {
		ctx = s.ctx
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
	}()

	s.log.Info("scheduler started", "interval", s.interval.String())

	for {
		_ = s.run(ctx)

		select {
		case <-s.clock.After(s.interval):
		case <-ctx.Done():
			s.log.Info("scheduler stopping due to context cancellation")
			return
		case <-s.ctx.Done():
			s.log.Info("scheduler stopping due to internal cancellation")
			return
		}
	}
}

// Stop cancels the loop and any manual cycle and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Trigger starts a cycle in the background and returns immediately.
// The cycle runs on the scheduler's own context, not the caller's, so it
// outlives the HTTP request that asked for it.
func (s *Scheduler) Trigger() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("manual collection triggered")
		_ = s.run(s.ctx)
	}()
}

// RunNow runs a cycle, or joins the one in flight, and waits for it.
//
// Returns:
//   - the cycle's error, or ctx's error if ctx ends first
func (s *Scheduler) RunNow(ctx context.Context) error {
	ch := s.group.DoChan(cycleKey, func() (interface{}, error) {
		return nil, s.cycle(s.ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started reports whether the scheduling loop is running.
func (s *Scheduler) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Status returns a copy of the current cycle status.
func (s *Scheduler) Status() CycleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) run(ctx context.Context) error {
	_, err, shared := s.group.Do(cycleKey, func() (interface{}, error) {
		return nil, s.cycle(ctx)
	})
	if shared {
		s.log.V(1).Info("joined in-flight collection cycle")
	}
	return err
}

// cycle runs the collector once and records the outcome.
//
// Implementation:
//  1. Mark the cycle running
//  2. Call the cycler
//  3. Track consecutive failures, logging recovery after a failure streak
func (s *Scheduler) cycle(ctx context.Context) error {
	start := s.clock.Now()
	s.mu.Lock()
	s.status.Running = true
	s.status.LastStart = start
	s.mu.Unlock()

	err := s.cycler.CollectOnce(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastFinish = s.clock.Now()
	s.status.Cycles++

	if err != nil {
		s.status.ConsecutiveFails++
		s.status.LastError = err.Error()
		s.log.Error(err, "collection cycle failed", "consecutiveFailures", s.status.ConsecutiveFails)
		return err
	}

	if s.status.ConsecutiveFails > 0 {
		s.log.Info("collection recovered", "afterFailures", s.status.ConsecutiveFails)
	}
	s.status.ConsecutiveFails = 0
	s.status.LastError = ""
	s.log.Info("collection cycle finished", "duration", s.status.LastFinish.Sub(start).String())
	return nil
}
