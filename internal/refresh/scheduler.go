package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "tutorcal/internal/log"
)

// Func performs one refresh.
type Func func(ctx context.Context) error

// Scheduler re-runs a refresh on a cron schedule. Runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	fn      Func
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	last    Result
}

// Result describes the most recent run.
type Result struct {
	At  time.Time
	Err error
}

// New parses spec (standard five-field cron, or a descriptor like
// "@every 5m") and returns a stopped scheduler.
func New(spec string, loc *time.Location, timeout time.Duration, fn Func) (*Scheduler, error) {
	if fn == nil {
		return nil, fmt.Errorf("refresh: nil func")
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		fn:      fn,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("refresh: bad schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	appLog.Info("refresh scheduler started", "entries", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// Next returns the next scheduled run, zero when stopped.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Last returns the most recent run result.
func (s *Scheduler) Last() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// RunNow performs one refresh synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_ = s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	started := time.Now()
	err := s.fn(ctx)
	if err != nil {
		appLog.Error("scheduled refresh failed", err, "elapsed", time.Since(started).String())
	} else {
		appLog.Debug("scheduled refresh done", "elapsed", time.Since(started).String())
	}

	s.mu.Lock()
	s.last = Result{At: started, Err: err}
	s.mu.Unlock()
	return err
}
