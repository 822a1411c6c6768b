// Package sweeper periodically deletes expired records from the note stores.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/notebins/notebins/pkg/logger"
	"github.com/notebins/notebins/pkg/metrics"
)

// DefaultInterval is the time between sweeps after the initial one.
const DefaultInterval = 24 * time.Hour

// Target is a store that can drop its expired records.
type Target interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type namedTarget struct {
	name string
	t    Target
}

// Result is the outcome of sweeping one target.
type Result struct {
	Store   string
	Deleted int64
	Err     error
}

// Report is the outcome of one sweep across every target.
type Report struct {
	At      time.Time
	Results []Result
}

// Deleted returns the total number of records removed.
func (r Report) Deleted() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Deleted
	}
	return n
}

type Sweeper struct {
	targets  []namedTarget
	interval time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Sweeper that runs every interval once started. A zero interval means DefaultInterval.
func New(interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.With("component", "sweeper"),
	}
}

// Add registers a target under name. Call before Start.
func (s *Sweeper) Add(name string, t Target) *Sweeper {
	s.targets = append(s.targets, namedTarget{name: name, t: t})
	return s
}

// SweepOnce sweeps every target independently. Failures are logged, recorded in
// the report and never returned.
func (s *Sweeper) SweepOnce(ctx context.Context) Report {
	rep := Report{At: s.now()}
	for _, nt := range s.targets {
		res := s.sweep(ctx, nt, rep.At)
		rep.Results = append(rep.Results, res)
	}
	failed := 0
	for _, res := range rep.Results {
		if res.Err != nil {
			failed++
		}
	}
	s.log.Info("cleanup completed", "count", rep.Deleted(), "stores", len(rep.Results), "failed", failed)
	return rep
}

func (s *Sweeper) sweep(ctx context.Context, nt namedTarget, now time.Time) (res Result) {
	res.Store = nt.name
	defer func() {
		if rec := recover(); rec != nil {
			res.Deleted = 0
			res.Err = fmt.Errorf("panic: %v", rec)
		}
		if res.Err != nil {
			metrics.SweeperRuns.WithLabelValues(nt.name, "error").Inc()
			s.log.Error("cleanup failed", "store", nt.name, "err", res.Err)
			return
		}
		metrics.SweeperRuns.WithLabelValues(nt.name, "ok").Inc()
		metrics.SweeperDeleted.WithLabelValues(nt.name).Add(float64(res.Deleted))
		s.log.Info("removed expired records", "store", nt.name, "count", res.Deleted)
	}()
	res.Deleted, res.Err = nt.t.DeleteExpired(ctx, now)
	return res
}

// Start sweeps immediately in the background and then on every interval until
// Stop is called or ctx ends. Starting twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.log.Info("cleanup service initialized", "interval", s.interval.String())
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.SweepOnce(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepOnce(ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep, or until ctx ends.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
