package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
)

// DefaultSchedule synchronizes every half hour.
const DefaultSchedule = "*/30 * * * *"

// Scheduler runs SynchronizeAll on a cron schedule. Runs hold mu, which
// callers share with anything else driving the same Manager.
type Scheduler struct {
	mgr  *Manager
	mu   sync.Locker
	expr string
}

// NewScheduler validates expr (DefaultSchedule if empty).
func NewScheduler(mgr *Manager, mu sync.Locker, expr string) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("invalid sync schedule: %q", expr)
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Scheduler{mgr: mgr, mu: mu, expr: expr}, nil
}

// Expr returns the cron expression in use.
func (s *Scheduler) Expr() string { return s.expr }

// Next returns the first run time after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t, false)
}

// RunOnce performs one synchronization of every dictionary.
func (s *Scheduler) RunOnce() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ok := s.mgr.SynchronizeAll()
	if ok {
		lastSync.SetToCurrentTime()
	}
	logger.Log.Info("scheduled_sync_done", zap.Bool("ok", ok), zap.Duration("elapsed", time.Since(start)))
	return ok
}

// Start runs the schedule in the background until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Log.Info("sync_scheduler_started", zap.String("schedule", s.expr))
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next, err := s.Next(time.Now())
		wait := time.Until(next)
		if err != nil {
			logger.Log.Error("sync_next_tick_failed", zap.String("schedule", s.expr), zap.Error(err))
			wait = 30 * time.Second
		}

		t := time.NewTimer(max(wait, time.Second))
		select {
		case <-ctx.Done():
			t.Stop()
			logger.Log.Info("sync_scheduler_stopping")
			return
		case <-t.C:
		}
		if err == nil {
			s.RunOnce()
		}
	}
}
