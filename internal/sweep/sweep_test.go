package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type stubSweeper struct {
	mu    sync.Mutex
	calls int
	count int
	err   error
}

func (sweeper *stubSweeper) SweepExpired(_ context.Context) (int, error) {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	sweeper.calls++
	return sweeper.count, sweeper.err
}

func (sweeper *stubSweeper) callCount() int {
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	return sweeper.calls
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	_, err := NewScheduler(&stubSweeper{}, "not a schedule", zap.NewNop())
	if err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}

func TestRunOnceInvokesSweeper(t *testing.T) {
	t.Parallel()
	sweeper := &stubSweeper{count: 3}
	scheduler, err := NewScheduler(sweeper, "* * * * *", zap.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	scheduler.runOnce()
	if sweeper.callCount() != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.callCount())
	}
}

func TestRunOnceSurvivesSweeperError(t *testing.T) {
	t.Parallel()
	sweeper := &stubSweeper{err: errors.New("database gone")}
	scheduler, err := NewScheduler(sweeper, "* * * * *", zap.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	scheduler.runOnce()
	scheduler.runOnce()
	if sweeper.callCount() != 2 {
		t.Fatalf("expected sweeps to continue after an error, got %d", sweeper.callCount())
	}
}
