// Package sweep runs the background job that cancels expired stock
// reservations on a cron schedule.
package sweep

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/GreenLoopLabs/greenledger/internal/metrics"
)

// Sweeper is the interface the scheduler drives; the inventory service
// implements it.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Scheduler runs the reservation sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger
}

// NewScheduler wires a Scheduler. The schedule uses standard five-field cron
// syntax evaluated in UTC.
func NewScheduler(sweeper Sweeper, schedule string, logger *zap.Logger) (*Scheduler, error) {
	scheduler := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		logger:  logger.Named("sweep"),
	}
	_, err := scheduler.cron.AddFunc(schedule, scheduler.runOnce)
	if err != nil {
		return nil, err
	}
	return scheduler, nil
}

// Start launches the cron loop.
func (scheduler *Scheduler) Start() {
	scheduler.cron.Start()
	scheduler.logger.Info("reservation sweep scheduled")
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (scheduler *Scheduler) Stop() {
	ctx := scheduler.cron.Stop()
	<-ctx.Done()
	scheduler.logger.Info("reservation sweep stopped")
}

func (scheduler *Scheduler) runOnce() {
	swept, err := scheduler.sweeper.SweepExpired(context.Background())
	if err != nil {
		scheduler.logger.Error("reservation sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		metrics.RecordSweptReservations(swept)
		scheduler.logger.Info("expired reservations cancelled", zap.Int("count", swept))
	}
}
