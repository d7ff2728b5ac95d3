package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often stale pending payments are expired.
const DefaultSweepInterval = time.Minute

// PendingExpirer expires checkouts that never received a notification.
type PendingExpirer interface {
	ExpirePending(ctx context.Context) (int64, error)
}

// PaymentSweeper runs the pending payment sweep on a gocron schedule.
type PaymentSweeper struct {
	expirer   PendingExpirer
	interval  time.Duration
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// NewPaymentSweeper creates a sweeper. A non-positive interval uses DefaultSweepInterval.
func NewPaymentSweeper(expirer PendingExpirer, interval time.Duration, logger *zap.Logger) *PaymentSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &PaymentSweeper{expirer: expirer, interval: interval, logger: logger}
}

// Sweep runs one expiry pass.
func (s *PaymentSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.expirer.ExpirePending(ctx)
	if err != nil {
		s.logger.Error("pending payment sweep failed", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// Start schedules Sweep every interval until Stop. ctx bounds each pass.
func (s *PaymentSweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			_, _ = s.Sweep(ctx)
		}),
		gocron.WithName("payhere-expire-pending"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sched.Start()
	s.scheduler = sched
	s.logger.Info("payment sweeper started", zap.Duration("interval", s.interval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running pass.
func (s *PaymentSweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
