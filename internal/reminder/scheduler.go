package reminder

import (
	"context"
	"time"

	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/notify"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// TaskSource is the task storage the scheduler reads and annotates.
type TaskSource interface {
	// ListSchedulable returns incomplete tasks with a due date whose owner is active.
	ListSchedulable(ctx context.Context) ([]model.Task, error)
	// MarkNotificationSentIfDue records key at time at, but only while the
	// task's due date still equals due.
	MarkNotificationSentIfDue(ctx context.Context, taskID uuid.UUID, key string, at, due time.Time) error
}

// Scheduler periodically sweeps all schedulable tasks and emits what is due.
type Scheduler struct {
	source   TaskSource
	notifier notify.Notifier
	log      *zap.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time

	// OnState, when set, is called with true when Run starts and false when it returns.
	OnState func(running bool)
}

// NewScheduler constructs a scheduler. m may be nil.
func NewScheduler(source TaskSource, notifier notify.Notifier, log *zap.Logger, m *metrics.Metrics, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		source:   source,
		notifier: notifier,
		log:      log,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

// Sweep evaluates every schedulable task at now and returns how many
// notifications were emitted. Delivery and bookkeeping failures are logged and
// skipped; only a failure to list tasks is returned.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	tasks, err := s.source.ListSchedulable(ctx)
	if err != nil {
		return 0, err
	}
	emitted := 0
	for _, t := range tasks {
		for _, d := range Evaluate(t, now) {
			if ctx.Err() != nil {
				return emitted, ctx.Err()
			}
			if err := s.notifier.Notify(ctx, d.Notification()); err != nil {
				s.metrics.DeliveryFailed()
				s.log.Debug("notification delivery failed",
					zap.String("task_id", d.TaskID.String()),
					zap.String("key", d.Key),
					zap.Error(err))
			} else {
				emitted++
				s.metrics.ReminderEmitted(string(d.Kind))
			}
			if err := s.source.MarkNotificationSentIfDue(ctx, d.TaskID, d.Key, now, d.DueDate); err != nil {
				s.log.Warn("record notification key",
					zap.String("task_id", d.TaskID.String()),
					zap.String("key", d.Key),
					zap.Error(err))
			}
		}
	}
	return emitted, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.OnState != nil {
		s.OnState(true)
		defer s.OnState(false)
	}
	s.log.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	defer s.log.Info("reminder scheduler stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		n, err := s.Sweep(ctx, s.now())
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			s.log.Error("reminder sweep", zap.Error(err))
		case n > 0:
			s.log.Info("reminder sweep", zap.Int("emitted", n), zap.Duration("took", time.Since(start)))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
