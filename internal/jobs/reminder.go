package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/MrZacked/Healem/internal/metrics"
	"github.com/MrZacked/Healem/internal/models"
	"github.com/MrZacked/Healem/internal/notification"
	"github.com/MrZacked/Healem/internal/scheduling"
)

// ReminderSweeper periodically finds confirmed appointments inside the
// reminder lead window and dispatches one reminder per appointment. The
// reminder_sent flag keeps the sweep idempotent across restarts and
// overlapping runs.
type ReminderSweeper struct {
	store     scheduling.Store
	users     scheduling.Directory
	notifier  notification.Notifier
	collector *metrics.Collector
	log       *zap.Logger
	leadHours int

	cron *cron.Cron
	now  func() time.Time
}

func NewReminderSweeper(store scheduling.Store, users scheduling.Directory, notifier notification.Notifier, collector *metrics.Collector, log *zap.Logger, leadHours int) *ReminderSweeper {
	return &ReminderSweeper{
		store:     store,
		users:     users,
		notifier:  notifier,
		collector: collector,
		log:       log,
		leadHours: leadHours,
		now:       time.Now,
	}
}

// Start schedules the sweep on the given cron spec and returns immediately.
func (r *ReminderSweeper) Start(spec string) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(spec, r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info("reminder sweeper started",
		zap.String("cron", spec),
		zap.Int("lead_hours", r.leadHours))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *ReminderSweeper) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Sweep dispatches reminders for confirmed appointments whose date falls
// inside the lead window. An appointment is marked only after its reminder
// dispatched, so a failed dispatch is retried on the next sweep.
func (r *ReminderSweeper) Sweep() {
	ctx := context.Background()

	now := r.now()
	from := now.Format(models.DateLayout)
	until := now.Add(time.Duration(r.leadHours) * time.Hour).Format(models.DateLayout)

	due, err := r.store.FindDueReminders(ctx, from, until)
	if err != nil {
		r.log.Error("reminder sweep failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	r.log.Info("sending appointment reminders", zap.Int("count", len(due)))
	for i := range due {
		appt := &due[i]
		event := scheduling.NewEvent(ctx, r.users, appt, notification.EventReminder)
		if err := r.notifier.Dispatch(ctx, event); err != nil {
			r.log.Warn("reminder dispatch failed",
				zap.String("appointment_id", appt.ID),
				zap.Error(err))
			continue
		}
		if err := r.store.MarkReminderSent(ctx, appt.ID); err != nil {
			r.log.Warn("failed to mark reminder sent",
				zap.String("appointment_id", appt.ID),
				zap.Error(err))
			continue
		}
		if r.collector != nil {
			r.collector.RemindersSent.Inc()
		}
	}
}
