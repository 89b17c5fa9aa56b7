package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/schedly/exam-scheduler/internal/model"
	"github.com/schedly/exam-scheduler/internal/notify"
)

// ReaperCore is the slice of the exam registry the reaper drives.
type ReaperCore interface {
	PurgeExpired(ctx context.Context, now time.Time) error
	NotifyUpcoming(ctx context.Context, windowStart, windowEnd time.Time) (map[string][]model.ExamSummary, error)
}

// Reaper runs the time-driven maintenance: releasing slots of elapsed exams
// and sending the daily upcoming-exams digest. The core only exposes the two
// operations; all timer state lives here.
type Reaper struct {
	core         ReaperCore
	notifier     notify.Notifier
	logger       *zap.Logger
	interval     time.Duration
	reminderHour int

	clock        func() time.Time
	lastReminder time.Time
	stopChan     chan struct{}
}

func NewReaper(core ReaperCore, notifier notify.Notifier, interval time.Duration, reminderHour int, logger *zap.Logger) *Reaper {
	return &Reaper{
		core:         core,
		notifier:     notifier,
		logger:       logger,
		interval:     interval,
		reminderHour: reminderHour,
		clock:        time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("Starting reaper",
		zap.Duration("interval", r.interval),
		zap.Int("reminder_hour", r.reminderHour),
	)
	go r.run(ctx)
}

// Stop terminates the background loop.
func (r *Reaper) Stop() {
	r.logger.Info("Stopping reaper")
	close(r.stopChan)
}

func (r *Reaper) run(ctx context.Context) {
	// First sweep right away so a restart does not wait a full interval.
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopChan:
			r.logger.Info("Reaper stopped")
			return
		case <-ctx.Done():
			r.logger.Info("Reaper cancelled")
			return
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	now := r.clock()

	if err := r.core.PurgeExpired(ctx, now); err != nil {
		r.logger.Error("Failed to purge expired exams", zap.Error(err))
	}

	if r.reminderDue(now) {
		r.sendReminders(ctx, now)
		r.lastReminder = model.Day(now)
	}
}

// reminderDue reports whether today's digest still has to go out.
func (r *Reaper) reminderDue(now time.Time) bool {
	return now.Hour() >= r.reminderHour && !model.SameDay(r.lastReminder, now)
}

// sendReminders collects tomorrow's exams and mails each student one digest.
func (r *Reaper) sendReminders(ctx context.Context, now time.Time) {
	windowStart := model.Day(now).AddDate(0, 0, 1)
	windowEnd := windowStart.AddDate(0, 0, 1)

	digest, err := r.core.NotifyUpcoming(ctx, windowStart, windowEnd)
	if err != nil {
		r.logger.Error("Failed to collect upcoming exams", zap.Error(err))
		return
	}
	if len(digest) == 0 {
		return
	}

	messages := make([]*notify.Message, 0, len(digest))
	for email, exams := range digest {
		messages = append(messages, notify.UpcomingDigestMessage(email, exams))
	}
	r.notifier.Send(messages...)

	r.logger.Info("Upcoming exam reminders dispatched",
		zap.Int("students", len(messages)),
		zap.Time("window_start", windowStart),
	)
}
