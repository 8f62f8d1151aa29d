package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/infrastructure/logger"
	redisclient "github.com/shineinfo/crm-backend/internal/infrastructure/redis"
	"github.com/shineinfo/crm-backend/internal/observability/metrics"
)

const (
	reminderLockKey = "crm:reminders:lock"
	reminderTitle   = "CRM Reminder"
	reminderType    = "meeting-reminder"
)

// Trigger labels what started a run.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// RunReport summarises one dispatch run.
type RunReport struct {
	Leads    int `json:"leads"`
	Messages int `json:"messages"`
	Sent     int `json:"sent"`
	Pruned   int `json:"pruned"`
	Failed   int `json:"failed"`
}

// ReminderPayload is the push message body the service worker receives.
type ReminderPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	MeetingID string `json:"meetingId"`
}

// ReminderDispatcher pushes meeting reminders for leads meeting today,
// tomorrow or in two days to every registered browser.
type ReminderDispatcher struct {
	leads    domain.LeadRepository
	subs     domain.SubscriptionRepository
	sender   domain.PushSender
	locker   *redisclient.Client
	schedule string
	lockTTL  time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger

	mu sync.Mutex
}

// NewReminderDispatcher creates a dispatcher. locker may be nil, in which
// case overlapping runs are only prevented within this process.
func NewReminderDispatcher(
	leads domain.LeadRepository,
	subs domain.SubscriptionRepository,
	sender domain.PushSender,
	locker *redisclient.Client,
	schedule string,
	lockTTL time.Duration,
	loc *time.Location,
	log *zap.Logger,
) *ReminderDispatcher {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderDispatcher{
		leads:    leads,
		subs:     subs,
		sender:   sender,
		locker:   locker,
		schedule: schedule,
		lockTTL:  lockTTL,
		loc:      loc,
		now:      time.Now,
		logger:   log.With(zap.String("component", "reminder_dispatcher")),
	}
}

// Start runs the dispatcher on its cron schedule until ctx is cancelled.
func (d *ReminderDispatcher) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(d.loc),
		cron.WithChain(cron.SkipIfStillRunning(logger.NewCronAdapter(d.logger))),
	)
	if _, err := c.AddFunc(d.schedule, func() {
		if _, err := d.Run(ctx, TriggerSchedule); err != nil && !errors.Is(err, domain.ErrRunInProgress) {
			d.logger.Error("scheduled reminder run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", d.schedule, err)
	}

	c.Start()
	d.logger.Info("reminder dispatcher started", zap.String("schedule", d.schedule), zap.String("timezone", d.loc.String()))

	<-ctx.Done()
	<-c.Stop().Done()
	d.logger.Info("reminder dispatcher stopped")
	return nil
}

// Run performs one dispatch. It returns domain.ErrRunInProgress when another
// run holds the in-process or cluster lock.
func (d *ReminderDispatcher) Run(ctx context.Context, trigger string) (*RunReport, error) {
	start := time.Now()
	if !d.mu.TryLock() {
		metrics.ObserveReminderRun(trigger, "skipped", 0)
		return nil, domain.ErrRunInProgress
	}
	defer d.mu.Unlock()

	if d.locker != nil {
		lock, err := d.locker.TryLock(ctx, reminderLockKey, d.lockTTL)
		switch {
		case errors.Is(err, redisclient.ErrLockHeld):
			d.logger.Info("reminder run held by another instance", zap.String("trigger", trigger))
			metrics.ObserveReminderRun(trigger, "skipped", 0)
			return nil, domain.ErrRunInProgress
		case err != nil:
			d.logger.Warn("reminder lock unavailable, running unguarded", zap.Error(err))
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					d.logger.Warn("failed to release reminder lock", zap.Error(err))
				}
			}()
		}
	}

	report, err := d.dispatch(ctx)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ObserveReminderRun(trigger, result, time.Since(start))
	if err != nil {
		return nil, err
	}

	d.logger.Info("reminder run finished",
		zap.String("trigger", trigger),
		zap.Int("leads", report.Leads),
		zap.Int("messages", report.Messages),
		zap.Int("sent", report.Sent),
		zap.Int("pruned", report.Pruned),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (d *ReminderDispatcher) dispatch(ctx context.Context) (*RunReport, error) {
	today := midnight(d.now().In(d.loc))
	leads, err := d.leads.ListMeetingsBetween(ctx, today, today.AddDate(0, 0, 3))
	if err != nil {
		return nil, fmt.Errorf("list upcoming meetings: %w", err)
	}
	report := &RunReport{Leads: len(leads)}
	if len(leads) == 0 {
		return report, nil
	}

	subs, err := d.subs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	gone := make(map[string]bool)

	for _, lead := range leads {
		body, ok := ReminderMessage(lead, today, d.loc)
		if !ok {
			continue
		}
		payload, err := json.Marshal(ReminderPayload{
			Title:     reminderTitle,
			Body:      body,
			Type:      reminderType,
			MeetingID: lead.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("encode reminder: %w", err)
		}
		report.Messages++

		for _, sub := range subs {
			if gone[sub.ID] {
				continue
			}
			err := d.sender.Send(ctx, sub, payload)
			switch {
			case err == nil:
				report.Sent++
				metrics.ObservePushDelivery("sent")
			case errors.Is(err, domain.ErrSubscriptionGone):
				gone[sub.ID] = true
				if derr := d.subs.Delete(ctx, sub.ID); derr != nil {
					d.logger.Error("failed to delete expired subscription", zap.String("subscription_id", sub.ID), zap.Error(derr))
					continue
				}
				report.Pruned++
				metrics.ObservePushDelivery("gone")
				d.logger.Info("deleted expired subscription", zap.String("subscription_id", sub.ID))
			default:
				report.Failed++
				metrics.ObservePushDelivery("error")
				d.logger.Warn("push delivery failed",
					zap.String("subscription_id", sub.ID), zap.String("lead_id", lead.ID), zap.Error(err))
			}
		}
	}
	return report, nil
}

// ReminderMessage composes the reminder text for lead relative to today,
// comparing calendar days in loc. ok is false when the meeting is not
// today, tomorrow or in two days.
func ReminderMessage(lead *domain.Lead, today time.Time, loc *time.Location) (string, bool) {
	if lead.MeetingDate.IsZero() {
		return "", false
	}
	who := lead.Name
	if who == "" {
		who = "a client"
	}
	day := midnight(lead.MeetingDate.In(loc))
	today = midnight(today.In(loc))

	switch {
	case day.Equal(today):
		return fmt.Sprintf("You have a meeting with %s today.", who), true
	case day.Equal(today.AddDate(0, 0, 1)):
		return fmt.Sprintf("You have a meeting with %s tomorrow.", who), true
	case day.Equal(today.AddDate(0, 0, 2)):
		return fmt.Sprintf("You have a meeting with %s in 2 days.", who), true
	}
	return "", false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
