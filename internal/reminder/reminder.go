// Package reminder pre-schedules a timer's fixed-cadence reminders as
// deferred platform notifications so they still fire while the app is in the
// background.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/notify"
	"github.com/hamed0406/stockwatch/internal/threshold"
)

// MaxScheduled caps how many reminders are queued per timer.
const MaxScheduled = 10

// Plan returns the upcoming reminder fire times for t: StartTime plus
// multiples of the interval, strictly before EndTime and strictly after now.
func Plan(t domain.Timer, now time.Time) []time.Time {
	if !t.RemindersEnabled() {
		return nil
	}
	var out []time.Time
	for k := 1; k <= MaxScheduled; k++ {
		at := t.StartTime.Add(time.Duration(k) * t.Reminder.Interval)
		if !at.Before(t.EndTime) {
			break
		}
		if !at.After(now) {
			continue
		}
		out = append(out, at)
	}
	return out
}

// Message is the reminder body for a fire at the given time.
func Message(t domain.Timer, at time.Time) string {
	if t.Reminder != nil && t.Reminder.Message != "" {
		return t.Reminder.Message
	}
	return fmt.Sprintf("%s: %s remaining", t.Name, threshold.FormatRemaining(t.EndTime.Sub(at)))
}

// Scheduler owns the platform notification ids of every timer's reminders.
type Scheduler struct {
	platform notify.Platform
	logger   *zap.Logger

	mu  sync.Mutex
	ids map[string][]string
}

func New(platform notify.Platform, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		platform: platform,
		logger:   logger,
		ids:      make(map[string][]string),
	}
}

// Schedule replaces any reminders queued for t with a fresh plan computed
// against now. It returns how many reminders were queued.
func (s *Scheduler) Schedule(ctx context.Context, t domain.Timer, now time.Time) (int, error) {
	cancelErr := s.Cancel(ctx, t.ID)
	if !t.IsActive {
		return 0, cancelErr
	}

	var (
		ids []string
		err error
	)
	for _, at := range Plan(t, now) {
		at := at
		id, serr := s.platform.Schedule(ctx, notify.Notification{
			Title:    t.Name + " Reminder",
			Body:     Message(t, at),
			Sound:    true,
			Priority: domain.PriorityHigh,
			Data:     map[string]string{"kind": string(domain.KindReminder), "timerId": t.ID},
			Trigger:  &at,
		})
		if serr != nil {
			err = multierr.Append(err, fmt.Errorf("schedule reminder at %s: %w", at.Format(time.RFC3339), serr))
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		s.mu.Lock()
		s.ids[t.ID] = ids
		s.mu.Unlock()
	}
	s.logger.Debug("reminders_scheduled", zap.String("timer_id", t.ID), zap.Int("count", len(ids)))
	return len(ids), multierr.Append(cancelErr, err)
}

// Cancel drops every reminder queued for timerID.
func (s *Scheduler) Cancel(ctx context.Context, timerID string) error {
	s.mu.Lock()
	ids := s.ids[timerID]
	delete(s.ids, timerID)
	s.mu.Unlock()

	var err error
	for _, id := range ids {
		err = multierr.Append(err, s.platform.Cancel(ctx, id))
	}
	return err
}

// Scheduled returns the platform ids currently held for timerID.
func (s *Scheduler) Scheduled(timerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids[timerID]...)
}
