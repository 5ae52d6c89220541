package scheduler

import (
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/ledger"
	"github.com/hamed0406/stockwatch/internal/reminder"
	"github.com/hamed0406/stockwatch/internal/threshold"
)

// evalTimer returns the alerts t raises at now and updates the ledger for
// each of them. Timers stay in evaluation after expiry so the expired alert
// repeats until the timer is reset or deleted.
func (p *Poller) evalTimer(t domain.Timer, now time.Time, foreground bool) []domain.Alert {
	var out []domain.Alert
	key := ledger.TimerKey(t.ID)

	a, st := p.timerEval(t, now)
	switch {
	case st == threshold.StateClear:
		p.ledger.ClearThreshold(key)
	case threshold.Due(p.ledger, key, a, now):
		rec := p.ledger.RecordAlert(key, a, now)
		p.logger.Debug("alert_due",
			zap.String("key", key),
			zap.String("kind", string(a.Kind)),
			zap.String("level", string(a.Level)),
			zap.Int("count", rec.Count),
		)
		out = append(out, a)
	}

	if r, ok := p.reminderDue(t, key, now); ok {
		p.ledger.MarkReminder(key, now)
		// Backgrounded reminders are covered by the pre-scheduled
		// notifications; only the cadence bookkeeping moves.
		if foreground {
			out = append(out, r)
		}
	}
	return out
}

func (p *Poller) reminderDue(t domain.Timer, key string, now time.Time) (domain.Alert, bool) {
	if !t.IsActive || !t.RemindersEnabled() {
		return domain.Alert{}, false
	}
	last := t.StartTime
	if rec, ok := p.ledger.Get(key); ok && rec.LastReminderSent.After(last) {
		last = rec.LastReminderSent
	}
	if now.Sub(last) < t.Reminder.Interval {
		return domain.Alert{}, false
	}
	return domain.Alert{
		Kind:                domain.KindReminder,
		Level:               domain.LevelInfo,
		EntityID:            t.ID,
		Title:               t.Name + " Reminder",
		Body:                reminder.Message(t, now),
		Priority:            domain.PriorityHigh,
		Sound:               true,
		RequiresInteraction: true,
		Cooldown:            t.Reminder.Interval,
	}, true
}

func (p *Poller) evalResource(r domain.Resource, now time.Time) []domain.Alert {
	key := ledger.ResourceKey(r.ID)
	a, low := p.resourceEval(r)
	if !low {
		p.ledger.Clear(key)
		return nil
	}
	if !threshold.Due(p.ledger, key, a, now) {
		return nil
	}
	p.ledger.RecordAlert(key, a, now)
	return []domain.Alert{a}
}

func (p *Poller) evalPower(pt domain.PowerTimer, now time.Time) []domain.Alert {
	a, ok := threshold.Power(pt, now)
	if !ok {
		p.ledger.Clear(ledger.PowerKey)
		return nil
	}
	if !threshold.Due(p.ledger, ledger.PowerKey, a, now) {
		return nil
	}
	p.ledger.RecordAlert(ledger.PowerKey, a, now)
	return []domain.Alert{a}
}

// guard runs one entity's evaluation and keeps a panic from taking the
// whole tick down.
func (p *Poller) guard(entity, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("scheduler_eval_panic",
				zap.String("entity", entity),
				zap.String("id", id),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
