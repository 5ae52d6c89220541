// Package tracker is the application service behind the presentation layer.
// It applies mutations to the entity store and keeps the alert ledger, the
// reminder schedule and the poll loop consistent with them.
package tracker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/dispatch"
	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/ledger"
	"github.com/hamed0406/stockwatch/internal/reminder"
	"github.com/hamed0406/stockwatch/internal/store"
)

// Waker triggers an immediate re-evaluation.
type Waker interface {
	Wake()
}

type Service struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	store      *store.Store
	ledger     *ledger.Ledger
	reminders  *reminder.Scheduler
	dispatcher *dispatch.Dispatcher
	state      *dispatch.AppState
	waker      Waker
}

func New(
	logger *zap.Logger,
	clock clockwork.Clock,
	st *store.Store,
	l *ledger.Ledger,
	reminders *reminder.Scheduler,
	dispatcher *dispatch.Dispatcher,
	state *dispatch.AppState,
	waker Waker,
) *Service {
	return &Service{
		logger:     logger,
		clock:      clock,
		store:      st,
		ledger:     l,
		reminders:  reminders,
		dispatcher: dispatcher,
		state:      state,
		waker:      waker,
	}
}

// Load restores persisted state and re-arms reminder schedules for timers
// that are still running.
func (s *Service) Load(ctx context.Context) error {
	err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("store_load_error", zap.Error(err))
	}
	for _, t := range s.store.Timers() {
		if t.IsActive && t.RemindersEnabled() {
			s.schedule(ctx, t)
		}
	}
	s.wake()
	return err
}

func (s *Service) schedule(ctx context.Context, t domain.Timer) {
	if _, err := s.reminders.Schedule(ctx, t, s.clock.Now()); err != nil {
		s.logger.Warn("reminder_schedule_error", zap.String("timer_id", t.ID), zap.Error(err))
	}
}

func (s *Service) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

// ---- timers ----

func (s *Service) AddTimer(ctx context.Context, spec domain.TimerSpec, days, hours, minutes, seconds int) (domain.Timer, error) {
	d, err := domain.DurationFromParts(days, hours, minutes, seconds)
	if err != nil {
		return domain.Timer{}, err
	}
	t, err := s.store.AddTimer(ctx, spec, d)
	if err != nil {
		return domain.Timer{}, err
	}
	s.schedule(ctx, t)
	s.logger.Info("timer_added", zap.String("timer_id", t.ID), zap.String("name", t.Name), zap.Duration("duration", d))
	s.wake()
	return t, nil
}

// UpdateTimer restarts the timer with a new duration and starts a fresh
// alert sequence.
func (s *Service) UpdateTimer(ctx context.Context, id string, days, hours, minutes, seconds int) (domain.Timer, error) {
	d, err := domain.DurationFromParts(days, hours, minutes, seconds)
	if err != nil {
		return domain.Timer{}, err
	}
	t, err := s.store.UpdateTimer(ctx, id, d)
	if err != nil {
		return domain.Timer{}, err
	}
	s.restarted(ctx, t)
	return t, nil
}

func (s *Service) ResetTimer(ctx context.Context, id string) (domain.Timer, error) {
	t, err := s.store.ResetTimer(ctx, id)
	if err != nil {
		return domain.Timer{}, err
	}
	s.restarted(ctx, t)
	return t, nil
}

func (s *Service) restarted(ctx context.Context, t domain.Timer) {
	s.ledger.Clear(ledger.TimerKey(t.ID))
	s.schedule(ctx, t)
	s.logger.Info("timer_restarted", zap.String("timer_id", t.ID), zap.Time("end_time", t.EndTime))
	s.wake()
}

func (s *Service) DeleteTimer(ctx context.Context, id string) error {
	if err := s.store.DeleteTimer(ctx, id); err != nil {
		return err
	}
	s.ledger.Clear(ledger.TimerKey(id))
	if err := s.reminders.Cancel(ctx, id); err != nil {
		s.logger.Warn("reminder_cancel_error", zap.String("timer_id", id), zap.Error(err))
	}
	s.logger.Info("timer_deleted", zap.String("timer_id", id))
	s.wake()
	return nil
}

func (s *Service) Timers() []domain.Timer { return s.store.Timers() }

// ---- resources ----

func (s *Service) AddResource(ctx context.Context, spec domain.ResourceSpec) (domain.Resource, error) {
	r, err := s.store.AddResource(ctx, spec)
	if err != nil {
		return domain.Resource{}, err
	}
	s.logger.Info("resource_added", zap.String("resource_id", r.ID), zap.String("name", r.Name))
	s.wake()
	return r, nil
}

// UpdateResource applies patch. A patch that lifts the stock above its
// needed level ends the resource's alert sequence right away.
func (s *Service) UpdateResource(ctx context.Context, id string, patch domain.ResourcePatch) (domain.Resource, error) {
	r, err := s.store.UpdateResource(ctx, id, patch)
	if err != nil {
		return domain.Resource{}, err
	}
	if !r.Low() {
		s.ledger.Clear(ledger.ResourceKey(id))
	}
	s.wake()
	return r, nil
}

func (s *Service) DeleteResource(ctx context.Context, id string) error {
	if err := s.store.DeleteResource(ctx, id); err != nil {
		return err
	}
	s.ledger.Clear(ledger.ResourceKey(id))
	s.wake()
	return nil
}

func (s *Service) Resources() []domain.Resource { return s.store.Resources() }

// ---- power ----

func (s *Service) SetPowerTimer(ctx context.Context, d time.Duration) (domain.PowerTimer, error) {
	p, err := s.store.SetPowerTimer(ctx, d)
	if err != nil {
		return domain.PowerTimer{}, err
	}
	s.ledger.Clear(ledger.PowerKey)
	s.logger.Info("power_timer_set", zap.Time("end_time", p.EndTime))
	s.wake()
	return p, nil
}

func (s *Service) ClearPowerTimer(ctx context.Context) {
	s.store.ClearPowerTimer(ctx)
	s.ledger.Clear(ledger.PowerKey)
	s.wake()
}

func (s *Service) Power() (domain.PowerTimer, bool) { return s.store.Power() }

// ---- notifications ----

func (s *Service) ToggleNotifications(ctx context.Context, class domain.NotificationClass) (domain.Settings, error) {
	st, err := s.store.ToggleNotifications(ctx, class)
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.Info("notifications_toggled",
		zap.String("class", string(class)),
		zap.Bool("enabled", st.Enabled(class)),
	)
	return st, nil
}

func (s *Service) Settings() domain.Settings { return s.store.Settings() }

func (s *Service) InAppNotifications() []dispatch.InAppNotification {
	return s.dispatcher.InApp()
}

func (s *Service) DismissInAppNotification(id string) bool {
	return s.dispatcher.Dismiss(id)
}

// SetForeground records whether the app is in the foreground. Coming to the
// foreground triggers a tick so pending alerts show in-app.
func (s *Service) SetForeground(fg bool) {
	was := s.state.Foreground()
	s.state.SetForeground(fg)
	if fg && !was {
		s.wake()
	}
}

func (s *Service) Foreground() bool { return s.state.Foreground() }
