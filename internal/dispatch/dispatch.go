// Package dispatch delivers a tick's alerts: merged into one notification per
// severity, then routed to the in-app queue or the platform depending on
// whether the app is in the foreground.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/notify"
)

type Dispatcher struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	platform notify.Platform
	state    *AppState
	queue    *Queue
}

func New(logger *zap.Logger, clock clockwork.Clock, platform notify.Platform, state *AppState, queue *Queue) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		clock:    clock,
		platform: platform,
		state:    state,
		queue:    queue,
	}
}

// Dispatch delivers alerts and returns how many notifications were produced.
// Delivery failures are logged and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []domain.Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	out := Coalesce(alerts)
	fg := d.state.Foreground()
	now := d.clock.Now()

	for _, a := range out {
		if fg {
			n := d.queue.Push(a, now)
			d.logger.Info("alert_dispatched",
				zap.String("route", "in_app"),
				zap.String("id", n.ID),
				zap.String("kind", string(a.Kind)),
				zap.String("level", string(a.Level)),
				zap.String("title", a.Title),
			)
			continue
		}

		id, err := d.platform.Schedule(ctx, toNotification(a))
		if err != nil {
			d.logger.Warn("dispatch_deliver_error",
				zap.String("kind", string(a.Kind)),
				zap.String("title", a.Title),
				zap.Error(err),
			)
			continue
		}
		d.logger.Info("alert_dispatched",
			zap.String("route", "platform"),
			zap.String("id", id),
			zap.String("kind", string(a.Kind)),
			zap.String("level", string(a.Level)),
			zap.String("title", a.Title),
		)
	}
	return len(out)
}

func (d *Dispatcher) InApp() []InAppNotification { return d.queue.List() }
func (d *Dispatcher) Dismiss(id string) bool     { return d.queue.Dismiss(id) }
func (d *Dispatcher) Prune(now time.Time) int    { return d.queue.Prune(now) }

func toNotification(a domain.Alert) notify.Notification {
	data := map[string]string{"kind": string(a.Kind)}
	if a.EntityID != "" {
		data["entityId"] = a.EntityID
	}
	return notify.Notification{
		Title:    a.Title,
		Body:     a.Body,
		Sound:    a.Sound,
		Priority: a.Priority,
		Data:     data,
	}
}

// Coalesce merges a batch into at most one notification per severity, keeping
// only the highest severity present. Reminders pass through untouched and a
// lone alert is returned as is.
func Coalesce(alerts []domain.Alert) []domain.Alert {
	var reminders, rest []domain.Alert
	for _, a := range alerts {
		if a.Kind == domain.KindReminder {
			reminders = append(reminders, a)
		} else {
			rest = append(rest, a)
		}
	}
	if len(rest) <= 1 {
		return append(rest, reminders...)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Level.Severity() > rest[j].Level.Severity()
	})
	top := rest[0].Level.Severity()
	var group []domain.Alert
	for _, a := range rest {
		if a.Level.Severity() == top {
			group = append(group, a)
		}
	}

	return append([]domain.Alert{merge(top, group)}, reminders...)
}

func merge(sev domain.Severity, group []domain.Alert) domain.Alert {
	bodies := make([]string, 0, len(group))
	interact := false
	for _, a := range group {
		bodies = append(bodies, a.Body)
		interact = interact || a.RequiresInteraction
	}

	m := domain.Alert{
		Kind:                group[0].Kind,
		Body:                strings.Join(bodies, "\n"),
		RequiresInteraction: interact,
	}
	if len(group) == 1 {
		m.EntityID = group[0].EntityID
	}

	switch sev {
	case domain.SeverityCritical:
		m.Level = domain.LevelCritical
		m.Title = fmt.Sprintf("%d Critical Alerts", len(group))
		if len(group) == 1 {
			m.Title = group[0].Title
		}
		m.Sound = true
		m.Priority = domain.PriorityHigh
	case domain.SeverityWarning:
		m.Level = domain.LevelWarning
		m.Title = fmt.Sprintf("%d %s", len(group), label(group, "Warning"))
		if len(group) > 1 {
			m.Title += "s"
		}
		m.Sound = true
		m.Priority = domain.PriorityDefault
	default:
		m.Level = domain.LevelInfo
		m.Title = label(group, "Updates")
		m.Priority = domain.PriorityDefault
	}
	return m
}

// label prefixes noun with the subject every alert in group shares, e.g.
// "Resource Warning"; a mixed group gets the bare noun.
func label(group []domain.Alert, noun string) string {
	subject := group[0].Kind.Subject()
	for _, a := range group[1:] {
		if a.Kind.Subject() != subject {
			return noun
		}
	}
	return subject + " " + noun
}
