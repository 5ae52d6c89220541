package scheduler

import (
	"time"

	"github.com/hamed0406/stockwatch/internal/domain"
)

const (
	DefaultInterval  = 10 * time.Second
	ResourceInterval = 3 * time.Second
)

// resourceUrgentShare is the share of Needed at or below which a resource
// speeds up polling.
const resourceUrgentShare = 0.25

// countdownInterval maps the time left on a countdown to a poll period.
func countdownInterval(remaining time.Duration) time.Duration {
	switch {
	case remaining <= 30*time.Second:
		return time.Second
	case remaining <= time.Minute:
		return 2 * time.Second
	case remaining <= 5*time.Minute:
		return 5 * time.Second
	default:
		return DefaultInterval
	}
}

// Interval is the poll period for the given state: the shortest period any
// active countdown or urgent resource asks for.
func Interval(now time.Time, timers []domain.Timer, resources []domain.Resource, power *domain.PowerTimer) time.Duration {
	d := DefaultInterval
	for _, t := range timers {
		if !t.IsActive {
			continue
		}
		if rem := t.Remaining(now); rem > 0 {
			d = min(d, countdownInterval(rem))
		}
	}
	for _, r := range resources {
		if r.Needed > 0 && r.Value <= r.Needed*resourceUrgentShare {
			d = min(d, ResourceInterval)
		}
	}
	if power != nil {
		if rem := power.Remaining(now); rem > 0 {
			d = min(d, countdownInterval(rem))
		}
	}
	return d
}
