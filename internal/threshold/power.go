package threshold

import (
	"fmt"
	"time"

	"github.com/hamed0406/stockwatch/internal/domain"
)

type powerBand struct {
	upTo     time.Duration
	level    domain.Level
	cooldown time.Duration
	title    string
	body     func(remaining time.Duration) string
}

var powerBands = []powerBand{
	{10 * time.Second, domain.LevelCritical, 3 * time.Second, "CRITICAL: Power Imminent", func(r time.Duration) string {
		return fmt.Sprintf("%d seconds until power loss!", secondsOf(r))
	}},
	{30 * time.Second, domain.LevelCritical, 10 * time.Second, "Power Critical", func(r time.Duration) string {
		return fmt.Sprintf("Only %d seconds of power remaining!", secondsOf(r))
	}},
	{time.Minute, domain.LevelHigh, 20 * time.Second, "Power Running Out", func(r time.Duration) string {
		return fmt.Sprintf("%d seconds until power loss", secondsOf(r))
	}},
	{2 * time.Minute, domain.LevelMedium, 30 * time.Second, "Power Alert", func(r time.Duration) string {
		return fmt.Sprintf("%s of power remaining", FormatRemaining(r))
	}},
	{5 * time.Minute, domain.LevelLow, time.Minute, "Power Update", func(r time.Duration) string {
		return fmt.Sprintf("%d minutes of power left", int(r/time.Minute))
	}},
	{10 * time.Minute, domain.LevelInfo, 2 * time.Minute, "Power Status", func(r time.Duration) string {
		return fmt.Sprintf("%d minutes remaining", int(r/time.Minute))
	}},
	{30 * time.Minute, domain.LevelInfo, 5 * time.Minute, "Power Check", func(r time.Duration) string {
		return fmt.Sprintf("%s remaining", FormatRemaining(r))
	}},
}

// Power classifies the global power countdown. ok is false while more than
// thirty minutes remain.
func Power(p domain.PowerTimer, now time.Time) (domain.Alert, bool) {
	remaining := p.Remaining(now)
	if remaining <= 0 {
		return domain.Alert{
			Kind:     domain.KindPowerExpired,
			Level:    domain.LevelCritical,
			Title:    "Power Expired",
			Body:     "Your power has run out! Reset the timer when power is restored.",
			Priority: domain.PriorityHigh,
			Sound:    true,
			Cooldown: ExpiredCooldown,
		}, true
	}
	for _, b := range powerBands {
		if remaining > b.upTo {
			continue
		}
		a := domain.Alert{
			Kind:     domain.KindPowerLow,
			Level:    b.level,
			Title:    b.title,
			Body:     b.body(remaining),
			Priority: domain.PriorityDefault,
			Sound:    remaining <= time.Minute,
			Cooldown: b.cooldown,
		}
		if remaining <= 30*time.Second {
			a.Priority = domain.PriorityHigh
		}
		return a, true
	}
	return domain.Alert{}, false
}

func secondsOf(d time.Duration) int {
	return int(d / time.Second)
}
