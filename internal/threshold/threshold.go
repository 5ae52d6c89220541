// Package threshold classifies timers, resources and the power countdown
// into alerts and decides whether an alert is due against the ledger.
package threshold

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/ledger"
)

// ExpiredCooldown spaces repeated expiry alerts for the same entity.
const ExpiredCooldown = 5 * time.Minute

// Resource cooldowns by level.
const (
	ResourceCriticalCooldown = 30 * time.Second
	ResourceWarningCooldown  = time.Minute
	ResourceInfoCooldown     = 2 * time.Minute
)

// State is where a timer sits relative to its threshold.
type State int

const (
	StateClear State = iota
	StateLow
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateLow:
		return "low"
	case StateExpired:
		return "expired"
	default:
		return "clear"
	}
}

type band struct {
	upTo     time.Duration
	level    domain.Level
	cooldown time.Duration
}

// timerBands sub-tier the low state by remaining time; the last band catches
// everything up to the configured threshold.
var timerBands = []band{
	{30 * time.Second, domain.LevelCritical, 10 * time.Second},
	{time.Minute, domain.LevelHigh, 20 * time.Second},
	{5 * time.Minute, domain.LevelMedium, 30 * time.Second},
	{0, domain.LevelLow, time.Minute},
}

func timerBand(remaining time.Duration) band {
	for _, b := range timerBands {
		if b.upTo == 0 || remaining <= b.upTo {
			return b
		}
	}
	return timerBands[len(timerBands)-1]
}

// Resource classifies r. ok is false when the stock is above its needed level,
// which is the recovery signal for the ledger.
func Resource(r domain.Resource) (domain.Alert, bool) {
	if !r.Low() {
		return domain.Alert{}, false
	}
	pct := r.Percentage()
	value := formatAmount(r.Value)
	a := domain.Alert{EntityID: r.ID}

	switch {
	case r.Value == 0:
		a.Kind = domain.KindResourceCritical
		a.Level = domain.LevelCritical
		a.Title = "Resource Depleted"
		a.Body = fmt.Sprintf("%s is completely depleted!", r.Name)
	case pct <= 25:
		a.Kind = domain.KindResourceCritical
		a.Level = domain.LevelCritical
		a.Title = "Critical Resource Level"
		a.Body = fmt.Sprintf("%s: %s (%d%% of needed)", r.Name, value, pct)
	case pct <= 50:
		a.Kind = domain.KindResourceWarning
		a.Level = domain.LevelWarning
		a.Title = "Resource Warning"
		a.Body = fmt.Sprintf("%s dropping: %s remaining", r.Name, value)
	default:
		a.Kind = domain.KindResourceInfo
		a.Level = domain.LevelInfo
		a.Title = "Resource Update"
		a.Body = fmt.Sprintf("%s: %s (approaching needed level)", r.Name, value)
	}

	switch a.Level {
	case domain.LevelCritical:
		a.Priority = domain.PriorityHigh
		a.Sound = true
		a.Cooldown = ResourceCriticalCooldown
	case domain.LevelWarning:
		a.Priority = domain.PriorityDefault
		a.Sound = true
		a.Cooldown = ResourceWarningCooldown
	default:
		a.Priority = domain.PriorityDefault
		a.Cooldown = ResourceInfoCooldown
	}
	return a, true
}

// Timer classifies t at now. The alert is only meaningful when the state is
// not StateClear.
func Timer(t domain.Timer, now time.Time) (domain.Alert, State) {
	remaining := t.Remaining(now)
	if remaining <= 0 {
		return domain.Alert{
			Kind:     domain.KindExpired,
			Level:    domain.LevelCritical,
			EntityID: t.ID,
			Title:    t.Name + " Expired",
			Body:     fmt.Sprintf("Your %s timer has expired!", t.Name),
			Priority: domain.PriorityHigh,
			Sound:    true,
			Cooldown: ExpiredCooldown,
		}, StateExpired
	}
	if remaining > t.Threshold {
		return domain.Alert{}, StateClear
	}

	b := timerBand(remaining)
	a := domain.Alert{
		Kind:     domain.KindThresholdLow,
		Level:    b.level,
		EntityID: t.ID,
		Title:    t.Name + " Low",
		Body:     fmt.Sprintf("Only %s remaining!", FormatRemaining(remaining)),
		Priority: domain.PriorityDefault,
		Sound:    b.level == domain.LevelCritical || b.level == domain.LevelHigh,
		Cooldown: b.cooldown,
	}
	if b.level == domain.LevelCritical {
		a.Title = t.Name + " Critical"
		a.Priority = domain.PriorityHigh
	}
	return a, StateLow
}

// ShouldAlert applies the cooldown policy: an alert is due when no alert
// sequence is open, when the cooldown for the new alert has passed, or when
// the alert escalates to critical from anything that was not the same
// critical kind.
func ShouldAlert(rec ledger.Record, found bool, a domain.Alert, now time.Time) bool {
	if !found || !rec.Active() {
		return true
	}
	if !rec.Recent(a, now) {
		return true
	}
	return a.Level == domain.LevelCritical &&
		(rec.Level != domain.LevelCritical || rec.Kind != a.Kind)
}

// Due looks key up in l and applies ShouldAlert.
func Due(l *ledger.Ledger, key string, a domain.Alert, now time.Time) bool {
	rec, ok := l.Get(key)
	return ShouldAlert(rec, ok, a, now)
}

// FormatRemaining renders a countdown the way alerts show it: "2d 3h",
// "1h 20m", "4m 29s" or "29s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
