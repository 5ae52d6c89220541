package domain

import (
	"encoding/json"
	"time"
)

type TimerCategory string

const (
	TimerGenerator TimerCategory = "generator"
	TimerEquipment TimerCategory = "equipment"
	TimerCooldown  TimerCategory = "cooldown"
	TimerOther     TimerCategory = "other"
)

type ResourceCategory string

const (
	ResourcePower ResourceCategory = "power"
	ResourceStock ResourceCategory = "resources"
	ResourceOther ResourceCategory = "other"
)

// TimerReminder is a fixed-cadence nudge that runs independently of the
// low-threshold alert.
type TimerReminder struct {
	Interval time.Duration `validate:"gt=0"`
	Message  string        `validate:"max=200"`
	Enabled  bool
}

type Timer struct {
	ID        string
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Threshold time.Duration
	Category  TimerCategory
	IsActive  bool
	Reminder  *TimerReminder
}

// Remaining is the time left until EndTime; negative once expired.
func (t Timer) Remaining(now time.Time) time.Duration {
	return t.EndTime.Sub(now)
}

// RemindersEnabled reports whether the timer carries an active reminder cadence.
func (t Timer) RemindersEnabled() bool {
	return t.Reminder != nil && t.Reminder.Enabled && t.Reminder.Interval > 0
}

type Resource struct {
	ID       string
	Name     string
	Value    float64
	Needed   float64
	Category ResourceCategory
}

// Low reports whether the stock sits at or below the needed level.
func (r Resource) Low() bool {
	return r.Value <= r.Needed
}

// Percentage is the stock as a rounded share of Needed.
func (r Resource) Percentage() int {
	if r.Needed <= 0 {
		return 0
	}
	return int(roundHalfUp(r.Value / r.Needed * 100))
}

// PowerTimer is the single global power/fuel countdown.
type PowerTimer struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

func (p PowerTimer) Remaining(now time.Time) time.Duration {
	return p.EndTime.Sub(now)
}

// Settings holds the per-class notification toggles.
type Settings struct {
	TimerNotifications    bool `json:"timerNotifications"`
	ResourceNotifications bool `json:"resourceNotifications"`
}

func DefaultSettings() Settings {
	return Settings{TimerNotifications: true, ResourceNotifications: true}
}

// NotificationClass names an entity class whose alerts can be switched off.
type NotificationClass string

const (
	ClassTimers    NotificationClass = "timers"
	ClassResources NotificationClass = "resources"
)

// Enabled reports whether alerts of class c are switched on.
func (s Settings) Enabled(c NotificationClass) bool {
	switch c {
	case ClassTimers:
		return s.TimerNotifications
	case ClassResources:
		return s.ResourceNotifications
	default:
		return false
	}
}

func roundHalfUp(f float64) float64 {
	if f < 0 {
		return -roundHalfUp(-f)
	}
	return float64(int64(f + 0.5))
}

// ---- wire format ----
// Times are unix milliseconds and durations milliseconds.

type reminderJSON struct {
	Interval int64  `json:"interval"`
	Message  string `json:"message"`
	Enabled  bool   `json:"enabled"`
}

type timerJSON struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	StartTime int64         `json:"startTime"`
	EndTime   int64         `json:"endTime"`
	Duration  int64         `json:"duration"`
	Threshold int64         `json:"threshold"`
	Category  TimerCategory `json:"category"`
	IsActive  bool          `json:"isActive"`
	Reminder  *reminderJSON `json:"reminder,omitempty"`
}

func (t Timer) MarshalJSON() ([]byte, error) {
	w := timerJSON{
		ID:        t.ID,
		Name:      t.Name,
		StartTime: t.StartTime.UnixMilli(),
		EndTime:   t.EndTime.UnixMilli(),
		Duration:  t.Duration.Milliseconds(),
		Threshold: t.Threshold.Milliseconds(),
		Category:  t.Category,
		IsActive:  t.IsActive,
	}
	if t.Reminder != nil {
		w.Reminder = &reminderJSON{
			Interval: t.Reminder.Interval.Milliseconds(),
			Message:  t.Reminder.Message,
			Enabled:  t.Reminder.Enabled,
		}
	}
	return json.Marshal(w)
}

func (t *Timer) UnmarshalJSON(b []byte) error {
	var w timerJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Timer{
		ID:        w.ID,
		Name:      w.Name,
		StartTime: time.UnixMilli(w.StartTime).UTC(),
		EndTime:   time.UnixMilli(w.EndTime).UTC(),
		Duration:  time.Duration(w.Duration) * time.Millisecond,
		Threshold: time.Duration(w.Threshold) * time.Millisecond,
		Category:  w.Category,
		IsActive:  w.IsActive,
	}
	if w.Reminder != nil {
		t.Reminder = &TimerReminder{
			Interval: time.Duration(w.Reminder.Interval) * time.Millisecond,
			Message:  w.Reminder.Message,
			Enabled:  w.Reminder.Enabled,
		}
	}
	return nil
}

type resourceJSON struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Value    float64          `json:"value"`
	Needed   float64          `json:"needed"`
	Category ResourceCategory `json:"category"`
	// Threshold is the field name used before "needed" replaced it.
	Threshold *float64 `json:"threshold,omitempty"`
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(resourceJSON{
		ID:       r.ID,
		Name:     r.Name,
		Value:    r.Value,
		Needed:   r.Needed,
		Category: r.Category,
	})
}

func (r *Resource) UnmarshalJSON(b []byte) error {
	var w resourceJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Resource{
		ID:       w.ID,
		Name:     w.Name,
		Value:    w.Value,
		Needed:   w.Needed,
		Category: w.Category,
	}
	if r.Needed == 0 && w.Threshold != nil {
		r.Needed = *w.Threshold
	}
	return nil
}

type powerJSON struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Duration  int64 `json:"duration"`
}

func (p PowerTimer) MarshalJSON() ([]byte, error) {
	return json.Marshal(powerJSON{
		StartTime: p.StartTime.UnixMilli(),
		EndTime:   p.EndTime.UnixMilli(),
		Duration:  p.Duration.Milliseconds(),
	})
}

func (p *PowerTimer) UnmarshalJSON(b []byte) error {
	var w powerJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = PowerTimer{
		StartTime: time.UnixMilli(w.StartTime).UTC(),
		EndTime:   time.UnixMilli(w.EndTime).UTC(),
		Duration:  time.Duration(w.Duration) * time.Millisecond,
	}
	return nil
}
