package domain

import "time"

// Level is the urgency attached to an alert. Timer bands use
// critical/high/medium/low, resources critical/warning/info.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelWarning  Level = "warning"
	LevelLow      Level = "low"
	LevelInfo     Level = "info"
)

// Severity buckets levels when several alerts are merged into one notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (l Level) Severity() Severity {
	switch l {
	case LevelCritical:
		return SeverityCritical
	case LevelInfo:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// AlertKind tags what condition produced an alert.
type AlertKind string

const (
	KindExpired          AlertKind = "expired"
	KindThresholdLow     AlertKind = "threshold_low"
	KindReminder         AlertKind = "reminder"
	KindResourceCritical AlertKind = "resource_critical"
	KindResourceWarning  AlertKind = "resource_warning"
	KindResourceInfo     AlertKind = "resource_info"
	KindPowerLow         AlertKind = "power_low"
	KindPowerExpired     AlertKind = "power_expired"
)

// Subject names the kind of entity k is raised for: "Resource", "Power" or
// "Timer".
func (k AlertKind) Subject() string {
	switch k {
	case KindResourceCritical, KindResourceWarning, KindResourceInfo:
		return "Resource"
	case KindPowerLow, KindPowerExpired:
		return "Power"
	default:
		return "Timer"
	}
}

type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityDefault Priority = "default"
)

// Alert is one user-visible notification candidate produced by the evaluator.
type Alert struct {
	Kind                AlertKind     `json:"kind"`
	Level               Level         `json:"level"`
	EntityID            string        `json:"entityId,omitempty"`
	Title               string        `json:"title"`
	Body                string        `json:"body"`
	Priority            Priority      `json:"priority"`
	Sound               bool          `json:"sound"`
	RequiresInteraction bool          `json:"requiresInteraction,omitempty"`
	Cooldown            time.Duration `json:"-"`
}
