// Package ledger keeps the per-entity notification history used to suppress
// duplicate alerts. Records live for the lifetime of the process only.
package ledger

import (
	"sync"
	"time"

	"github.com/hamed0406/stockwatch/internal/domain"
)

// PowerKey is the ledger key of the global power countdown.
const PowerKey = "power"

func TimerKey(id string) string    { return "timer-" + id }
func ResourceKey(id string) string { return "resource-" + id }

// Record is the last alert raised for a key. A record whose LastNotified is
// zero only carries reminder bookkeeping and does not count as an alert
// sequence.
type Record struct {
	LastNotified     time.Time
	Level            domain.Level
	Kind             domain.AlertKind
	Count            int
	LastReminderSent time.Time
}

// Active reports whether the record holds an open alert sequence.
func (r Record) Active() bool { return !r.LastNotified.IsZero() }

// Recent reports whether the last alert is still inside a's cooldown window.
func (r Record) Recent(a domain.Alert, now time.Time) bool {
	return r.Active() && now.Sub(r.LastNotified) <= a.Cooldown
}

type Ledger struct {
	mu      sync.Mutex
	records map[string]Record
}

func New() *Ledger {
	return &Ledger{records: make(map[string]Record)}
}

func (l *Ledger) Get(key string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key]
	return r, ok
}

// RecordAlert stores a as the latest alert for key and returns the new record.
func (l *Ledger) RecordAlert(key string, a domain.Alert, now time.Time) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.records[key]
	count := 1
	if prev.Active() {
		count = prev.Count + 1
	}
	rec := Record{
		LastNotified:     now,
		Level:            a.Level,
		Kind:             a.Kind,
		Count:            count,
		LastReminderSent: prev.LastReminderSent,
	}
	l.records[key] = rec
	return rec
}

func (l *Ledger) HasRecentAlert(key string, a domain.Alert, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key]
	return ok && r.Recent(a, now)
}

// MarkReminder records that a reminder for key went out at now.
func (l *Ledger) MarkReminder(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.records[key]
	r.LastReminderSent = now
	l.records[key] = r
}

// Clear removes every trace of key so the next crossing starts a fresh sequence.
func (l *Ledger) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// ClearThreshold drops the alert sequence for key but keeps reminder
// bookkeeping, which runs on its own cadence.
func (l *Ledger) ClearThreshold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[key]
	if !ok {
		return
	}
	if r.LastReminderSent.IsZero() {
		delete(l.records, key)
		return
	}
	l.records[key] = Record{LastReminderSent: r.LastReminderSent}
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
