package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/stockwatch/internal/domain"
)

// Defaults for the in-app queue.
const (
	DefaultBannerTTL = 5 * time.Second
	DefaultLimit     = 50
)

// AppState tracks whether the app is in the foreground.
type AppState struct {
	foreground atomic.Bool
}

func (s *AppState) Foreground() bool      { return s.foreground.Load() }
func (s *AppState) SetForeground(fg bool) { s.foreground.Store(fg) }

// InAppNotification is an alert shown inside the running app. Banners carry
// an ExpiresAt; prompts (RequiresInteraction) stay until dismissed.
type InAppNotification struct {
	ID                  string
	Title               string
	Body                string
	Level               domain.Level
	Timestamp           time.Time
	ExpiresAt           time.Time
	RequiresInteraction bool
}

// Expired reports whether a banner has outlived its display time.
func (n InAppNotification) Expired(now time.Time) bool {
	return !n.RequiresInteraction && !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
}

// Queue is the bounded list of in-app notifications, oldest first.
type Queue struct {
	mu    sync.Mutex
	items []InAppNotification
	limit int
	ttl   time.Duration
}

func NewQueue(limit int, bannerTTL time.Duration) *Queue {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if bannerTTL <= 0 {
		bannerTTL = DefaultBannerTTL
	}
	return &Queue{limit: limit, ttl: bannerTTL}
}

// Push appends a as a new in-app notification. When the queue is full the
// oldest banner is evicted, or the oldest prompt if only prompts remain.
func (q *Queue) Push(a domain.Alert, now time.Time) InAppNotification {
	n := InAppNotification{
		ID:                  uuid.NewString(),
		Title:               a.Title,
		Body:                a.Body,
		Level:               a.Level,
		Timestamp:           now,
		RequiresInteraction: a.RequiresInteraction,
	}
	if !n.RequiresInteraction {
		n.ExpiresAt = now.Add(q.ttl)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.limit {
		victim := 0
		for i, it := range q.items {
			if !it.RequiresInteraction {
				victim = i
				break
			}
		}
		q.items = append(q.items[:victim], q.items[victim+1:]...)
	}
	q.items = append(q.items, n)
	return n
}

// Dismiss removes the notification with id and reports whether it existed.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Prune drops expired banners and returns how many were removed.
func (q *Queue) Prune(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, it := range q.items {
		if !it.Expired(now) {
			kept = append(kept, it)
		}
	}
	removed := len(q.items) - len(kept)
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = InAppNotification{}
	}
	q.items = kept
	return removed
}

func (q *Queue) List() []InAppNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]InAppNotification, len(q.items))
	copy(out, q.items)
	return out
}
