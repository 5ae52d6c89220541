package notify

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Local is an in-process Platform. Immediate notifications go straight to
// the sender; deferred ones wait in memory until Run (or FireDue) releases
// them. Pending notifications do not survive a restart.
type Local struct {
	logger  *zap.Logger
	clock   clockwork.Clock
	sender  Sender
	granted atomic.Bool

	mu      sync.Mutex
	pending map[string]Notification
}

func NewLocal(logger *zap.Logger, clock clockwork.Clock, sender Sender, granted bool) *Local {
	l := &Local{
		logger:  logger,
		clock:   clock,
		sender:  sender,
		pending: make(map[string]Notification),
	}
	l.granted.Store(granted)
	return l
}

// SetPermission mirrors the user granting or revoking notification permission.
func (l *Local) SetPermission(granted bool) {
	l.granted.Store(granted)
}

func (l *Local) Schedule(ctx context.Context, n Notification) (string, error) {
	if !l.granted.Load() {
		return "", ErrPermissionDenied
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Trigger == nil || !n.Trigger.After(l.clock.Now()) {
		return n.ID, l.sender.Send(ctx, n.Title, n.Body)
	}

	l.mu.Lock()
	l.pending[n.ID] = n
	l.mu.Unlock()
	l.logger.Debug("notification_deferred",
		zap.String("id", n.ID),
		zap.Time("trigger", *n.Trigger),
	)
	return n.ID, nil
}

// Cancel drops a deferred notification. Unknown ids are ignored.
func (l *Local) Cancel(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, id)
	return nil
}

// Pending returns the deferred notifications ordered by trigger time.
func (l *Local) Pending() []Notification {
	l.mu.Lock()
	out := make([]Notification, 0, len(l.pending))
	for _, n := range l.pending {
		out = append(out, n)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Trigger.Before(*out[j].Trigger) })
	return out
}

// FireDue delivers every deferred notification whose trigger has passed and
// returns how many were released. Delivery failures are logged and dropped.
func (l *Local) FireDue(ctx context.Context) int {
	now := l.clock.Now()

	l.mu.Lock()
	var due []Notification
	for id, n := range l.pending {
		if !n.Trigger.After(now) {
			due = append(due, n)
			delete(l.pending, id)
		}
	}
	l.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Trigger.Before(*due[j].Trigger) })
	for _, n := range due {
		if err := l.sender.Send(ctx, n.Title, n.Body); err != nil {
			l.logger.Warn("notification_deliver_error", zap.String("id", n.ID), zap.Error(err))
		}
	}
	return len(due)
}

// Run releases deferred notifications every interval until ctx is done.
func (l *Local) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := l.clock.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("notifications_stopped")
			return
		case <-t.Chan():
			l.FireDue(ctx)
		}
	}
}
