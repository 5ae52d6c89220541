// Package notify models the platform's local notification service and the
// outbound channels that finally put a notification in front of the user.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
)

// ErrPermissionDenied is returned when the user has not granted notification
// permission.
var ErrPermissionDenied = errors.New("notification permission denied")

// Notification is the content handed to the platform. A nil Trigger means
// deliver immediately; otherwise it is deferred until Trigger.
type Notification struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Sound    bool              `json:"sound"`
	Priority domain.Priority   `json:"priority"`
	Data     map[string]string `json:"data,omitempty"`
	Trigger  *time.Time        `json:"trigger,omitempty"`
}

// Platform schedules local notifications.
type Platform interface {
	Schedule(ctx context.Context, n Notification) (string, error)
	Cancel(ctx context.Context, id string) error
}

// Sender puts a single notification in front of the user right now.
type Sender interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans out to every sender and reports all failures.
type Multi []Sender

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Send(ctx, title, text))
	}
	return err
}

// LogSender writes notifications to the structured log; the default channel
// when no push integration is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Send(ctx context.Context, title, text string) error {
	l.Logger.Info("system_notification", zap.String("title", title), zap.String("body", text))
	return nil
}
