// Package store holds the tracked timers, resources, power countdown and
// notification settings in memory and mirrors every change to a blob store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/repo"
)

var ErrNotFound = errors.New("entity not found")

// Store is safe for concurrent use. Mutations update memory first and then
// persist; persistence failures are logged and the in-memory state is kept.
type Store struct {
	blobs  repo.BlobStore
	logger *zap.Logger
	clock  clockwork.Clock

	// writeMu orders persistence so an older snapshot never overwrites a
	// newer one.
	writeMu sync.Mutex

	mu        sync.RWMutex
	timers    []domain.Timer
	resources []domain.Resource
	power     *domain.PowerTimer
	settings  domain.Settings
}

func New(blobs repo.BlobStore, logger *zap.Logger, clock clockwork.Clock) *Store {
	return &Store{
		blobs:    blobs,
		logger:   logger,
		clock:    clock,
		settings: domain.DefaultSettings(),
	}
}

// Load replaces the in-memory state with what the blob store holds. Missing
// keys leave the defaults in place; a key that fails to load is reported in
// the returned error while the others still load.
func (s *Store) Load(ctx context.Context) error {
	var (
		timers    []domain.Timer
		resources []domain.Resource
		power     *domain.PowerTimer
		settings  = domain.DefaultSettings()
		errs      error
	)

	errs = multierr.Append(errs, s.read(ctx, repo.KeyTimers, &timers))
	errs = multierr.Append(errs, s.read(ctx, repo.KeyResources, &resources))
	errs = multierr.Append(errs, s.read(ctx, repo.KeyPowerTimer, &power))
	errs = multierr.Append(errs, s.read(ctx, repo.KeySettings, &settings))

	now := s.clock.Now()
	for i := range timers {
		timers[i].IsActive = timers[i].EndTime.After(now)
	}

	expiredPower := power != nil && !power.EndTime.After(now)
	if expiredPower {
		power = nil
	}

	s.mu.Lock()
	s.timers = timers
	s.resources = resources
	s.power = power
	s.settings = settings
	s.mu.Unlock()

	if expiredPower {
		s.writeMu.Lock()
		s.remove(ctx, repo.KeyPowerTimer)
		s.writeMu.Unlock()
	}

	s.logger.Info("store_loaded",
		zap.Int("timers", len(timers)),
		zap.Int("resources", len(resources)),
		zap.Bool("power", power != nil),
	)
	return errs
}

func (s *Store) read(ctx context.Context, key string, into any) error {
	b, err := s.blobs.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(b, into); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err == nil {
		err = s.blobs.Set(ctx, key, b)
	}
	if err != nil {
		s.logger.Error("store_persist_error", zap.String("key", key), zap.Error(err))
	}
}

func (s *Store) remove(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.logger.Error("store_persist_error", zap.String("key", key), zap.Error(err))
	}
}

// mutateTimers applies fn under the lock and persists the resulting list.
func (s *Store) mutateTimers(ctx context.Context, fn func([]domain.Timer) ([]domain.Timer, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, err := fn(s.timers)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.timers = next
	snapshot := append([]domain.Timer(nil), next...)
	s.mu.Unlock()

	s.persist(ctx, repo.KeyTimers, snapshot)
	return nil
}

func (s *Store) mutateResources(ctx context.Context, fn func([]domain.Resource) ([]domain.Resource, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, err := fn(s.resources)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.resources = next
	snapshot := append([]domain.Resource(nil), next...)
	s.mu.Unlock()

	s.persist(ctx, repo.KeyResources, snapshot)
	return nil
}

// RefreshActive recomputes IsActive for every timer and returns the timers
// that became inactive since the last refresh.
func (s *Store) RefreshActive(now time.Time) []domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []domain.Timer
	for i := range s.timers {
		active := s.timers[i].EndTime.After(now)
		if s.timers[i].IsActive && !active {
			expired = append(expired, s.timers[i])
		}
		s.timers[i].IsActive = active
	}
	return expired
}

// ---- timers ----

func (s *Store) AddTimer(ctx context.Context, spec domain.TimerSpec, d time.Duration) (domain.Timer, error) {
	if err := domain.Validate(spec); err != nil {
		return domain.Timer{}, err
	}
	if d <= 0 {
		return domain.Timer{}, domain.ErrInvalidDuration
	}
	now := s.clock.Now()
	t := domain.Timer{
		ID:        uuid.NewString(),
		Name:      spec.Name,
		StartTime: now,
		EndTime:   now.Add(d),
		Duration:  d,
		Threshold: spec.Threshold,
		Category:  spec.Category,
		IsActive:  true,
	}
	if spec.Reminder != nil {
		r := *spec.Reminder
		t.Reminder = &r
	}
	err := s.mutateTimers(ctx, func(ts []domain.Timer) ([]domain.Timer, error) {
		return append(ts, t), nil
	})
	return t, err
}

// UpdateTimer restarts the timer with a new duration.
func (s *Store) UpdateTimer(ctx context.Context, id string, d time.Duration) (domain.Timer, error) {
	if d <= 0 {
		return domain.Timer{}, domain.ErrInvalidDuration
	}
	return s.restart(ctx, id, d)
}

// ResetTimer restarts the timer with its existing duration.
func (s *Store) ResetTimer(ctx context.Context, id string) (domain.Timer, error) {
	return s.restart(ctx, id, 0)
}

func (s *Store) restart(ctx context.Context, id string, d time.Duration) (domain.Timer, error) {
	now := s.clock.Now()
	var out domain.Timer
	err := s.mutateTimers(ctx, func(ts []domain.Timer) ([]domain.Timer, error) {
		for i := range ts {
			if ts[i].ID != id {
				continue
			}
			if d > 0 {
				ts[i].Duration = d
			}
			ts[i].StartTime = now
			ts[i].EndTime = now.Add(ts[i].Duration)
			ts[i].IsActive = true
			out = ts[i]
			return ts, nil
		}
		return nil, ErrNotFound
	})
	return out, err
}

func (s *Store) DeleteTimer(ctx context.Context, id string) error {
	return s.mutateTimers(ctx, func(ts []domain.Timer) ([]domain.Timer, error) {
		for i := range ts {
			if ts[i].ID == id {
				return append(ts[:i:i], ts[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *Store) Timer(id string) (domain.Timer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.timers {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Timer{}, false
}

func (s *Store) Timers() []domain.Timer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Timer(nil), s.timers...)
}

// ---- resources ----

func (s *Store) AddResource(ctx context.Context, spec domain.ResourceSpec) (domain.Resource, error) {
	if err := domain.Validate(spec); err != nil {
		return domain.Resource{}, err
	}
	r := domain.Resource{
		ID:       uuid.NewString(),
		Name:     spec.Name,
		Value:    spec.Value,
		Needed:   spec.Needed,
		Category: spec.Category,
	}
	err := s.mutateResources(ctx, func(rs []domain.Resource) ([]domain.Resource, error) {
		return append(rs, r), nil
	})
	return r, err
}

func (s *Store) UpdateResource(ctx context.Context, id string, patch domain.ResourcePatch) (domain.Resource, error) {
	var out domain.Resource
	err := s.mutateResources(ctx, func(rs []domain.Resource) ([]domain.Resource, error) {
		for i := range rs {
			if rs[i].ID != id {
				continue
			}
			next := patch.Apply(rs[i])
			if err := domain.Validate(next.Spec()); err != nil {
				return nil, err
			}
			rs[i] = next
			out = next
			return rs, nil
		}
		return nil, ErrNotFound
	})
	return out, err
}

func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return s.mutateResources(ctx, func(rs []domain.Resource) ([]domain.Resource, error) {
		for i := range rs {
			if rs[i].ID == id {
				return append(rs[:i:i], rs[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *Store) Resources() []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Resource(nil), s.resources...)
}

// ---- power ----

// SetPowerTimer starts a new power countdown of length d.
func (s *Store) SetPowerTimer(ctx context.Context, d time.Duration) (domain.PowerTimer, error) {
	if d <= 0 {
		return domain.PowerTimer{}, domain.ErrInvalidDuration
	}
	now := s.clock.Now()
	p := domain.PowerTimer{StartTime: now, EndTime: now.Add(d), Duration: d}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.power = &p
	s.mu.Unlock()

	s.persist(ctx, repo.KeyPowerTimer, p)
	return p, nil
}

// ClearPowerTimer drops the power countdown.
func (s *Store) ClearPowerTimer(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.power = nil
	s.mu.Unlock()

	s.remove(ctx, repo.KeyPowerTimer)
}

func (s *Store) Power() (domain.PowerTimer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.power == nil {
		return domain.PowerTimer{}, false
	}
	return *s.power, true
}

// ---- settings ----

// ToggleNotifications flips the alert switch for class and returns the new
// settings.
func (s *Store) ToggleNotifications(ctx context.Context, class domain.NotificationClass) (domain.Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	switch class {
	case domain.ClassTimers:
		s.settings.TimerNotifications = !s.settings.TimerNotifications
	case domain.ClassResources:
		s.settings.ResourceNotifications = !s.settings.ResourceNotifications
	default:
		s.mu.Unlock()
		return domain.Settings{}, fmt.Errorf("%w: unknown notification class %q", domain.ErrInvalid, class)
	}
	out := s.settings
	s.mu.Unlock()

	s.persist(ctx, repo.KeySettings, out)
	return out, nil
}

func (s *Store) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}
