package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/repo"
	"github.com/hamed0406/stockwatch/internal/repo/memory"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newStore(blobs repo.BlobStore) (*Store, *clockwork.FakeClock) {
	clk := clockwork.NewFakeClockAt(t0)
	return New(blobs, zap.NewNop(), clk), clk
}

func TestAddTimer_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	s, clk := newStore(blobs)

	tm, err := s.AddTimer(ctx, domain.TimerSpec{
		Name:      "Generator",
		Threshold: 5 * time.Minute,
		Category:  domain.TimerGenerator,
		Reminder:  &domain.TimerReminder{Interval: time.Minute, Enabled: true},
	}, 10*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, tm.ID)
	assert.Equal(t, t0.Add(10*time.Minute), tm.EndTime)
	assert.True(t, tm.IsActive)

	clk.Advance(11 * time.Minute)
	reloaded := New(blobs, zap.NewNop(), clk)
	require.NoError(t, reloaded.Load(ctx))

	got := reloaded.Timers()
	require.Len(t, got, 1)
	assert.Equal(t, tm.ID, got[0].ID)
	assert.False(t, got[0].IsActive, "active flag is recomputed on load")
	require.NotNil(t, got[0].Reminder)
	assert.Equal(t, time.Minute, got[0].Reminder.Interval)
}

func TestAddTimer_Invalid(t *testing.T) {
	s, _ := newStore(memory.New())
	_, err := s.AddTimer(context.Background(), domain.TimerSpec{Name: "x", Category: domain.TimerOther}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	_, err = s.AddTimer(context.Background(), domain.TimerSpec{Category: domain.TimerOther}, time.Minute)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, s.Timers())
}

func TestUpdateAndResetTimer(t *testing.T) {
	ctx := context.Background()
	s, clk := newStore(memory.New())
	tm, err := s.AddTimer(ctx, domain.TimerSpec{Name: "Drill", Category: domain.TimerEquipment}, 10*time.Minute)
	require.NoError(t, err)

	clk.Advance(3 * time.Minute)
	up, err := s.UpdateTimer(ctx, tm.ID, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(3*time.Minute), up.StartTime)
	assert.Equal(t, t0.Add(23*time.Minute), up.EndTime)
	assert.Equal(t, 20*time.Minute, up.Duration)

	clk.Advance(30 * time.Minute)
	s.RefreshActive(clk.Now())
	got, _ := s.Timer(tm.ID)
	assert.False(t, got.IsActive)

	re, err := s.ResetTimer(ctx, tm.ID)
	require.NoError(t, err)
	assert.True(t, re.IsActive)
	assert.Equal(t, clk.Now().Add(20*time.Minute), re.EndTime)

	_, err = s.ResetTimer(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTimer(ctx, "missing"), ErrNotFound)
	require.NoError(t, s.DeleteTimer(ctx, tm.ID))
	assert.Empty(t, s.Timers())
}

func TestRefreshActive_ReportsNewlyExpired(t *testing.T) {
	ctx := context.Background()
	s, clk := newStore(memory.New())
	a, _ := s.AddTimer(ctx, domain.TimerSpec{Name: "A", Category: domain.TimerOther}, time.Minute)
	_, _ = s.AddTimer(ctx, domain.TimerSpec{Name: "B", Category: domain.TimerOther}, time.Hour)

	clk.Advance(time.Minute)
	expired := s.RefreshActive(clk.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, a.ID, expired[0].ID)
	assert.Empty(t, s.RefreshActive(clk.Now()))
}

func TestResources_CRUD(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(memory.New())

	r, err := s.AddResource(ctx, domain.ResourceSpec{Name: "Water", Value: 100, Needed: 100, Category: domain.ResourceStock})
	require.NoError(t, err)

	v := 24.0
	up, err := s.UpdateResource(ctx, r.ID, domain.ResourcePatch{Value: &v})
	require.NoError(t, err)
	assert.Equal(t, 24.0, up.Value)
	assert.Equal(t, 100.0, up.Needed)

	zero := 0.0
	_, err = s.UpdateResource(ctx, r.ID, domain.ResourcePatch{Needed: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Equal(t, 100.0, s.Resources()[0].Needed, "rejected patch leaves the resource untouched")

	_, err = s.UpdateResource(ctx, "missing", domain.ResourcePatch{Value: &v})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteResource(ctx, r.ID))
	assert.Empty(t, s.Resources())
}

func TestLoad_DropsExpiredPower(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	s, clk := newStore(blobs)
	_, err := s.SetPowerTimer(ctx, time.Minute)
	require.NoError(t, err)
	_, ok := s.Power()
	require.True(t, ok)

	clk.Advance(2 * time.Minute)
	reloaded := New(blobs, zap.NewNop(), clk)
	require.NoError(t, reloaded.Load(ctx))
	_, ok = reloaded.Power()
	assert.False(t, ok)

	_, err = blobs.Get(ctx, repo.KeyPowerTimer)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestLoad_LegacyResourceAndBadBlob(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	require.NoError(t, blobs.Set(ctx, repo.KeyResources, []byte(`[{"id":"r1","name":"Water","value":10,"threshold":40,"category":"resources"}]`)))
	require.NoError(t, blobs.Set(ctx, repo.KeyTimers, []byte(`{not json`)))

	s, _ := newStore(blobs)
	err := s.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), repo.KeyTimers)

	rs := s.Resources()
	require.Len(t, rs, 1)
	assert.Equal(t, 40.0, rs[0].Needed)
	assert.Equal(t, domain.DefaultSettings(), s.Settings())
}

func TestToggleNotifications(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	s, clk := newStore(blobs)

	st, err := s.ToggleNotifications(ctx, domain.ClassTimers)
	require.NoError(t, err)
	assert.False(t, st.TimerNotifications)
	assert.True(t, st.ResourceNotifications)

	_, err = s.ToggleNotifications(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	reloaded := New(blobs, zap.NewNop(), clk)
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.Settings().TimerNotifications)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	blobs := memory.New()
	blobs.FailWrites = errors.New("disk full")
	s, _ := newStore(blobs)

	_, err := s.AddResource(context.Background(), domain.ResourceSpec{Name: "Fuel", Value: 5, Needed: 10, Category: domain.ResourcePower})
	require.NoError(t, err)
	assert.Len(t, s.Resources(), 1)
}
