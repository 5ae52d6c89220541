package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/ledger"
	"github.com/hamed0406/stockwatch/internal/threshold"
)

// ---- fakes ----

type fakeEntities struct {
	mu        sync.Mutex
	timers    []domain.Timer
	resources []domain.Resource
	power     *domain.PowerTimer
	settings  domain.Settings
}

func (f *fakeEntities) RefreshActive(now time.Time) []domain.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []domain.Timer
	for i := range f.timers {
		active := f.timers[i].EndTime.After(now)
		if f.timers[i].IsActive && !active {
			expired = append(expired, f.timers[i])
		}
		f.timers[i].IsActive = active
	}
	return expired
}

func (f *fakeEntities) Timers() []domain.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Timer(nil), f.timers...)
}

func (f *fakeEntities) Resources() []domain.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Resource(nil), f.resources...)
}

func (f *fakeEntities) Power() (domain.PowerTimer, bool) {
	if f.power == nil {
		return domain.PowerTimer{}, false
	}
	return *f.power, true
}

func (f *fakeEntities) Settings() domain.Settings { return f.settings }

type fakeDispatcher struct {
	mu      sync.Mutex
	batches [][]domain.Alert
	pruned  int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, alerts []domain.Alert) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, alerts)
	return len(alerts)
}

func (f *fakeDispatcher) Prune(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	return 0
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fgState bool

func (s fgState) Foreground() bool { return bool(s) }

var t0 = time.Date(2025, 3, 1, 9, 50, 0, 0, time.UTC)

func generator() domain.Timer {
	return domain.Timer{
		ID:        "t1",
		Name:      "Generator",
		StartTime: t0,
		EndTime:   t0.Add(10 * time.Minute),
		Duration:  10 * time.Minute,
		Threshold: 5 * time.Minute,
		Category:  domain.TimerGenerator,
		IsActive:  true,
	}
}

func newPoller(ents *fakeEntities, fg bool) (*Poller, *clockwork.FakeClock, *fakeDispatcher, *ledger.Ledger) {
	clk := clockwork.NewFakeClockAt(t0)
	d := &fakeDispatcher{}
	l := ledger.New()
	if ents.settings == (domain.Settings{}) {
		ents.settings = domain.DefaultSettings()
	}
	return NewPoller(zap.NewNop(), clk, ents, l, d, fgState(fg)), clk, d, l
}

// ---- tests ----

func TestInterval_Bands(t *testing.T) {
	now := t0
	timer := func(rem time.Duration) domain.Timer {
		return domain.Timer{EndTime: now.Add(rem), IsActive: true}
	}
	cases := []struct {
		name      string
		timers    []domain.Timer
		resources []domain.Resource
		power     *domain.PowerTimer
		want      time.Duration
	}{
		{"nothing", nil, nil, nil, 10 * time.Second},
		{"far timer", []domain.Timer{timer(time.Hour)}, nil, nil, 10 * time.Second},
		{"5m timer", []domain.Timer{timer(5 * time.Minute)}, nil, nil, 5 * time.Second},
		{"min wins", []domain.Timer{timer(time.Hour), timer(45 * time.Second)}, nil, nil, 2 * time.Second},
		{"30s timer", []domain.Timer{timer(30 * time.Second)}, nil, nil, time.Second},
		{"expired ignored", []domain.Timer{timer(-time.Second)}, nil, nil, 10 * time.Second},
		{"urgent resource", nil, []domain.Resource{{Value: 25, Needed: 100}}, nil, 3 * time.Second},
		{"calm resource", nil, []domain.Resource{{Value: 26, Needed: 100}}, nil, 10 * time.Second},
		{"power", nil, nil, &domain.PowerTimer{EndTime: now.Add(20 * time.Second)}, time.Second},
		{"resource and timer", []domain.Timer{timer(4 * time.Minute)}, []domain.Resource{{Value: 0, Needed: 5}}, nil, 3 * time.Second},
	}
	for _, tc := range cases {
		if got := Interval(now, tc.timers, tc.resources, tc.power); got != tc.want {
			t.Errorf("%s: want %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestTick_TimerScenario(t *testing.T) {
	ents := &fakeEntities{timers: []domain.Timer{generator()}}
	p, clk, d, _ := newPoller(ents, false)
	ctx := context.Background()

	if got := p.Tick(ctx); len(got) != 0 {
		t.Fatalf("no alert expected with 10m left, got %v", got)
	}
	if p.NextDelay() != 10*time.Second {
		t.Fatalf("want 10s delay, got %v", p.NextDelay())
	}

	clk.Advance(5 * time.Minute)
	got := p.Tick(ctx)
	if len(got) != 1 || got[0].Level != domain.LevelMedium {
		t.Fatalf("want one medium alert at the threshold, got %v", got)
	}
	if p.NextDelay() != 5*time.Second {
		t.Fatalf("want 5s delay, got %v", p.NextDelay())
	}

	clk.Advance(20 * time.Second)
	if got := p.Tick(ctx); len(got) != 0 {
		t.Fatalf("inside cooldown, got %v", got)
	}

	clk.Advance(4*time.Minute + 40*time.Second)
	got = p.Tick(ctx)
	if len(got) != 1 || got[0].Kind != domain.KindExpired {
		t.Fatalf("want expiry alert, got %v", got)
	}
	if d.count() != 2 {
		t.Fatalf("want 2 dispatched batches, got %d", d.count())
	}

	clk.Advance(time.Minute)
	if got := p.Tick(ctx); len(got) != 0 {
		t.Fatalf("expiry repeats only every 5m, got %v", got)
	}
	clk.Advance(4*time.Minute + time.Second)
	if got := p.Tick(ctx); len(got) != 1 {
		t.Fatalf("expiry should repeat after 5m, got %v", got)
	}
}

func TestTick_ResourceRecoveryClearsLedger(t *testing.T) {
	ents := &fakeEntities{resources: []domain.Resource{{ID: "r1", Name: "Water", Value: 24, Needed: 100}}}
	p, clk, _, l := newPoller(ents, false)
	ctx := context.Background()

	got := p.Tick(ctx)
	if len(got) != 1 || got[0].Title != "Critical Resource Level" {
		t.Fatalf("want critical alert, got %v", got)
	}
	if p.NextDelay() != 3*time.Second {
		t.Fatalf("want 3s delay, got %v", p.NextDelay())
	}

	ents.resources[0].Value = 120
	clk.Advance(time.Second)
	p.Tick(ctx)
	if _, ok := l.Get(ledger.ResourceKey("r1")); ok {
		t.Fatalf("recovery should clear the ledger entry")
	}

	ents.resources[0].Value = 20
	clk.Advance(time.Second)
	if got := p.Tick(ctx); len(got) != 1 {
		t.Fatalf("fresh sequence after recovery, got %v", got)
	}
}

func TestTick_DisabledClassIsSkipped(t *testing.T) {
	ents := &fakeEntities{
		resources: []domain.Resource{{ID: "r1", Name: "Water", Value: 0, Needed: 100}},
		timers:    []domain.Timer{generator()},
		settings:  domain.Settings{TimerNotifications: true, ResourceNotifications: false},
	}
	ents.timers[0].EndTime = t0.Add(-time.Minute)
	p, _, d, _ := newPoller(ents, false)

	got := p.Tick(context.Background())
	if len(got) != 1 || got[0].Kind != domain.KindExpired {
		t.Fatalf("only the timer should alert, got %v", got)
	}
	if d.pruned != 1 {
		t.Fatalf("in-app queue should be pruned every tick")
	}
}

func TestTick_PowerCountdown(t *testing.T) {
	ents := &fakeEntities{power: &domain.PowerTimer{StartTime: t0, EndTime: t0.Add(8 * time.Second), Duration: 8 * time.Second}}
	p, clk, _, _ := newPoller(ents, false)

	got := p.Tick(context.Background())
	if len(got) != 1 || got[0].Kind != domain.KindPowerLow || got[0].Level != domain.LevelCritical {
		t.Fatalf("want critical power alert, got %v", got)
	}
	clk.Advance(2 * time.Second)
	if got := p.Tick(context.Background()); len(got) != 0 {
		t.Fatalf("3s power cadence, got %v", got)
	}
	clk.Advance(2 * time.Second)
	if got := p.Tick(context.Background()); len(got) != 1 {
		t.Fatalf("want repeat after cadence, got %v", got)
	}
}

func TestTick_ReminderForegroundOnly(t *testing.T) {
	tm := generator()
	tm.EndTime = t0.Add(time.Hour)
	tm.Threshold = 0
	tm.Reminder = &domain.TimerReminder{Interval: 10 * time.Minute, Enabled: true}

	ents := &fakeEntities{timers: []domain.Timer{tm}}
	p, clk, _, l := newPoller(ents, false)
	ctx := context.Background()

	clk.Advance(10 * time.Minute)
	if got := p.Tick(ctx); len(got) != 0 {
		t.Fatalf("backgrounded reminders are left to the platform, got %v", got)
	}
	rec, _ := l.Get(ledger.TimerKey(tm.ID))
	if !rec.LastReminderSent.Equal(clk.Now()) {
		t.Fatalf("cadence bookkeeping should advance, got %v", rec.LastReminderSent)
	}

	p.state = fgState(true)
	clk.Advance(5 * time.Minute)
	if got := p.Tick(ctx); len(got) != 0 {
		t.Fatalf("reminder not due yet, got %v", got)
	}
	clk.Advance(5 * time.Minute)
	got := p.Tick(ctx)
	if len(got) != 1 || got[0].Kind != domain.KindReminder || !got[0].RequiresInteraction {
		t.Fatalf("want interactive reminder, got %v", got)
	}
	if !strings.Contains(got[0].Body, "40m 0s remaining") {
		t.Fatalf("unexpected reminder body %q", got[0].Body)
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	p, _, _, _ := newPoller(&fakeEntities{}, false)
	ran := false
	p.guard("timer", "x", func() { panic("boom") })
	p.guard("timer", "y", func() { ran = true })
	if !ran {
		t.Fatalf("evaluation after a panic should still run")
	}
}

func TestTick_PanickingEntityDoesNotStopTheRest(t *testing.T) {
	ents := &fakeEntities{
		timers: []domain.Timer{generator()},
		resources: []domain.Resource{
			{ID: "bad", Name: "Broken", Value: 0, Needed: 10},
			{ID: "r2", Name: "Water", Value: 0, Needed: 10},
		},
	}
	p, clk, d, l := newPoller(ents, false)
	p.resourceEval = func(r domain.Resource) (domain.Alert, bool) {
		if r.ID == "bad" {
			panic("corrupt resource")
		}
		return threshold.Resource(r)
	}
	clk.Advance(6 * time.Minute)

	got := p.Tick(context.Background())
	if len(got) != 2 {
		t.Fatalf("want alerts for the timer and the healthy resource, got %d", len(got))
	}
	if got[0].EntityID != "t1" || got[1].EntityID != "r2" {
		t.Fatalf("unexpected alerts %+v", got)
	}
	if d.count() != 1 {
		t.Fatalf("the batch should still be dispatched, got %d batches", d.count())
	}
	if _, ok := l.Get(ledger.ResourceKey("bad")); ok {
		t.Fatalf("a failed evaluation must not leave a record")
	}
	if _, ok := l.Get(ledger.ResourceKey("r2")); !ok {
		t.Fatalf("healthy resource should be recorded")
	}

	// The loop keeps working on the next tick too.
	clk.Advance(time.Minute)
	p.Tick(context.Background())
	if d.count() != 2 {
		t.Fatalf("second tick should dispatch again, got %d batches", d.count())
	}
}

func TestTick_PowerRestartedMidTickDropsAlert(t *testing.T) {
	ents := &fakeEntities{power: &domain.PowerTimer{StartTime: t0, EndTime: t0.Add(20 * time.Second), Duration: 20 * time.Second}}
	p, clk, d, l := newPoller(ents, false)
	clk.Advance(time.Second)

	// Replace the countdown right after the tick has read it, the way a
	// concurrent SetPowerTimer would.
	restarted := domain.PowerTimer{StartTime: t0.Add(time.Second), EndTime: t0.Add(time.Hour), Duration: time.Hour}
	p.entities = &swapOnRead{fakeEntities: ents, swap: func() { ents.power = &restarted }}

	if got := p.Tick(context.Background()); len(got) != 0 {
		t.Fatalf("alert for the replaced countdown should be dropped, got %+v", got)
	}
	if _, ok := l.Get(ledger.PowerKey); ok {
		t.Fatalf("ledger must not keep a record for the replaced countdown")
	}
	if d.count() != 0 {
		t.Fatalf("nothing should be dispatched, got %d batches", d.count())
	}
}

// swapOnRead applies swap right after the first Power read.
type swapOnRead struct {
	*fakeEntities
	once sync.Once
	swap func()
}

func (s *swapOnRead) Power() (domain.PowerTimer, bool) {
	pt, ok := s.fakeEntities.Power()
	s.once.Do(s.swap)
	return pt, ok
}

func TestTick_LogsExpiryOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ents := &fakeEntities{timers: []domain.Timer{generator()}, settings: domain.DefaultSettings()}
	clk := clockwork.NewFakeClockAt(t0)
	p := NewPoller(zap.New(core), clk, ents, ledger.New(), &fakeDispatcher{}, fgState(false))

	p.Tick(context.Background())
	clk.Advance(10 * time.Minute)
	p.Tick(context.Background())
	clk.Advance(time.Minute)
	p.Tick(context.Background())

	expired := logs.FilterMessage("timer_expired").All()
	if len(expired) != 1 {
		t.Fatalf("want one timer_expired entry, got %d", len(expired))
	}
	if got := expired[0].ContextMap()["timer_id"]; got != "t1" {
		t.Fatalf("timer_id = %v", got)
	}
}

func TestRun_WakeTriggersTick(t *testing.T) {
	ents := &fakeEntities{}
	p, clk, d, _ := newPoller(ents, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// The initial tick arms a timer on the fake clock.
	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	ents.mu.Lock()
	ents.resources = []domain.Resource{{ID: "r1", Name: "Water", Value: 0, Needed: 10}}
	ents.mu.Unlock()
	p.Wake()

	deadline := time.Now().Add(2 * time.Second)
	for d.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.count() != 1 {
		t.Fatalf("wake should dispatch the new alert, got %d batches", d.count())
	}

	cancel()
	<-done
}
