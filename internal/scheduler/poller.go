// Package scheduler runs the adaptive poll loop: every tick it evaluates all
// tracked entities, dispatches the alerts that are due and derives the delay
// until the next tick from how close anything is to a deadline.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/domain"
	"github.com/hamed0406/stockwatch/internal/ledger"
	"github.com/hamed0406/stockwatch/internal/threshold"
)

// Entities is the read side of the entity store the poller needs.
type Entities interface {
	RefreshActive(now time.Time) []domain.Timer
	Timers() []domain.Timer
	Resources() []domain.Resource
	Power() (domain.PowerTimer, bool)
	Settings() domain.Settings
}

type Dispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.Alert) int
	Prune(now time.Time) int
}

type AppState interface {
	Foreground() bool
}

type Poller struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	entities   Entities
	ledger     *ledger.Ledger
	dispatcher Dispatcher
	state      AppState

	// Per-entity evaluators; tests swap them.
	timerEval    func(domain.Timer, time.Time) (domain.Alert, threshold.State)
	resourceEval func(domain.Resource) (domain.Alert, bool)

	tickMu sync.Mutex
	next   atomic.Int64
	wake   chan struct{}
}

func NewPoller(
	logger *zap.Logger,
	clock clockwork.Clock,
	entities Entities,
	l *ledger.Ledger,
	dispatcher Dispatcher,
	state AppState,
) *Poller {
	p := &Poller{
		logger:     logger,
		clock:      clock,
		entities:   entities,
		ledger:     l,
		dispatcher: dispatcher,
		state:      state,
		wake:       make(chan struct{}, 1),

		timerEval:    threshold.Timer,
		resourceEval: threshold.Resource,
	}
	p.next.Store(int64(DefaultInterval))
	return p
}

// NextDelay is the period computed by the last tick.
func (p *Poller) NextDelay() time.Duration {
	return time.Duration(p.next.Load())
}

// Wake asks the loop for an immediate tick. Calls while one is pending
// collapse into it.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run ticks immediately, then keeps re-arming a single timer with the delay
// each tick computes. Stops when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.Tick(ctx)
	t := p.clock.NewTimer(p.NextDelay())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller_stopped")
			return
		case <-t.Chan():
		case <-p.wake:
			if !t.Stop() {
				select {
				case <-t.Chan():
				default:
				}
			}
		}
		p.Tick(ctx)
		t.Reset(p.NextDelay())
	}
}

// Tick runs one evaluation pass and returns the alerts that were due.
func (p *Poller) Tick(ctx context.Context) []domain.Alert {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	now := p.clock.Now()
	for _, t := range p.entities.RefreshActive(now) {
		p.logger.Info("timer_expired", zap.String("timer_id", t.ID), zap.String("name", t.Name))
	}

	timers := p.entities.Timers()
	resources := p.entities.Resources()
	settings := p.entities.Settings()
	power, hasPower := p.entities.Power()
	fg := p.state.Foreground()

	var evals []evaluated
	if settings.TimerNotifications {
		for _, t := range timers {
			p.guard("timer", t.ID, func() {
				evals = append(evals, evaluated{
					key:    ledger.TimerKey(t.ID),
					alerts: p.evalTimer(t, now, fg),
					live: func(c current) bool {
						start, ok := c.timers[t.ID]
						return ok && start.Equal(t.StartTime)
					},
				})
			})
		}
	}
	if settings.ResourceNotifications {
		for _, r := range resources {
			p.guard("resource", r.ID, func() {
				evals = append(evals, evaluated{
					key:    ledger.ResourceKey(r.ID),
					alerts: p.evalResource(r, now),
					live:   func(c current) bool { return c.resources[r.ID] },
				})
			})
		}
		if hasPower {
			p.guard("power", ledger.PowerKey, func() {
				evals = append(evals, evaluated{
					key:    ledger.PowerKey,
					alerts: p.evalPower(power, now),
					live: func(c current) bool {
						return c.power != nil && c.power.Equal(power.StartTime)
					},
				})
			})
		}
	}
	batch := p.settle(evals)

	if len(batch) > 0 {
		p.dispatcher.Dispatch(ctx, batch)
	}
	p.dispatcher.Prune(now)

	var pp *domain.PowerTimer
	if hasPower {
		pp = &power
	}
	next := Interval(now, timers, resources, pp)
	p.next.Store(int64(next))

	p.logger.Debug("poller_tick",
		zap.Int("timers", len(timers)),
		zap.Int("resources", len(resources)),
		zap.Int("alerts", len(batch)),
		zap.Duration("next", next),
	)
	return batch
}

// evaluated is one entity's share of a tick.
type evaluated struct {
	key    string
	alerts []domain.Alert
	live   func(current) bool
}

// current identifies the entities in the store after evaluation: timers by
// start time, so a restart counts as a different timer.
type current struct {
	timers    map[string]time.Time
	resources map[string]bool
	power     *time.Time
}

func (p *Poller) present() current {
	c := current{
		timers:    make(map[string]time.Time),
		resources: make(map[string]bool),
	}
	for _, t := range p.entities.Timers() {
		c.timers[t.ID] = t.StartTime
	}
	for _, r := range p.entities.Resources() {
		c.resources[r.ID] = true
	}
	if pt, ok := p.entities.Power(); ok {
		c.power = &pt.StartTime
	}
	return c
}

// settle collects the batch to dispatch. An entity deleted or restarted while
// it was being evaluated loses its alerts and the ledger record the tick
// wrote for it. Mutators change the store before clearing the ledger, so
// whichever side runs last leaves the key clear.
func (p *Poller) settle(evals []evaluated) []domain.Alert {
	if len(evals) == 0 {
		return nil
	}
	c := p.present()
	var batch []domain.Alert
	for _, e := range evals {
		if !e.live(c) {
			p.ledger.Clear(e.key)
			p.logger.Debug("poller_stale_entity", zap.String("key", e.key), zap.Int("dropped", len(e.alerts)))
			continue
		}
		batch = append(batch, e.alerts...)
	}
	return batch
}
