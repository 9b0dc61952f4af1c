// internal/tournament/engine.go
package tournament

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDuration = 60 * time.Second
	DefaultInterval = time.Second
)

var ErrAlreadyRunning = errors.New("tournament already running")

// State is the engine lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// PriceSource supplies the quotes sampled on every tick. It must not fail;
// stale or partial data is acceptable.
type PriceSource interface {
	FetchCurrentPrices(ctx context.Context) []models.Quote
}

// Engine runs one head-to-head tournament at a time: it samples prices at a
// fixed interval, tracks both squads against their baselines, and resolves the
// winner once the duration elapses.
type Engine struct {
	prices   PriceSource
	duration time.Duration
	interval time.Duration
	logger   *logrus.Entry

	// OnProgress receives every live snapshot. Called outside the engine lock.
	OnProgress func(models.Progress)
	// OnComplete receives the result exactly once per run that reaches expiry.
	OnComplete func(models.Result)

	mu        sync.Mutex
	state     State
	runID     uint64
	cancel    context.CancelFunc
	bet       models.BetDirection
	host      models.Squad
	guest     models.Squad
	hostBase  float64
	guestBase float64
	baselined bool
	deadline  time.Time
	progress  *models.Progress
	result    *models.Result
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDuration sets the tournament length.
func WithDuration(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.duration = d
		}
	}
}

// WithInterval sets the sampling interval.
func WithInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *logrus.Entry) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an idle engine sampling from prices.
func NewEngine(prices PriceSource, opts ...EngineOption) *Engine {
	e := &Engine{
		prices:   prices,
		duration: DefaultDuration,
		interval: DefaultInterval,
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a fresh run from idle or completed. Baselines, progress and
// any previous result are discarded.
func (e *Engine) Start(ctx context.Context, bet models.BetDirection, host, guest models.Squad) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return ErrAlreadyRunning
	}

	e.runID++
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateRunning
	e.bet = bet
	e.host = host
	e.guest = guest
	e.hostBase, e.guestBase = 0, 0
	e.baselined = false
	e.progress = nil
	e.result = nil
	e.deadline = time.Now().Add(e.duration)

	e.logger.WithFields(logrus.Fields{
		"run":      e.runID,
		"bet":      bet,
		"duration": e.duration,
	}).Info("tournament started")

	go e.run(runCtx, e.runID, e.deadline)
	return nil
}

// Stop abandons a running tournament without producing a result.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		return
	}
	e.state = StateIdle
	e.cancel()
	e.logger.WithField("run", e.runID).Info("tournament stopped")
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns the latest snapshot of the current run, if any.
func (e *Engine) Progress() (models.Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.progress == nil {
		return models.Progress{}, false
	}
	return *e.progress, true
}

// Result returns the outcome of the last completed run.
func (e *Engine) Result() (models.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return models.Result{}, false
	}
	return *e.result, true
}

// run samples until the deadline. The next tick is armed only after the
// previous one has returned, so ticks never overlap.
func (e *Engine) run(ctx context.Context, id uint64, deadline time.Time) {
	for {
		e.tick(ctx, id, deadline)

		remaining := time.Until(deadline)
		if remaining <= 0 {
			e.complete(id)
			return
		}
		wait := e.interval
		if remaining < wait {
			wait = remaining
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			e.abandon(id)
			return
		case <-t.C:
		}
	}
}

// abandon returns a run whose parent context ended to idle.
func (e *Engine) abandon(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runID == id && e.state == StateRunning {
		e.state = StateIdle
		e.cancel()
	}
}

func (e *Engine) tick(ctx context.Context, id uint64, deadline time.Time) {
	e.mu.Lock()
	if e.runID != id || e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	host, guest := e.host, e.guest
	e.mu.Unlock()

	quotes := e.prices.FetchCurrentPrices(ctx)
	hostVal := ComputeSquadValue(host, quotes)
	guestVal := ComputeSquadValue(guest, quotes)

	e.mu.Lock()
	if e.runID != id || e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	// Baselines come from the first tick only. A zero baseline stays zero
	// and reports no change for the rest of the run.
	if !e.baselined {
		e.hostBase, e.guestBase = hostVal.TotalValue, guestVal.TotalValue
		e.baselined = true
	}

	now := time.Now()
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	p := models.Progress{
		HostSquad:             hostVal,
		GuestSquad:            guestVal,
		HostPercentageChange:  PercentageChange(e.hostBase, hostVal.TotalValue),
		GuestPercentageChange: PercentageChange(e.guestBase, guestVal.TotalValue),
		Timestamp:             now,
		TimeRemaining:         remaining,
	}
	e.progress = &p
	onProgress := e.OnProgress
	e.mu.Unlock()

	if onProgress != nil {
		onProgress(p)
	}
}

// complete resolves the run. The run id and state checks make it a no-op
// after Stop, a restart, or a previous completion.
func (e *Engine) complete(id uint64) {
	e.mu.Lock()
	if e.runID != id || e.state != StateRunning {
		e.mu.Unlock()
		return
	}

	var last models.Progress
	if e.progress != nil {
		last = *e.progress
	}
	res := DetermineWinner(e.bet, last.HostPercentageChange, last.GuestPercentageChange)
	res.FinalHostValue = last.HostSquad.TotalValue
	res.FinalGuestValue = last.GuestSquad.TotalValue

	e.result = &res
	e.state = StateCompleted
	e.cancel()
	onComplete := e.OnComplete
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"run":    id,
		"winner": res.Winner,
	}).Info("tournament completed")

	if onComplete != nil {
		onComplete(res)
	}
}
