// Package progress fabricates a plausible completion percentage for tasks
// that report no real progress.
package progress

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"buildwatch/internal/domain"
)

// DefaultTickInterval is the period between simulated advances.
const DefaultTickInterval = 200 * time.Millisecond

// Ceiling is the highest percentage reachable without Finish.
const Ceiling = 99.0

// Ticker is the subset of *time.Ticker the simulator needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Config holds configuration for the Simulator.
type Config struct {
	TickInterval time.Duration              // default: 200ms
	Rand         func() float64             // uniform in [0, 1); default: math/rand/v2
	NewTicker    func(time.Duration) Ticker // default: NewRealTicker
	// OnChange receives every new state. It runs with the simulator's lock
	// held and must not call back into the simulator.
	OnChange func(domain.ProgressState)
}

// Simulator owns one progress indicator.
type Simulator struct {
	cfg Config

	mu    sync.Mutex
	state domain.ProgressState
	gen   uint64
	stop  chan struct{}
}

// NewSimulator creates a hidden, idle simulator.
func NewSimulator(cfg Config) *Simulator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}
	return &Simulator{
		cfg:   cfg,
		state: domain.ProgressState{Status: domain.ProgressNone},
	}
}

// Advance returns the next percentage after one tick, given a uniform draw r
// in [0, 1).
func Advance(p, r float64) float64 {
	switch {
	case p < 50:
		p += r * 5
	case p < 80:
		p += r * 2
	case p < Ceiling:
		p += 0.1
	}
	if p > Ceiling {
		p = Ceiling
	}
	return math.Round(p*10) / 10
}

// Start resets the indicator to 0%, makes it visible and begins ticking.
// A tick process from an earlier Start is cancelled first.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.state = domain.ProgressState{Status: domain.ProgressNone, Visible: true}
	s.notifyLocked()

	stop := make(chan struct{})
	s.stop = stop
	go s.run(s.gen, s.cfg.NewTicker(s.cfg.TickInterval), stop)
}

// Finish stops ticking and snaps to 100% success.
func (s *Simulator) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.state.Percentage = 100
	s.state.Status = domain.ProgressSuccess
	s.notifyLocked()
}

// Fail stops ticking and marks failure, leaving the percentage where it was.
func (s *Simulator) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.state.Status = domain.ProgressFailure
	s.notifyLocked()
}

// Close stops ticking, hides the indicator and resets it.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.state = domain.ProgressState{Status: domain.ProgressNone}
	s.notifyLocked()
}

// State returns the current snapshot.
func (s *Simulator) State() domain.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// cancelLocked invalidates the running tick process. Because every tick
// re-checks the generation under the lock, no mutation from the old process
// can land once this returns.
func (s *Simulator) cancelLocked() {
	s.gen++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Simulator) notifyLocked() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(s.state)
	}
}

func (s *Simulator) run(gen uint64, t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.tick(gen) {
				return
			}
		}
	}
}

func (s *Simulator) tick(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.state.Status != domain.ProgressNone {
		return false
	}
	next := Advance(s.state.Percentage, s.cfg.Rand())
	if next != s.state.Percentage {
		s.state.Percentage = next
		s.notifyLocked()
	}
	return true
}
