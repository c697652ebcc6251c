package scanflow

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultDebounce is the minimum spacing between raw scan offers.
	DefaultDebounce = 1 * time.Second
	// DefaultCooldown is how long scanning is suspended after an accepted
	// scan.
	DefaultCooldown = 3 * time.Second
)

// Gate is the camera-facing admission policy in front of the flow: it drops
// raw reads arriving within the debounce window of the previous one, and
// suspends scanning entirely for a cooldown after a scan is accepted for
// processing. The flow itself is only invoked for accepted scans.
type Gate struct {
	clock    clockwork.Clock
	debounce time.Duration
	cooldown time.Duration

	mu             sync.Mutex
	lastOffer      time.Time
	suspendedUntil time.Time
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithDebounce overrides the minimum spacing between admitted reads.
func WithDebounce(d time.Duration) GateOption {
	return func(g *Gate) { g.debounce = d }
}

// WithCooldown overrides the post-acceptance suspension window.
func WithCooldown(d time.Duration) GateOption {
	return func(g *Gate) { g.cooldown = d }
}

// NewGate creates a gate with the default debounce and cooldown windows.
func NewGate(clock clockwork.Clock, opts ...GateOption) *Gate {
	g := &Gate{
		clock:    clock,
		debounce: DefaultDebounce,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Offer presents a raw scan read. It reports whether the read should be
// handed to the flow; an acceptance starts the cooldown. Rejected offers do
// not refresh the debounce window, so a camera emitting reads continuously
// still gets a scan through once the cooldown ends.
func (g *Gate) Offer() bool {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Before(g.suspendedUntil) {
		return false
	}
	if !g.lastOffer.IsZero() && now.Sub(g.lastOffer) < g.debounce {
		return false
	}

	g.lastOffer = now
	g.suspendedUntil = now.Add(g.cooldown)
	return true
}

// Suspended reports whether the gate is currently in its cooldown window.
func (g *Gate) Suspended() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock.Now().Before(g.suspendedUntil)
}
