package control

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// GestureConfig holds the disambiguation thresholds. These are tuning
// values, not protocol constants; the yaml config may override them.
type GestureConfig struct {
	HoldDelayMs      int     `yaml:"hold_delay_ms"`
	DoubleTapMs      int     `yaml:"double_tap_ms"`
	MoveThresholdPx  float64 `yaml:"move_threshold_px"`
	SwipeThresholdPx float64 `yaml:"swipe_threshold_px"`
}

func DefaultGestureConfig() GestureConfig {
	return GestureConfig{
		HoldDelayMs:      400,
		DoubleTapMs:      300,
		MoveThresholdPx:  20,
		SwipeThresholdPx: 30,
	}
}

func (c GestureConfig) holdDelay() time.Duration {
	return time.Duration(c.HoldDelayMs) * time.Millisecond
}

func (c GestureConfig) doubleTapWindow() time.Duration {
	return time.Duration(c.DoubleTapMs) * time.Millisecond
}

// Gesture classifies a single pointer stream into hold (forward),
// double-tap (backward), horizontal swipe (left/right) or release (stop)
// and drives the Driver accordingly. All scratch state is reset on each
// new contact.
type Gesture struct {
	driver *Driver

	mu        sync.Mutex
	cfg       GestureConfig
	down      bool
	origin    mgl64.Vec2
	last      mgl64.Vec2
	downAt    time.Time
	lastTap   time.Time
	taps      int
	holding   bool
	swiped    bool
	holdTimer *time.Timer
}

func NewGesture(driver *Driver, cfg GestureConfig) *Gesture {
	return &Gesture{driver: driver, cfg: cfg}
}

// SetConfig swaps the thresholds; takes effect from the next contact.
func (g *Gesture) SetConfig(cfg GestureConfig) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

// PointerDown starts a new contact at the given position and time.
// Double-tap detection runs before the hold timer is scheduled, so a
// double-tap always beats a hold on the same contact.
func (g *Gesture) PointerDown(x, y float64, t time.Time) {
	g.mu.Lock()
	g.cancelHoldLocked()
	g.down = true
	g.origin = mgl64.Vec2{x, y}
	g.last = g.origin
	g.downAt = t
	g.holding = false
	g.swiped = false

	doubleTap := g.taps > 0 && t.Sub(g.lastTap) <= g.cfg.doubleTapWindow()
	if doubleTap {
		g.taps = 0
		g.mu.Unlock()
		g.driver.Start(ActionBackward)
		return
	}

	g.holdTimer = time.AfterFunc(g.cfg.holdDelay(), g.holdFired)
	g.mu.Unlock()
}

// PointerMove updates displacement tracking. Enough movement disqualifies a
// pending hold and may confirm a horizontal swipe.
func (g *Gesture) PointerMove(x, y float64, t time.Time) {
	g.mu.Lock()
	if !g.down {
		g.mu.Unlock()
		return
	}
	g.last = mgl64.Vec2{x, y}
	delta := g.last.Sub(g.origin)

	if g.holding || g.swiped || delta.Len() <= g.cfg.MoveThresholdPx {
		g.mu.Unlock()
		return
	}

	// movement disqualifies a hold
	g.cancelHoldLocked()

	dx, dy := delta.X(), delta.Y()
	if abs(dx) > g.cfg.SwipeThresholdPx && abs(dx) > abs(dy) {
		g.swiped = true
		g.mu.Unlock()
		if dx > 0 {
			g.driver.Start(ActionRight)
		} else {
			g.driver.Start(ActionLeft)
		}
		return
	}
	g.mu.Unlock()
}

// PointerUp ends the contact. A short, low-movement contact becomes a tap
// candidate for the next down event; any active action is stopped.
func (g *Gesture) PointerUp(t time.Time) {
	g.mu.Lock()
	if !g.down {
		g.mu.Unlock()
		return
	}
	g.down = false
	g.cancelHoldLocked()

	displacement := g.last.Sub(g.origin).Len()
	short := t.Sub(g.downAt) < g.cfg.holdDelay()
	if short && displacement < g.cfg.MoveThresholdPx && !g.holding && !g.swiped {
		g.lastTap = t
		g.taps = 1
	}
	g.holding = false
	g.swiped = false
	g.mu.Unlock()

	if g.driver.Current().Get() != ActionNone {
		g.driver.Stop()
	}
}

// PointerCancel aborts the contact without recording a tap candidate.
func (g *Gesture) PointerCancel() {
	g.mu.Lock()
	if !g.down {
		g.mu.Unlock()
		return
	}
	g.down = false
	g.cancelHoldLocked()
	g.holding = false
	g.swiped = false
	g.taps = 0
	g.mu.Unlock()

	if g.driver.Current().Get() != ActionNone {
		g.driver.Stop()
	}
}

func (g *Gesture) holdFired() {
	g.mu.Lock()
	if !g.down || g.swiped || g.holding {
		g.mu.Unlock()
		return
	}
	g.holding = true
	g.mu.Unlock()

	g.driver.Start(ActionForward)
}

func (g *Gesture) cancelHoldLocked() {
	if g.holdTimer != nil {
		g.holdTimer.Stop()
		g.holdTimer = nil
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
