// Package control turns operator input into a sustained command stream.
// Driver owns the repeat loop that keeps the rover moving; Gesture
// classifies raw pointer events and drives it.
package control

import (
	"log"
	"sync"
	"time"

	"github.com/openrover/telerover/signal"
)

// DefaultRepeatInterval is the cadence of the repeat loop. The rover holds
// no intent of its own: it keeps moving only while affirmative commands
// keep arriving, so a lost link makes it coast for at most one interval.
const DefaultRepeatInterval = 100 * time.Millisecond

// Action is what the operator currently wants the rover to do.
type Action int

const (
	ActionNone Action = iota
	ActionForward
	ActionBackward
	ActionLeft
	ActionRight
)

// Direction returns the wire direction for the action, or "" for none.
func (a Action) Direction() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionBackward:
		return "backward"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	default:
		return ""
	}
}

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return a.Direction()
}

// ParseAction maps a wire direction back to an Action.
func ParseAction(dir string) (Action, bool) {
	switch dir {
	case "forward":
		return ActionForward, true
	case "backward":
		return ActionBackward, true
	case "left":
		return ActionLeft, true
	case "right":
		return ActionRight, true
	default:
		return ActionNone, false
	}
}

// Sink receives each emitted direction. Send failures are the sink's to
// report; the loop just tries again next tick.
type Sink func(dir string) error

// Driver holds at most one active action and re-sends its direction at a
// fixed interval for as long as it stays active. Starting a new action
// always cancels the previous loop before the new one can emit, so two
// directions never interleave.
type Driver struct {
	Interval time.Duration

	sink    Sink
	current *signal.Value[Action]

	mu     sync.Mutex
	cancel chan struct{} // closed to stop the running loop; nil when idle
	done   chan struct{} // closed by the loop on exit
}

func NewDriver(sink Sink) *Driver {
	return &Driver{
		Interval: DefaultRepeatInterval,
		sink:     sink,
		current:  signal.New(ActionNone),
	}
}

// Current returns the active-action signal.
func (d *Driver) Current() *signal.Value[Action] {
	return d.current
}

// Start makes a the active action. Re-starting the action that is already
// running is a no-op, which absorbs duplicate start calls when a key event
// and a touch event fire for the same logical gesture.
func (d *Driver) Start(a Action) {
	if a == ActionNone {
		d.Stop()
		return
	}

	d.mu.Lock()
	if d.current.Get() == a && d.cancel != nil {
		d.mu.Unlock()
		return
	}

	// cancel-before-replace: the old generation must be fully dead
	// before the new one may emit
	if d.cancel != nil {
		close(d.cancel)
		<-d.done
	}
	cancel := make(chan struct{})
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.current.Set(a)
	d.mu.Unlock()

	go d.repeat(a, cancel, done)
}

// Stop cancels the repeat loop and sends a single stop command on the
// transition to idle. Calling Stop while already idle does nothing.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		close(d.cancel)
		<-d.done
		d.cancel = nil
	}
	wasActive := d.current.Get() != ActionNone
	d.current.Set(ActionNone)
	d.mu.Unlock()

	if wasActive {
		if err := d.sink("stop"); err != nil {
			log.Printf("control: stop command failed: %v", err)
		}
	}
}

func (d *Driver) repeat(a Action, cancel <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	dir := a.Direction()
	d.emit(dir)

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			if d.current.Get() != a {
				return
			}
			d.emit(dir)
		}
	}
}

func (d *Driver) emit(dir string) {
	if err := d.sink(dir); err != nil {
		// logged by the sink owner; the next tick is the retry
		log.Printf("control: %s command failed: %v", dir, err)
	}
}
