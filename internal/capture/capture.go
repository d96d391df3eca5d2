// Package capture derives typing-rhythm and pointer features from raw input
// events and appends them to a telemetry sink. It never performs I/O.
package capture

import (
	"math"
	"sync"
	"time"

	"github.com/ppiankov/authguard/internal/model"
)

const (
	// DefaultFlightCeiling discards inter-keystroke gaps that are attention
	// lapses rather than rhythm.
	DefaultFlightCeiling = 2000 * time.Millisecond
	// DefaultPointerThrottle is the minimum spacing between accepted
	// pointer samples.
	DefaultPointerThrottle = 50 * time.Millisecond
)

// Result classifies what a handler did with one event.
type Result string

const (
	Recorded  Result = "recorded"
	Filtered  Result = "filtered"  // gap at or above the flight ceiling
	Throttled Result = "throttled" // pointer sample inside the throttle window
	Unmatched Result = "unmatched" // keyup with no pending keydown
	Suspended Result = "suspended" // session not active
	Ignored   Result = "ignored"   // event kind carries no stored feature
	Invalid   Result = "invalid"   // event failed validation
)

// Sink receives derived features.
type Sink interface {
	AppendFlight(ms float64)
	AppendDwell(ms float64)
	AppendPoint(p model.MousePoint)
}

// Gate reports whether capture may record. Handlers are no-ops when it
// returns false.
type Gate func() bool

// Options tunes capture thresholds. Zero values use the defaults.
type Options struct {
	FlightCeiling   time.Duration
	PointerThrottle time.Duration
}

// Capture holds per-session key state and the pointer throttle.
type Capture struct {
	sink     Sink
	active   Gate
	ceiling  float64
	throttle float64

	mu          sync.Mutex
	lastDown    float64
	hasLastDown bool
	down        map[string]float64 // key code -> keydown timestamp
	lastPoint   float64
	hasPoint    bool
}

// New creates a Capture writing into sink. A nil gate always allows.
func New(sink Sink, active Gate, opts Options) *Capture {
	if opts.FlightCeiling <= 0 {
		opts.FlightCeiling = DefaultFlightCeiling
	}
	if opts.PointerThrottle <= 0 {
		opts.PointerThrottle = DefaultPointerThrottle
	}
	if active == nil {
		active = func() bool { return true }
	}
	return &Capture{
		sink:     sink,
		active:   active,
		ceiling:  millis(opts.FlightCeiling),
		throttle: millis(opts.PointerThrottle),
		down:     make(map[string]float64),
	}
}

// Handle validates one event and routes it to its handler.
func (c *Capture) Handle(ev model.InputEvent) Result {
	if err := ev.Validate(); err != nil {
		return Invalid
	}
	switch ev.Kind {
	case model.KeyDown:
		return c.KeyDown(ev.Code, ev.T)
	case model.KeyUp:
		return c.KeyUp(ev.Code, ev.T)
	case model.PointerMove:
		return c.PointerMove(ev.X, ev.Y, ev.T)
	case model.Scroll:
		if !c.active() {
			return Suspended
		}
		return Ignored
	default:
		return Ignored
	}
}

// KeyDown records the flight time since the previous keydown of any key
// when it is below the ceiling, and remembers t for the dwell pairing.
func (c *Capture) KeyDown(code string, t float64) Result {
	if !c.active() {
		return Suspended
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Ignored
	if c.hasLastDown {
		gap := t - c.lastDown
		if gap >= 0 && gap < c.ceiling {
			c.sink.AppendFlight(math.Round(gap))
			res = Recorded
		} else {
			res = Filtered
		}
	}
	c.lastDown = t
	c.hasLastDown = true
	c.down[code] = t
	return res
}

// KeyUp pairs with the pending keydown for code and records the dwell.
// The pairing is consumed, so a repeated keyup records nothing.
func (c *Capture) KeyUp(code string, t float64) Result {
	if !c.active() {
		return Suspended
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	downAt, ok := c.down[code]
	if !ok {
		return Unmatched
	}
	delete(c.down, code)
	dwell := t - downAt
	if dwell < 0 {
		return Filtered
	}
	c.sink.AppendDwell(math.Round(dwell))
	return Recorded
}

// PointerMove keeps a sample only if the throttle interval has elapsed since
// the last accepted one. Dropped samples are discarded, not queued.
func (c *Capture) PointerMove(x, y, t float64) Result {
	if !c.active() {
		return Suspended
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasPoint && t-c.lastPoint < c.throttle {
		return Throttled
	}
	c.lastPoint = t
	c.hasPoint = true
	c.sink.AppendPoint(model.MousePoint{X: x, Y: y, T: t})
	return Recorded
}

// Pending returns the number of keys with an unmatched keydown.
func (c *Capture) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.down)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
