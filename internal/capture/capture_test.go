package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/authguard/internal/model"
	"github.com/ppiankov/authguard/internal/telemetry"
)

func newCapture(t *testing.T) (*Capture, *telemetry.Buffer) {
	t.Helper()
	buf := telemetry.NewBuffer()
	return New(buf, nil, Options{}), buf
}

func TestFlightFilter(t *testing.T) {
	tests := []struct {
		name string
		gap  float64
		want []float64
	}{
		{"short gap", 100, []float64{100}},
		{"just under ceiling", 1999.6, []float64{2000}},
		{"rounds", 120.4, []float64{120}},
		{"at ceiling", 2000, nil},
		{"above ceiling", 2400, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, buf := newCapture(t)
			assert.Equal(t, Ignored, c.KeyDown("KeyA", 1000))
			c.KeyDown("KeyB", 1000+tt.gap)
			assert.Equal(t, tt.want, buf.DrainSnapshot().Flights)
		})
	}
}

func TestThreeKeydownsScenario(t *testing.T) {
	c, buf := newCapture(t)
	c.KeyDown("KeyA", 0)
	assert.Equal(t, Recorded, c.KeyDown("KeyB", 100))
	assert.Equal(t, Filtered, c.KeyDown("KeyC", 2500))

	assert.Equal(t, []float64{100}, buf.DrainSnapshot().Flights)
}

func TestDwellPairing(t *testing.T) {
	c, buf := newCapture(t)

	assert.Equal(t, Unmatched, c.KeyUp("KeyA", 5), "keyup without keydown")
	c.KeyDown("KeyA", 10)
	assert.Equal(t, Recorded, c.KeyUp("KeyA", 95))
	assert.Equal(t, Unmatched, c.KeyUp("KeyA", 120), "pairing must be consumed")
	assert.Zero(t, c.Pending())

	assert.Equal(t, []float64{85}, buf.DrainSnapshot().Dwells)
}

func TestDwellPerKeyCode(t *testing.T) {
	c, buf := newCapture(t)
	c.KeyDown("ShiftLeft", 0)
	c.KeyDown("KeyA", 40)
	c.KeyUp("KeyA", 90)
	c.KeyUp("ShiftLeft", 130)

	snap := buf.DrainSnapshot()
	assert.Equal(t, []float64{50, 130}, snap.Dwells)
	assert.Equal(t, []float64{40}, snap.Flights)
}

func TestUnreleasedKeyStaysPending(t *testing.T) {
	c, _ := newCapture(t)
	c.KeyDown("KeyQ", 0)
	assert.Equal(t, 1, c.Pending())
}

func TestPointerThrottleWithinWindow(t *testing.T) {
	c, buf := newCapture(t)
	for i := 0; i < 10; i++ {
		c.PointerMove(float64(i), 0, 100+float64(i)*4)
	}
	assert.Len(t, buf.DrainSnapshot().MousePath, 1)
}

func TestPointerThrottleSixtyMoves(t *testing.T) {
	c, buf := newCapture(t)
	for i := 0; i < 60; i++ {
		c.PointerMove(float64(i), float64(i), float64(i*10))
	}
	path := buf.DrainSnapshot().MousePath

	// 0..590ms with a 50ms throttle keeps one sample every fifth event.
	require.Len(t, path, 12)
	for i := 1; i < len(path); i++ {
		assert.GreaterOrEqual(t, path[i].T-path[i-1].T, 50.0)
	}
	assert.Equal(t, model.MousePoint{X: 0, Y: 0, T: 0}, path[0])
}

func TestPointerThrottleCustomInterval(t *testing.T) {
	buf := telemetry.NewBuffer()
	c := New(buf, nil, Options{PointerThrottle: 100 * time.Millisecond})
	c.PointerMove(0, 0, 0)
	assert.Equal(t, Throttled, c.PointerMove(1, 1, 99))
	assert.Equal(t, Recorded, c.PointerMove(2, 2, 100))
}

func TestGateSuspendsAllHandlers(t *testing.T) {
	buf := telemetry.NewBuffer()
	active := true
	c := New(buf, func() bool { return active }, Options{})

	c.KeyDown("KeyA", 0)
	active = false

	assert.Equal(t, Suspended, c.KeyDown("KeyB", 50))
	assert.Equal(t, Suspended, c.KeyUp("KeyA", 60))
	assert.Equal(t, Suspended, c.PointerMove(1, 1, 70))
	assert.Equal(t, Suspended, c.Handle(model.InputEvent{Kind: model.Scroll, T: 80}))

	snap := buf.DrainSnapshot()
	assert.Empty(t, snap.Flights)
	assert.Empty(t, snap.Dwells)
	assert.Empty(t, snap.MousePath)
}

func TestHandleRoutesEvents(t *testing.T) {
	c, buf := newCapture(t)
	events := []model.InputEvent{
		{Kind: model.KeyDown, Code: "KeyH", T: 0},
		{Kind: model.KeyUp, Code: "KeyH", T: 70},
		{Kind: model.KeyDown, Code: "KeyI", T: 150},
		{Kind: model.PointerMove, X: 10, Y: 20, T: 160},
		{Kind: model.Scroll, T: 170},
	}
	for _, ev := range events {
		c.Handle(ev)
	}
	snap := buf.DrainSnapshot()
	assert.Equal(t, []float64{150}, snap.Flights)
	assert.Equal(t, []float64{70}, snap.Dwells)
	assert.Equal(t, []model.MousePoint{{X: 10, Y: 20, T: 160}}, snap.MousePath)
}

func TestHandleRejectsInvalidEvents(t *testing.T) {
	c, buf := newCapture(t)
	assert.Equal(t, Invalid, c.Handle(model.InputEvent{Kind: model.KeyDown, T: 10}))
	assert.Equal(t, Invalid, c.Handle(model.InputEvent{Kind: "wheel", T: 10}))
	assert.Equal(t, 0, c.Pending())
	assert.True(t, buf.DrainSnapshot().Empty())
}
