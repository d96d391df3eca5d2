package model

import "fmt"

// EventKind tags an InputEvent variant.
type EventKind string

const (
	KeyDown     EventKind = "keydown"
	KeyUp       EventKind = "keyup"
	PointerMove EventKind = "pointermove"
	Scroll      EventKind = "scroll"
)

// InputEvent is one host input event. T is a monotonic timestamp in
// milliseconds, non-decreasing per source. Code is set for key events,
// X and Y for pointer events.
type InputEvent struct {
	Kind EventKind `json:"type"`
	Code string    `json:"code,omitempty"`
	X    float64   `json:"x,omitempty"`
	Y    float64   `json:"y,omitempty"`
	T    float64   `json:"t"`
}

// Validate rejects events that cannot be routed to a capture handler.
func (e InputEvent) Validate() error {
	switch e.Kind {
	case KeyDown, KeyUp:
		if e.Code == "" {
			return fmt.Errorf("%s event without code", e.Kind)
		}
	case PointerMove, Scroll:
	default:
		return fmt.Errorf("unknown event type %q", e.Kind)
	}
	if e.T < 0 {
		return fmt.Errorf("%s event with negative timestamp", e.Kind)
	}
	return nil
}
