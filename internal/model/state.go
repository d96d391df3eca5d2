package model

// State is the local enforcement state of a session.
// Active is the zero value and the initial state.
type State int

const (
	Active State = iota
	Locked
	Verifying
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Locked:
		return "LOCKED"
	case Verifying:
		return "VERIFYING"
	default:
		return "UNKNOWN"
	}
}
