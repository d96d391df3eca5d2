// Package enforce holds the session enforcement state machine.
//
// The machine only ever calls two UI operations, Present and Dismiss, on an
// Overlay supplied by the platform layer. A LOCK decision is irreversible
// except through Unlock, which the recovery flow calls after the service
// accepts a one-time code.
package enforce

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/authguard/internal/model"
)

// VerificationFailedReason is presented when the host reports a failed
// secondary challenge.
const VerificationFailedReason = "Verification failed"

// ErrInvalidTransition is returned when a host-driven transition is not
// allowed from the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// Overlay blocks interaction with the host application. Present and
// Dismiss must return promptly; recovery is started by the host, not from
// inside Present.
type Overlay interface {
	Present(reason string)
	Dismiss()
}

// VerifyHandler receives VERIFY decisions so the host can run its own
// secondary challenge.
type VerifyHandler interface {
	VerifyRequested(d model.Decision)
}

// VerifyHandlerFunc adapts a function to VerifyHandler.
type VerifyHandlerFunc func(d model.Decision)

// VerifyRequested calls f(d).
func (f VerifyHandlerFunc) VerifyRequested(d model.Decision) { f(d) }

// DecisionError reports a decision the machine could not interpret.
// The decision has no effect on state.
type DecisionError struct {
	Verdict model.Verdict
}

func (e *DecisionError) Error() string {
	if e.Verdict == "" {
		return "decision: missing verdict"
	}
	return fmt.Sprintf("decision: unknown verdict %q", e.Verdict)
}

// Transition describes one state change.
type Transition struct {
	From   model.State
	To     model.State
	Reason string
}

// Listener is called after each transition, outside the machine lock.
type Listener func(Transition)

// Machine is the enforcement state machine. Safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	state     model.State
	presented bool
	overlay   Overlay
	verify    VerifyHandler
	listeners []Listener
}

// New creates a machine in the Active state. Nil collaborators are replaced
// with no-ops.
func New(overlay Overlay, verify VerifyHandler) *Machine {
	if overlay == nil {
		overlay = nopOverlay{}
	}
	if verify == nil {
		verify = VerifyHandlerFunc(func(model.Decision) {})
	}
	return &Machine{overlay: overlay, verify: verify}
}

// OnTransition registers a listener.
func (m *Machine) OnTransition(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// State returns the current state.
func (m *Machine) State() model.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether capture and sync may proceed.
func (m *Machine) Active() bool {
	return m.State() == model.Active
}

// Apply feeds one service decision into the machine.
//
// LOCK moves to Locked from any state and presents the overlay once.
// VERIFY while Active notifies the host and leaves the state unchanged.
// Every other known verdict is a no-op; in particular nothing but Unlock
// leaves Locked. An unknown verdict returns a *DecisionError and is
// otherwise ignored.
func (m *Machine) Apply(d model.Decision) error {
	if !d.Decision.Known() {
		return &DecisionError{Verdict: d.Decision}
	}

	switch d.Decision {
	case model.VerdictLock:
		m.lock(d.Message())
	case model.VerdictVerify:
		if m.State() == model.Active {
			m.verify.VerifyRequested(d)
		}
	}
	return nil
}

// BeginVerification moves Active to Verifying. The host calls it when it
// starts a secondary challenge.
func (m *Machine) BeginVerification() error {
	return m.move(model.Active, model.Verifying, "verification started")
}

// EndVerification leaves Verifying. A passed challenge returns to Active;
// a failed one locks the session.
func (m *Machine) EndVerification(passed bool) error {
	if passed {
		return m.move(model.Verifying, model.Active, "verification passed")
	}
	m.mu.Lock()
	if m.state != model.Verifying {
		from := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, model.Locked)
	}
	m.mu.Unlock()
	m.lock(VerificationFailedReason)
	return nil
}

// Unlock moves Locked to Active and dismisses the overlay.
func (m *Machine) Unlock() error {
	m.mu.Lock()
	if m.state != model.Locked {
		from := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, model.Active)
	}
	m.state = model.Active
	dismiss := m.presented
	m.presented = false
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if dismiss {
		m.overlay.Dismiss()
	}
	notify(listeners, Transition{From: model.Locked, To: model.Active, Reason: "recovered"})
	return nil
}

func (m *Machine) lock(reason string) {
	m.mu.Lock()
	from := m.state
	m.state = model.Locked
	present := !m.presented
	m.presented = true
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if present {
		m.overlay.Present(reason)
	}
	if from != model.Locked {
		notify(listeners, Transition{From: from, To: model.Locked, Reason: reason})
	}
}

func (m *Machine) move(from, to model.State, reason string) error {
	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
	}
	m.state = to
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	notify(listeners, Transition{From: from, To: to, Reason: reason})
	return nil
}

// snapshotListeners must be called with m.mu held.
func (m *Machine) snapshotListeners() []Listener {
	return append([]Listener(nil), m.listeners...)
}

func notify(listeners []Listener, t Transition) {
	for _, l := range listeners {
		l(t)
	}
}

type nopOverlay struct{}

func (nopOverlay) Present(string) {}
func (nopOverlay) Dismiss()       {}
