package authguard

import (
	"context"
	"net/http"
	"sync"

	"github.com/ppiankov/authguard/internal/agent"
	"github.com/ppiankov/authguard/internal/identity"
	"github.com/ppiankov/authguard/internal/metrics"
)

// Session is one monitored user session. Safe for concurrent use.
type Session struct {
	agent   *agent.Agent
	metrics *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a session for userID, authenticating to the decision service
// with clientID. A *ConfigError is returned when either is empty. Capture
// starts immediately; call Start to begin syncing.
func New(clientID, userID string, opts ...Option) (*Session, error) {
	m := metrics.New()
	cfg := agent.Config{
		Identity: identity.SessionIdentity{ClientID: clientID, UserID: userID},
		Metrics:  m,
	}
	for _, o := range opts {
		o(&cfg)
	}
	a, err := agent.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{agent: a, metrics: m}, nil
}

// ID returns the generated session ID.
func (s *Session) ID() string { return s.agent.Session().SessionID }

// State returns the enforcement state.
func (s *Session) State() State { return s.agent.State() }

// EnvFlags returns the automation flags detected at creation.
func (s *Session) EnvFlags() []string { return s.agent.EnvFlags() }

// Start begins periodic syncing. Calling Start on a running session is a
// no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		_ = s.agent.Run(ctx)
	}()
}

// Stop ends syncing after one final flush and waits for it.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Flush syncs buffered telemetry now.
func (s *Session) Flush(ctx context.Context) FlushStatus { return s.agent.Flush(ctx) }

// Handle feeds one input event.
func (s *Session) Handle(ev Event) Result { return s.agent.HandleEvent(ev) }

// KeyDown records a key press at t milliseconds.
func (s *Session) KeyDown(code string, t float64) Result {
	return s.Handle(Event{Kind: KeyDown, Code: code, T: t})
}

// KeyUp records a key release at t milliseconds.
func (s *Session) KeyUp(code string, t float64) Result {
	return s.Handle(Event{Kind: KeyUp, Code: code, T: t})
}

// PointerMove records a pointer position at t milliseconds.
func (s *Session) PointerMove(x, y, t float64) Result {
	return s.Handle(Event{Kind: PointerMove, X: x, Y: y, T: t})
}

// Scroll records a scroll at t milliseconds.
func (s *Session) Scroll(t float64) Result {
	return s.Handle(Event{Kind: Scroll, T: t})
}

// BeginVerification marks the start of a host-run secondary challenge.
func (s *Session) BeginVerification() error { return s.agent.BeginVerification() }

// EndVerification reports the challenge result. A failed challenge locks
// the session.
func (s *Session) EndVerification(passed bool) error { return s.agent.EndVerification(passed) }

// Recover runs one recovery attempt on a locked session.
func (s *Session) Recover(ctx context.Context, p Prompter) error { return s.agent.Recover(ctx, p) }

// MetricsHandler serves the session metrics in Prometheus format.
func (s *Session) MetricsHandler() http.Handler { return s.metrics.Handler() }
