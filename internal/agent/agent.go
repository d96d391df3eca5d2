// Package agent wires capture, attestation, the telemetry buffer, the
// decision channel and enforcement into one session object.
//
// Event handling, the drain half of a flush, decision application and
// host-driven transitions run one at a time under the agent lock. Network
// calls run outside it: the buffer is swapped out before a request is sent
// and the decision is applied after it returns.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/authguard/internal/alert"
	"github.com/ppiankov/authguard/internal/attest"
	"github.com/ppiankov/authguard/internal/audit"
	"github.com/ppiankov/authguard/internal/capture"
	"github.com/ppiankov/authguard/internal/client"
	"github.com/ppiankov/authguard/internal/enforce"
	"github.com/ppiankov/authguard/internal/identity"
	"github.com/ppiankov/authguard/internal/metrics"
	"github.com/ppiankov/authguard/internal/model"
	"github.com/ppiankov/authguard/internal/recovery"
	"github.com/ppiankov/authguard/internal/telemetry"
)

const (
	// DefaultBatchInterval is the flush period.
	DefaultBatchInterval = 4 * time.Second

	tracerName = "github.com/ppiankov/authguard/internal/agent"
)

// FlushStatus reports what one flush cycle did.
type FlushStatus string

const (
	FlushSent       FlushStatus = metrics.FlushSent
	FlushSkipped    FlushStatus = metrics.FlushSkipped
	FlushSuppressed FlushStatus = metrics.FlushSuppressed
	FlushForbidden  FlushStatus = metrics.FlushForbidden
	FlushFailed     FlushStatus = metrics.FlushFailed
)

// StateObserver is told about every state change, e.g. the gRPC status server.
type StateObserver interface {
	Set(model.State)
}

// Config holds the session identity, tuning and collaborators.
// Only Identity is required.
type Config struct {
	Identity        identity.SessionIdentity
	Endpoint        string
	BatchInterval   time.Duration
	FlightCeiling   time.Duration
	PointerThrottle time.Duration
	RequestTimeout  time.Duration
	// NoFingerprint omits the device bundle from the first payload.
	NoFingerprint bool

	// Descriptor replaces the host-derived attestation descriptor.
	Descriptor *attest.Descriptor
	UserAgent  string

	Overlay       enforce.Overlay
	VerifyHandler enforce.VerifyHandler
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Audit         audit.Recorder
	Alerts        *alert.Dispatcher
	Status        StateObserver
	HTTPClient    *http.Client
	Recovery      recovery.Options
}

// Agent is one running session.
type Agent struct {
	cfg     Config
	session *identity.Session
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	buffer   *telemetry.Buffer
	capture  *capture.Capture
	machine  *enforce.Machine
	client   *client.Client
	recovery *recovery.Flow

	envFlags    []string
	fingerprint *telemetry.Fingerprint

	mu            sync.Mutex // one turn at a time
	fpSent        bool
	pendingVerify *model.Decision
}

// New validates the identity and builds the agent. A *identity.ConfigError
// is returned before anything else is created.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = DefaultBatchInterval
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "authguard"
	}

	session := identity.NewSession(cfg.Identity)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", session.SessionID, "user_uid", session.UserID)

	a := &Agent{
		cfg:     cfg,
		session: session,
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(tracerName),
		buffer:  telemetry.NewBuffer(),
	}

	// Attestation runs once, before capture is attached.
	desc := attest.HostDescriptor(cfg.UserAgent)
	if cfg.Descriptor != nil {
		desc = *cfg.Descriptor
	}
	a.envFlags = attest.Run(desc, a.buffer)
	if !cfg.NoFingerprint {
		a.fingerprint = attest.Fingerprint(desc)
	}
	if len(a.envFlags) > 0 {
		logger.Info("environment flags detected", "flags", a.envFlags)
	}

	a.machine = enforce.New(cfg.Overlay, enforce.VerifyHandlerFunc(a.verifyRequested))
	a.machine.OnTransition(a.onTransition)

	a.capture = capture.New(a.buffer, a.machine.Active, capture.Options{
		FlightCeiling:   cfg.FlightCeiling,
		PointerThrottle: cfg.PointerThrottle,
	})

	opts := []client.Option{client.WithTimeout(cfg.RequestTimeout)}
	if cfg.HTTPClient != nil {
		opts = append(opts, client.WithHTTPClient(cfg.HTTPClient))
	}
	a.client = client.New(cfg.Endpoint, cfg.Identity.ClientID, opts...)

	ropts := cfg.Recovery
	if ropts.Logger == nil {
		ropts.Logger = logger
	}
	a.recovery = recovery.NewFlow(a.client, turnLock{a}, session.UserID, ropts)

	a.metrics.SetState(model.Active)
	if cfg.Status != nil {
		cfg.Status.Set(model.Active)
	}
	a.record(audit.Entry{Event: audit.EventSessionStarted, To: model.Active.String()})
	logger.Info("agent started", "endpoint", a.client.Endpoint(), "batch_interval", cfg.BatchInterval)
	return a, nil
}

// Session returns the session metadata.
func (a *Agent) Session() identity.Session { return *a.session }

// State returns the enforcement state.
func (a *Agent) State() model.State { return a.machine.State() }

// EnvFlags returns the attestation flags attached to every payload.
func (a *Agent) EnvFlags() []string { return append([]string(nil), a.envFlags...) }

// HandleEvent feeds one input event to capture. Nothing is recorded unless
// the session is Active.
func (a *Agent) HandleEvent(ev model.InputEvent) capture.Result {
	a.mu.Lock()
	res := a.capture.Handle(ev)
	a.mu.Unlock()
	kind := ev.Kind
	if res == capture.Invalid {
		kind = metrics.EventInvalid
	}
	a.metrics.Event(kind, string(res))
	return res
}

// Run flushes every BatchInterval until ctx is cancelled, then flushes once
// more so telemetry captured just before shutdown is not lost.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.WithoutCancel(ctx))
			a.logger.Info("agent stopped")
			return nil
		case <-ticker.C:
			a.Flush(ctx)
		}
	}
}

// Flush runs one sync cycle. Transport failures are logged and swallowed;
// the drained telemetry is not retried.
func (a *Agent) Flush(ctx context.Context) FlushStatus {
	ctx, span := a.tracer.Start(ctx, "authguard.flush")
	defer span.End()

	status, latency := a.flush(ctx, span)
	span.SetAttributes(attribute.String("authguard.flush.status", string(status)))
	a.metrics.Flush(string(status), latency)
	return status
}

func (a *Agent) flush(ctx context.Context, span trace.Span) (FlushStatus, time.Duration) {
	a.mu.Lock()
	if !a.machine.Active() {
		a.mu.Unlock()
		return FlushSuppressed, 0
	}
	snap := a.buffer.DrainSnapshot()
	if snap.Empty() {
		a.mu.Unlock()
		return FlushSkipped, 0
	}
	var fp *telemetry.Fingerprint
	if a.fingerprint != nil && !a.fpSent {
		fp = a.fingerprint
		a.fpSent = true
	}
	a.mu.Unlock()

	payload := telemetry.BuildPayload(a.session.UserID, snap, a.envFlags, fp)
	span.SetAttributes(
		attribute.Int("authguard.flights", len(payload.Telemetry.FlightVec)),
		attribute.Int("authguard.path_points", len(payload.Telemetry.MousePath)),
		attribute.Bool("authguard.fingerprint", fp != nil),
	)

	start := time.Now()
	out := a.client.Verify(ctx, payload)
	latency := time.Since(start)

	if out.Kind == client.Failed {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "verify failed")
		a.logger.Warn("telemetry sync failed", "status", out.Status, "error", out.Err)
		if fp != nil {
			a.mu.Lock()
			a.fpSent = false
			a.mu.Unlock()
		}
		return FlushFailed, latency
	}

	a.applyDecision(out.Decision)

	if out.Kind == client.Forbidden {
		a.logger.Warn("decision service refused credential", "status", out.Status)
		return FlushForbidden, latency
	}
	return FlushSent, latency
}

// applyDecision applies d as one turn. The host verify handler runs after
// the turn ends so it may call back into the agent.
func (a *Agent) applyDecision(d model.Decision) {
	a.mu.Lock()
	a.apply(d)
	pending := a.pendingVerify
	a.pendingVerify = nil
	a.mu.Unlock()

	if pending != nil && a.cfg.VerifyHandler != nil {
		a.cfg.VerifyHandler.VerifyRequested(*pending)
	}
}

// apply must be called with a.mu held.
func (a *Agent) apply(d model.Decision) {
	a.metrics.Decision(d.Decision)
	if err := a.machine.Apply(d); err != nil {
		var de *enforce.DecisionError
		if errors.As(err, &de) {
			a.logger.Warn("ignoring malformed decision", "error", err)
			return
		}
		a.logger.Error("decision apply failed", "error", err)
	}
}

// BeginVerification moves Active to Verifying while the host runs its own
// challenge. Capture and sync pause until EndVerification.
func (a *Agent) BeginVerification() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.BeginVerification()
}

// EndVerification reports the host challenge result.
func (a *Agent) EndVerification(passed bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.EndVerification(passed)
}

// Recover runs one user-initiated recovery attempt.
func (a *Agent) Recover(ctx context.Context, p recovery.Prompter) error {
	ctx, span := a.tracer.Start(ctx, "authguard.recover")
	defer span.End()

	err := a.recovery.Run(ctx, p)
	result := recoveryResult(err)
	span.SetAttributes(attribute.String("authguard.recovery.result", result))
	a.metrics.Recovery(result)

	var rerr *recovery.RecoveryError
	if errors.As(err, &rerr) {
		span.SetStatus(codes.Error, rerr.Message)
		a.record(audit.Entry{Event: audit.EventRecoveryFailed, Reason: rerr.Message})
		a.logger.Info("recovery attempt failed", "step", rerr.Step, "reason", rerr.Message)
	}
	return err
}

func recoveryResult(err error) string {
	var rerr *recovery.RecoveryError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, recovery.ErrAborted):
		return "aborted"
	case errors.Is(err, recovery.ErrNotLocked):
		return "not_locked"
	case errors.Is(err, recovery.ErrThrottled):
		return "throttled"
	case errors.As(err, &rerr) && rerr.Err != nil:
		return "unavailable"
	case errors.As(err, &rerr):
		return "rejected"
	default:
		return "error"
	}
}

// verifyRequested runs under a.mu, inside machine.Apply.
func (a *Agent) verifyRequested(d model.Decision) {
	a.logger.Info("verification requested", "reason", d.Message())
	a.record(audit.Entry{Event: audit.EventVerifyRequested, Reason: d.Message()})
	a.dispatch(alert.EventVerifyRequested, d.Message(), &d)
	a.pendingVerify = &d
}

func (a *Agent) onTransition(tr enforce.Transition) {
	a.logger.Info("enforcement state changed", "from", tr.From.String(), "to", tr.To.String(), "reason", tr.Reason)
	a.metrics.SetState(tr.To)
	if a.cfg.Status != nil {
		a.cfg.Status.Set(tr.To)
	}

	var ev audit.Event
	switch {
	case tr.To == model.Locked:
		// Anything captured before the lock is never sent.
		a.buffer.DrainSnapshot()
		ev = audit.EventLocked
		a.dispatch(alert.EventLocked, tr.Reason, nil)
	case tr.To == model.Verifying:
		ev = audit.EventVerificationStarted
	case tr.From == model.Verifying:
		ev = audit.EventVerificationPassed
	case tr.From == model.Locked:
		ev = audit.EventRecovered
		a.dispatch(alert.EventRecovered, tr.Reason, nil)
	}
	a.record(audit.Entry{Event: ev, From: tr.From.String(), To: tr.To.String(), Reason: tr.Reason})
}

func (a *Agent) record(e audit.Entry) {
	if a.cfg.Audit == nil {
		return
	}
	e.SessionID = a.session.SessionID
	e.UserUID = a.session.UserID
	if err := a.cfg.Audit.Record(e); err != nil {
		a.logger.Error("audit write failed", "event", e.Event, "error", err)
	}
}

func (a *Agent) dispatch(typ, reason string, d *model.Decision) {
	a.cfg.Alerts.Dispatch(alert.Event{
		Timestamp: time.Now().UTC().Format(audit.TimestampFormat),
		Type:      typ,
		SessionID: a.session.SessionID,
		UserUID:   a.session.UserID,
		Reason:    reason,
		Decision:  d,
	})
}

// turnLock gives the recovery flow the machine, with Unlock taken as an
// agent turn.
type turnLock struct{ a *Agent }

func (l turnLock) State() model.State { return l.a.machine.State() }

func (l turnLock) Unlock() error {
	l.a.mu.Lock()
	defer l.a.mu.Unlock()
	if err := l.a.machine.Unlock(); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}
