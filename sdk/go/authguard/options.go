package authguard

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ppiankov/authguard/internal/agent"
)

// Option configures a Session at creation time.
type Option func(*agent.Config)

// WithEndpoint sets the decision service base URL.
func WithEndpoint(url string) Option {
	return func(c *agent.Config) { c.Endpoint = url }
}

// WithBatchInterval sets the telemetry flush period.
func WithBatchInterval(d time.Duration) Option {
	return func(c *agent.Config) { c.BatchInterval = d }
}

// WithFlightCeiling sets the longest keystroke gap recorded as a flight.
func WithFlightCeiling(d time.Duration) Option {
	return func(c *agent.Config) { c.FlightCeiling = d }
}

// WithPointerThrottle sets the minimum spacing between pointer samples.
func WithPointerThrottle(d time.Duration) Option {
	return func(c *agent.Config) { c.PointerThrottle = d }
}

// WithRequestTimeout bounds each decision service request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *agent.Config) { c.RequestTimeout = d }
}

// WithoutFingerprint omits the device descriptor from the first payload.
func WithoutFingerprint() Option {
	return func(c *agent.Config) { c.NoFingerprint = true }
}

// WithEnvironment replaces the host-derived environment descriptor.
func WithEnvironment(env Environment) Option {
	return func(c *agent.Config) { c.Descriptor = &env }
}

// WithOverlay sets the UI that blocks the host while locked.
func WithOverlay(o Overlay) Option {
	return func(c *agent.Config) { c.Overlay = o }
}

// WithVerifyHandler sets the receiver for VERIFY decisions.
func WithVerifyHandler(h VerifyHandler) Option {
	return func(c *agent.Config) { c.VerifyHandler = h }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *agent.Config) { c.Logger = l }
}

// WithHTTPClient replaces the HTTP client used for the decision service.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *agent.Config) { c.HTTPClient = hc }
}

// WithRecoveryLimit allows attempts recovery attempts per window.
// A negative attempts disables the limit.
func WithRecoveryLimit(attempts int, window time.Duration) Option {
	return func(c *agent.Config) {
		c.Recovery.Attempts = attempts
		c.Recovery.Window = window
	}
}
