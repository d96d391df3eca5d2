// Package client talks to the remote decision service over HTTP JSON.
// Telemetry sends are best-effort: Verify reports an Outcome instead of an
// error so the failure-swallowing policy is visible at the call site.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ppiankov/authguard/internal/model"
	"github.com/ppiankov/authguard/internal/telemetry"
)

const (
	// DefaultEndpoint is the decision service base URL.
	DefaultEndpoint = "http://localhost:5001"
	// DefaultTimeout bounds every request, including detached ones.
	DefaultTimeout = 5 * time.Second

	// APIKeyHeader carries the client credential.
	APIKeyHeader = "X-API-KEY"

	verifyPath          = "/v1/verify"
	recoverRequestPath  = "/v1/recover/request"
	recoverVerifyPath   = "/v1/recover/verify"
	maxResponseBodySize = 1 << 20
)

// Kind classifies a best-effort send.
type Kind int

const (
	// Delivered means the service answered with a parseable decision.
	Delivered Kind = iota
	// Forbidden means HTTP 403; the decision is a synthesized LOCK.
	Forbidden
	// Failed covers transport errors, unexpected status codes and
	// malformed bodies. No decision is available.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Forbidden:
		return "forbidden"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of Verify. Decision is valid unless Kind is Failed.
type Outcome struct {
	Kind     Kind
	Decision model.Decision
	Status   int
	Err      error
}

// RecoveryResult is the /v1/recover/verify response.
type RecoveryResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client is an HTTP client for the decision service. Safe for concurrent use.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is used
// as-is, without tracing instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for endpoint using apiKey as the credential.
// An empty endpoint uses DefaultEndpoint.
func New(endpoint, apiKey string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		timeout:  DefaultTimeout,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Verify sends one telemetry payload. The request is detached from ctx
// cancellation so a flush issued during shutdown still completes within the
// client timeout; ctx values (trace context) are kept.
func (c *Client) Verify(ctx context.Context, payload telemetry.Payload) Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	resp, err := c.post(ctx, verifyPath, payload)
	if err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	if resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		return Outcome{
			Kind:     Forbidden,
			Status:   resp.StatusCode,
			Decision: model.LockDecision(model.ForbiddenReason),
		}
	}
	defer drainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{
			Kind:   Failed,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("verify: unexpected status HTTP %d", resp.StatusCode),
		}
	}

	var d model.Decision
	if err := decode(resp.Body, &d); err != nil {
		return Outcome{Kind: Failed, Status: resp.StatusCode, Err: fmt.Errorf("verify: %w", err)}
	}
	if d.Decision == "" {
		return Outcome{Kind: Failed, Status: resp.StatusCode, Err: errors.New("verify: response has no decision")}
	}
	return Outcome{Kind: Delivered, Status: resp.StatusCode, Decision: d}
}

// RequestRecovery asks the service to send a one-time code to email.
// The response body is not inspected; only transport errors are returned.
func (c *Client) RequestRecovery(ctx context.Context, userID, email string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, recoverRequestPath, map[string]string{
		"user_uid": userID,
		"email":    email,
	})
	if err != nil {
		return err
	}
	drainClose(resp.Body)
	return nil
}

// VerifyRecovery submits a one-time code. The body is parsed for any status
// since the service reports rejected codes as {success:false} with a 4xx.
func (c *Client) VerifyRecovery(ctx context.Context, userID, otp string) (RecoveryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, recoverVerifyPath, map[string]string{
		"user_uid": userID,
		"otp":      otp,
	})
	if err != nil {
		return RecoveryResult{}, err
	}
	defer drainClose(resp.Body)

	var res RecoveryResult
	if err := decode(resp.Body, &res); err != nil {
		return RecoveryResult{}, fmt.Errorf("recover verify: HTTP %d: %w", resp.StatusCode, err)
	}
	if !res.Success && res.Error == "" && resp.StatusCode >= 500 {
		return RecoveryResult{}, fmt.Errorf("recover verify: HTTP %d", resp.StatusCode)
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return resp, nil
}

func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxResponseBodySize)).Decode(v); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBodySize))
	_ = body.Close()
}
