// Package recovery implements the user-initiated unlock challenge: an email
// address triggers an out-of-band one-time code, and a correct code returns
// a locked session to Active.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/authguard/internal/client"
	"github.com/ppiankov/authguard/internal/model"
)

const (
	// DefaultAttempts is the number of attempts allowed per DefaultWindow.
	DefaultAttempts = 5
	// DefaultWindow is the refill window for DefaultAttempts.
	DefaultWindow = time.Minute

	// UnavailableMessage is reported when the service cannot be reached.
	UnavailableMessage = "Recovery service unavailable"
	// ThrottledMessage is reported when attempts exceed the local limit.
	ThrottledMessage = "Too many recovery attempts"
	// RejectedMessage is reported when the service rejects a code without
	// saying why.
	RejectedMessage = "Invalid or expired code"
	// UnlockedMessage is reported after a successful unlock.
	UnlockedMessage = "Account unlocked"
)

var (
	// ErrAborted means the user supplied no email or no code. No request
	// was sent for the missing step.
	ErrAborted = errors.New("recovery aborted")
	// ErrNotLocked means recovery was started on a session that is not locked.
	ErrNotLocked = errors.New("session is not locked")
	// ErrThrottled means the local attempt limit was exceeded.
	ErrThrottled = errors.New("recovery throttled")
)

// Step identifies where a recovery attempt failed.
type Step string

const (
	StepThrottle Step = "throttle"
	StepVerify   Step = "verify"
)

// RecoveryError is a failed attempt that was reported to the user.
// The session stays locked.
type RecoveryError struct {
	Step    Step
	Message string
	Err     error
}

func (e *RecoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recovery %s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("recovery %s: %s", e.Step, e.Message)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// Prompter collects input from the user. Email and Code block until the user
// answers; an empty answer aborts the flow.
type Prompter interface {
	Email(ctx context.Context) (string, error)
	Code(ctx context.Context) (string, error)
	Report(msg string)
}

// Service is the recovery half of the decision channel.
type Service interface {
	RequestRecovery(ctx context.Context, userID, email string) error
	VerifyRecovery(ctx context.Context, userID, otp string) (client.RecoveryResult, error)
}

// Lock is the part of the enforcement machine recovery needs.
type Lock interface {
	State() model.State
	Unlock() error
}

// Options tunes a Flow.
type Options struct {
	// Attempts per Window. Zero uses the defaults; negative disables throttling.
	Attempts int
	Window   time.Duration
	Logger   *slog.Logger
}

// Flow runs recovery attempts for one session.
type Flow struct {
	svc     Service
	lock    Lock
	userID  string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu sync.Mutex // one attempt at a time
}

// NewFlow creates a recovery flow for userID.
func NewFlow(svc Service, lock Lock, userID string, opts Options) *Flow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	switch {
	case opts.Attempts < 0:
		limiter = rate.NewLimiter(rate.Inf, 0)
	default:
		attempts, window := opts.Attempts, opts.Window
		if attempts == 0 {
			attempts = DefaultAttempts
		}
		if window <= 0 {
			window = DefaultWindow
		}
		limiter = rate.NewLimiter(rate.Every(window/time.Duration(attempts)), attempts)
	}
	return &Flow{svc: svc, lock: lock, userID: userID, limiter: limiter, logger: logger}
}

// Run performs one attempt. Each step waits for the previous one; nothing
// is retried. On success the session is unlocked and nil returned.
// Concurrent calls wait for the running attempt; a session it unlocked
// returns ErrNotLocked.
func (f *Flow) Run(ctx context.Context, p Prompter) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lock.State() != model.Locked {
		return ErrNotLocked
	}
	if !f.limiter.Allow() {
		p.Report(ThrottledMessage)
		return &RecoveryError{Step: StepThrottle, Message: ThrottledMessage, Err: ErrThrottled}
	}

	email, err := prompt(ctx, p.Email)
	if err != nil {
		return err
	}
	if err := f.svc.RequestRecovery(ctx, f.userID, email); err != nil {
		// The code request has no response branching; a lost request shows
		// up as a missing code.
		f.logger.Warn("recovery code request failed", "user_uid", f.userID, "error", err)
	}

	code, err := prompt(ctx, p.Code)
	if err != nil {
		return err
	}

	res, err := f.svc.VerifyRecovery(ctx, f.userID, code)
	if err != nil {
		f.logger.Warn("recovery verify failed", "user_uid", f.userID, "error", err)
		p.Report(UnavailableMessage)
		return &RecoveryError{Step: StepVerify, Message: UnavailableMessage, Err: err}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = RejectedMessage
		}
		p.Report(msg)
		return &RecoveryError{Step: StepVerify, Message: msg}
	}

	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("recovery unlock: %w", err)
	}
	msg := res.Message
	if msg == "" {
		msg = UnlockedMessage
	}
	p.Report(msg)
	return nil
}

func prompt(ctx context.Context, ask func(context.Context) (string, error)) (string, error) {
	v, err := ask(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAborted, err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", ErrAborted
	}
	return v, nil
}
