package authguard

import (
	"github.com/ppiankov/authguard/internal/agent"
	"github.com/ppiankov/authguard/internal/attest"
	"github.com/ppiankov/authguard/internal/capture"
	"github.com/ppiankov/authguard/internal/enforce"
	"github.com/ppiankov/authguard/internal/identity"
	"github.com/ppiankov/authguard/internal/model"
	"github.com/ppiankov/authguard/internal/recovery"
)

// State is the enforcement state of a session.
type State = model.State

const (
	Active    = model.Active
	Locked    = model.Locked
	Verifying = model.Verifying
)

// Event is one host input event. T is a monotonic timestamp in milliseconds.
type Event = model.InputEvent

// Event kinds.
const (
	KeyDown     = model.KeyDown
	KeyUp       = model.KeyUp
	PointerMove = model.PointerMove
	Scroll      = model.Scroll
)

// Decision is a decision service verdict.
type Decision = model.Decision

// Environment describes the host for automation detection.
type Environment = attest.Descriptor

// Overlay blocks the host UI while the session is locked.
type Overlay = enforce.Overlay

// VerifyHandler is told when the service asks for a secondary challenge.
type VerifyHandler = enforce.VerifyHandler

// VerifyHandlerFunc adapts a function to VerifyHandler.
type VerifyHandlerFunc = enforce.VerifyHandlerFunc

// Prompter collects the recovery email and one-time code.
type Prompter = recovery.Prompter

// ConfigError is returned by New when the identity is incomplete.
type ConfigError = identity.ConfigError

// RecoveryError is a recovery attempt that failed and was reported.
type RecoveryError = recovery.RecoveryError

var (
	ErrAborted   = recovery.ErrAborted
	ErrNotLocked = recovery.ErrNotLocked
	ErrThrottled = recovery.ErrThrottled
)

// Result says what capture did with one event.
type Result = capture.Result

const (
	Recorded  = capture.Recorded
	Filtered  = capture.Filtered
	Throttled = capture.Throttled
	Unmatched = capture.Unmatched
	Suspended = capture.Suspended
	Ignored   = capture.Ignored
	Invalid   = capture.Invalid
)

// FlushStatus says what one flush cycle did.
type FlushStatus = agent.FlushStatus

const (
	FlushSent       = agent.FlushSent
	FlushSkipped    = agent.FlushSkipped
	FlushSuppressed = agent.FlushSuppressed
	FlushForbidden  = agent.FlushForbidden
	FlushFailed     = agent.FlushFailed
)
