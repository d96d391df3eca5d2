package model

import (
	"strings"
)

// Verdict is the decision service's verdict on one telemetry flush.
type Verdict string

const (
	VerdictNone   Verdict = "NONE"
	VerdictLock   Verdict = "LOCK"
	VerdictVerify Verdict = "VERIFY"
	// VerdictAllow is sent by some service builds in place of NONE.
	VerdictAllow Verdict = "ALLOW"
)

// Known reports whether v is a verdict the agent understands.
func (v Verdict) Known() bool {
	switch v {
	case VerdictNone, VerdictLock, VerdictVerify, VerdictAllow:
		return true
	}
	return false
}

// DefaultLockReason is shown when a LOCK decision carries no reason.
const DefaultLockReason = "Unusual activity detected"

// ForbiddenReason is the reason attached to a LOCK synthesized from HTTP 403.
const ForbiddenReason = "Access Denied by Server"

// Decision is the decision service response for /v1/verify.
// Consumed once by the enforcement machine and discarded.
type Decision struct {
	Decision  Verdict        `json:"decision"`
	Reason    string         `json:"reason,omitempty"`
	Reasons   []string       `json:"reasons,omitempty"`
	RiskScore *float64       `json:"risk_score,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// Message returns the human-readable reason for the decision.
// Multiple reasons are joined; a lone reason is returned as-is.
func (d Decision) Message() string {
	var parts []string
	for _, r := range d.Reasons {
		if r = strings.TrimSpace(r); r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if r := strings.TrimSpace(d.Reason); r != "" {
		return r
	}
	return DefaultLockReason
}

// LockDecision builds a LOCK decision with the given reason.
func LockDecision(reason string) Decision {
	return Decision{Decision: VerdictLock, Reason: reason}
}

// MousePoint is one accepted pointer sample.
type MousePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T float64 `json:"t"`
}
