package model

import (
	"encoding/json"
	"testing"
)

func TestDecisionMessageJoinsReasons(t *testing.T) {
	d := Decision{Decision: VerdictLock, Reason: "ignored", Reasons: []string{"typing rhythm", " ", "new device"}}
	if got := d.Message(); got != "typing rhythm, new device" {
		t.Errorf("expected joined reasons, got %q", got)
	}
}

func TestDecisionMessageFallbacks(t *testing.T) {
	if got := (Decision{Reason: "risk"}).Message(); got != "risk" {
		t.Errorf("expected single reason, got %q", got)
	}
	if got := (Decision{}).Message(); got != DefaultLockReason {
		t.Errorf("expected default reason, got %q", got)
	}
}

func TestDecisionDecodesServiceResponse(t *testing.T) {
	body := `{"decision":"VERIFY","risk_score":55,"reasons":["velocity"],"trust_score":45,"session_id":"sess_1"}`
	var d Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Decision != VerdictVerify {
		t.Errorf("expected VERIFY, got %s", d.Decision)
	}
	if d.RiskScore == nil || *d.RiskScore != 55 {
		t.Errorf("expected risk score 55, got %v", d.RiskScore)
	}
	if d.SessionID != "sess_1" {
		t.Errorf("expected session id, got %q", d.SessionID)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Active, "ACTIVE"},
		{Locked, "LOCKED"},
		{Verifying, "VERIFYING"},
		{State(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestInputEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		ev      InputEvent
		wantErr bool
	}{
		{"keydown", InputEvent{Kind: KeyDown, Code: "KeyA", T: 1}, false},
		{"keyup without code", InputEvent{Kind: KeyUp, T: 1}, true},
		{"pointer", InputEvent{Kind: PointerMove, X: 3, Y: 4, T: 10}, false},
		{"scroll", InputEvent{Kind: Scroll, T: 10}, false},
		{"unknown", InputEvent{Kind: "wheel", T: 10}, true},
		{"negative time", InputEvent{Kind: Scroll, T: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerdictKnown(t *testing.T) {
	for _, v := range []Verdict{VerdictNone, VerdictLock, VerdictVerify, VerdictAllow} {
		if !v.Known() {
			t.Errorf("expected %q to be known", v)
		}
	}
	for _, v := range []Verdict{"", "lock", "BLOCK"} {
		if v.Known() {
			t.Errorf("expected %q to be unknown", v)
		}
	}
}
