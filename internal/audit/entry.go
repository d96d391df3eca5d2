package audit

// Event names the enforcement occurrence an entry records.
type Event string

const (
	EventSessionStarted      Event = "session_started"
	EventLocked              Event = "locked"
	EventVerifyRequested     Event = "verify_requested"
	EventVerificationStarted Event = "verification_started"
	EventVerificationPassed  Event = "verification_passed"
	EventRecovered           Event = "recovered"
	EventRecoveryFailed      Event = "recovery_failed"
)

// TimestampFormat is the layout used in entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL audit log.
// Only fixed struct fields, so json.Marshal output is byte-stable
// and line hashes are reproducible.
type Entry struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	UserUID   string `json:"user_uid"`
	Event     Event  `json:"event"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Reason    string `json:"reason,omitempty"`
	PrevHash  string `json:"prev_hash"`
}
