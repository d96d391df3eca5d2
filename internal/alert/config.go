package alert

import "github.com/ppiankov/authguard/internal/model"

// Webhook event names.
const (
	EventVerifyRequested = "verify_requested"
	EventLocked          = "locked"
	EventRecovered       = "recovered"
)

// WebhookConfig defines one webhook destination.
type WebhookConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // empty means verify_requested only
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload delivered to webhooks. Decision carries the full
// service decision for verify_requested and locked events.
type Event struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	UserUID   string          `json:"user_uid"`
	Reason    string          `json:"reason,omitempty"`
	Decision  *model.Decision `json:"decision,omitempty"`
}
