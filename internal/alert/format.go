package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, ev Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(ev)
	case "pagerduty":
		return formatPagerDuty(ev)
	default:
		return json.Marshal(ev)
	}
}

func formatSlack(ev Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("authguard: %s", ev.Type),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*User:* %s", ev.UserUID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Session:* %s", ev.SessionID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", ev.Reason)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(ev Event) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("authguard %s: %s", ev.Type, ev.UserUID),
			"severity": severityFor(ev.Type),
			"source":   "authguard",
			"custom_details": map[string]any{
				"session_id": ev.SessionID,
				"user_uid":   ev.UserUID,
				"reason":     ev.Reason,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(typ string) string {
	switch typ {
	case EventLocked:
		return "critical"
	case EventVerifyRequested:
		return "warning"
	default:
		return "info"
	}
}
