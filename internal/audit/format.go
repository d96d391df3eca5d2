package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders entries as a text timeline for the terminal.
func FormatTimeline(entries []Entry, s Summary) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder
	b.WriteString(separator + "\n")
	for _, e := range entries {
		transition := ""
		if e.From != "" || e.To != "" {
			transition = e.From + " -> " + e.To
		}
		fmt.Fprintf(&b, "%-19s %-13s %-22s %-22s %s\n",
			formatTime(e.Timestamp), truncate(e.SessionID, 13), e.Event, transition, truncate(e.Reason, 40))
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Summary: %d entries | %d locks, %d verify requests, %d recoveries, %d failed attempts\n",
		s.Total, s.Locks, s.VerifyRequests, s.Recoveries, s.FailedAttempts)
	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit result: %w", err)
	}
	return string(data), nil
}

func formatTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
