package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects entries for Read. Zero fields match everything.
type Filter struct {
	SessionID string
	UserUID   string
	Since     time.Time
}

// Summary counts entries by event.
type Summary struct {
	Total          int    `json:"total"`
	Locks          int    `json:"locks"`
	VerifyRequests int    `json:"verify_requests"`
	Recoveries     int    `json:"recoveries"`
	FailedAttempts int    `json:"failed_attempts"`
	FirstTimestamp string `json:"first_timestamp,omitempty"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`
}

// Result holds matching entries in log order.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Read scans the log at path and returns entries matching f. Malformed
// lines are skipped; use Verify to detect them.
func Read(path string, f Filter) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	res := &Result{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !f.match(e) {
			continue
		}
		res.Entries = append(res.Entries, e)
		res.Summary.add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return res, nil
}

// Last returns the final n entries of r, or all of them when n <= 0.
func (r *Result) Last(n int) []Entry {
	if n <= 0 || n >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[len(r.Entries)-n:]
}

func (f Filter) match(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.UserUID != "" && e.UserUID != f.UserUID {
		return false
	}
	if !f.Since.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil || ts.Before(f.Since) {
			return false
		}
	}
	return true
}

func (s *Summary) add(e Entry) {
	s.Total++
	switch e.Event {
	case EventLocked:
		s.Locks++
	case EventVerifyRequested:
		s.VerifyRequests++
	case EventRecovered:
		s.Recoveries++
	case EventRecoveryFailed:
		s.FailedAttempts++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
