// Package ingest feeds input events into an agent from JSONL streams: one
// model.InputEvent object per line, e.g.
//
//	{"type":"keydown","code":"KeyA","t":1200.5}
//	{"type":"pointermove","x":10,"y":20,"t":1210}
//
// Malformed or invalid lines are counted and skipped.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ppiankov/authguard/internal/model"
)

// maxLineSize bounds a single JSONL line.
const maxLineSize = 64 * 1024

// HandleFunc receives each valid event in stream order.
type HandleFunc func(ev model.InputEvent)

// Stats counts what a source has read.
type Stats struct {
	Lines   int `json:"lines"`
	Events  int `json:"events"`
	Invalid int `json:"invalid"`
}

// Decode reads events from r until EOF.
func Decode(r io.Reader, h HandleFunc) (Stats, error) {
	var st Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		st.line(scanner.Bytes(), h)
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("ingest: read: %w", err)
	}
	return st, nil
}

// ParseLine decodes and validates one line.
func ParseLine(line []byte) (model.InputEvent, error) {
	var ev model.InputEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return ev, fmt.Errorf("ingest: decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

func (st *Stats) line(b []byte, h HandleFunc) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return
	}
	st.Lines++
	ev, err := ParseLine(b)
	if err != nil {
		st.Invalid++
		return
	}
	st.Events++
	h(ev)
}
