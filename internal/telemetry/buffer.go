// Package telemetry holds the shared accumulator that signal capture writes
// into and the sync scheduler drains. A drain swaps the whole buffer out under
// the lock, so every appended sample lands in exactly one snapshot.
package telemetry

import (
	"sync"

	"github.com/ppiankov/authguard/internal/model"
)

// Snapshot is the content of the buffer at one drain.
type Snapshot struct {
	Flights   []float64
	Dwells    []float64
	MousePath []model.MousePoint
	Flags     []string
}

// Empty reports whether the snapshot carries nothing worth sending.
// Dwells and flags alone do not make a snapshot transmittable.
func (s Snapshot) Empty() bool {
	return len(s.Flights) == 0 && len(s.MousePath) == 0
}

// Buffer accumulates telemetry between flushes. Safe for concurrent use.
type Buffer struct {
	mu   sync.Mutex
	cur  Snapshot
	seen map[string]bool
}

// NewBuffer creates an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{seen: make(map[string]bool)}
}

// AppendFlight records an inter-keystroke interval in milliseconds.
func (b *Buffer) AppendFlight(ms float64) {
	b.mu.Lock()
	b.cur.Flights = append(b.cur.Flights, ms)
	b.mu.Unlock()
}

// AppendDwell records a key hold duration in milliseconds.
func (b *Buffer) AppendDwell(ms float64) {
	b.mu.Lock()
	b.cur.Dwells = append(b.cur.Dwells, ms)
	b.mu.Unlock()
}

// AppendPoint records an accepted pointer sample.
func (b *Buffer) AppendPoint(p model.MousePoint) {
	b.mu.Lock()
	b.cur.MousePath = append(b.cur.MousePath, p)
	b.mu.Unlock()
}

// AddFlag adds a flag token. Flags are a set: repeats are ignored.
func (b *Buffer) AddFlag(flag string) {
	if flag == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[flag] {
		return
	}
	b.seen[flag] = true
	b.cur.Flags = append(b.cur.Flags, flag)
}

// DrainSnapshot returns the current contents and installs a fresh empty
// buffer in the same critical section. The caller owns the returned slices.
func (b *Buffer) DrainSnapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.cur
	b.cur = Snapshot{}
	b.seen = make(map[string]bool)
	return snap
}

// Len returns the number of flights, dwells and path points currently held.
func (b *Buffer) Len() (flights, dwells, points int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cur.Flights), len(b.cur.Dwells), len(b.cur.MousePath)
}
