package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/authguard/internal/model"
)

func TestDrainReturnsContentsAndResets(t *testing.T) {
	b := NewBuffer()
	b.AppendFlight(100)
	b.AppendDwell(80)
	b.AppendPoint(model.MousePoint{X: 1, Y: 2, T: 3})
	b.AddFlag("WEBDRIVER_DETECTED")

	snap := b.DrainSnapshot()
	assert.Equal(t, []float64{100}, snap.Flights)
	assert.Equal(t, []float64{80}, snap.Dwells)
	assert.Equal(t, []model.MousePoint{{X: 1, Y: 2, T: 3}}, snap.MousePath)
	assert.Equal(t, []string{"WEBDRIVER_DETECTED"}, snap.Flags)

	flights, dwells, points := b.Len()
	assert.Zero(t, flights)
	assert.Zero(t, dwells)
	assert.Zero(t, points)
	assert.True(t, b.DrainSnapshot().Empty())
}

func TestAppendAfterDrainGoesToNextSnapshot(t *testing.T) {
	b := NewBuffer()
	b.AppendFlight(1)
	first := b.DrainSnapshot()
	b.AppendFlight(2)
	second := b.DrainSnapshot()

	assert.Equal(t, []float64{1}, first.Flights)
	assert.Equal(t, []float64{2}, second.Flights)
}

func TestDrainedSnapshotNotAliasedByLaterAppends(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 3; i++ {
		b.AppendFlight(float64(i))
	}
	snap := b.DrainSnapshot()
	for i := 0; i < 10; i++ {
		b.AppendFlight(99)
	}
	assert.Equal(t, []float64{0, 1, 2}, snap.Flights)
}

func TestFlagsAreASet(t *testing.T) {
	b := NewBuffer()
	b.AddFlag("A")
	b.AddFlag("B")
	b.AddFlag("A")
	b.AddFlag("")
	assert.Equal(t, []string{"A", "B"}, b.DrainSnapshot().Flags)

	b.AddFlag("A")
	assert.Equal(t, []string{"A"}, b.DrainSnapshot().Flags, "flag set must reset with the buffer")
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, Snapshot{}.Empty())
	assert.True(t, Snapshot{Dwells: []float64{10}, Flags: []string{"X"}}.Empty())
	assert.False(t, Snapshot{Flights: []float64{10}}.Empty())
	assert.False(t, Snapshot{MousePath: []model.MousePoint{{}}}.Empty())
}

// Every appended sample must land in exactly one snapshot even when
// drains race with appends.
func TestConcurrentAppendAndDrainExactlyOnce(t *testing.T) {
	b := NewBuffer()
	const writers, perWriter = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.AppendFlight(1)
			}
		}()
	}
	writersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(writersDone)
	}()

	total := 0
	for {
		total += len(b.DrainSnapshot().Flights)
		select {
		case <-writersDone:
			total += len(b.DrainSnapshot().Flights)
			require.Equal(t, writers*perWriter, total)
			return
		default:
		}
	}
}
