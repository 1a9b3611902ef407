package alloctrack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_sumMatchesEntries(t *testing.T) {
	var tr Tracker
	p1 := tr.Malloc(100)
	p2 := tr.Malloc(200)
	defer tr.Free(p1, 100)
	defer tr.Free(p2, 200)

	snap := ProgramInformation()
	defer snap.Free()

	sum := 0
	for e := range snap.Memory.All() {
		require.NotZero(t, e.Addr)
		require.Positive(t, e.Size)
		sum += e.Size
	}
	require.Equal(t, snap.MemoryAllocated, sum)
	require.Equal(t, snap.MemoryAllocated+table.slots.Cap()+table.freeIdx.Cap(), snap.TotalMemory)
}

func TestSnapshot_stableWithoutEvents(t *testing.T) {
	var tr Tracker
	p := tr.Malloc(64)
	defer tr.Free(p, 64)

	s1 := ProgramInformation()
	defer s1.Free()
	s2 := ProgramInformation()
	defer s2.Free()

	require.Equal(t, s1.MemoryAllocated, s2.MemoryAllocated)
	require.Equal(t, s1.TotalMemory, s2.TotalMemory)
	require.Equal(t, s1.Memory.Len(), s2.Memory.Len())
	for i := 0; i < s1.Memory.Len(); i++ {
		require.Equal(t, s1.Memory.At(i), s2.Memory.At(i))
	}
}

func TestSnapshot_liveCountTracksEvents(t *testing.T) {
	var tr Tracker

	s0 := ProgramInformation()
	before := s0.Memory.Len()
	s0.Free()

	p1 := tr.Malloc(10)
	p2 := tr.Malloc(20)
	p3 := tr.Malloc(30)

	s1 := ProgramInformation()
	require.Equal(t, before+3, s1.Memory.Len())
	s1.Free()

	tr.Free(p1, 10)
	tr.Free(p2, 20)
	tr.Free(p3, 30)

	s2 := ProgramInformation()
	require.Equal(t, before, s2.Memory.Len())
	s2.Free()
}

// Taking a snapshot is itself not a tracked allocator event.
func TestSnapshot_untracked(t *testing.T) {
	region := Default.Region()
	snap := ProgramInformation()
	snap.Free()
	require.Equal(t, Stats{}, region.Change())
}
