package alloctrack

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func liveCount() int {
	tableGate.take()
	n := table.liveLocked()
	tableGate.free()
	return n
}

func snapshotHolds(snap *Snapshot, addr uintptr, size int) bool {
	for e := range snap.Memory.All() {
		if e.Addr == addr && e.Size == size {
			return true
		}
	}
	return false
}

func TestTracker_singleAllocation(t *testing.T) {
	var tr Tracker
	before := liveCount()

	p := tr.Malloc(64)
	require.NotZero(t, p)

	stats := tr.Stats()
	require.Equal(t, uint64(1), stats.Allocations)
	require.Equal(t, uint64(0), stats.Deallocations)
	require.Equal(t, uint64(64), stats.BytesAllocated)
	require.Equal(t, before+1, liveCount())

	snap := ProgramInformation()
	require.True(t, snapshotHolds(&snap, p, 64))
	snap.Free()

	require.GreaterOrEqual(t, osHeap.usableSize(p), 64)
	tr.Free(p, 64)
}

func TestTracker_allocThenFree(t *testing.T) {
	var tr Tracker
	before := liveCount()

	p := tr.Malloc(64)
	tr.Free(p, 64)
	slots := table.slots.Len()

	stats := tr.Stats()
	require.Equal(t, uint64(1), stats.Allocations)
	require.Equal(t, uint64(1), stats.Deallocations)
	require.Equal(t, uint64(64), stats.BytesAllocated)
	require.Equal(t, uint64(64), stats.BytesDeallocated)
	require.Equal(t, before, liveCount())

	snap := ProgramInformation()
	require.False(t, snapshotHolds(&snap, p, 64))
	snap.Free()

	// the freed slot is reused; the table does not grow
	q := tr.Malloc(32)
	require.Equal(t, slots, table.slots.Len())
	tr.Free(q, 32)
}

func TestTracker_reallocGrow(t *testing.T) {
	var tr Tracker
	p := tr.Malloc(16)
	q := tr.Realloc(p, 16, 48)
	require.NotZero(t, q)

	stats := tr.Stats()
	require.Equal(t, uint64(1), stats.Allocations)
	require.Equal(t, uint64(1), stats.Reallocations)
	require.Equal(t, uint64(16+32), stats.BytesAllocated)
	require.Equal(t, int64(32), stats.BytesReallocated)

	snap := ProgramInformation()
	require.True(t, snapshotHolds(&snap, q, 48))
	if q != p {
		require.False(t, snapshotHolds(&snap, p, 16))
	}
	snap.Free()

	tr.Free(q, 48)
}

func TestTracker_reallocShrink(t *testing.T) {
	var tr Tracker
	p := tr.Malloc(64)
	q := tr.Realloc(p, 64, 16)
	require.NotZero(t, q)

	stats := tr.Stats()
	require.Equal(t, uint64(48), stats.BytesDeallocated)
	require.Equal(t, int64(-48), stats.BytesReallocated)

	snap := ProgramInformation()
	require.True(t, snapshotHolds(&snap, q, 16))
	snap.Free()

	tr.Free(q, 16)
}

func TestTracker_reallocByteLaw(t *testing.T) {
	// bytes_reallocated is the signed sum of (new - old) over all reallocs
	var tr Tracker
	p := tr.Malloc(10)
	sizes := []int{100, 30, 500, 7}
	old, want := 10, int64(0)
	for _, size := range sizes {
		want += int64(size) - int64(old)
		p = tr.Realloc(p, old, size)
		old = size
	}
	require.Equal(t, want, tr.Stats().BytesReallocated)
	require.Equal(t, uint64(len(sizes)), tr.Stats().Reallocations)
	tr.Free(p, old)
}

func TestTracker_concurrentLoad(t *testing.T) {
	const (
		workers    = 8
		iterations = 10_000
	)

	var tr Tracker
	before := liveCount()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				size := 1 + rand.IntN(512)
				p := tr.Malloc(size)
				tr.Free(p, size)
			}
		}()
	}
	wg.Wait()

	stats := tr.Stats()
	require.Equal(t, uint64(workers*iterations), stats.Allocations)
	require.Equal(t, uint64(workers*iterations), stats.Deallocations)
	require.Equal(t, stats.BytesAllocated, stats.BytesDeallocated)
	require.Equal(t, before, liveCount())
	require.LessOrEqual(t, table.freeIdx.Len(), table.slots.Len())
}

func TestTracker_argumentAssertions(t *testing.T) {
	var tr Tracker
	require.Panics(t, func() { tr.Malloc(0) })
	require.Panics(t, func() { tr.Calloc(-1) })
	require.Panics(t, func() { tr.Free(0, 8) })
	require.Panics(t, func() { tr.Realloc(0, 8, 16) })
}

func TestTracker_callocTracked(t *testing.T) {
	var tr Tracker
	p := tr.Calloc(256)
	stats := tr.Stats()
	require.Equal(t, uint64(1), stats.Allocations)
	require.Equal(t, uint64(256), stats.BytesAllocated)

	snap := ProgramInformation()
	require.True(t, snapshotHolds(&snap, p, 256))
	snap.Free()

	tr.Free(p, 256)
}

func TestDefaultTracker_packageFunctions(t *testing.T) {
	region := NewRegion()
	p := Malloc(128)
	p = Realloc(p, 128, 64)
	Free(p, 64)

	change := region.Change()
	require.Equal(t, uint64(1), change.Allocations)
	require.Equal(t, uint64(1), change.Reallocations)
	require.Equal(t, uint64(1), change.Deallocations)
	require.Equal(t, int64(-64), change.BytesReallocated)
	require.Equal(t, Current().Sub(region.Initial()), change)

	q := Calloc(32)
	Free(q, 32)
	require.Equal(t, uint64(2), region.Change().Allocations)
}
