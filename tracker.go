package alloctrack

import "sync/atomic"

// Tracker is the instrumenting allocator facade. Every operation updates the
// counters, delegates to the raw heap, and maintains the process-wide
// address table.
//
// Sizes are supplied by the caller on Free and Realloc, mirroring a sized
// malloc contract; the counters account exactly what the caller claims.
//
// All methods are safe for concurrent use from any goroutine.
type Tracker struct {
	allocations      atomic.Uint64
	deallocations    atomic.Uint64
	reallocations    atomic.Uint64
	bytesAllocated   atomic.Uint64
	bytesDeallocated atomic.Uint64
	bytesReallocated atomic.Int64
}

// Default is the package's shared tracker, used by the package-level
// allocation functions. [Server] reads no tracker's counters; it samples the
// process-wide address table via [ProgramInformation].
var Default = new(Tracker)

// Stats returns a consistent view of the tracker's counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Allocations:      t.allocations.Load(),
		Deallocations:    t.deallocations.Load(),
		Reallocations:    t.reallocations.Load(),
		BytesAllocated:   t.bytesAllocated.Load(),
		BytesDeallocated: t.bytesDeallocated.Load(),
		BytesReallocated: t.bytesReallocated.Load(),
	}
}

// Malloc allocates size bytes from the raw heap and records the block in the
// live allocation map. size must be positive. Allocation failure is fatal.
func (t *Tracker) Malloc(size int) uintptr {
	if size <= 0 {
		panic(`alloctrack: malloc: nonpositive size`)
	}
	t.bytesAllocated.Add(uint64(size))
	t.allocations.Add(1)
	p := osHeap.malloc(size)
	table.record(p, size)
	return p
}

// Calloc is like [Tracker.Malloc] with the block zeroed.
func (t *Tracker) Calloc(size int) uintptr {
	if size <= 0 {
		panic(`alloctrack: calloc: nonpositive size`)
	}
	t.allocations.Add(1)
	t.bytesAllocated.Add(uint64(size))
	p := osHeap.calloc(size)
	table.record(p, size)
	return p
}

// Free returns the block at addr to the raw heap and removes it from the
// live allocation map. size must be the size the block was allocated with.
// Freeing an address the map never saw still updates the counters; the map
// is simply left unchanged.
func (t *Tracker) Free(addr uintptr, size int) {
	if addr == 0 {
		panic(`alloctrack: free: zero address`)
	}
	t.deallocations.Add(1)
	t.bytesDeallocated.Add(uint64(size))
	osHeap.free(addr)
	table.forget(addr)
}

// Realloc resizes the block at addr from oldSize to newSize bytes, returning
// the block's new address (which may equal addr). The byte counters are
// updated before the heap call, unconditionally.
//
// The map update is forget-old then record-new, each its own guarded
// section. A snapshot taken between the two may see neither address; that
// narrow window is an accepted property of the design.
func (t *Tracker) Realloc(addr uintptr, oldSize, newSize int) uintptr {
	if addr == 0 {
		panic(`alloctrack: realloc: zero address`)
	}
	if newSize <= 0 {
		panic(`alloctrack: realloc: nonpositive size`)
	}
	t.reallocations.Add(1)
	if newSize > oldSize {
		t.bytesAllocated.Add(uint64(newSize - oldSize))
	} else if newSize < oldSize {
		t.bytesDeallocated.Add(uint64(oldSize - newSize))
	}
	t.bytesReallocated.Add(int64(newSize) - int64(oldSize))
	p := osHeap.realloc(addr, newSize)
	table.forget(addr)
	table.record(p, newSize)
	return p
}

// Malloc allocates through [Default].
func Malloc(size int) uintptr { return Default.Malloc(size) }

// Calloc allocates zeroed memory through [Default].
func Calloc(size int) uintptr { return Default.Calloc(size) }

// Realloc resizes through [Default].
func Realloc(addr uintptr, oldSize, newSize int) uintptr {
	return Default.Realloc(addr, oldSize, newSize)
}

// Free releases through [Default].
func Free(addr uintptr, size int) { Default.Free(addr, size) }

// Current returns [Default]'s counters.
func Current() Stats { return Default.Stats() }

// NewRegion captures a baseline over [Default].
func NewRegion() *Region { return Default.Region() }
