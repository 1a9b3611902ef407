package alloctrack

// Stats is a snapshot of the tracker's counters.
type Stats struct {
	// Allocations counts Malloc and Calloc operations.
	Allocations uint64
	// Deallocations counts Free operations.
	Deallocations uint64
	// Reallocations counts Realloc operations.
	//
	// Excessive reallocations may indicate that resizable structures are
	// created with poorly estimated initial capacities.
	Reallocations uint64
	// BytesAllocated is the total bytes requested by allocations, plus
	// the growth portion of growing reallocs.
	BytesAllocated uint64
	// BytesDeallocated is the total bytes released by frees, plus the
	// shrink portion of shrinking reallocs.
	BytesDeallocated uint64
	// BytesReallocated is the signed cumulative sum of (new - old) over
	// all realloc operations. Positive means resizable structures are
	// growing on balance, negative that they are shrinking.
	BytesReallocated int64
}

// Sub returns the elementwise difference s - o. Subtracting two snapshots of
// the same tracker yields the Stats describing the interval between them.
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		Allocations:      s.Allocations - o.Allocations,
		Deallocations:    s.Deallocations - o.Deallocations,
		Reallocations:    s.Reallocations - o.Reallocations,
		BytesAllocated:   s.BytesAllocated - o.BytesAllocated,
		BytesDeallocated: s.BytesDeallocated - o.BytesDeallocated,
		BytesReallocated: s.BytesReallocated - o.BytesReallocated,
	}
}

// Region observes the change in a tracker's counters from a baseline
// captured at construction. It is a pure observer: it reads atomics only,
// takes no locks, and never touches the address table.
type Region struct {
	tracker *Tracker
	initial Stats
}

// Region captures the tracker's current counters as the baseline of a new
// Region.
func (t *Tracker) Region() *Region {
	return &Region{tracker: t, initial: t.Stats()}
}

// Initial returns the stats as of construction or the last reset.
func (r *Region) Initial() Stats {
	return r.initial
}

// Change returns the difference between the tracker's current stats and the
// baseline.
func (r *Region) Change() Stats {
	return r.tracker.Stats().Sub(r.initial)
}

// ChangeAndReset returns the difference between the tracker's current stats
// and the baseline, and makes the current stats the new baseline.
func (r *Region) ChangeAndReset() Stats {
	latest := r.tracker.Stats()
	diff := latest.Sub(r.initial)
	r.initial = latest
	return diff
}

// Reset makes the tracker's current stats the new baseline.
func (r *Region) Reset() {
	r.initial = r.tracker.Stats()
}
