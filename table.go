package alloctrack

// slot is one cell of the address table: empty, or a live allocation's
// address and size. A zero address marks an empty slot.
type slot struct {
	addr uintptr
	size int
}

// addrTable is the live allocation map: an append-only slot vector plus a
// stack of indices whose slots are currently empty. Freed slots are reused
// before the table grows, so its length is bounded by the peak number of
// simultaneously live allocations.
//
// Lookup is a linear scan. A hash map would allocate through the very path
// the table instruments; the O(n) forget is the price of a table that is
// safe to mutate from inside the allocator. This is an instrumentation
// layer, not a fast path.
type addrTable struct {
	slots   RawVec[slot]
	freeIdx RawVec[int]
}

// table is the process-wide allocation map. Its zero value is ready for use;
// the first record grows the slot vector via the raw heap.
var table addrTable

// record stores (addr, size), reusing a freed slot when one is available.
// O(1) amortised.
func (t *addrTable) record(addr uintptr, size int) {
	tableGate.take()
	if i, ok := t.freeIdx.Pop(); ok {
		t.slots.Set(i, slot{addr: addr, size: size})
	} else {
		t.slots.Push(slot{addr: addr, size: size})
	}
	tableGate.free()
}

// forget empties the first slot holding addr, pushes its index on the free
// stack, and returns the recorded size. Addresses the table never saw (for
// example blocks allocated before tracking began) report false; the caller's
// counters are expected to have been updated regardless.
func (t *addrTable) forget(addr uintptr) (size int, ok bool) {
	if addr == 0 {
		return 0, false
	}
	tableGate.take()
	for i := 0; i < t.slots.Len(); i++ {
		if s := t.slots.At(i); s.addr == addr {
			t.slots.Set(i, slot{})
			t.freeIdx.Push(i)
			tableGate.free()
			return s.size, true
		}
	}
	tableGate.free()
	return 0, false
}

// liveLocked counts non-empty slots. Caller must hold tableGate.
func (t *addrTable) liveLocked() (n int) {
	for i := 0; i < t.slots.Len(); i++ {
		if t.slots.At(i).addr != 0 {
			n++
		}
	}
	return n
}
