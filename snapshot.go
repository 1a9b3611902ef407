package alloctrack

// AddrSize is one live allocation: its address and recorded size.
type AddrSize struct {
	Addr uintptr
	Size int
}

// Snapshot is a point-in-time view of the live allocation map.
//
// The caller owns the snapshot; release it with [Snapshot.Free] once done.
type Snapshot struct {
	// Memory lists the live allocations in slot order.
	Memory RawVec[AddrSize]
	// MemoryAllocated is the sum of the listed sizes.
	MemoryAllocated int
	// TotalMemory is MemoryAllocated plus the capacities of the tracking
	// tables themselves (slot vector and free-index stack). The capacities
	// are element counts, not byte sizes.
	TotalMemory int
}

// Free releases the snapshot's backing storage to the raw heap.
func (s *Snapshot) Free() {
	s.Memory.Free()
}

// ProgramInformation walks the live allocation map under the guard and
// returns a snapshot of it. Allocator events that occur after the walk are
// not reflected. The walk appends to a raw-heap-backed vector, so taking a
// snapshot never re-enters the tracked path.
func ProgramInformation() Snapshot {
	var (
		mem  RawVec[AddrSize]
		size int
	)
	tableGate.take()
	for i := 0; i < table.slots.Len(); i++ {
		s := table.slots.At(i)
		if s.addr == 0 {
			continue
		}
		size += s.size
		mem.Push(AddrSize{Addr: s.addr, Size: s.size})
	}
	slotCap := table.slots.Cap()
	freeCap := table.freeIdx.Cap()
	tableGate.free()
	return Snapshot{
		Memory:          mem,
		MemoryAllocated: size,
		TotalMemory:     size + slotCap + freeCap,
	}
}
