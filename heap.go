package alloctrack

import (
	"os"

	"modernc.org/memory"
)

// rawHeap is the untracked allocation surface: an mmap-backed allocator
// reached without passing through the instrumentation layer. All bookkeeping
// storage, and the payload blocks handed out by [Tracker], come from here.
//
// memory.Allocator is not safe for concurrent use, so every call is
// serialised by an allocation-free gate of its own. The gate nests strictly
// below tableGate (see guard.go), so no lock cycle can form.
type rawHeap struct {
	gate  spinGate
	alloc memory.Allocator
}

// osHeap is the process-wide raw heap. Like the allocator it wraps, its zero
// value is ready for use; first use maps pages from the OS.
var osHeap rawHeap

func (h *rawHeap) malloc(size int) uintptr {
	h.gate.take()
	p, err := h.alloc.UintptrMalloc(size)
	h.gate.free()
	if err != nil || p == 0 {
		fatalOOM()
	}
	return p
}

func (h *rawHeap) calloc(size int) uintptr {
	h.gate.take()
	p, err := h.alloc.UintptrCalloc(size)
	h.gate.free()
	if err != nil || p == 0 {
		fatalOOM()
	}
	return p
}

func (h *rawHeap) realloc(addr uintptr, size int) uintptr {
	h.gate.take()
	p, err := h.alloc.UintptrRealloc(addr, size)
	h.gate.free()
	if err != nil || p == 0 {
		fatalOOM()
	}
	return p
}

func (h *rawHeap) free(addr uintptr) {
	h.gate.take()
	err := h.alloc.UintptrFree(addr)
	h.gate.free()
	if err != nil {
		// Freeing an address the heap never issued is a programmer error.
		panic(`alloctrack: heap: free of unknown address`)
	}
}

// usableSize reports the size of the block at addr, which must have been
// returned by this heap and not yet freed.
func (h *rawHeap) usableSize(addr uintptr) int {
	return memory.UintptrUsableSize(addr)
}

// fatalOOM terminates the process. Once the raw heap has failed there is no
// path that can be trusted to allocate, including logging and panicking.
func fatalOOM() {
	os.Stderr.WriteString("alloctrack: out of memory\n")
	os.Exit(2)
}
