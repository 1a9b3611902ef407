package alloctrack

import (
	"runtime"
	"sync/atomic"
)

// spinGate is a busy-waiting mutual exclusion gate. Unlike sync.Mutex it is
// guaranteed never to allocate, which makes it safe to take from inside the
// allocator itself.
type spinGate struct {
	held atomic.Bool
}

// spinYield bounds how many failed CAS attempts are made before yielding the
// processor to the scheduler.
const spinYield = 64

// take blocks until the gate is acquired. Callers must not take the same
// gate again before free, and must not re-enter the tracked allocator path
// while holding it.
func (g *spinGate) take() {
	for i := 0; !g.held.CompareAndSwap(false, true); i++ {
		if i%spinYield == spinYield-1 {
			runtime.Gosched()
		}
	}
}

// free releases the gate.
func (g *spinGate) free() {
	g.held.Store(false)
}

// tableGate serialises every mutation of, and every walk over, the address
// table. Lock ordering: tableGate may be held when the raw heap's gate is
// taken (RawVec growth), never the reverse.
var tableGate spinGate
