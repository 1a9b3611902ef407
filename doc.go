// Package alloctrack implements an instrumenting middleware for heap
// allocation, counting every alloc, realloc, and free performed through it,
// and maintaining a live map from address to size. The map is exposed over a
// small HTTP endpoint as JSON, so external tools can sample a running
// process's heap composition.
//
// Go provides no mechanism to replace the runtime allocator, so tracking is
// scoped to the malloc-style surface of this package: [Malloc], [Calloc],
// [Realloc], and [Free], backed by an mmap-based process heap
// (modernc.org/memory) that never touches the Go runtime heap. Allocations
// made by third-party code via the Go runtime are not traced.
//
// # Bookkeeping substrate
//
// The hard constraint throughout is reentrancy: the bookkeeping layer must
// record allocator events without calling back into the allocator it
// instruments. Three pieces uphold that:
//
//   - [RawVec], a growable sequence whose storage comes exclusively from the
//     raw heap, bypassing the tracked path.
//   - A process-wide spin gate built from a single atomic bool, the only
//     blocking primitive in the core. A mutex is not usable here, as mutex
//     implementations may allocate on contention.
//   - An address table of reusable slots plus a free-index stack, so the
//     table's length is bounded by the peak number of live allocations.
//
// # Sampling
//
// [ProgramInformation] produces a point-in-time [Snapshot] of the live
// allocation map, and [Server] serves such snapshots as JSON over TCP, one
// request per connection. [Region] observes counter deltas over a scoped
// interval without touching the table.
package alloctrack
