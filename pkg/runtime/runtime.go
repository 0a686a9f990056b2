// Package runtime models the target memory runtime: a bump arena with
// checkpoint/restore and a reference-counted heap, both hanging off an
// explicit Context. The model mirrors the C runtime shipped alongside the
// generated code, so allocator behavior can be exercised without a target
// toolchain.
package runtime

import (
	"fmt"

	"github.com/xplshn/pymcu/pkg/util"
)

// Stats is a point-in-time snapshot of both allocators. The byte counters
// span both disciplines; the object counters are heap-only.
type Stats struct {
	ArenaUsed     int64
	ArenaHigh     int64
	ArenaCapacity int64
	TotalBytes    int64
	LiveBytes     int64
	PeakBytes     int64
	LiveObjects   int64
	TotalAllocs   int64
	TotalFrees    int64
	FailedAllocs  int64
}

// byteStats accumulates allocation bytes. A Context hands the same byteStats
// to its arena and heap so the peak reflects combined pressure, matching the
// C runtime's counters.
type byteStats struct {
	total int64
	live  int64
	peak  int64
}

func (b *byteStats) alloc(n int64) {
	b.total += n
	b.live += n
	if b.live > b.peak {
		b.peak = b.live
	}
}

func (b *byteStats) free(n int64) { b.live -= n }

// Checkpoint marks an arena cursor position. Restoring to a checkpoint frees
// everything allocated after it in one step.
type Checkpoint int64

// allocAlign matches the C runtime's allocation granularity.
const allocAlign = 8

// Arena is a fixed-capacity bump allocator.
type Arena struct {
	buf    []byte
	cursor int64
	high   int64
	failed int64
	bytes  *byteStats
}

func NewArena(capacity int64) *Arena {
	return &Arena{buf: make([]byte, capacity), bytes: &byteStats{}}
}

// Alloc returns n zeroed bytes or an allocation-failure error when the
// arena is exhausted. n must be positive.
func (a *Arena) Alloc(n int64) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("arena: allocation size %d out of range", n)
	}
	size := util.AlignUp(n, allocAlign)
	if a.cursor+size > int64(len(a.buf)) {
		a.failed++
		return nil, &AllocationFailure{Requested: n, Used: a.cursor, Capacity: int64(len(a.buf))}
	}
	mem := a.buf[a.cursor : a.cursor+n]
	for i := range mem {
		mem[i] = 0
	}
	a.cursor += size
	if a.cursor > a.high {
		a.high = a.cursor
	}
	a.bytes.alloc(size)
	return mem, nil
}

func (a *Arena) Checkpoint() Checkpoint { return Checkpoint(a.cursor) }

// Restore rewinds the cursor to a previous checkpoint. Restoring forward, or
// to a mark that was never handed out, is a bug in the generated code and
// panics.
func (a *Arena) Restore(cp Checkpoint) {
	mark := int64(cp)
	if mark < 0 || mark > a.cursor {
		panic(fmt.Sprintf("arena: restore to %d with cursor at %d", mark, a.cursor))
	}
	a.bytes.free(a.cursor - mark)
	a.cursor = mark
}

func (a *Arena) Reset() {
	a.bytes.free(a.cursor)
	a.cursor = 0
}

func (a *Arena) Used() int64 { return a.cursor }

func (a *Arena) High() int64 { return a.high }

func (a *Arena) Capacity() int64 { return int64(len(a.buf)) }

// AllocationFailure reports arena exhaustion. On hardware targets the C
// runtime traps instead; the model always surfaces the error.
type AllocationFailure struct {
	Requested int64
	Used      int64
	Capacity  int64
}

func (e *AllocationFailure) Error() string {
	return fmt.Sprintf("arena: %d byte allocation with %d of %d bytes used", e.Requested, e.Used, e.Capacity)
}

// Handle identifies one refcounted object. The zero Handle is never valid.
type Handle int64

type object struct {
	refcount int64
	size     int64
	mem      []byte
}

// Heap is the reference-counted allocator. Objects start with refcount 1 and
// are freed when the count reaches zero.
type Heap struct {
	objects map[Handle]*object
	next    Handle
	allocs  int64
	frees   int64
	bytes   *byteStats
}

func NewHeap() *Heap {
	return &Heap{objects: make(map[Handle]*object), next: 1, bytes: &byteStats{}}
}

func (h *Heap) Alloc(n int64) (Handle, []byte) {
	handle := h.next
	h.next++
	obj := &object{refcount: 1, size: util.AlignUp(n, allocAlign), mem: make([]byte, n)}
	h.objects[handle] = obj
	h.allocs++
	h.bytes.alloc(obj.size)
	return handle, obj.mem
}

func (h *Heap) lookup(handle Handle, op string) *object {
	obj := h.objects[handle]
	if obj == nil {
		panic(fmt.Sprintf("heap: %s of dead handle %d", op, handle))
	}
	return obj
}

func (h *Heap) Retain(handle Handle) {
	h.lookup(handle, "retain").refcount++
}

// Release drops one reference and frees the object when none remain.
// Releasing an already-freed handle panics; the generated retain/release
// pairing makes that unreachable in correct output.
func (h *Heap) Release(handle Handle) {
	obj := h.lookup(handle, "release")
	obj.refcount--
	if obj.refcount == 0 {
		delete(h.objects, handle)
		h.frees++
		h.bytes.free(obj.size)
	}
}

func (h *Heap) Refcount(handle Handle) int64 {
	return h.lookup(handle, "refcount query").refcount
}

func (h *Heap) Bytes(handle Handle) []byte {
	return h.lookup(handle, "access").mem
}

func (h *Heap) Live() int64 { return int64(len(h.objects)) }

// Context owns both allocators. Generated programs have exactly one; the
// model allows many so tests stay independent.
type Context struct {
	Arena *Arena
	Heap  *Heap
	bytes *byteStats
}

func NewContext(arenaCapacity int64) *Context {
	bytes := &byteStats{}
	arena := NewArena(arenaCapacity)
	arena.bytes = bytes
	heap := NewHeap()
	heap.bytes = bytes
	return &Context{Arena: arena, Heap: heap, bytes: bytes}
}

func (c *Context) Snapshot() Stats {
	return Stats{
		ArenaUsed:     c.Arena.Used(),
		ArenaHigh:     c.Arena.High(),
		ArenaCapacity: c.Arena.Capacity(),
		TotalBytes:    c.bytes.total,
		LiveBytes:     c.bytes.live,
		PeakBytes:     c.bytes.peak,
		LiveObjects:   c.Heap.Live(),
		TotalAllocs:   c.Heap.allocs,
		TotalFrees:    c.Heap.frees,
		FailedAllocs:  c.Arena.failed,
	}
}
