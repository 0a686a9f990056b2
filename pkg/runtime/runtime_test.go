package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocAlignsAndZeroes(t *testing.T) {
	a := NewArena(64)

	mem, err := a.Alloc(5)
	require.NoError(t, err)
	assert.Len(t, mem, 5)
	for _, b := range mem {
		assert.Zero(t, b)
	}
	assert.Equal(t, int64(8), a.Used())

	_, err = a.Alloc(3)
	require.NoError(t, err)
	assert.Equal(t, int64(16), a.Used())
	assert.Equal(t, int64(16), a.High())
}

func TestArenaCheckpointRestore(t *testing.T) {
	a := NewArena(128)
	_, err := a.Alloc(16)
	require.NoError(t, err)

	cp := a.Checkpoint()
	_, err = a.Alloc(32)
	require.NoError(t, err)
	assert.Equal(t, int64(48), a.Used())

	a.Restore(cp)
	assert.Equal(t, int64(16), a.Used())
	// High-water mark survives the restore.
	assert.Equal(t, int64(48), a.High())
}

func TestArenaRestoreForwardPanics(t *testing.T) {
	a := NewArena(64)
	_, err := a.Alloc(16)
	require.NoError(t, err)
	cp := a.Checkpoint()
	a.Reset()

	assert.Panics(t, func() { a.Restore(cp) })
}

func TestArenaExhaustion(t *testing.T) {
	a := NewArena(32)
	_, err := a.Alloc(24)
	require.NoError(t, err)

	_, err = a.Alloc(16)
	var fail *AllocationFailure
	require.ErrorAs(t, err, &fail)
	assert.Equal(t, int64(16), fail.Requested)
	assert.Equal(t, int64(32), fail.Capacity)

	// A failed allocation leaves the cursor untouched.
	assert.Equal(t, int64(24), a.Used())
	_, err = a.Alloc(8)
	assert.NoError(t, err)
}

func TestHeapRetainRelease(t *testing.T) {
	h := NewHeap()
	handle, mem := h.Alloc(16)
	assert.Len(t, mem, 16)
	assert.Equal(t, int64(1), h.Refcount(handle))

	h.Retain(handle)
	assert.Equal(t, int64(2), h.Refcount(handle))

	h.Release(handle)
	assert.Equal(t, int64(1), h.Refcount(handle))
	assert.Equal(t, int64(1), h.Live())

	h.Release(handle)
	assert.Equal(t, int64(0), h.Live())
	assert.Panics(t, func() { h.Release(handle) })
}

func TestContextSnapshot(t *testing.T) {
	ctx := NewContext(256)
	_, err := ctx.Arena.Alloc(40)
	require.NoError(t, err)

	h1, _ := ctx.Heap.Alloc(8)
	h2, _ := ctx.Heap.Alloc(8)
	ctx.Heap.Release(h1)
	_ = h2

	stats := ctx.Snapshot()
	assert.Equal(t, int64(40), stats.ArenaUsed)
	assert.Equal(t, int64(256), stats.ArenaCapacity)
	assert.Equal(t, int64(1), stats.LiveObjects)
	assert.Equal(t, int64(2), stats.TotalAllocs)
	assert.Equal(t, int64(1), stats.TotalFrees)
	assert.Equal(t, int64(0), stats.FailedAllocs)

	// Byte counters cover both disciplines: 40 arena + 8 + 8 heap, with one
	// heap object already released.
	assert.Equal(t, int64(56), stats.TotalBytes)
	assert.Equal(t, int64(48), stats.LiveBytes)
	assert.Equal(t, int64(56), stats.PeakBytes)
}

func TestByteCountersTrackArenaRestore(t *testing.T) {
	ctx := NewContext(128)
	cp := ctx.Arena.Checkpoint()
	_, err := ctx.Arena.Alloc(32)
	require.NoError(t, err)
	h, _ := ctx.Heap.Alloc(16)

	assert.Equal(t, int64(48), ctx.Snapshot().LiveBytes)

	ctx.Arena.Restore(cp)
	stats := ctx.Snapshot()
	assert.Equal(t, int64(16), stats.LiveBytes)
	// Rewinding the arena never lowers the totals or the peak.
	assert.Equal(t, int64(48), stats.TotalBytes)
	assert.Equal(t, int64(48), stats.PeakBytes)

	ctx.Heap.Release(h)
	assert.Equal(t, int64(0), ctx.Snapshot().LiveBytes)
}

func TestHeaderSourceCarriesContract(t *testing.T) {
	header := HeaderSource(16384)
	for _, decl := range []string{
		"#define MCU_ARENA_SIZE 16384",
		"#define MCU_HEAP_SIZE MCU_ARENA_SIZE",
		"size_t   total_bytes;",
		"size_t   live_bytes;",
		"size_t   peak_bytes;",
		"void  *mcu_arena_alloc(size_t n);",
		"size_t mcu_arena_checkpoint(void);",
		"void   mcu_arena_restore(size_t mark);",
		"void     *mcu_gc_alloc(size_t n);",
		"void      mcu_gc_release(void *p);",
		"mcu_stats_t",
		"MCU_SCOPE_START",
		"MCU_SCOPE_END",
	} {
		assert.True(t, strings.Contains(header, decl), "header is missing %q", decl)
	}
}

func TestCSourceBranchesOnHardwareMacro(t *testing.T) {
	src := CSource()
	assert.Contains(t, src, "#ifdef TARGETS_HARDWARE")
	assert.Contains(t, src, `#include "mcu_runtime.h"`)
	assert.Contains(t, src, "abort();")
}

func TestCSourceKeepsDisciplinesDisjoint(t *testing.T) {
	src := CSource()

	// The refcounted heap draws from its own pool and recycles dead objects
	// through a free list; it never suballocates from the arena.
	assert.Contains(t, src, "static uint8_t mcu_heap[MCU_HEAP_SIZE];")
	assert.Contains(t, src, "mcu_free_list")
	assert.NotContains(t, src, "mcu_arena_alloc(sizeof(mcu_obj_t)")

	// Exhaustion reports and returns NULL on the simulator instead of
	// aborting; only integrity violations stay fatal.
	assert.Contains(t, src, "mcu_exhausted(\"arena exhausted\");")
	assert.Contains(t, src, "mcu_exhausted(\"heap exhausted\");")
	assert.Contains(t, src, "mcu_fatal(\"release of dead object\");")
}
