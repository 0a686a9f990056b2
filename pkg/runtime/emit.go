package runtime

import "fmt"

// HeaderName and SourceName are the file names the driver writes next to the
// generated translation unit.
const (
	HeaderName = "mcu_runtime.h"
	SourceName = "mcu_runtime.c"
)

// HeaderSource returns the C runtime header. defaultArenaSize seeds the
// MCU_ARENA_SIZE fallback; builds may still override it with -D.
func HeaderSource(defaultArenaSize int64) string {
	return fmt.Sprintf(headerTemplate, defaultArenaSize)
}

// CSource returns the C runtime implementation.
func CSource() string { return sourceText }

const headerTemplate = `#ifndef MCU_RUNTIME_H
#define MCU_RUNTIME_H

#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>

#ifndef MCU_ARENA_SIZE
#define MCU_ARENA_SIZE %d
#endif

/* The refcounted heap is its own pool, never carved out of the arena, so a
 * region restore can never reclaim a live object. */
#ifndef MCU_HEAP_SIZE
#define MCU_HEAP_SIZE MCU_ARENA_SIZE
#endif

typedef struct {
    size_t   arena_used;
    size_t   arena_high;
    size_t   arena_capacity;
    size_t   total_bytes;
    size_t   live_bytes;
    size_t   peak_bytes;
    uint32_t live_objects;
    uint32_t total_allocs;
    uint32_t total_frees;
    uint32_t failed_allocs;
} mcu_stats_t;

void   mcu_arena_init(void);
void  *mcu_arena_alloc(size_t n);
size_t mcu_arena_checkpoint(void);
void   mcu_arena_restore(size_t mark);
void   mcu_arena_reset(void);

void     *mcu_gc_alloc(size_t n);
void     *mcu_gc_retain(void *p);
void      mcu_gc_release(void *p);
uint32_t  mcu_gc_refcount(const void *p);

void mcu_runtime_stats(mcu_stats_t *out);

/* Scope helpers for hand-written C spliced into generated functions. The
 * compiler emits explicit named marks instead, so early returns can unwind
 * several regions at once. */
#define MCU_SCOPE_START() size_t __mcu_scope_mark = mcu_arena_checkpoint()
#define MCU_SCOPE_END()   mcu_arena_restore(__mcu_scope_mark)

#endif /* MCU_RUNTIME_H */
`

const sourceText = `#include "mcu_runtime.h"

#ifndef TARGETS_HARDWARE
#include <stdio.h>
#include <stdlib.h>
#endif

#define MCU_ALIGN 8u
#define MCU_ALIGN_UP(n) (((n) + (MCU_ALIGN - 1u)) & ~(size_t)(MCU_ALIGN - 1u))

static uint8_t mcu_arena[MCU_ARENA_SIZE];
static size_t  mcu_arena_cursor;
static size_t  mcu_arena_high;

static uint8_t mcu_heap[MCU_HEAP_SIZE];
static size_t  mcu_heap_cursor;

static uint32_t mcu_live_objects;
static uint32_t mcu_total_allocs;
static uint32_t mcu_total_frees;
static uint32_t mcu_failed_allocs;

/* Byte counters span both disciplines. */
static size_t mcu_total_bytes;
static size_t mcu_live_bytes;
static size_t mcu_peak_bytes;

/* Integrity violations are unrecoverable. Hardware targets park the core so
 * a debugger can inspect state; the simulator reports and aborts. */
static void mcu_fatal(const char *what)
{
#ifdef TARGETS_HARDWARE
    (void)what;
    for (;;) {
    }
#else
    fprintf(stderr, "mcu runtime: %s\n", what);
    abort();
#endif
}

/* Exhaustion is recoverable on the simulator: report it and let the
 * allocator hand NULL to the caller's check. Hardware parks. */
static void mcu_exhausted(const char *what)
{
#ifdef TARGETS_HARDWARE
    (void)what;
    for (;;) {
    }
#else
    fprintf(stderr, "mcu runtime: %s\n", what);
#endif
}

static void mcu_count_alloc(size_t size)
{
    mcu_total_bytes += size;
    mcu_live_bytes += size;
    if (mcu_live_bytes > mcu_peak_bytes) {
        mcu_peak_bytes = mcu_live_bytes;
    }
}

void mcu_arena_init(void)
{
    mcu_arena_cursor = 0;
    mcu_arena_high = 0;
}

void *mcu_arena_alloc(size_t n)
{
    size_t size = MCU_ALIGN_UP(n);
    uint8_t *p;
    size_t i;

    if (size > MCU_ARENA_SIZE - mcu_arena_cursor) {
        mcu_failed_allocs++;
        mcu_exhausted("arena exhausted");
        return 0;
    }
    p = &mcu_arena[mcu_arena_cursor];
    mcu_arena_cursor += size;
    if (mcu_arena_cursor > mcu_arena_high) {
        mcu_arena_high = mcu_arena_cursor;
    }
    mcu_count_alloc(size);
    for (i = 0; i < n; i++) {
        p[i] = 0;
    }
    return p;
}

size_t mcu_arena_checkpoint(void)
{
    return mcu_arena_cursor;
}

void mcu_arena_restore(size_t mark)
{
    if (mark > mcu_arena_cursor) {
        mcu_fatal("arena restore past cursor");
        return;
    }
    mcu_live_bytes -= mcu_arena_cursor - mark;
    mcu_arena_cursor = mark;
}

void mcu_arena_reset(void)
{
    mcu_live_bytes -= mcu_arena_cursor;
    mcu_arena_cursor = 0;
}

/* Refcounted objects carry an intrusive header just before the payload.
 * Dead objects are chained into a first-fit free list and their memory is
 * handed out again, exactly once per death. */
typedef struct mcu_obj {
    uint32_t        refcount;
    uint32_t        size; /* header + payload, aligned */
    struct mcu_obj *next; /* free-list link while dead */
} mcu_obj_t;

static mcu_obj_t *mcu_free_list;

static mcu_obj_t *mcu_obj_header(void *p)
{
    return (mcu_obj_t *)((uint8_t *)p - sizeof(mcu_obj_t));
}

void *mcu_gc_alloc(size_t n)
{
    size_t need = MCU_ALIGN_UP(sizeof(mcu_obj_t) + n);
    mcu_obj_t *obj = 0;
    mcu_obj_t **link;
    uint8_t *payload;
    size_t i;

    for (link = &mcu_free_list; *link; link = &(*link)->next) {
        if ((*link)->size >= need) {
            obj = *link;
            *link = obj->next;
            break;
        }
    }
    if (!obj) {
        if (need > MCU_HEAP_SIZE - mcu_heap_cursor) {
            mcu_failed_allocs++;
            mcu_exhausted("heap exhausted");
            return 0;
        }
        obj = (mcu_obj_t *)&mcu_heap[mcu_heap_cursor];
        mcu_heap_cursor += need;
        obj->size = (uint32_t)need;
    }
    obj->refcount = 1;
    obj->next = 0;
    mcu_live_objects++;
    mcu_total_allocs++;
    mcu_count_alloc(obj->size);

    payload = (uint8_t *)(obj + 1);
    for (i = 0; i < n; i++) {
        payload[i] = 0;
    }
    return payload;
}

void *mcu_gc_retain(void *p)
{
    if (p) {
        mcu_obj_header(p)->refcount++;
    }
    return p;
}

void mcu_gc_release(void *p)
{
    mcu_obj_t *obj;

    if (!p) {
        return;
    }
    obj = mcu_obj_header(p);
    if (obj->refcount == 0) {
        mcu_fatal("release of dead object");
        return;
    }
    obj->refcount--;
    if (obj->refcount == 0) {
        mcu_live_objects--;
        mcu_total_frees++;
        mcu_live_bytes -= obj->size;
        obj->next = mcu_free_list;
        mcu_free_list = obj;
    }
}

uint32_t mcu_gc_refcount(const void *p)
{
    if (!p) {
        return 0;
    }
    return ((const mcu_obj_t *)p)[-1].refcount;
}

void mcu_runtime_stats(mcu_stats_t *out)
{
    out->arena_used = mcu_arena_cursor;
    out->arena_high = mcu_arena_high;
    out->arena_capacity = MCU_ARENA_SIZE;
    out->total_bytes = mcu_total_bytes;
    out->live_bytes = mcu_live_bytes;
    out->peak_bytes = mcu_peak_bytes;
    out->live_objects = mcu_live_objects;
    out->total_allocs = mcu_total_allocs;
    out->total_frees = mcu_total_frees;
    out->failed_allocs = mcu_failed_allocs;
}
`
