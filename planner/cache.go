/*
cache.go - Memoizing get-or-create layer over BuildWindow

PURPOSE:
  Window construction is a pure function of (day, timezone, rolloverHour),
  so caching is an optimization, never a correctness requirement. Even a
  duplicate computation under a race is harmless: both goroutines derive
  identical values.

VARIANTS:
  NewWindowCache:        Unbounded (the base design)
  NewBoundedWindowCache: LRU with a fixed capacity, for deployments that
                         iterate many (day, zone) combinations

SEE ALSO:
  - window.go: The underlying pure computation
*/
package planner

import (
	"container/list"
	"sync"
)

// windowKey is a proper tuple key, not a formatted string.
type windowKey struct {
	Day          DayIndex
	Zone         string
	RolloverHour int
}

// WindowCache memoizes DayWindow construction. Implementations are safe
// for concurrent use.
type WindowCache interface {
	// GetOrCreate returns the window for (day, cfg), building it on first
	// request.
	GetOrCreate(day DayIndex, cfg Config) DayWindow

	// Clear drops all cached windows. Exposed for testing.
	Clear()

	// Size returns the number of cached windows. Exposed for testing.
	Size() int
}

// =============================================================================
// UNBOUNDED CACHE
// =============================================================================

type windowCache struct {
	mu      sync.RWMutex
	windows map[windowKey]DayWindow
}

// NewWindowCache returns the unbounded variant. Callers needing memory
// bounds use NewBoundedWindowCache instead.
func NewWindowCache() WindowCache {
	return &windowCache{windows: make(map[windowKey]DayWindow)}
}

func (c *windowCache) GetOrCreate(day DayIndex, cfg Config) DayWindow {
	k := windowKey{Day: day, Zone: cfg.Zone(), RolloverHour: cfg.RolloverHour()}

	c.mu.RLock()
	w, ok := c.windows[k]
	c.mu.RUnlock()
	if ok {
		return w
	}

	w = BuildWindow(day, cfg)

	c.mu.Lock()
	// A concurrent builder may have won the race; both values are
	// identical, so last write wins is fine.
	c.windows[k] = w
	c.mu.Unlock()
	return w
}

func (c *windowCache) Clear() {
	c.mu.Lock()
	c.windows = make(map[windowKey]DayWindow)
	c.mu.Unlock()
}

func (c *windowCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.windows)
}

// =============================================================================
// BOUNDED LRU CACHE
// =============================================================================

type boundedWindowCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used, values are windowKey
	entries  map[windowKey]*boundedEntry
}

type boundedEntry struct {
	window  DayWindow
	element *list.Element
}

// NewBoundedWindowCache returns an LRU variant holding at most capacity
// windows. A capacity below 1 is treated as 1.
func NewBoundedWindowCache(capacity int) WindowCache {
	if capacity < 1 {
		capacity = 1
	}
	return &boundedWindowCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[windowKey]*boundedEntry),
	}
}

func (c *boundedWindowCache) GetOrCreate(day DayIndex, cfg Config) DayWindow {
	k := windowKey{Day: day, Zone: cfg.Zone(), RolloverHour: cfg.RolloverHour()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[k]; ok {
		c.order.MoveToFront(e.element)
		return e.window
	}

	w := BuildWindow(day, cfg)
	c.entries[k] = &boundedEntry{window: w, element: c.order.PushFront(k)}

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(windowKey))
	}
	return w
}

func (c *boundedWindowCache) Clear() {
	c.mu.Lock()
	c.order = list.New()
	c.entries = make(map[windowKey]*boundedEntry)
	c.mu.Unlock()
}

func (c *boundedWindowCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
