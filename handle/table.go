// Package handle implements generation-checked handles into typed arenas.
//
// A Handle never points at memory directly. Resolving it looks up the slot
// it names and compares generations, so a handle kept after its object was
// removed resolves to "not found" instead of reaching a recycled object.
package handle

import (
	"fmt"
	"sync"
)

// Kind tags a handle with the arena it belongs to so that a handle of one
// kind can never resolve inside an arena of another kind.
type Kind uint8

const (
	NoKind Kind = iota
	DeviceKind
	SceneKind
)

func (k Kind) String() string {
	switch k {
	case DeviceKind:
		return "device"
	case SceneKind:
		return "scene"
	}
	return "invalid"
}

// Handle is an opaque, comparable reference into a Table. The zero value is
// the null handle.
type Handle struct {
	kind  Kind
	index uint32
	gen   uint32
}

// IsNil returns true for the zero handle.
func (h Handle) IsNil() bool {
	return h.gen == 0
}

// Kind returns the arena kind this handle was issued by.
func (h Handle) Kind() Kind {
	return h.kind
}

func (h Handle) String() string {
	if h.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d.%d", h.kind, h.index, h.gen)
}

type slot[T any] struct {
	gen   uint32
	live  bool
	value T
}

// Table is an arena of values addressed by Handle. Freed slots are recycled
// with a bumped generation. All methods are safe for concurrent use.
type Table[T any] struct {
	kind Kind

	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

// NewTable creates an empty arena that issues handles of the given kind.
func NewTable[T any](kind Kind) *Table[T] {
	return &Table[T]{kind: kind}
}

// Insert stores v and returns a fresh handle for it.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}

	s := &t.slots[index]
	s.gen++
	if s.gen == 0 {
		// Generation wrapped; skip the null generation.
		s.gen = 1
	}
	s.live = true
	s.value = v
	t.live++

	return Handle{kind: t.kind, index: index, gen: s.gen}
}

// Get resolves h. The second result is false for null, stale, or foreign handles.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Remove invalidates h and returns the value it referenced.
func (t *Table[T]) Remove(h Handle) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, ok := t.lookup(h)
	if !ok {
		return zero, false
	}

	v := s.value
	s.value = zero
	s.live = false
	t.free = append(t.free, h.index)
	t.live--
	return v, true
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every live entry until fn returns false. The table is
// read-locked for the duration of the walk.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for index := range t.slots {
		s := &t.slots[index]
		if !s.live {
			continue
		}
		if !fn(Handle{kind: t.kind, index: uint32(index), gen: s.gen}, s.value) {
			return
		}
	}
}

func (t *Table[T]) lookup(h Handle) (*slot[T], bool) {
	if h.IsNil() || h.kind != t.kind || int(h.index) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}
