package engine

import "sync/atomic"

// MemoryMonitor is consulted before every tracked allocation (positive
// delta) and after every tracked release (negative delta). Returning false
// on growth vetoes the allocation; the result of a release notification is
// ignored.
type MemoryMonitor interface {
	Notify(bytes int64, post bool) bool
}

// MemoryMonitorFunc adapts a function to the MemoryMonitor interface.
type MemoryMonitorFunc func(bytes int64, post bool) bool

func (f MemoryMonitorFunc) Notify(bytes int64, post bool) bool {
	return f(bytes, post)
}

// Allocator wraps every tracked allocation of a scene with monitor
// notifications and keeps a running total of tracked bytes.
type Allocator struct {
	monitor MemoryMonitor
	used    atomic.Int64
}

// NewAllocator creates an allocator reporting to m. A nil monitor never vetoes.
func NewAllocator(m MemoryMonitor) *Allocator {
	return &Allocator{monitor: m}
}

// Grow asks the monitor for permission to allocate bytes more. It returns
// ErrOutOfMemory if the monitor refuses.
func (a *Allocator) Grow(bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	if a.monitor != nil && !a.monitor.Notify(bytes, false) {
		return ErrOutOfMemory
	}
	a.used.Add(bytes)
	return nil
}

// Release reports that bytes were freed. It never fails.
func (a *Allocator) Release(bytes int64) {
	if bytes <= 0 {
		return
	}
	a.used.Add(-bytes)
	if a.monitor != nil {
		_ = a.monitor.Notify(-bytes, true)
	}
}

// Used returns the number of tracked bytes currently held.
func (a *Allocator) Used() int64 {
	return a.used.Load()
}
