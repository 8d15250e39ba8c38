// Package fpenv switches the calling thread's floating-point environment to
// flush denormal results and inputs to zero for the duration of a scope.
//
// The floating-point control state belongs to the OS thread, so Acquire pins
// the calling goroutine to its thread until the returned release func runs:
//
//	release := fpenv.Acquire()
//	defer release()
//
// Only amd64 exposes the control register (see Hardware). Elsewhere the mode
// is emulated by a single process-wide count of open scopes: Current reports
// the mode as enabled on every goroutine while any scope is open, and no
// arithmetic is affected.
package fpenv

import "runtime"

// Mode describes the denormal handling of the current thread.
type Mode struct {
	// Denormal results are flushed to zero.
	FlushToZero bool

	// Denormal inputs are treated as zero.
	DenormalsAreZero bool
}

// Acquire enables flush-to-zero and denormals-are-zero on the calling
// thread. The returned func restores the previous mode and unpins the
// goroutine; it must be called exactly once, on the same goroutine.
func Acquire() (release func()) {
	runtime.LockOSThread()
	prev := readControl()
	writeControl(prev | ftzBit | dazBit)

	return func() {
		writeControl(prev)
		runtime.UnlockOSThread()
	}
}

// Current reports the mode of the calling thread.
func Current() Mode {
	csr := readControl()
	return Mode{
		FlushToZero:      csr&ftzBit != 0,
		DenormalsAreZero: csr&dazBit != 0,
	}
}

// Hardware returns true if the mode is applied to the CPU control register
// rather than tracked in software.
func Hardware() bool {
	return hardwareControl
}
