//go:build !amd64

package fpenv

import "sync/atomic"

const (
	dazBit uint32 = 1 << 0
	ftzBit uint32 = 1 << 1
)

const hardwareControl = false

// Without access to the control register the mode is tracked in software as
// the number of open scopes; it reads as enabled while any scope is open.
var openScopes atomic.Int32

func readControl() uint32 {
	if openScopes.Load() > 0 {
		return ftzBit | dazBit
	}
	return 0
}

func writeControl(csr uint32) {
	if csr&ftzBit != 0 {
		openScopes.Add(1)
		return
	}
	openScopes.Add(-1)
}
