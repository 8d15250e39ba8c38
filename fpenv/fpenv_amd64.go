package fpenv

// MXCSR control bits.
const (
	dazBit uint32 = 1 << 6
	ftzBit uint32 = 1 << 15
)

const hardwareControl = true

// Implemented in fpenv_amd64.s.
func getcsr() uint32
func setcsr(csr uint32)

func readControl() uint32 {
	return getcsr()
}

func writeControl(csr uint32) {
	setcsr(csr)
}
