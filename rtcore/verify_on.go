//go:build rtcoredebug

package rtcore

// Verifying build: queries check the commit state, alignment and mask
// contents.
const verifyBuild = true
