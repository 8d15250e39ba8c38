//go:build !rtcoredebug

package rtcore

const verifyBuild = false
