package rtcore

import (
	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/types"
)

type (
	Ray       = engine.Ray
	RayPacket = engine.RayPacket
	Width     = engine.Width

	// GeomID identifies a geometry within its scene.
	GeomID = uint32
)

const (
	W1  = engine.W1
	W4  = engine.W4
	W8  = engine.W8
	W16 = engine.W16

	// InvalidGeometryID is returned by failed geometry calls and marks
	// lanes without a hit.
	InvalidGeometryID GeomID = engine.InvalidGeometryID
)

// NewRay allocates a ray that satisfies the single ray alignment.
func NewRay(org, dir types.Vec3, tnear, tfar float32) *Ray {
	return engine.NewRay(org, dir, tnear, tfar)
}

// NewRayPacket allocates a packet that satisfies the alignment of its width.
func NewRayPacket(w Width) *RayPacket {
	return engine.NewRayPacket(w)
}

// NewValidMask allocates an aligned validity mask with every lane active.
func NewValidMask(w Width) []int32 {
	return engine.NewValidMask(w)
}

// Float32s views a mapped buffer as float32 values.
func Float32s(b []byte) []float32 {
	return engine.Float32s(b)
}

// Uint32s views a mapped buffer as uint32 values.
func Uint32s(b []byte) []uint32 {
	return engine.Uint32s(b)
}

// AsBytes returns the bytes backing a slice, for use with SetBuffer.
func AsBytes[T float32 | uint32 | int32](s []T) []byte {
	return engine.AsBytes(s)
}
