package engine

import (
	"testing"
	"unsafe"

	"github.com/achilleasa/rtcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignedAllocations(t *testing.T) {
	for i := 0; i < 32; i++ {
		r := NewRay(types.Vec3{}, types.Vec3{0, 0, 1}, 0, 1)
		require.Zero(t, uintptr(unsafe.Pointer(r))%W1.Alignment())
		assert.Equal(t, ^uint32(0), r.Mask)
		assert.False(t, r.Hit())

		for _, w := range Widths[1:] {
			p := NewRayPacket(w)
			require.True(t, p.Complete())
			require.Zero(t, p.Base()%w.Alignment(), "packet of width %d", w)

			valid := NewValidMask(w)
			require.Len(t, valid, int(w))
			require.Zero(t, uintptr(unsafe.Pointer(&valid[0]))%w.Alignment())
			for _, lane := range valid {
				assert.Equal(t, int32(-1), lane)
			}
		}
	}
}

func TestWidthProperties(t *testing.T) {
	type spec struct {
		w     Width
		valid bool
		align uintptr
	}
	specs := []spec{
		{W1, true, 16},
		{W4, true, 16},
		{W8, true, 32},
		{W16, true, 64},
		{Width(2), false, 8},
	}
	for index, s := range specs {
		if s.w.Valid() != s.valid {
			t.Fatalf("[spec %d] expected Valid() to be %t", index, s.valid)
		}
		if s.w.Alignment() != s.align {
			t.Fatalf("[spec %d] expected alignment %d; got %d", index, s.align, s.w.Alignment())
		}
	}
}

func TestPacketLanesAreIndependent(t *testing.T) {
	p := NewRayPacket(W4)
	r := Ray{Org: types.Vec3{1, 2, 3}, Dir: types.Vec3{0, 0, 1}, TFar: 5, Mask: 7, GeomID: 3}
	p.SetRay(2, r)

	assert.Equal(t, r, p.Ray(2))
	for _, lane := range []int{0, 1, 3} {
		assert.Equal(t, InvalidGeometryID, p.GeomID[lane])
		assert.Equal(t, float32(0), p.OrgX[lane])
	}

	cp := p.Clone()
	cp.TFar[2] = 1
	assert.Equal(t, float32(5), p.TFar[2])
}
