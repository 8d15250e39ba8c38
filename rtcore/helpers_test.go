package rtcore

import (
	"testing"

	"github.com/achilleasa/rtcore/types"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T, cfg string) Device {
	t.Helper()

	th := NewThread()
	dev := th.NewDevice(cfg)
	require.Equal(t, NoError, th.GetError(), "NewDevice(%q)", cfg)
	t.Cleanup(func() { th.DeleteDevice(dev) })
	return dev
}

func newTestScene(t *testing.T, dev Device, flags SceneFlags, aflags AlgorithmFlags) Scene {
	t.Helper()

	th := NewThread()
	s := th.NewScene(dev, flags, aflags)
	require.Equal(t, NoError, th.GetError())
	t.Cleanup(func() { th.DeleteScene(s) })
	return s
}

// Add a triangle in the plane z=offset.z spanning one unit along x and y.
func addTriangle(t *testing.T, th *Thread, s Scene, offset types.Vec3) GeomID {
	t.Helper()

	id := th.NewTriangleMesh(s, GeometryStatic, 1, 3, 1)
	require.NotEqual(t, InvalidGeometryID, id, "NewTriangleMesh: %v", th.Err())

	verts := Float32s(th.MapBuffer(s, id, VertexBuffer0))
	require.Len(t, verts, 12)
	copy(verts, []float32{
		offset[0], offset[1], offset[2], 0,
		offset[0] + 1, offset[1], offset[2], 0,
		offset[0], offset[1] + 1, offset[2], 0,
	})
	th.UnmapBuffer(s, id, VertexBuffer0)

	copy(Uint32s(th.MapBuffer(s, id, IndexBuffer)), []uint32{0, 1, 2})
	th.UnmapBuffer(s, id, IndexBuffer)

	require.Equal(t, NoError, th.GetError())
	return id
}

func downRay(x, y float32) *Ray {
	return NewRay(types.Vec3{x, y, 1}, types.Vec3{0, 0, -1}, 0, 100)
}

// Fill every lane of a packet with a downward ray; lane i is offset along x.
func downPacket(w Width, x0, y, step float32) *RayPacket {
	p := NewRayPacket(w)
	for lane := 0; lane < int(w); lane++ {
		r := downRay(x0+float32(lane)*step, y)
		p.SetRay(lane, *r)
	}
	return p
}

func requirePacketWidth(t *testing.T, dev Device, w Width) {
	t.Helper()

	if got := NewThread().MaxPacketWidth(dev); got < w {
		t.Skipf("host serves packets up to width %d", got)
	}
}
