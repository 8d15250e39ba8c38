package engine

import (
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/achilleasa/rtcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Add a single triangle in the z=0 plane spanning (0,0)-(1,0)-(0,1).
func addTriangle(t *testing.T, s *Scene, offset types.Vec3) uint32 {
	t.Helper()

	id, err := s.NewTriangleMesh(StaticGeometry, 1, 3, 1)
	require.NoError(t, err)
	g, err := s.Geometry(id)
	require.NoError(t, err)

	vb, err := g.MapBuffer(VertexBuffer0)
	require.NoError(t, err)
	verts := Float32s(vb)
	copy(verts, []float32{
		offset[0], offset[1], offset[2], 0,
		offset[0] + 1, offset[1], offset[2], 0,
		offset[0], offset[1] + 1, offset[2], 0,
	})
	require.NoError(t, g.UnmapBuffer(VertexBuffer0))

	ib, err := g.MapBuffer(IndexBuffer)
	require.NoError(t, err)
	copy(Uint32s(ib), []uint32{0, 1, 2})
	require.NoError(t, g.UnmapBuffer(IndexBuffer))
	return id
}

func commit(t *testing.T, s *Scene, numThreads int) {
	t.Helper()

	s.Lock()
	b, err := s.NewBuild(numThreads, nil)
	s.Unlock()
	require.NoError(t, err)
	for id := 0; id < numThreads; id++ {
		require.NoError(t, b.Partition(id))
	}
	require.NoError(t, b.Finalize())
	require.NoError(t, b.Publish())
}

func downRay(x, y float32) *Ray {
	return NewRay(types.Vec3{x, y, 1}, types.Vec3{0, 0, -1}, 0, 100)
}

func TestTriangleHitAndMiss(t *testing.T) {
	s := NewScene(nil, nil)
	id := addTriangle(t, s, types.Vec3{})
	commit(t, s, 1)

	r := downRay(0.25, 0.25)
	require.True(t, s.Accel().Intersect(r, W1))
	assert.Equal(t, id, r.GeomID)
	assert.Equal(t, uint32(0), r.PrimID)
	assert.Equal(t, InvalidGeometryID, r.InstID)
	assert.InDelta(t, 1.0, r.TFar, 1e-6)
	assert.InDelta(t, 0.25, r.U, 1e-6)
	assert.InDelta(t, 0.25, r.V, 1e-6)

	miss := downRay(0.9, 0.9)
	assert.False(t, s.Accel().Intersect(miss, W1))
	assert.False(t, miss.Hit())

	parallel := NewRay(types.Vec3{0.25, 0.25, 1}, types.Vec3{1, 0, 0}, 0, 100)
	assert.False(t, s.Accel().Intersect(parallel, W1))
}

func TestNearestHitAcrossGeometries(t *testing.T) {
	s := NewScene(nil, nil)
	addTriangle(t, s, types.Vec3{0, 0, -2})
	near := addTriangle(t, s, types.Vec3{0, 0, -1})
	addTriangle(t, s, types.Vec3{0, 0, -3})
	commit(t, s, 2)

	r := downRay(0.1, 0.1)
	require.True(t, s.Accel().Intersect(r, W1))
	assert.Equal(t, near, r.GeomID)
	assert.InDelta(t, 2.0, r.TFar, 1e-6)
}

func TestOccludedLeavesRayUntouched(t *testing.T) {
	s := NewScene(nil, nil)
	addTriangle(t, s, types.Vec3{})
	commit(t, s, 1)

	r := downRay(0.25, 0.25)
	before := *r
	assert.True(t, s.Accel().Occluded(r, W1))
	assert.Equal(t, before, *r)

	r.TFar = 0.5
	assert.False(t, s.Accel().Occluded(r, W1), "hit beyond tfar must not occlude")
}

func TestMaskAndDisable(t *testing.T) {
	s := NewScene(nil, nil)
	id := addTriangle(t, s, types.Vec3{})
	g, _ := s.Geometry(id)
	g.SetMask(0x2)
	commit(t, s, 1)

	r := downRay(0.25, 0.25)
	r.Mask = 0x1
	assert.False(t, s.Accel().Intersect(r, W1))
	r.Mask = 0x3
	assert.True(t, s.Accel().Intersect(r, W1))

	g.Disable()
	commit(t, s, 1)
	assert.False(t, s.Accel().Intersect(downRay(0.25, 0.25), W1))
}

func TestIntersectionFilterRejectsHit(t *testing.T) {
	s := NewScene(nil, nil)
	far := addTriangle(t, s, types.Vec3{0, 0, -1})
	near := addTriangle(t, s, types.Vec3{})

	g, _ := s.Geometry(near)
	g.SetUserData("reject")
	calls := 0
	require.NoError(t, g.SetIntersectionFilterFunc(func(userData any, r *Ray) {
		calls++
		assert.Equal(t, "reject", userData)
		r.GeomID = InvalidGeometryID
	}))
	commit(t, s, 1)

	r := downRay(0.25, 0.25)
	require.True(t, s.Accel().Intersect(r, W1))
	assert.Equal(t, 1, calls)
	assert.Equal(t, far, r.GeomID)
	assert.InDelta(t, 2.0, r.TFar, 1e-6)
}

func TestPacketFilterInvokedWithSingleLane(t *testing.T) {
	s := NewScene(nil, nil)
	id := addTriangle(t, s, types.Vec3{})
	g, _ := s.Geometry(id)
	require.NoError(t, g.SetOcclusionFilterFuncN(W8, func(valid []int32, _ any, packet *RayPacket) {
		require.Len(t, valid, 8)
		assert.Equal(t, int32(-1), valid[0])
		for lane := 1; lane < 8; lane++ {
			assert.Equal(t, int32(0), valid[lane])
		}
		packet.GeomID[0] = InvalidGeometryID
	}))
	commit(t, s, 1)

	assert.False(t, s.Accel().Occluded(downRay(0.25, 0.25), W4))
	assert.True(t, s.Accel().Intersect(downRay(0.25, 0.25), W4), "occlusion filter must not affect intersect")
}

func TestUserGeometry(t *testing.T) {
	s := NewScene(nil, nil)
	id, err := s.NewUserGeometry(2)
	require.NoError(t, err)
	g, _ := s.Geometry(id)

	// Two unit boxes reported as planes at z=0 and z=-1.
	require.NoError(t, g.SetBoundsFunc(func(_ any, item int) types.BBox {
		z := -float32(item)
		return types.BBox{{0, 0, z}, {1, 1, z}}
	}))
	require.NoError(t, g.SetIntersectFunc(func(_ any, r *Ray, item int) {
		dist := r.Org[2] + float32(item)
		if dist > r.TNear && dist < r.TFar {
			r.TFar = dist
			r.GeomID = id
			r.PrimID = uint32(item)
		}
	}))
	require.NoError(t, g.SetOccludedFuncN(W4, func(valid []int32, _ any, packet *RayPacket, item int) {
		if valid[0] == -1 {
			packet.GeomID[0] = 0
		}
	}))
	commit(t, s, 1)

	r := downRay(0.5, 0.5)
	require.True(t, s.Accel().Intersect(r, W1))
	assert.Equal(t, uint32(0), r.PrimID)
	assert.InDelta(t, 1.0, r.TFar, 1e-6)

	assert.True(t, s.Accel().Occluded(downRay(0.5, 0.5), W1))
}

func TestInstance(t *testing.T) {
	src := NewScene(nil, nil)
	prim := addTriangle(t, src, types.Vec3{})
	commit(t, src, 1)

	s := NewScene(nil, nil)
	inst, err := s.NewInstance(src)
	require.NoError(t, err)
	g, _ := s.Geometry(inst)
	require.NoError(t, g.SetTransform(types.Translation(types.Vec3{10, 0, 0})))
	commit(t, s, 1)

	assert.False(t, s.Accel().Intersect(downRay(0.25, 0.25), W1))

	r := downRay(10.25, 0.25)
	require.True(t, s.Accel().Intersect(r, W1))
	assert.Equal(t, prim, r.GeomID)
	assert.Equal(t, inst, r.InstID)
	assert.InDelta(t, 1.0, r.TFar, 1e-6)
	assert.True(t, s.Accel().Occluded(downRay(10.25, 0.25), W1))

	_, err = s.NewInstance(s)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMotionBlur(t *testing.T) {
	s := NewScene(nil, nil)
	id, err := s.NewTriangleMesh(DynamicGeometry, 1, 3, 2)
	require.NoError(t, err)

	tri := []float32{0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0}
	moved := []float32{5, 0, 0, 0, 6, 0, 0, 0, 5, 1, 0, 0}
	require.NoError(t, s.SetBuffer(id, VertexBuffer0, AsBytes(tri), 0, 16))
	require.NoError(t, s.SetBuffer(id, VertexBuffer1, AsBytes(moved), 0, 16))
	require.NoError(t, s.SetBuffer(id, IndexBuffer, AsBytes([]uint32{0, 1, 2}), 0, 12))
	commit(t, s, 1)

	r := downRay(0.25, 0.25)
	assert.True(t, s.Accel().Intersect(r, W1))

	r = downRay(0.25, 0.25)
	r.Time = 1
	assert.False(t, s.Accel().Intersect(r, W1))
	r = downRay(5.25, 0.25)
	r.Time = 1
	assert.True(t, s.Accel().Intersect(r, W1))

	_, err = s.NewTriangleMesh(StaticGeometry, 1, 3, 3)
	assert.ErrorIs(t, err, ErrInvalidTimeSteps)
}

func TestBufferMapping(t *testing.T) {
	s := NewScene(nil, nil)
	id, err := s.NewTriangleMesh(StaticGeometry, 1, 3, 1)
	require.NoError(t, err)
	g, _ := s.Geometry(id)

	_, err = g.MapBuffer(VertexBuffer0)
	require.NoError(t, err)
	_, err = g.MapBuffer(VertexBuffer0)
	assert.ErrorIs(t, err, ErrBufferMapped)

	s.Lock()
	_, err = s.NewBuild(1, nil)
	s.Unlock()
	assert.ErrorIs(t, err, ErrMappedAtBuild)

	require.NoError(t, g.UnmapBuffer(VertexBuffer0))
	assert.ErrorIs(t, g.UnmapBuffer(VertexBuffer0), ErrBufferNotMapped)

	_, err = g.MapBuffer(FaceBuffer)
	assert.ErrorIs(t, err, ErrInvalidBuffer)

	assert.ErrorIs(t, s.SetBuffer(id, VertexBuffer0, make([]byte, 64), 2, 16), ErrBufferAlignment)
	assert.ErrorIs(t, s.SetBuffer(id, VertexBuffer0, make([]byte, 16), 0, 16), ErrBufferTooSmall)
	assert.ErrorIs(t, s.SetBuffer(id, HoleBuffer, make([]byte, 16), 0, 4), ErrInvalidBuffer)
}

func TestEraseNeverReusesIDs(t *testing.T) {
	s := NewScene(nil, nil)
	a := addTriangle(t, s, types.Vec3{})
	require.NoError(t, s.DeleteGeometry(a))
	assert.ErrorIs(t, s.DeleteGeometry(a), ErrInvalidGeometry)

	b := addTriangle(t, s, types.Vec3{})
	assert.NotEqual(t, a, b)
	_, err := s.Geometry(a)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.Equal(t, 1, s.Len())
}

func TestInterpolate(t *testing.T) {
	s := NewScene(nil, nil)
	id := addTriangle(t, s, types.Vec3{})
	g, _ := s.Geometry(id)

	var p, dPdu, dPdv [3]float32
	require.NoError(t, g.Interpolate(0, 0.5, 0.25, VertexBuffer0, p[:], dPdu[:], dPdv[:], 3))
	assert.InDeltaSlice(t, []float32{0.5, 0.25, 0}, p[:], 1e-6)
	assert.Equal(t, [3]float32{1, 0, 0}, dPdu)
	assert.Equal(t, [3]float32{0, 1, 0}, dPdv)

	// Two locations, the second one masked off.
	out := make([]float32, 6)
	for i := range out {
		out[i] = -1
	}
	require.NoError(t, g.InterpolateN([]int32{-1, 0}, []uint32{0, 0}, []float32{1, 0}, []float32{0, 1}, 2, VertexBuffer0, out, nil, nil, 3))
	assert.Equal(t, []float32{1, -1, 0, -1, 0, -1}, out)

	assert.ErrorIs(t, g.Interpolate(1, 0, 0, VertexBuffer0, p[:], nil, nil, 3), ErrInvalidArgument)
	assert.ErrorIs(t, g.Interpolate(0, 0, 0, IndexBuffer, p[:], nil, nil, 3), ErrInvalidBuffer)
}

func TestMemoryAccounting(t *testing.T) {
	var deltas []int64
	alloc := NewAllocator(MemoryMonitorFunc(func(bytes int64, _ bool) bool {
		deltas = append(deltas, bytes)
		return true
	}))

	s := NewScene(alloc, nil)
	id := addTriangle(t, s, types.Vec3{})
	afterCreate := alloc.Used()
	assert.Equal(t, int64(12+3*16), afterCreate)

	commit(t, s, 1)
	firstAccel := alloc.Used() - afterCreate
	assert.Positive(t, firstAccel)

	// A second commit replaces the structure; the old one is released.
	commit(t, s, 1)
	assert.Equal(t, afterCreate+firstAccel, alloc.Used())

	require.NoError(t, s.DeleteGeometry(id))
	s.Close()
	assert.Equal(t, int64(0), alloc.Used())

	var sum int64
	for _, d := range deltas {
		sum += d
	}
	assert.Equal(t, int64(0), sum)
}

func TestBuildOutOfMemoryAborts(t *testing.T) {
	budget := int64(100)
	alloc := NewAllocator(MemoryMonitorFunc(func(bytes int64, post bool) bool {
		if bytes > 0 && bytes > budget {
			return false
		}
		budget -= bytes
		return true
	}))

	s := NewScene(alloc, nil)
	addTriangle(t, s, types.Vec3{})
	used := alloc.Used()

	s.Lock()
	b, err := s.NewBuild(1, nil)
	s.Unlock()
	require.NoError(t, err)

	err = b.Partition(0)
	if err == nil {
		err = b.Finalize()
	}
	require.ErrorIs(t, err, ErrOutOfMemory)
	b.Abort()
	assert.Equal(t, used, alloc.Used())
	assert.Nil(t, s.Accel())
}

func TestProgressReachesOne(t *testing.T) {
	s := NewScene(nil, nil)
	addTriangle(t, s, types.Vec3{})
	addTriangle(t, s, types.Vec3{0, 0, -1})

	var last float64
	s.Lock()
	b, err := s.NewBuild(2, func(fraction float64) { last = fraction })
	s.Unlock()
	require.NoError(t, err)
	require.NoError(t, b.Partition(0))
	require.NoError(t, b.Partition(1))
	require.NoError(t, b.Finalize())
	assert.Equal(t, 1.0, last)

	assert.ErrorIs(t, b.Partition(2), ErrInvalidArgument)
}

func TestVetoedGeometryAllocatesNothing(t *testing.T) {
	var asked []int64
	alloc := NewAllocator(MemoryMonitorFunc(func(bytes int64, post bool) bool {
		if bytes > 0 {
			asked = append(asked, bytes)
		}
		return bytes <= 1<<20
	}))
	s := NewScene(alloc, nil)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := s.NewTriangleMesh(StaticGeometry, 1<<24, 3, 1)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, []int64{12<<24 + 3*16}, asked)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), alloc.Used())
}

func TestOversizedGeometryRejected(t *testing.T) {
	alloc := NewAllocator(MemoryMonitorFunc(func(bytes int64, post bool) bool {
		t.Fatalf("monitor consulted for %d bytes", bytes)
		return true
	}))
	s := NewScene(alloc, nil)

	specs := []func() (uint32, error){
		func() (uint32, error) { return s.NewTriangleMesh(StaticGeometry, math.MaxInt/8, 3, 1) },
		func() (uint32, error) { return s.NewTriangleMesh(StaticGeometry, 1, math.MaxInt/2, 2) },
		func() (uint32, error) { return s.NewHairGeometry(StaticGeometry, math.MaxInt, 4, 1) },
		func() (uint32, error) {
			return s.NewSubdivisionMesh(StaticGeometry, 1, 1<<38, 1<<38, 0, 0, 0, 1)
		},
	}
	for specIndex, spec := range specs {
		id, err := spec()
		if !errors.Is(err, ErrAllocationTooLarge) {
			t.Fatalf("[spec %d] expected ErrAllocationTooLarge; got %v", specIndex, err)
		}
		if id != InvalidGeometryID {
			t.Fatalf("[spec %d] expected invalid geometry id; got %d", specIndex, id)
		}
	}
	assert.Equal(t, 0, s.Len())
}

func TestInterpolateChecksSharedStorage(t *testing.T) {
	s := NewScene(nil, nil)
	id := addTriangle(t, s, types.Vec3{})

	// Three 16 byte strided vertices whose last element stops after xyz.
	verts := []float32{
		0, 0, 0, 0,
		1, 0, 0, 0,
		0, 1, 0,
	}
	require.NoError(t, s.SetBuffer(id, VertexBuffer0, AsBytes(verts), 0, 16))
	g, _ := s.Geometry(id)

	p := make([]float32, 4)
	assert.ErrorIs(t, g.Interpolate(0, 0.25, 0.25, VertexBuffer0, p, nil, nil, 4), ErrBufferTooSmall)
	assert.ErrorIs(t, g.InterpolateN(nil, []uint32{0}, []float32{0}, []float32{0}, 1, VertexBuffer0, p, nil, nil, 4), ErrBufferTooSmall)

	require.NoError(t, g.Interpolate(0, 0.25, 0.25, VertexBuffer0, p, nil, nil, 3))
	assert.InDeltaSlice(t, []float32{0.25, 0.25, 0}, p[:3], 1e-6)
}
