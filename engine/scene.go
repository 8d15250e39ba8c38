package engine

import (
	"sync"
	"sync/atomic"
)

// Scene owns a geometry table and the most recently published
// acceleration structure. Geometry ids are dense and are never reused;
// erasing a geometry leaves a permanently invalid slot behind.
//
// Callers serialize structural changes with Lock/Unlock. Queries only read
// the published acceleration structure and never take the lock.
type Scene struct {
	mu sync.Mutex

	alloc     *Allocator
	scheduler Scheduler
	geoms     []*Geometry
	live      int

	accel atomic.Pointer[Accel]
}

// NewScene creates an empty scene whose allocations are reported to alloc.
func NewScene(alloc *Allocator, scheduler Scheduler) *Scene {
	if alloc == nil {
		alloc = NewAllocator(nil)
	}
	if scheduler == nil {
		scheduler = NewBalancedScheduler()
	}
	return &Scene{
		alloc:     alloc,
		scheduler: scheduler,
	}
}

func (s *Scene) Lock()   { s.mu.Lock() }
func (s *Scene) Unlock() { s.mu.Unlock() }

// Allocator returns the allocator tracking the scene memory.
func (s *Scene) Allocator() *Allocator {
	return s.alloc
}

// Len returns the number of live geometries.
func (s *Scene) Len() int {
	return s.live
}

// Geometry resolves a geometry id.
func (s *Scene) Geometry(id uint32) (*Geometry, error) {
	if int64(id) >= int64(len(s.geoms)) || s.geoms[id] == nil {
		return nil, ErrInvalidGeometry
	}
	return s.geoms[id], nil
}

// Add a geometry after accounting for its owned buffers.
// Register g after the monitor approves the owned storage described by
// layouts. Buffers are only allocated once the growth is accepted.
func (s *Scene) add(g *Geometry, layouts ...bufferLayout) (uint32, error) {
	if uint64(len(s.geoms)) >= uint64(InvalidGeometryID) {
		return InvalidGeometryID, ErrOutOfMemory
	}
	total, err := layoutBytes(layouts)
	if err != nil {
		return InvalidGeometryID, err
	}
	if err = s.alloc.Grow(total); err != nil {
		return InvalidGeometryID, err
	}
	for _, l := range layouts {
		g.buffers[l.t] = newBuffer(l.count, l.stride, l.elemSize)
	}
	g.id = uint32(len(s.geoms))
	s.geoms = append(s.geoms, g)
	s.live++
	return g.id, nil
}

func validTimeSteps(n int) error {
	if n != 1 && n != 2 {
		return ErrInvalidTimeSteps
	}
	return nil
}

func validFlags(flags GeometryFlags) error {
	if flags > DynamicGeometry {
		return ErrInvalidArgument
	}
	return nil
}

// NewTriangleMesh adds a triangle mesh with owned index and vertex buffers.
func (s *Scene) NewTriangleMesh(flags GeometryFlags, numTriangles, numVertices, numTimeSteps int) (uint32, error) {
	if err := validFlags(flags); err != nil {
		return InvalidGeometryID, err
	}
	if err := validTimeSteps(numTimeSteps); err != nil {
		return InvalidGeometryID, err
	}
	if numTriangles < 0 || numVertices < 0 {
		return InvalidGeometryID, ErrInvalidArgument
	}

	layouts := []bufferLayout{{IndexBuffer, numTriangles, 12, 12}}
	for step := 0; step < numTimeSteps; step++ {
		layouts = append(layouts, bufferLayout{VertexBuffer0 + BufferType(step), numVertices, 16, 12})
	}
	return s.add(newGeometry(TriangleMeshType, flags, numTriangles, numVertices, numTimeSteps), layouts...)
}

// NewHairGeometry adds a set of cubic bezier curves. Each index points at
// the first of four consecutive control vertices.
func (s *Scene) NewHairGeometry(flags GeometryFlags, numCurves, numVertices, numTimeSteps int) (uint32, error) {
	if err := validFlags(flags); err != nil {
		return InvalidGeometryID, err
	}
	if err := validTimeSteps(numTimeSteps); err != nil {
		return InvalidGeometryID, err
	}
	if numCurves < 0 || numVertices < 0 {
		return InvalidGeometryID, ErrInvalidArgument
	}

	layouts := []bufferLayout{{IndexBuffer, numCurves, 4, 4}}
	for step := 0; step < numTimeSteps; step++ {
		layouts = append(layouts, bufferLayout{VertexBuffer0 + BufferType(step), numVertices, 16, 16})
	}
	return s.add(newGeometry(HairCurvesType, flags, numCurves, numVertices, numTimeSteps), layouts...)
}

// NewSubdivisionMesh adds a subdivision surface with its topology and
// crease buffers.
func (s *Scene) NewSubdivisionMesh(flags GeometryFlags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps int) (uint32, error) {
	if err := validFlags(flags); err != nil {
		return InvalidGeometryID, err
	}
	if err := validTimeSteps(numTimeSteps); err != nil {
		return InvalidGeometryID, err
	}
	for _, n := range []int{numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles} {
		if n < 0 {
			return InvalidGeometryID, ErrInvalidArgument
		}
	}

	layouts := []bufferLayout{
		{FaceBuffer, numFaces, 4, 4},
		{IndexBuffer, numEdges, 4, 4},
		{LevelBuffer, numEdges, 4, 4},
		{EdgeCreaseIndexBuffer, numEdgeCreases, 8, 8},
		{EdgeCreaseWeightBuffer, numEdgeCreases, 4, 4},
		{VertexCreaseIndexBuffer, numVertexCreases, 4, 4},
		{VertexCreaseWeightBuffer, numVertexCreases, 4, 4},
		{HoleBuffer, numHoles, 4, 4},
	}
	for step := 0; step < numTimeSteps; step++ {
		layouts = append(layouts, bufferLayout{VertexBuffer0 + BufferType(step), numVertices, 16, 12})
	}
	return s.add(newGeometry(SubdivisionMeshType, flags, numFaces, numVertices, numTimeSteps), layouts...)
}

// NewUserGeometry adds numItems primitives whose bounds and intersections
// are provided by callbacks.
func (s *Scene) NewUserGeometry(numItems int) (uint32, error) {
	if numItems < 0 {
		return InvalidGeometryID, ErrInvalidArgument
	}
	return s.add(newGeometry(UserGeometryType, StaticGeometry, numItems, 0, 1))
}

// NewInstance adds an instance of source with an identity transform.
func (s *Scene) NewInstance(source *Scene) (uint32, error) {
	if source == nil || source == s {
		return InvalidGeometryID, ErrInvalidArgument
	}
	g := newGeometry(InstanceType, StaticGeometry, 1, 0, 1)
	g.source = source
	return s.add(g)
}

// DeleteGeometry erases a geometry and releases its owned buffers.
func (s *Scene) DeleteGeometry(id uint32) error {
	g, err := s.Geometry(id)
	if err != nil {
		return err
	}
	s.geoms[id] = nil
	s.live--
	s.alloc.Release(g.ownedBytes())
	return nil
}

// SetBuffer replaces a geometry buffer with caller-owned storage.
func (s *Scene) SetBuffer(id uint32, t BufferType, data []byte, offset, stride int) error {
	g, err := s.Geometry(id)
	if err != nil {
		return err
	}
	if !g.acceptsBuffer(t) {
		return ErrInvalidBuffer
	}

	b, ok := g.buffers[t]
	if !ok {
		b = &Buffer{count: g.numVertices, elemSize: 4}
	}
	released, err := b.Share(data, offset, stride)
	if err != nil {
		return err
	}
	g.buffers[t] = b
	s.alloc.Release(released)
	return nil
}

// Accel returns the last published acceleration structure or nil if the
// scene was never committed.
func (s *Scene) Accel() *Accel {
	return s.accel.Load()
}

// Publish atomically replaces the queryable acceleration structure and
// releases the memory held by the previous one.
func (s *Scene) Publish(a *Accel) {
	if old := s.accel.Swap(a); old != nil {
		s.alloc.Release(old.bytes)
	}
}

// Close releases every tracked allocation held by the scene.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, g := range s.geoms {
		if g != nil {
			s.alloc.Release(g.ownedBytes())
			s.geoms[id] = nil
		}
	}
	s.live = 0
	s.Publish(nil)
}
