package rtcore

import (
	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/types"
)

type (
	BufferType    = engine.BufferType
	GeometryFlags = engine.GeometryFlags
	BoundaryMode  = engine.BoundaryMode
	MatrixLayout  = types.MatrixLayout

	BoundsFunc       = engine.BoundsFunc
	IntersectFunc    = engine.IntersectFunc
	OccludedFunc     = engine.OccludedFunc
	IntersectNFunc   = engine.IntersectNFunc
	OccludedNFunc    = engine.OccludedNFunc
	FilterFunc       = engine.FilterFunc
	FilterNFunc      = engine.FilterNFunc
	DisplacementFunc = engine.DisplacementFunc
)

const (
	IndexBuffer              = engine.IndexBuffer
	VertexBuffer0            = engine.VertexBuffer0
	VertexBuffer1            = engine.VertexBuffer1
	FaceBuffer               = engine.FaceBuffer
	LevelBuffer              = engine.LevelBuffer
	EdgeCreaseIndexBuffer    = engine.EdgeCreaseIndexBuffer
	EdgeCreaseWeightBuffer   = engine.EdgeCreaseWeightBuffer
	VertexCreaseIndexBuffer  = engine.VertexCreaseIndexBuffer
	VertexCreaseWeightBuffer = engine.VertexCreaseWeightBuffer
	HoleBuffer               = engine.HoleBuffer
	UserVertexBuffer0        = engine.UserVertexBuffer0
	UserVertexBuffer1        = engine.UserVertexBuffer1

	GeometryStatic     = engine.StaticGeometry
	GeometryDeformable = engine.DeformableGeometry
	GeometryDynamic    = engine.DynamicGeometry

	BoundaryNone          = engine.BoundaryNone
	BoundaryEdgeOnly      = engine.BoundaryEdgeOnly
	BoundaryEdgeAndCorner = engine.BoundaryEdgeAndCorner

	RowMajor             = types.RowMajor
	ColumnMajor          = types.ColumnMajor
	ColumnMajorAligned16 = types.ColumnMajorAligned16
)

// Create a geometry under the mutation lock.
func (t *Thread) newGeometry(op string, h Scene, create func(es *engine.Scene) (uint32, error)) GeomID {
	return guarded(t, op, InvalidGeometryID, func(c *apiCall) (GeomID, error) {
		s, err := lookupScene(h)
		if err != nil {
			return InvalidGeometryID, err
		}
		c.use(s.dev)

		id := InvalidGeometryID
		err = s.withScene(func(es *engine.Scene) error {
			id, err = create(es)
			return err
		})
		if err != nil {
			return InvalidGeometryID, err
		}
		return id, nil
	})
}

// NewTriangleMesh adds a triangle mesh with numTimeSteps (1 or 2) vertex
// buffers. Index elements are 3 uint32 values; vertex elements are 3
// float32 values with a 16 byte stride.
func (t *Thread) NewTriangleMesh(h Scene, flags GeometryFlags, numTriangles, numVertices, numTimeSteps int) GeomID {
	return t.newGeometry("NewTriangleMesh", h, func(es *engine.Scene) (uint32, error) {
		return es.NewTriangleMesh(flags, numTriangles, numVertices, numTimeSteps)
	})
}

// NewHairGeometry adds a set of cubic bezier hair curves.
func (t *Thread) NewHairGeometry(h Scene, flags GeometryFlags, numCurves, numVertices, numTimeSteps int) GeomID {
	return t.newGeometry("NewHairGeometry", h, func(es *engine.Scene) (uint32, error) {
		return es.NewHairGeometry(flags, numCurves, numVertices, numTimeSteps)
	})
}

// NewSubdivisionMesh adds a subdivision surface.
func (t *Thread) NewSubdivisionMesh(h Scene, flags GeometryFlags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps int) GeomID {
	return t.newGeometry("NewSubdivisionMesh", h, func(es *engine.Scene) (uint32, error) {
		return es.NewSubdivisionMesh(flags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps)
	})
}

// NewUserGeometry adds numItems primitives handled by user callbacks.
func (t *Thread) NewUserGeometry(h Scene, numItems int) GeomID {
	return t.newGeometry("NewUserGeometry", h, func(es *engine.Scene) (uint32, error) {
		return es.NewUserGeometry(numItems)
	})
}

// NewInstance adds an instance of source to target with an identity
// transform. Both scenes must belong to the same device. The instance
// sees the source as of the target's next commit.
func (t *Thread) NewInstance(target, source Scene) GeomID {
	return guarded(t, "NewInstance", InvalidGeometryID, func(c *apiCall) (GeomID, error) {
		dst, err := lookupScene(target)
		if err != nil {
			return InvalidGeometryID, err
		}
		c.use(dst.dev)
		src, err := lookupScene(source)
		if err != nil {
			return InvalidGeometryID, err
		}
		if src.dev != dst.dev {
			return InvalidGeometryID, errorf(InvalidArgument, "instance source belongs to another device")
		}

		id := InvalidGeometryID
		err = dst.withScene(func(es *engine.Scene) error {
			id, err = es.NewInstance(src.eng)
			return err
		})
		if err != nil {
			return InvalidGeometryID, err
		}
		return id, nil
	})
}

// Run a locked mutation of one geometry.
func (t *Thread) mutate(op string, h Scene, id GeomID, fn func(s *scene, g *engine.Geometry) error) {
	do(t, op, func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)
		return s.withGeometry(id, func(g *engine.Geometry) error {
			return fn(s, g)
		})
	})
}

// SetTransform sets the instance transform from a flat matrix in the given
// layout: 12 floats for RowMajor and ColumnMajor, 16 for
// ColumnMajorAligned16.
func (t *Thread) SetTransform(h Scene, id GeomID, layout MatrixLayout, xfm []float32) {
	t.mutate("SetTransform", h, id, func(_ *scene, g *engine.Geometry) error {
		affine, err := types.DecodeAffine(layout, xfm)
		if err != nil {
			return err
		}
		return g.SetTransform(affine)
	})
}

// SetMask sets the geometry visibility mask. Rays only see geometries
// whose mask shares a bit with the ray mask.
func (t *Thread) SetMask(h Scene, id GeomID, mask uint32) {
	t.mutate("SetMask", h, id, func(_ *scene, g *engine.Geometry) error {
		g.SetMask(mask)
		return nil
	})
}

func (t *Thread) SetBoundaryMode(h Scene, id GeomID, mode BoundaryMode) {
	t.mutate("SetBoundaryMode", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetBoundaryMode(mode)
	})
}

// MapBuffer returns the writable storage of a buffer or nil on failure.
// The buffer must be unmapped before the next commit.
func (t *Thread) MapBuffer(h Scene, id GeomID, buf BufferType) []byte {
	var out []byte
	t.mutate("MapBuffer", h, id, func(_ *scene, g *engine.Geometry) error {
		data, err := g.MapBuffer(buf)
		out = data
		return err
	})
	return out
}

func (t *Thread) UnmapBuffer(h Scene, id GeomID, buf BufferType) {
	t.mutate("UnmapBuffer", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.UnmapBuffer(buf)
	})
}

// SetBuffer makes a buffer read from caller-owned data. Offset and stride
// must be multiples of 4 and data must stay valid while the scene uses it.
func (t *Thread) SetBuffer(h Scene, id GeomID, buf BufferType, data []byte, offset, stride int) {
	do(t, "SetBuffer", func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)
		return s.withScene(func(es *engine.Scene) error {
			return es.SetBuffer(id, buf, data, offset, stride)
		})
	})
}

// UpdateBuffer marks a single buffer as modified.
func (t *Thread) UpdateBuffer(h Scene, id GeomID, buf BufferType) {
	t.mutate("UpdateBuffer", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.UpdateBuffer(buf)
	})
}

// Update marks every buffer of a geometry as modified.
func (t *Thread) Update(h Scene, id GeomID) {
	t.mutate("Update", h, id, func(_ *scene, g *engine.Geometry) error {
		g.Update()
		return nil
	})
}

func (t *Thread) Enable(h Scene, id GeomID) {
	t.mutate("Enable", h, id, func(_ *scene, g *engine.Geometry) error {
		g.Enable()
		return nil
	})
}

func (t *Thread) Disable(h Scene, id GeomID) {
	t.mutate("Disable", h, id, func(_ *scene, g *engine.Geometry) error {
		g.Disable()
		return nil
	})
}

// DeleteGeometry erases a geometry. Its id is never handed out again.
func (t *Thread) DeleteGeometry(h Scene, id GeomID) {
	do(t, "DeleteGeometry", func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)
		return s.withScene(func(es *engine.Scene) error {
			return es.DeleteGeometry(id)
		})
	})
}

func (t *Thread) SetUserData(h Scene, id GeomID, data interface{}) {
	t.mutate("SetUserData", h, id, func(_ *scene, g *engine.Geometry) error {
		g.SetUserData(data)
		return nil
	})
}

// GetUserData does not take the scene lock and must not race with
// structural changes to the same scene.
func (t *Thread) GetUserData(h Scene, id GeomID) interface{} {
	return guarded(t, "GetUserData", nil, func(c *apiCall) (interface{}, error) {
		s, err := lookupScene(h)
		if err != nil {
			return nil, err
		}
		c.use(s.dev)
		g, err := s.eng.Geometry(id)
		if err != nil {
			return nil, err
		}
		return g.UserData(), nil
	})
}

func (t *Thread) SetBoundsFunction(h Scene, id GeomID, fn BoundsFunc) {
	t.mutate("SetBoundsFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetBoundsFunc(fn)
	})
}

func (t *Thread) SetDisplacementFunction(h Scene, id GeomID, fn DisplacementFunc) {
	t.mutate("SetDisplacementFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetDisplacementFunc(fn)
	})
}

func (t *Thread) SetIntersectFunction(h Scene, id GeomID, fn IntersectFunc) {
	t.mutate("SetIntersectFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetIntersectFunc(fn)
	})
}

func (t *Thread) SetIntersectFunction4(h Scene, id GeomID, fn IntersectNFunc) {
	t.setIntersectN("SetIntersectFunction4", h, id, W4, fn)
}

func (t *Thread) SetIntersectFunction8(h Scene, id GeomID, fn IntersectNFunc) {
	t.setIntersectN("SetIntersectFunction8", h, id, W8, fn)
}

func (t *Thread) SetIntersectFunction16(h Scene, id GeomID, fn IntersectNFunc) {
	t.setIntersectN("SetIntersectFunction16", h, id, W16, fn)
}

func (t *Thread) setIntersectN(op string, h Scene, id GeomID, w Width, fn IntersectNFunc) {
	t.mutate(op, h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetIntersectFuncN(w, fn)
	})
}

func (t *Thread) SetOccludedFunction(h Scene, id GeomID, fn OccludedFunc) {
	t.mutate("SetOccludedFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetOccludedFunc(fn)
	})
}

func (t *Thread) SetOccludedFunction4(h Scene, id GeomID, fn OccludedNFunc) {
	t.setOccludedN("SetOccludedFunction4", h, id, W4, fn)
}

func (t *Thread) SetOccludedFunction8(h Scene, id GeomID, fn OccludedNFunc) {
	t.setOccludedN("SetOccludedFunction8", h, id, W8, fn)
}

func (t *Thread) SetOccludedFunction16(h Scene, id GeomID, fn OccludedNFunc) {
	t.setOccludedN("SetOccludedFunction16", h, id, W16, fn)
}

func (t *Thread) setOccludedN(op string, h Scene, id GeomID, w Width, fn OccludedNFunc) {
	t.mutate(op, h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetOccludedFuncN(w, fn)
	})
}

// SetIntersectionFilterFunction registers a filter run for every candidate
// hit of intersect queries. Setting the ray GeomID to InvalidGeometryID
// rejects the hit.
func (t *Thread) SetIntersectionFilterFunction(h Scene, id GeomID, fn FilterFunc) {
	t.mutate("SetIntersectionFilterFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetIntersectionFilterFunc(fn)
	})
}

func (t *Thread) SetIntersectionFilterFunction4(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetIntersectionFilterFunction4", h, id, W4, fn, false)
}

func (t *Thread) SetIntersectionFilterFunction8(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetIntersectionFilterFunction8", h, id, W8, fn, false)
}

func (t *Thread) SetIntersectionFilterFunction16(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetIntersectionFilterFunction16", h, id, W16, fn, false)
}

// SetOcclusionFilterFunction registers a filter run for every candidate
// hit of occluded queries.
func (t *Thread) SetOcclusionFilterFunction(h Scene, id GeomID, fn FilterFunc) {
	t.mutate("SetOcclusionFilterFunction", h, id, func(_ *scene, g *engine.Geometry) error {
		return g.SetOcclusionFilterFunc(fn)
	})
}

func (t *Thread) SetOcclusionFilterFunction4(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetOcclusionFilterFunction4", h, id, W4, fn, true)
}

func (t *Thread) SetOcclusionFilterFunction8(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetOcclusionFilterFunction8", h, id, W8, fn, true)
}

func (t *Thread) SetOcclusionFilterFunction16(h Scene, id GeomID, fn FilterNFunc) {
	t.setFilterN("SetOcclusionFilterFunction16", h, id, W16, fn, true)
}

func (t *Thread) setFilterN(op string, h Scene, id GeomID, w Width, fn FilterNFunc, occlusion bool) {
	t.mutate(op, h, id, func(_ *scene, g *engine.Geometry) error {
		if occlusion {
			return g.SetOcclusionFilterFuncN(w, fn)
		}
		return g.SetIntersectionFilterFuncN(w, fn)
	})
}

// Interpolate evaluates a vertex attribute buffer at the barycentric
// location (u, v) of a triangle. It does not take the scene lock.
func (t *Thread) Interpolate(h Scene, id GeomID, primID uint32, u, v float32, buf BufferType, p, dPdu, dPdv []float32, numFloats int) {
	do(t, "Interpolate", func(c *apiCall) error {
		g, err := interpolationTarget(c, h, id)
		if err != nil {
			return err
		}
		return g.Interpolate(primID, u, v, buf, p, dPdu, dPdv, numFloats)
	})
}

// InterpolateN evaluates numUVs locations. Component c of location i is
// written to index c*numUVs+i of each output.
func (t *Thread) InterpolateN(h Scene, id GeomID, valid []int32, primIDs []uint32, u, v []float32, numUVs int, buf BufferType, p, dPdu, dPdv []float32, numFloats int) {
	do(t, "InterpolateN", func(c *apiCall) error {
		g, err := interpolationTarget(c, h, id)
		if err != nil {
			return err
		}
		return g.InterpolateN(valid, primIDs, u, v, numUVs, buf, p, dPdu, dPdv, numFloats)
	})
}

func interpolationTarget(c *apiCall, h Scene, id GeomID) (*engine.Geometry, error) {
	s, err := lookupScene(h)
	if err != nil {
		return nil, err
	}
	c.use(s.dev)
	if !s.aflags.interpolates() {
		return nil, errorf(InvalidOperation, "scene was created without the Interpolate algorithm flag")
	}
	return s.eng.Geometry(id)
}
