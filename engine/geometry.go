package engine

import (
	"github.com/achilleasa/rtcore/types"
)

// GeometryType tags the variant stored in a geometry slot.
type GeometryType uint8

const (
	TriangleMeshType GeometryType = iota
	HairCurvesType
	SubdivisionMeshType
	UserGeometryType
	InstanceType
)

func (t GeometryType) String() string {
	switch t {
	case TriangleMeshType:
		return "triangle-mesh"
	case HairCurvesType:
		return "hair-curves"
	case SubdivisionMeshType:
		return "subdivision-mesh"
	case UserGeometryType:
		return "user-geometry"
	case InstanceType:
		return "instance"
	}
	return "unknown"
}

// GeometryFlags hint how often a geometry changes.
type GeometryFlags uint8

const (
	StaticGeometry GeometryFlags = iota
	DeformableGeometry
	DynamicGeometry
)

// BoundaryMode selects how subdivision surfaces treat open boundaries.
type BoundaryMode uint8

const (
	BoundaryNone BoundaryMode = iota
	BoundaryEdgeOnly
	BoundaryEdgeAndCorner
)

// Callbacks registered on geometries. The userData argument is the value
// set with SetUserData.
type (
	BoundsFunc       func(userData any, item int) types.BBox
	IntersectFunc    func(userData any, ray *Ray, item int)
	OccludedFunc     func(userData any, ray *Ray, item int)
	IntersectNFunc   func(valid []int32, userData any, packet *RayPacket, item int)
	OccludedNFunc    func(valid []int32, userData any, packet *RayPacket, item int)
	FilterFunc       func(userData any, ray *Ray)
	FilterNFunc      func(valid []int32, userData any, packet *RayPacket)
	DisplacementFunc func(userData any, geomID, primID uint32, u, v, nx, ny, nz, px, py, pz []float32)
)

// Callback sets indexed by Width.Index(). Slot 0 holds the single ray variant.
type callbacks struct {
	intersect1 IntersectFunc
	occluded1  OccludedFunc
	intersectN [4]IntersectNFunc
	occludedN  [4]OccludedNFunc

	intersectFilter1 FilterFunc
	occlusionFilter1 FilterFunc
	intersectFilterN [4]FilterNFunc
	occlusionFilterN [4]FilterNFunc
}

// Geometry is one entry of a scene's geometry table. All mutating methods
// expect the owning scene lock to be held.
type Geometry struct {
	id    uint32
	gtype GeometryType
	flags GeometryFlags

	enabled  bool
	mask     uint32
	userData any
	boundary BoundaryMode

	// Number of primitives (triangles, curves, faces or user items).
	numPrims     int
	numVertices  int
	numTimeSteps int

	buffers map[BufferType]*Buffer

	bounds       BoundsFunc
	displacement DisplacementFunc
	cb           callbacks

	// Instance data.
	source    *Scene
	transform types.Affine3
	inverse   types.Affine3
}

func newGeometry(gtype GeometryType, flags GeometryFlags, numPrims, numVertices, numTimeSteps int) *Geometry {
	return &Geometry{
		gtype:        gtype,
		flags:        flags,
		enabled:      true,
		mask:         ^uint32(0),
		numPrims:     numPrims,
		numVertices:  numVertices,
		numTimeSteps: numTimeSteps,
		buffers:      make(map[BufferType]*Buffer),
		transform:    types.IdentityAffine(),
		inverse:      types.IdentityAffine(),
	}
}

// ID returns the geometry id within its scene.
func (g *Geometry) ID() uint32 { return g.id }

// Type returns the geometry variant.
func (g *Geometry) Type() GeometryType { return g.gtype }

// Flags returns the geometry flags.
func (g *Geometry) Flags() GeometryFlags { return g.flags }

// Enabled returns true if the geometry takes part in queries.
func (g *Geometry) Enabled() bool { return g.enabled }

// Mask returns the visibility mask.
func (g *Geometry) Mask() uint32 { return g.mask }

// Primitives returns the number of primitives.
func (g *Geometry) Primitives() int { return g.numPrims }

// TimeSteps returns the number of vertex time steps.
func (g *Geometry) TimeSteps() int { return g.numTimeSteps }

// Boundary returns the subdivision boundary mode.
func (g *Geometry) Boundary() BoundaryMode { return g.boundary }

// Transform returns the instance transform.
func (g *Geometry) Transform() types.Affine3 { return g.transform }

func (g *Geometry) Enable()  { g.enabled = true }
func (g *Geometry) Disable() { g.enabled = false }

func (g *Geometry) SetMask(mask uint32) {
	g.mask = mask
}

func (g *Geometry) SetUserData(data any) {
	g.userData = data
}

// UserData is safe to call without the scene lock as long as no mutation
// runs concurrently.
func (g *Geometry) UserData() any {
	return g.userData
}

// SetBoundaryMode applies to subdivision meshes only.
func (g *Geometry) SetBoundaryMode(mode BoundaryMode) error {
	if g.gtype != SubdivisionMeshType {
		return ErrUnsupportedOperation
	}
	if mode > BoundaryEdgeAndCorner {
		return ErrInvalidArgument
	}
	g.boundary = mode
	return nil
}

// SetTransform applies to instances only.
func (g *Geometry) SetTransform(xfm types.Affine3) error {
	if g.gtype != InstanceType {
		return ErrUnsupportedOperation
	}
	inv, err := xfm.Inverse()
	if err != nil {
		return ErrInvalidTransform
	}
	g.transform = xfm
	g.inverse = inv
	return nil
}

// Buffer returns the buffer of the given type.
func (g *Geometry) Buffer(t BufferType) (*Buffer, error) {
	b, ok := g.buffers[t]
	if !ok {
		return nil, ErrInvalidBuffer
	}
	return b, nil
}

func (g *Geometry) MapBuffer(t BufferType) ([]byte, error) {
	b, err := g.Buffer(t)
	if err != nil {
		return nil, err
	}
	return b.Map()
}

func (g *Geometry) UnmapBuffer(t BufferType) error {
	b, err := g.Buffer(t)
	if err != nil {
		return err
	}
	return b.Unmap()
}

// UpdateBuffer flags one buffer as modified.
func (g *Geometry) UpdateBuffer(t BufferType) error {
	b, err := g.Buffer(t)
	if err != nil {
		return err
	}
	b.dirty = true
	return nil
}

// Update flags every buffer as modified.
func (g *Geometry) Update() {
	for _, b := range g.buffers {
		b.dirty = true
	}
}

func (g *Geometry) hasMappedBuffers() bool {
	for _, b := range g.buffers {
		if b.mapped {
			return true
		}
	}
	return false
}

func (g *Geometry) ownedBytes() int64 {
	var total int64
	for _, b := range g.buffers {
		total += b.ownedBytes()
	}
	return total
}

// Accepts the buffer types a caller may attach with SetBuffer. User vertex
// buffers are created on first use.
func (g *Geometry) acceptsBuffer(t BufferType) bool {
	if _, ok := g.buffers[t]; ok {
		return true
	}
	return (t == UserVertexBuffer0 || t == UserVertexBuffer1) &&
		(g.gtype == TriangleMeshType || g.gtype == SubdivisionMeshType || g.gtype == HairCurvesType)
}

func (g *Geometry) SetBoundsFunc(fn BoundsFunc) error {
	if g.gtype != UserGeometryType {
		return ErrUnsupportedOperation
	}
	g.bounds = fn
	return nil
}

func (g *Geometry) SetDisplacementFunc(fn DisplacementFunc) error {
	if g.gtype != SubdivisionMeshType {
		return ErrUnsupportedOperation
	}
	g.displacement = fn
	return nil
}

func (g *Geometry) SetIntersectFunc(fn IntersectFunc) error {
	if g.gtype != UserGeometryType {
		return ErrUnsupportedOperation
	}
	g.cb.intersect1 = fn
	return nil
}

func (g *Geometry) SetOccludedFunc(fn OccludedFunc) error {
	if g.gtype != UserGeometryType {
		return ErrUnsupportedOperation
	}
	g.cb.occluded1 = fn
	return nil
}

func (g *Geometry) SetIntersectFuncN(w Width, fn IntersectNFunc) error {
	if g.gtype != UserGeometryType {
		return ErrUnsupportedOperation
	}
	if w == W1 || !w.Valid() {
		return ErrInvalidArgument
	}
	g.cb.intersectN[w.Index()] = fn
	return nil
}

func (g *Geometry) SetOccludedFuncN(w Width, fn OccludedNFunc) error {
	if g.gtype != UserGeometryType {
		return ErrUnsupportedOperation
	}
	if w == W1 || !w.Valid() {
		return ErrInvalidArgument
	}
	g.cb.occludedN[w.Index()] = fn
	return nil
}

func (g *Geometry) SetIntersectionFilterFunc(fn FilterFunc) error {
	if g.gtype == InstanceType {
		return ErrUnsupportedOperation
	}
	g.cb.intersectFilter1 = fn
	return nil
}

func (g *Geometry) SetOcclusionFilterFunc(fn FilterFunc) error {
	if g.gtype == InstanceType {
		return ErrUnsupportedOperation
	}
	g.cb.occlusionFilter1 = fn
	return nil
}

func (g *Geometry) SetIntersectionFilterFuncN(w Width, fn FilterNFunc) error {
	if g.gtype == InstanceType {
		return ErrUnsupportedOperation
	}
	if w == W1 || !w.Valid() {
		return ErrInvalidArgument
	}
	g.cb.intersectFilterN[w.Index()] = fn
	return nil
}

func (g *Geometry) SetOcclusionFilterFuncN(w Width, fn FilterNFunc) error {
	if g.gtype == InstanceType {
		return ErrUnsupportedOperation
	}
	if w == W1 || !w.Valid() {
		return ErrInvalidArgument
	}
	g.cb.occlusionFilterN[w.Index()] = fn
	return nil
}

// Copy the geometry for a build. Buffer headers are copied so later calls
// to SetBuffer do not affect a published acceleration structure.
func (g *Geometry) snapshot() *Geometry {
	cp := *g
	cp.buffers = make(map[BufferType]*Buffer, len(g.buffers))
	for t, b := range g.buffers {
		bcp := *b
		cp.buffers[t] = &bcp
		b.dirty = false
	}
	return &cp
}

// Triangle vertex indices of primitive prim.
func (g *Geometry) triangle(prim int) (i0, i1, i2 uint32) {
	idx := g.buffers[IndexBuffer]
	return idx.Uint32(prim, 0), idx.Uint32(prim, 1), idx.Uint32(prim, 2)
}

// Triangle vertices at the given time. With two time steps vertices are
// interpolated linearly between the two vertex buffers.
func (g *Geometry) triangleVertices(prim int, time float32) (v0, v1, v2 types.Vec3) {
	i0, i1, i2 := g.triangle(prim)
	vb := g.buffers[VertexBuffer0]
	v0, v1, v2 = vb.Vec3(int(i0)), vb.Vec3(int(i1)), vb.Vec3(int(i2))
	if g.numTimeSteps == 2 {
		vb1 := g.buffers[VertexBuffer1]
		v0 = v0.Lerp(vb1.Vec3(int(i0)), time)
		v1 = v1.Lerp(vb1.Vec3(int(i1)), time)
		v2 = v2.Lerp(vb1.Vec3(int(i2)), time)
	}
	return v0, v1, v2
}

// Bounds of a triangle over all time steps.
func (g *Geometry) triangleBounds(prim int) (types.BBox, error) {
	i0, i1, i2 := g.triangle(prim)
	n := uint32(g.numVertices)
	if i0 >= n || i1 >= n || i2 >= n {
		return types.BBox{}, ErrInvalidArgument
	}

	box := types.EmptyBBox()
	for step := 0; step < g.numTimeSteps; step++ {
		vb := g.buffers[VertexBuffer0+BufferType(step)]
		box = box.Extend(vb.Vec3(int(i0))).Extend(vb.Vec3(int(i1))).Extend(vb.Vec3(int(i2)))
	}
	return box, nil
}

// Interpolate evaluates numFloats components of a vertex attribute buffer
// at the barycentric location (u, v) of triangle primID. Any of p, dPdu and
// dPdv may be nil.
func (g *Geometry) Interpolate(primID uint32, u, v float32, buf BufferType, p, dPdu, dPdv []float32, numFloats int) error {
	b, err := g.interpolationBuffer(buf, numFloats)
	if err != nil {
		return err
	}
	if int(primID) >= g.numPrims {
		return ErrInvalidArgument
	}
	if (p != nil && len(p) < numFloats) || (dPdu != nil && len(dPdu) < numFloats) || (dPdv != nil && len(dPdv) < numFloats) {
		return ErrBufferTooSmall
	}

	i0, i1, i2 := g.triangle(int(primID))
	if n := uint32(b.count); i0 >= n || i1 >= n || i2 >= n {
		return ErrInvalidArgument
	}
	w := 1 - u - v
	for c := 0; c < numFloats; c++ {
		a0, a1, a2 := b.Float32(int(i0), c), b.Float32(int(i1), c), b.Float32(int(i2), c)
		if p != nil {
			p[c] = w*a0 + u*a1 + v*a2
		}
		if dPdu != nil {
			dPdu[c] = a1 - a0
		}
		if dPdv != nil {
			dPdv[c] = a2 - a0
		}
	}
	return nil
}

// InterpolateN evaluates numUVs locations at once. Output component c of
// location i is stored at index c*numUVs+i. Locations with a zero valid
// entry are skipped; a nil valid slice treats every location as active.
func (g *Geometry) InterpolateN(valid []int32, primIDs []uint32, u, v []float32, numUVs int, buf BufferType, p, dPdu, dPdv []float32, numFloats int) error {
	if _, err := g.interpolationBuffer(buf, numFloats); err != nil {
		return err
	}
	if len(primIDs) < numUVs || len(u) < numUVs || len(v) < numUVs || (valid != nil && len(valid) < numUVs) {
		return ErrBufferTooSmall
	}
	outLen := numUVs * numFloats
	if (p != nil && len(p) < outLen) || (dPdu != nil && len(dPdu) < outLen) || (dPdv != nil && len(dPdv) < outLen) {
		return ErrBufferTooSmall
	}

	var tp, tu, tv []float32
	if p != nil {
		tp = make([]float32, numFloats)
	}
	if dPdu != nil {
		tu = make([]float32, numFloats)
	}
	if dPdv != nil {
		tv = make([]float32, numFloats)
	}
	for i := 0; i < numUVs; i++ {
		if valid != nil && valid[i] == 0 {
			continue
		}
		if err := g.Interpolate(primIDs[i], u[i], v[i], buf, tp, tu, tv, numFloats); err != nil {
			return err
		}
		for c := 0; c < numFloats; c++ {
			if p != nil {
				p[c*numUVs+i] = tp[c]
			}
			if dPdu != nil {
				dPdu[c*numUVs+i] = tu[c]
			}
			if dPdv != nil {
				dPdv[c*numUVs+i] = tv[c]
			}
		}
	}
	return nil
}

func (g *Geometry) interpolationBuffer(buf BufferType, numFloats int) (*Buffer, error) {
	if g.gtype != TriangleMeshType {
		return nil, ErrUnsupportedOperation
	}
	switch buf {
	case VertexBuffer0, VertexBuffer1, UserVertexBuffer0, UserVertexBuffer1:
	default:
		return nil, ErrInvalidBuffer
	}
	b, err := g.Buffer(buf)
	if err != nil {
		return nil, err
	}
	if numFloats <= 0 || numFloats*4 > b.stride {
		return nil, ErrInvalidArgument
	}
	// Components past elemSize live in the stride padding, which caller
	// owned storage does not have to provide for the last element.
	if b.count > 0 && b.offset+(b.count-1)*b.stride+numFloats*4 > len(b.data) {
		return nil, ErrBufferTooSmall
	}
	return b, nil
}
