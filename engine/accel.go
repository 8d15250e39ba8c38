package engine

import (
	"github.com/achilleasa/rtcore/engine/bvh"
	"github.com/achilleasa/rtcore/types"
	"github.com/chewxy/math32"
)

// Triangles whose determinant falls below this threshold are treated as
// parallel to the ray.
const parallelEpsilon float32 = 1e-12

// Accel is an immutable acceleration structure produced by a build. It
// holds a top level tree over per-geometry trees.
type Accel struct {
	blas   []*blas
	nodes  []bvh.Node
	bounds types.BBox
	stats  BuildStats
	bytes  int64
}

// A bottom level tree for one geometry snapshot.
type blas struct {
	geom   *Geometry
	nodes  []bvh.Node
	prims  []uint32
	bounds types.BBox

	// Source structure for instances.
	inst *Accel
}

// Bounds returns the world space bounds of the structure.
func (a *Accel) Bounds() types.BBox {
	return a.bounds
}

// Stats returns the statistics collected while building the structure.
func (a *Accel) Stats() BuildStats {
	return a.stats
}

// Bytes returns the tracked memory held by the structure.
func (a *Accel) Bytes() int64 {
	return a.bytes
}

// Intersect finds the nearest hit along r within (TNear, TFar) and writes
// it into the ray hit fields. The width selects which user callback
// variant to prefer. It returns true if a closer hit was recorded.
func (a *Accel) Intersect(r *Ray, w Width) bool {
	if a == nil || len(a.nodes) == 0 {
		return false
	}

	hit := false
	traverse(a.nodes, r, func(first, count uint32) bool {
		for _, b := range a.blas[first : first+count] {
			if b.intersect(r, w) {
				hit = true
			}
		}
		return false
	})
	return hit
}

// Occluded reports whether any accepted hit exists along r. The ray is not
// modified.
func (a *Accel) Occluded(r *Ray, w Width) bool {
	if a == nil || len(a.nodes) == 0 {
		return false
	}

	local := *r
	local.GeomID = InvalidGeometryID
	occluded := false
	traverse(a.nodes, &local, func(first, count uint32) bool {
		for _, b := range a.blas[first : first+count] {
			if b.occluded(&local, w) {
				occluded = true
				return true
			}
		}
		return false
	})
	return occluded
}

// Visit the leaves of a tree whose boxes overlap the ray segment. The
// visitor returns true to stop the traversal.
func traverse(nodes []bvh.Node, r *Ray, visit func(first, count uint32) bool) {
	invDir := types.Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}

	stack := make([]uint32, 1, 64)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &nodes[idx]
		if !slabTest(node.Min, node.Max, r.Org, invDir, r.TNear, r.TFar) {
			continue
		}
		if node.IsLeaf() {
			if first, count := node.Items(); count > 0 && visit(first, count) {
				return
			}
			continue
		}
		left, right := node.ChildNodes()
		stack = append(stack, right, left)
	}
}

func slabTest(min, max, org, invDir types.Vec3, tnear, tfar float32) bool {
	for axis := 0; axis < 3; axis++ {
		t0 := (min[axis] - org[axis]) * invDir[axis]
		t1 := (max[axis] - org[axis]) * invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tnear {
			tnear = t0
		}
		if t1 < tfar {
			tfar = t1
		}
		if tnear > tfar {
			return false
		}
	}
	return true
}

// Möller-Trumbore ray/triangle test. It returns the hit distance, the
// barycentric coordinates and the unnormalized geometry normal.
func intersectTriangle(r *Ray, v0, v1, v2 types.Vec3) (t, u, v float32, ng types.Vec3, ok bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < parallelEpsilon {
		return 0, 0, 0, ng, false
	}

	invDet := 1 / det
	s := r.Org.Sub(v0)
	u = s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, ng, false
	}
	q := s.Cross(e1)
	v = r.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, ng, false
	}
	t = e2.Dot(q) * invDet
	if t <= r.TNear || t >= r.TFar {
		return 0, 0, 0, ng, false
	}
	return t, u, v, e1.Cross(e2), true
}

func (b *blas) visible(r *Ray) bool {
	return b.geom.mask&r.Mask != 0
}

func (b *blas) intersect(r *Ray, w Width) bool {
	if !b.visible(r) {
		return false
	}

	g := b.geom
	switch g.gtype {
	case TriangleMeshType:
		hit := false
		traverse(b.nodes, r, func(first, count uint32) bool {
			for _, prim := range b.prims[first : first+count] {
				v0, v1, v2 := g.triangleVertices(int(prim), r.Time)
				t, u, v, ng, ok := intersectTriangle(r, v0, v1, v2)
				if ok && b.acceptHit(r, w, t, u, v, ng, prim, false) {
					hit = true
				}
			}
			return false
		})
		return hit
	case UserGeometryType:
		hit := false
		traverse(b.nodes, r, func(first, count uint32) bool {
			for _, prim := range b.prims[first : first+count] {
				before := *r
				g.callIntersect(r, w, int(prim))
				if hitChanged(&before, r) {
					hit = true
				}
			}
			return false
		})
		return hit
	case InstanceType:
		local := *r
		local.Org = g.inverse.XfmPoint(r.Org)
		local.Dir = g.inverse.XfmVector(r.Dir)
		if !b.inst.Intersect(&local, w) {
			return false
		}
		r.TFar = local.TFar
		r.U, r.V = local.U, local.V
		r.Ng = g.inverse.XfmNormal(local.Ng)
		r.GeomID = local.GeomID
		r.PrimID = local.PrimID
		r.InstID = g.id
		return true
	}
	return false
}

func (b *blas) occluded(r *Ray, w Width) bool {
	if !b.visible(r) {
		return false
	}

	g := b.geom
	occluded := false
	switch g.gtype {
	case TriangleMeshType:
		traverse(b.nodes, r, func(first, count uint32) bool {
			for _, prim := range b.prims[first : first+count] {
				v0, v1, v2 := g.triangleVertices(int(prim), r.Time)
				t, u, v, ng, ok := intersectTriangle(r, v0, v1, v2)
				if ok && b.acceptHit(r, w, t, u, v, ng, prim, true) {
					occluded = true
					return true
				}
			}
			return false
		})
	case UserGeometryType:
		traverse(b.nodes, r, func(first, count uint32) bool {
			for _, prim := range b.prims[first : first+count] {
				g.callOccluded(r, w, int(prim))
				if r.GeomID != InvalidGeometryID {
					occluded = true
					return true
				}
			}
			return false
		})
	case InstanceType:
		local := *r
		local.Org = g.inverse.XfmPoint(r.Org)
		local.Dir = g.inverse.XfmVector(r.Dir)
		occluded = b.inst.Occluded(&local, w)
	}
	return occluded
}

// Write a candidate hit and run the matching filter. A filter rejects the
// hit by setting GeomID to InvalidGeometryID; the ray is then restored.
func (b *blas) acceptHit(r *Ray, w Width, t, u, v float32, ng types.Vec3, prim uint32, occlusion bool) bool {
	saved := *r
	r.TFar = t
	r.U, r.V = u, v
	r.Ng = ng
	r.GeomID = b.geom.id
	r.PrimID = prim
	r.InstID = InvalidGeometryID

	if !b.geom.runFilter(r, w, occlusion) {
		*r = saved
		return false
	}
	return true
}

func hitChanged(before, after *Ray) bool {
	return before.TFar != after.TFar || before.GeomID != after.GeomID || before.PrimID != after.PrimID
}

// Pick a registered packet callback slot, preferring the query width.
func pickWidth[F any](slots *[4]F, w Width, set func(F) bool) (Width, bool) {
	if w.Valid() && set(slots[w.Index()]) {
		return w, true
	}
	for _, cand := range Widths[1:] {
		if set(slots[cand.Index()]) {
			return cand, true
		}
	}
	return 0, false
}

// Run a packet callback for a single ray placed in lane 0 with every other
// lane masked off.
func runSingleLane(r *Ray, w Width, fn func(valid []int32, packet *RayPacket)) {
	packet := NewRayPacket(w)
	packet.SetRay(0, *r)
	valid := make([]int32, w)
	valid[0] = -1
	fn(valid, packet)
	*r = packet.Ray(0)
}

func (g *Geometry) runFilter(r *Ray, w Width, occlusion bool) bool {
	filter1, filterN := g.cb.intersectFilter1, &g.cb.intersectFilterN
	if occlusion {
		filter1, filterN = g.cb.occlusionFilter1, &g.cb.occlusionFilterN
	}

	if filter1 != nil {
		filter1(g.userData, r)
		return r.GeomID != InvalidGeometryID
	}
	fw, ok := pickWidth(filterN, w, func(f FilterNFunc) bool { return f != nil })
	if !ok {
		return true
	}
	fn := filterN[fw.Index()]
	runSingleLane(r, fw, func(valid []int32, packet *RayPacket) {
		fn(valid, g.userData, packet)
	})
	return r.GeomID != InvalidGeometryID
}

func (g *Geometry) callIntersect(r *Ray, w Width, item int) {
	if g.cb.intersect1 != nil {
		g.cb.intersect1(g.userData, r, item)
		return
	}
	fw, ok := pickWidth(&g.cb.intersectN, w, func(f IntersectNFunc) bool { return f != nil })
	if !ok {
		return
	}
	fn := g.cb.intersectN[fw.Index()]
	runSingleLane(r, fw, func(valid []int32, packet *RayPacket) {
		fn(valid, g.userData, packet, item)
	})
}

func (g *Geometry) callOccluded(r *Ray, w Width, item int) {
	if g.cb.occluded1 != nil {
		g.cb.occluded1(g.userData, r, item)
		return
	}
	fw, ok := pickWidth(&g.cb.occludedN, w, func(f OccludedNFunc) bool { return f != nil })
	if !ok {
		return
	}
	fn := g.cb.occludedN[fw.Index()]
	runSingleLane(r, fw, func(valid []int32, packet *RayPacket) {
		fn(valid, g.userData, packet, item)
	})
}
