package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/rtcore/engine/bvh"
	"github.com/achilleasa/rtcore/types"
)

// Minimum number of primitives stored in a single bvh leaf.
const minLeafItems = 2

// ProgressFunc receives the fraction of built primitives. It may be called
// concurrently by several team members.
type ProgressFunc func(fraction float64)

// Build is one commit episode. It is created from a snapshot of the scene
// geometry and then driven by numThreads callers: each calls Partition
// with its own thread id, after which exactly one caller runs Finalize.
type Build struct {
	scene      *Scene
	geoms      []*Geometry
	numThreads int
	assignment [][]int
	progress   ProgressFunc

	results     []*blas
	threadStats []ThreadStat

	totalPrims int64
	donePrims  atomic.Int64

	reserved atomic.Int64
	start    time.Time

	mu    sync.Mutex
	accel *Accel
}

// NewBuild snapshots the scene geometry for a team of numThreads. The
// caller must hold the scene lock.
func (s *Scene) NewBuild(numThreads int, progress ProgressFunc) (*Build, error) {
	if numThreads <= 0 {
		return nil, ErrInvalidArgument
	}

	var geoms []*Geometry
	for _, g := range s.geoms {
		if g == nil || !g.enabled {
			continue
		}
		if g.hasMappedBuffers() {
			return nil, ErrMappedAtBuild
		}
		geoms = append(geoms, g.snapshot())
	}

	workload := make([]int, len(geoms))
	var total int64
	for idx, g := range geoms {
		workload[idx] = g.numPrims
		total += int64(g.numPrims)
	}

	b := &Build{
		scene:       s,
		geoms:       geoms,
		numThreads:  numThreads,
		assignment:  s.scheduler.Schedule(workload, numThreads),
		progress:    progress,
		results:     make([]*blas, len(geoms)),
		threadStats: make([]ThreadStat, numThreads),
		totalPrims:  total,
		start:       time.Now(),
	}
	return b, nil
}

// Estimate the tracked size of a tree over n items.
func treeBytes(n int) int64 {
	if n == 0 {
		return bvh.NodeSize
	}
	return int64(2*n-1)*bvh.NodeSize + int64(4*n)
}

func (b *Build) reserve(bytes int64) error {
	if err := b.scene.alloc.Grow(bytes); err != nil {
		return err
	}
	b.reserved.Add(bytes)
	return nil
}

// Partition builds the bottom level trees for the geometries assigned to
// threadID. Every team member must call it exactly once.
func (b *Build) Partition(threadID int) error {
	if threadID < 0 || threadID >= b.numThreads {
		return ErrInvalidArgument
	}

	start := time.Now()
	stat := ThreadStat{ThreadID: threadID}
	for _, idx := range b.assignment[threadID] {
		g := b.geoms[idx]
		if err := b.reserve(treeBytes(g.numPrims)); err != nil {
			return err
		}

		res, err := buildBLAS(g)
		if err != nil {
			return err
		}
		b.results[idx] = res

		stat.Geometries++
		stat.Primitives += g.numPrims
		stat.Nodes += len(res.nodes)
		b.reportProgress(int64(g.numPrims))
	}
	stat.BuildTime = time.Since(start)
	if b.totalPrims > 0 {
		stat.WorkPercent = 100 * float32(stat.Primitives) / float32(b.totalPrims)
	}
	b.threadStats[threadID] = stat
	return nil
}

func (b *Build) reportProgress(prims int64) {
	done := b.donePrims.Add(prims)
	if b.progress == nil {
		return
	}
	if b.totalPrims == 0 {
		b.progress(1)
		return
	}
	b.progress(float64(done) / float64(b.totalPrims))
}

type primItem struct {
	id     uint32
	bbox   types.BBox
	center types.Vec3
}

func (p *primItem) BBox() types.BBox   { return p.bbox }
func (p *primItem) Center() types.Vec3 { return p.center }

// Build the tree for one geometry snapshot. Hair curves and subdivision
// meshes only contribute their memory; they are never hit.
func buildBLAS(g *Geometry) (*blas, error) {
	res := &blas{geom: g, bounds: types.EmptyBBox()}

	var items []bvh.BoundedVolume
	switch g.gtype {
	case TriangleMeshType:
		items = make([]bvh.BoundedVolume, 0, g.numPrims)
		for prim := 0; prim < g.numPrims; prim++ {
			box, err := g.triangleBounds(prim)
			if err != nil {
				return nil, err
			}
			items = append(items, &primItem{id: uint32(prim), bbox: box, center: box.Center()})
		}
	case UserGeometryType:
		if g.bounds == nil {
			return res, nil
		}
		items = make([]bvh.BoundedVolume, 0, g.numPrims)
		for prim := 0; prim < g.numPrims; prim++ {
			box := g.bounds(g.userData, prim)
			if box.Empty() {
				continue
			}
			items = append(items, &primItem{id: uint32(prim), bbox: box, center: box.Center()})
		}
	case InstanceType:
		res.inst = g.source.Accel()
		if res.inst != nil && len(res.inst.nodes) != 0 {
			res.bounds = g.transform.XfmBBox(res.inst.bounds)
		}
		return res, nil
	default:
		return res, nil
	}

	res.prims = make([]uint32, 0, len(items))
	res.nodes, _ = bvh.Build(items, minLeafItems, func(leaf *bvh.Node, leafItems []bvh.BoundedVolume) {
		leaf.SetItems(uint32(len(res.prims)), uint32(len(leafItems)))
		for _, item := range leafItems {
			res.prims = append(res.prims, item.(*primItem).id)
		}
	}, bvh.SurfaceAreaHeuristic)

	for _, item := range items {
		res.bounds = res.bounds.Union(item.BBox())
	}
	return res, nil
}

// The top level tree is built over geometry trees.
type blasItem struct {
	*blas
}

func (b blasItem) BBox() types.BBox   { return b.bounds }
func (b blasItem) Center() types.Vec3 { return b.bounds.Center() }

// Finalize builds the top level tree once every Partition call has
// returned. It must run on exactly one team member.
func (b *Build) Finalize() error {
	var items []bvh.BoundedVolume
	for _, res := range b.results {
		if res == nil || res.bounds.Empty() {
			continue
		}
		items = append(items, blasItem{res})
	}
	if err := b.reserve(treeBytes(len(items))); err != nil {
		return err
	}

	accel := &Accel{bounds: types.EmptyBBox()}
	accel.nodes, _ = bvh.Build(items, 1, func(leaf *bvh.Node, leafItems []bvh.BoundedVolume) {
		leaf.SetItems(uint32(len(accel.blas)), uint32(len(leafItems)))
		for _, item := range leafItems {
			accel.blas = append(accel.blas, item.(blasItem).blas)
		}
	}, bvh.SurfaceAreaHeuristic)
	for _, item := range items {
		accel.bounds = accel.bounds.Union(item.BBox())
	}

	accel.stats = BuildStats{
		Threads:       b.threadStats,
		TopLevelNodes: len(accel.nodes),
		Primitives:    int(b.totalPrims),
		Bytes:         b.reserved.Load(),
		BuildTime:     time.Since(b.start),
	}
	accel.bytes = b.reserved.Load()

	b.mu.Lock()
	b.accel = accel
	b.mu.Unlock()
	return nil
}

// Publish makes the finalized structure queryable.
func (b *Build) Publish() error {
	b.mu.Lock()
	accel := b.accel
	b.accel = nil
	b.mu.Unlock()

	if accel == nil {
		return ErrInvalidArgument
	}
	b.reserved.Store(0)
	b.scene.Publish(accel)
	return nil
}

// Abort releases every reservation made by a failed build.
func (b *Build) Abort() {
	b.mu.Lock()
	b.accel = nil
	b.mu.Unlock()
	b.scene.alloc.Release(b.reserved.Swap(0))
}
