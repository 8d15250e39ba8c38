package rtcore

import (
	"testing"

	"github.com/achilleasa/rtcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func committedTriangle(t *testing.T, cfg string, aflags AlgorithmFlags) (Device, Scene, GeomID) {
	t.Helper()

	dev := newTestDevice(t, cfg)
	s := newTestScene(t, dev, SceneStatic, aflags)
	th := NewThread()
	id := addTriangle(t, th, s, types.Vec3{})
	th.Commit(s)
	require.Equal(t, NoError, th.GetError())
	return dev, s, id
}

func TestIntersectAndOccludedSingleRay(t *testing.T) {
	_, s, id := committedTriangle(t, "", 0)
	th := NewThread()

	hit := downRay(0.25, 0.25)
	th.Intersect1(s, hit)
	assert.Equal(t, id, hit.GeomID)
	assert.Equal(t, uint32(0), hit.PrimID)
	assert.InDelta(t, 1.0, hit.TFar, 1e-6)

	miss := downRay(0.9, 0.9)
	miss.GeomID = 77
	th.Intersect1(s, miss)
	assert.Equal(t, InvalidGeometryID, miss.GeomID)
	assert.Equal(t, float32(100), miss.TFar)

	blocked := downRay(0.25, 0.25)
	th.Occluded1(s, blocked)
	assert.Equal(t, uint32(0), blocked.GeomID)
	assert.Equal(t, float32(100), blocked.TFar, "occluded must not shorten the ray")

	unblocked := downRay(0.9, 0.9)
	th.Occluded1(s, unblocked)
	assert.Equal(t, InvalidGeometryID, unblocked.GeomID)

	require.Equal(t, NoError, th.GetError())
}

func TestInactiveLanesNeverWritten(t *testing.T) {
	dev, s, id := committedTriangle(t, "", 0)
	requirePacketWidth(t, dev, W4)
	th := NewThread()

	for _, occluded := range []bool{false, true} {
		p := downPacket(W4, 0.1, 0.1, 0.1)
		for _, lane := range []int{1, 3} {
			p.GeomID[lane] = 1234
			p.TFar[lane] = 7
			p.U[lane] = 0.5
		}
		valid := NewValidMask(W4)
		valid[1], valid[3] = 0, 0

		if occluded {
			th.Occluded4(valid, s, p)
		} else {
			th.Intersect4(valid, s, p)
		}
		require.Equal(t, NoError, th.GetError())

		for _, lane := range []int{1, 3} {
			assert.Equal(t, uint32(1234), p.GeomID[lane], "lane %d", lane)
			assert.Equal(t, float32(7), p.TFar[lane], "lane %d", lane)
			assert.Equal(t, float32(0.5), p.U[lane], "lane %d", lane)
		}
		for _, lane := range []int{0, 2} {
			if occluded {
				assert.Equal(t, uint32(0), p.GeomID[lane], "lane %d", lane)
			} else {
				assert.Equal(t, id, p.GeomID[lane], "lane %d", lane)
			}
		}
	}
}

func TestPacketMatchesSingleRays(t *testing.T) {
	dev := newTestDevice(t, "")
	requirePacketWidth(t, dev, W4)
	s := newTestScene(t, dev, SceneCoherent, 0)
	th := NewThread()
	addTriangle(t, th, s, types.Vec3{0, 0, -1})
	addTriangle(t, th, s, types.Vec3{0.5, 0, 0})
	th.Commit(s)

	p := downPacket(W4, 0.2, 0.2, 0.3)
	th.IntersectN(W4, NewValidMask(W4), s, p)
	require.Equal(t, NoError, th.GetError())

	for lane := 0; lane < 4; lane++ {
		r := downRay(0.2+0.3*float32(lane), 0.2)
		th.Intersect1(s, r)
		assert.Equal(t, r.GeomID, p.GeomID[lane], "lane %d", lane)
		assert.InDelta(t, r.TFar, p.TFar[lane], 1e-6, "lane %d", lane)
	}
}

func TestQueryCapabilityChecks(t *testing.T) {
	_, s, _ := committedTriangle(t, "", Intersect1)
	th := NewThread()

	th.Intersect1(s, downRay(0.2, 0.2))
	require.Equal(t, NoError, th.GetError())

	th.IntersectN(W4, NewValidMask(W4), s, NewRayPacket(W4))
	assert.Equal(t, InvalidOperation, th.GetError(), "width not requested by the scene")

	th.IntersectN(Width(3), nil, s, nil)
	assert.Equal(t, InvalidOperation, th.GetError(), "unsupported width")

	narrow := newTestDevice(t, "isa=generic")
	assert.Equal(t, W1, th.MaxPacketWidth(narrow))
	ns := newTestScene(t, narrow, SceneStatic, 0)
	th.Occluded4(NewValidMask(W4), ns, NewRayPacket(W4))
	assert.Equal(t, InvalidOperation, th.GetError(), "width above the device isa")
}

func TestQueryArgumentChecks(t *testing.T) {
	dev, s, _ := committedTriangle(t, "", 0)
	requirePacketWidth(t, dev, W4)
	th := NewThread()

	specs := []struct {
		descr string
		run   func()
	}{
		{"nil ray", func() { th.Intersect1(s, nil) }},
		{"nil packet", func() { th.Intersect4(NewValidMask(W4), s, nil) }},
		{"short mask", func() { th.Intersect4(NewValidMask(W4)[:2], s, NewRayPacket(W4)) }},
		{"packet width mismatch", func() { th.Occluded4(NewValidMask(W4), s, NewRayPacket(W1)) }},
		{"null scene", func() { th.Occluded1(Scene{}, downRay(0, 0)) }},
	}
	for specIndex, spec := range specs {
		spec.run()
		if got := th.GetError(); got != InvalidArgument {
			t.Fatalf("[spec %d] %s: expected %s; got %s", specIndex, spec.descr, InvalidArgument, got)
		}
	}
}

func TestInstanceHitsReportInstanceID(t *testing.T) {
	dev := newTestDevice(t, "")
	src := newTestScene(t, dev, SceneStatic, 0)
	dst := newTestScene(t, dev, SceneStatic, 0)
	th := NewThread()

	prim := addTriangle(t, th, src, types.Vec3{})
	th.Commit(src)

	// Shift the instance id away from the source geometry id.
	th.NewUserGeometry(dst, 1)
	inst := th.NewInstance(dst, src)
	require.NotEqual(t, InvalidGeometryID, inst)
	xfm, err := types.EncodeAffine(RowMajor, types.Translation(types.Vec3{5, 0, 0}))
	require.NoError(t, err)
	th.SetTransform(dst, inst, RowMajor, xfm)
	th.Commit(dst)
	require.Equal(t, NoError, th.GetError())

	r := downRay(5.25, 0.25)
	th.Intersect1(dst, r)
	assert.Equal(t, prim, r.GeomID)
	assert.Equal(t, inst, r.InstID)

	orig := downRay(0.25, 0.25)
	th.Intersect1(dst, orig)
	assert.False(t, orig.Hit())
}

func TestQueryCountersAndCollector(t *testing.T) {
	dev, s, id := committedTriangle(t, "stats=1", 0)
	requirePacketWidth(t, dev, W4)
	th := NewThread()

	var events []TraceEvent
	th.SetRayCollector(dev, RayCollectorFunc(func(ev TraceEvent) {
		events = append(events, ev)
	}))

	valid := NewValidMask(W4)
	valid[2] = 0
	th.Intersect4(valid, s, downPacket(W4, 0.1, 0.1, 0.2))
	th.Occluded1(s, downRay(0.1, 0.1))
	require.Equal(t, NoError, th.GetError())

	require.Len(t, events, 2)
	assert.Equal(t, intersectKind, events[0].Kind)
	assert.Equal(t, []int{0, 1, 3}, events[0].Lanes)
	require.Len(t, events[0].Before, 3)
	assert.Equal(t, InvalidGeometryID, events[0].Before[0].GeomID)
	assert.Equal(t, id, events[0].After[0].GeomID)
	assert.Equal(t, occludedKind, events[1].Kind)

	families, err := th.Gatherer(dev).Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			values[family.GetName()+"{"+formatLabels(metric.GetLabel())+"}"] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["rtcore_query_calls_total{kind=intersect,width=4}"])
	assert.Equal(t, 1.0, values["rtcore_query_calls_total{kind=occluded,width=1}"])
	assert.Equal(t, 3.0, values["rtcore_query_lanes_total{kind=intersect,lanes=active,width=4}"])
	assert.Equal(t, 4.0, values["rtcore_query_lanes_total{kind=intersect,lanes=attempted,width=4}"])

	dump := th.DebugDump(dev)
	require.Equal(t, NoError, th.GetError())
	assert.Contains(t, dump, "rtcore_query_calls_total")
	assert.Contains(t, dump, "Build time")

	families, err = th.Gatherer(dev).Gather()
	require.NoError(t, err)
	for _, family := range families {
		assert.Empty(t, family.GetMetric(), "counters not reset by DebugDump")
	}
}

func TestPacketQueriesAllocateLikeSingleRays(t *testing.T) {
	dev := newTestDevice(t, "")
	requirePacketWidth(t, dev, W4)
	s := newTestScene(t, dev, SceneStatic, 0)
	th := NewThread()
	th.Commit(s)
	require.Equal(t, NoError, th.GetError())

	ray := downRay(0.25, 0.25)
	packet := downPacket(W4, 0.1, 0.1, 0.2)
	valid := NewValidMask(W4)

	single := testing.AllocsPerRun(100, func() { th.Intersect1(s, ray) })
	wide := testing.AllocsPerRun(100, func() { th.IntersectN(W4, valid, s, packet) })
	assert.Equal(t, single, wide)
	require.Equal(t, NoError, th.GetError())
}
