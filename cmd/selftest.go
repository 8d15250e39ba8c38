package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/achilleasa/rtcore/rtcore"
	"github.com/achilleasa/rtcore/types"
	"github.com/chewxy/math32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// Rays fired along each axis of the sampled area.
const samplesPerAxis = 64

// Add a grid x grid lattice of unit quads in the z=0 plane.
func addGrid(th *rtcore.Thread, scene rtcore.Scene, grid int) rtcore.GeomID {
	numVerts := (grid + 1) * (grid + 1)
	numTris := 2 * grid * grid

	id := th.NewTriangleMesh(scene, rtcore.GeometryStatic, numTris, numVerts, 1)
	if id == rtcore.InvalidGeometryID {
		return id
	}

	verts := rtcore.Float32s(th.MapBuffer(scene, id, rtcore.VertexBuffer0))
	for y := 0; y <= grid; y++ {
		for x := 0; x <= grid; x++ {
			offset := 4 * (y*(grid+1) + x)
			verts[offset+0] = float32(x)
			verts[offset+1] = float32(y)
			verts[offset+2] = 0
		}
	}
	th.UnmapBuffer(scene, id, rtcore.VertexBuffer0)

	indices := rtcore.Uint32s(th.MapBuffer(scene, id, rtcore.IndexBuffer))
	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {
			v0 := uint32(y*(grid+1) + x)
			v1, v2, v3 := v0+1, v0+uint32(grid+1), v0+uint32(grid+2)
			offset := 6 * (y*grid + x)
			copy(indices[offset:offset+6], []uint32{v0, v1, v2, v1, v3, v2})
		}
	}
	th.UnmapBuffer(scene, id, rtcore.IndexBuffer)
	return id
}

// Run a collective commit on numThreads goroutines.
func commitTeam(scene rtcore.Scene, numThreads int) error {
	var g errgroup.Group
	for threadID := 0; threadID < numThreads; threadID++ {
		threadID := threadID
		g.Go(func() error {
			th := rtcore.NewThread()
			th.CommitThread(scene, threadID, numThreads)
			return th.Err()
		})
	}
	return g.Wait()
}

type hitCounts struct {
	direct, instanced, missed, occluded int
}

// Sweep the area around both grids with downward packets.
func sweep(th *rtcore.Thread, scene rtcore.Scene, width rtcore.Width, grid int, inst rtcore.GeomID) hitCounts {
	var counts hitCounts

	minX, maxX := -0.5*float32(grid), 3.5*float32(grid)
	minY, maxY := -1.5*float32(grid), 1.5*float32(grid)
	stepX := (maxX - minX) / samplesPerAxis
	stepY := (maxY - minY) / samplesPerAxis

	valid := rtcore.NewValidMask(width)
	w := int(width)
	for sample := 0; sample < samplesPerAxis*samplesPerAxis; sample += w {
		packet := rtcore.NewRayPacket(width)
		occ := rtcore.NewRayPacket(width)
		for lane := 0; lane < w; lane++ {
			idx := sample + lane
			x := minX + (float32(idx%samplesPerAxis)+0.5)*stepX
			y := minY + (float32(idx/samplesPerAxis)+0.5)*stepY
			ray := rtcore.NewRay(types.Vec3{x, y, 1}, types.Vec3{0, 0, -1}, 0, 10)
			packet.SetRay(lane, *ray)
			occ.SetRay(lane, *ray)
		}

		th.IntersectN(width, valid, scene, packet)
		th.OccludedN(width, valid, scene, occ)
		for lane := 0; lane < w; lane++ {
			switch {
			case packet.GeomID[lane] == rtcore.InvalidGeometryID:
				counts.missed++
			case packet.InstID[lane] == inst:
				counts.instanced++
			default:
				counts.direct++
			}
			if occ.GeomID[lane] == 0 {
				counts.occluded++
			}
		}
	}
	return counts
}

// Selftest builds a triangle grid and a rotated instance of it, commits
// the scene with a team of goroutines and sweeps it with ray packets.
func Selftest(ctx *cli.Context) error {
	cfg, err := LoadConfig(ctx.String("config"))
	if err != nil {
		logger.Error(err)
		return err
	}
	setupLogging(ctx, cfg.Level())
	if ctx.IsSet("threads") {
		cfg.Selftest.CommitThreads = ctx.Int("threads")
	}
	if ctx.IsSet("width") {
		cfg.Selftest.Width = ctx.Int("width")
	}
	if ctx.IsSet("grid") {
		cfg.Selftest.Grid = ctx.Int("grid")
	}
	if err = cfg.Validate(); err != nil {
		logger.Error(err)
		return err
	}

	th := rtcore.NewThread()
	dev := th.NewDevice(cfg.Device.DeviceString())
	if err = th.Err(); err != nil {
		logger.Error(err)
		return err
	}
	defer th.DeleteDevice(dev)
	th.SetErrorFunction(dev, func(code rtcore.Code, msg string) {
		logger.Errorf("device error %s: %s", code, msg)
	})

	width := rtcore.Width(cfg.Selftest.Width)
	if maxWidth := th.MaxPacketWidth(dev); width > maxWidth {
		err = fmt.Errorf("packet width %d exceeds the device maximum of %d", width, maxWidth)
		logger.Error(err)
		return err
	}

	grid := cfg.Selftest.Grid
	src := th.NewScene(dev, rtcore.SceneStatic, rtcore.Intersect1)
	defer th.DeleteScene(src)
	addGrid(th, src, grid)
	th.Commit(src)

	top := th.NewScene(dev, rtcore.SceneStatic|rtcore.SceneCoherent, 0)
	defer th.DeleteScene(top)
	addGrid(th, top, grid)

	// A quarter turn around z moves the instanced copy below the x axis;
	// the shift places it next to the directly added grid.
	xfm := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, -math32.Pi/2).Affine()
	xfm.P = types.Vec3{2 * float32(grid), 0, 0}
	flat, err := types.EncodeAffine(types.RowMajor, xfm)
	if err != nil {
		logger.Error(err)
		return err
	}
	inst := th.NewInstance(top, src)
	th.SetTransform(top, inst, rtcore.RowMajor, flat)
	th.SetProgressMonitorFunction(top, func(_ interface{}, fraction float64) bool {
		logger.Debugf("build progress %3.0f%%", 100*fraction)
		return true
	}, nil)
	if err = th.Err(); err != nil {
		logger.Error(err)
		return err
	}

	start := time.Now()
	if err = commitTeam(top, cfg.Selftest.CommitThreads); err != nil {
		logger.Error(err)
		return err
	}
	commitTime := time.Since(start)

	start = time.Now()
	counts := sweep(th, top, width, grid, inst)
	sweepTime := time.Since(start)
	if err = th.Err(); err != nil {
		logger.Error(err)
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Rays", "Direct hits", "Instance hits", "Misses", "Occluded", "Commit time", "Sweep time"})
	table.Append([]string{
		fmt.Sprintf("%d", samplesPerAxis*samplesPerAxis),
		fmt.Sprintf("%d", counts.direct),
		fmt.Sprintf("%d", counts.instanced),
		fmt.Sprintf("%d", counts.missed),
		fmt.Sprintf("%d", counts.occluded),
		commitTime.String(),
		sweepTime.String(),
	})
	table.Render()
	logger.Noticef("selftest with %d commit threads and %d-wide packets\n%s", cfg.Selftest.CommitThreads, width, buf.String())

	th.DebugDump(dev)

	if counts.direct == 0 || counts.instanced == 0 || counts.direct+counts.instanced != counts.occluded {
		err = fmt.Errorf("selftest failed: %+v", counts)
		logger.Error(err)
		return err
	}
	return nil
}
