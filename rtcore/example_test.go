package rtcore_test

import (
	"fmt"

	"github.com/achilleasa/rtcore/rtcore"
	"github.com/achilleasa/rtcore/types"
)

func Example() {
	th := rtcore.NewThread()
	dev := th.NewDevice("threads=1")
	scene := th.NewScene(dev, rtcore.SceneStatic, rtcore.Intersect1)

	// One triangle in the z=0 plane.
	mesh := th.NewTriangleMesh(scene, rtcore.GeometryStatic, 1, 3, 1)
	copy(rtcore.Float32s(th.MapBuffer(scene, mesh, rtcore.VertexBuffer0)), []float32{
		0, 0, 0, 0,
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	th.UnmapBuffer(scene, mesh, rtcore.VertexBuffer0)
	copy(rtcore.Uint32s(th.MapBuffer(scene, mesh, rtcore.IndexBuffer)), []uint32{0, 1, 2})
	th.UnmapBuffer(scene, mesh, rtcore.IndexBuffer)
	th.Commit(scene)

	trace := func(org, dir types.Vec3) {
		ray := rtcore.NewRay(org, dir, 0, 100)
		th.Intersect1(scene, ray)
		if !ray.Hit() {
			fmt.Printf("%v -> %v: miss\n", org, dir)
			return
		}
		fmt.Printf("%v -> %v: geometry %d, t=%.2f, u=%.2f, v=%.2f\n", org, dir, ray.GeomID, ray.TFar, ray.U, ray.V)
	}
	down := types.Vec3{0, 0, -1}

	trace(types.Vec3{0.25, 0.25, 1}, down)
	trace(types.Vec3{0.9, 0.9, 1}, down)

	// A ray running inside the plane of the triangle.
	trace(types.Vec3{-1, 0.25, 0}, types.Vec3{1, 0, 0})

	th.DeleteGeometry(scene, mesh)
	th.Commit(scene)
	trace(types.Vec3{0.25, 0.25, 1}, down)

	fmt.Println("error:", th.GetError())
	th.DeleteScene(scene)
	th.DeleteDevice(dev)

	// Output:
	// [0.25 0.25 1] -> [0 0 -1]: geometry 0, t=1.00, u=0.25, v=0.25
	// [0.9 0.9 1] -> [0 0 -1]: miss
	// [-1 0.25 0] -> [1 0 0]: miss
	// [0.25 0.25 1] -> [0 0 -1]: miss
	// error: NO_ERROR
}
