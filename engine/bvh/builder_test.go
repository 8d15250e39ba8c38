package bvh

import (
	"testing"

	"github.com/achilleasa/rtcore/types"
)

type boxItem struct {
	box types.BBox
}

func (b boxItem) BBox() types.BBox   { return b.box }
func (b boxItem) Center() types.Vec3 { return b.box.Center() }

func TestLeafCallback(t *testing.T) {
	type primSpec struct {
		min types.Vec3
		max types.Vec3
	}

	primSpecs := []primSpec{
		{types.Vec3{-2, 0, -2}, types.Vec3{-1, 1, -1}},
		{types.Vec3{1, 0, -2}, types.Vec3{2, 1, -1}},
		{types.Vec3{-2, 0, 1}, types.Vec3{-1, 1, 2}},
		{types.Vec3{1, 0, 1}, types.Vec3{2, 1, 2}},
	}

	itemList := make([]BoundedVolume, len(primSpecs))
	for idx, ps := range primSpecs {
		itemList[idx] = boxItem{types.BBox{ps.min, ps.max}}
	}

	var cbCount = 0
	var expItemListCount = 0
	cb := func(leaf *Node, itemList []BoundedVolume) {
		cbCount++
		if len(itemList) != expItemListCount {
			t.Fatalf("expected leaf callback to be called with %d items; got %d", expItemListCount, len(itemList))
		}
	}

	var expCount = 0

	// Partition each item in a single leaf
	cbCount = 0
	expItemListCount = 1
	treeNodes, stats := Build(itemList, 1, cb, SurfaceAreaHeuristic)

	expCount = 4
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 7
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
	if stats.Leafs != 4 || stats.Nodes != 7 {
		t.Fatalf("expected stats to report 4 leafs and 7 nodes; got %d and %d", stats.Leafs, stats.Nodes)
	}

	// Partition two items in a single leaf
	cbCount = 0
	expItemListCount = 2
	treeNodes, _ = Build(itemList, 2, cb, SurfaceAreaHeuristic)

	expCount = 2
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 3
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
}

func TestRootBoundsAndChildIndices(t *testing.T) {
	itemList := []BoundedVolume{
		boxItem{types.BBox{{0, 0, 0}, {1, 1, 1}}},
		boxItem{types.BBox{{5, 0, 0}, {6, 1, 1}}},
	}

	var order []int
	cb := func(leaf *Node, items []BoundedVolume) {
		leaf.SetItems(uint32(len(order)), uint32(len(items)))
		for range items {
			order = append(order, len(order))
		}
	}
	nodes, _ := Build(itemList, 1, cb, SurfaceAreaHeuristic)

	root := nodes[0]
	if root.IsLeaf() {
		t.Fatal("expected root to be an inner node")
	}
	if root.BBox() != (types.BBox{{0, 0, 0}, {6, 1, 1}}) {
		t.Fatalf("unexpected root bbox %v", root.BBox())
	}

	left, right := root.ChildNodes()
	if left == 0 || right == 0 {
		t.Fatalf("child indices must be > 0; got %d, %d", left, right)
	}
	for _, idx := range []uint32{left, right} {
		if !nodes[idx].IsLeaf() {
			t.Fatalf("expected node %d to be a leaf", idx)
		}
		if _, count := nodes[idx].Items(); count != 1 {
			t.Fatalf("expected leaf %d to hold 1 item; got %d", idx, count)
		}
	}
}

func TestEmptyWorkList(t *testing.T) {
	calls := 0
	nodes, _ := Build(nil, 1, func(*Node, []BoundedVolume) { calls++ }, SurfaceAreaHeuristic)
	if len(nodes) != 1 || calls != 1 {
		t.Fatalf("expected a single empty leaf; got %d nodes and %d leaf callbacks", len(nodes), calls)
	}
}
