package bvh

import (
	"unsafe"

	"github.com/achilleasa/rtcore/types"
)

// Bvh nodes are comprised of two Vec3 and two multipurpose int32 parameters
// whose value depends on the node type:
//
// - For inner nodes both are >0 and point to the L/R child nodes
// - For leafs LData is <= 0 and holds the negated index of the first item
// in the leaf item order; RData holds the leaf item count.
type Node struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Size of a node in bytes; used for memory accounting.
const NodeSize = int64(unsafe.Sizeof(Node{}))

// Set bounding box.
func (n *Node) SetBBox(bbox types.BBox) {
	n.Min = bbox[0]
	n.Max = bbox[1]
}

// Get bounding box.
func (n *Node) BBox() types.BBox {
	return types.BBox{n.Min, n.Max}
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *Node) ChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set first item index and count.
func (n *Node) SetItems(first, count uint32) {
	n.LData = -int32(first)
	n.RData = int32(count)
}

// Get first item index and count.
func (n *Node) Items() (first, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Returns true if this is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LData <= 0
}
