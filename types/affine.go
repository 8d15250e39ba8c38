package types

import (
	"errors"

	"github.com/chewxy/math32"
)

var (
	ErrUnknownLayout  = errors.New("types: unknown matrix layout")
	ErrShortMatrix    = errors.New("types: not enough matrix elements for layout")
	ErrSingularMatrix = errors.New("types: matrix is not invertible")
)

// The memory layout of a flat transformation matrix.
type MatrixLayout uint8

const (
	// 3x4 matrix stored row by row (12 floats).
	RowMajor MatrixLayout = iota

	// 3x4 matrix stored column by column (12 floats).
	ColumnMajor

	// 4x4 matrix stored column by column (16 floats); the fourth row is ignored.
	ColumnMajorAligned16
)

func (l MatrixLayout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	case ColumnMajorAligned16:
		return "column-major-aligned16"
	}
	return "unknown"
}

// Affine3 is a 3x4 affine transformation: a linear part stored as three
// basis columns and a translation column.
type Affine3 struct {
	L [3]Vec3
	P Vec3
}

// The identity transformation.
func IdentityAffine() Affine3 {
	return Affine3{L: [3]Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translation returns a pure translation by p.
func Translation(p Vec3) Affine3 {
	a := IdentityAffine()
	a.P = p
	return a
}

// The element indices for col0..col3 under each layout.
var layoutIndices = map[MatrixLayout][4][3]int{
	RowMajor:             {{0, 4, 8}, {1, 5, 9}, {2, 6, 10}, {3, 7, 11}},
	ColumnMajor:          {{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9, 10, 11}},
	ColumnMajorAligned16: {{0, 1, 2}, {4, 5, 6}, {8, 9, 10}, {12, 13, 14}},
}

// DecodeAffine builds an affine transform from a flat array using the
// given layout.
func DecodeAffine(layout MatrixLayout, xfm []float32) (Affine3, error) {
	indices, ok := layoutIndices[layout]
	if !ok {
		return Affine3{}, ErrUnknownLayout
	}

	required := 12
	if layout == ColumnMajorAligned16 {
		required = 15
	}
	if len(xfm) < required {
		return Affine3{}, ErrShortMatrix
	}

	var cols [4]Vec3
	for col, idx := range indices {
		cols[col] = Vec3{xfm[idx[0]], xfm[idx[1]], xfm[idx[2]]}
	}
	return Affine3{L: [3]Vec3{cols[0], cols[1], cols[2]}, P: cols[3]}, nil
}

// EncodeAffine writes the transform into a flat array using the given layout.
// The destination must hold 12 floats (16 for ColumnMajorAligned16).
func EncodeAffine(layout MatrixLayout, a Affine3) ([]float32, error) {
	indices, ok := layoutIndices[layout]
	if !ok {
		return nil, ErrUnknownLayout
	}

	size := 12
	if layout == ColumnMajorAligned16 {
		size = 16
	}
	out := make([]float32, size)
	cols := [4]Vec3{a.L[0], a.L[1], a.L[2], a.P}
	for col, idx := range indices {
		for row := 0; row < 3; row++ {
			out[idx[row]] = cols[col][row]
		}
	}
	if layout == ColumnMajorAligned16 {
		out[15] = 1
	}
	return out, nil
}

// Transform a point.
func (a Affine3) XfmPoint(p Vec3) Vec3 {
	return a.XfmVector(p).Add(a.P)
}

// Transform a direction; translation is ignored.
func (a Affine3) XfmVector(v Vec3) Vec3 {
	return a.L[0].Mul(v[0]).Add(a.L[1].Mul(v[1])).Add(a.L[2].Mul(v[2]))
}

// Transform a normal using the inverse transpose of the linear part. The
// receiver must be the inverse of the transform that was applied to the
// geometry.
func (a Affine3) XfmNormal(n Vec3) Vec3 {
	return Vec3{a.L[0].Dot(n), a.L[1].Dot(n), a.L[2].Dot(n)}
}

// Compose returns a∘b (apply b first, then a).
func (a Affine3) Compose(b Affine3) Affine3 {
	return Affine3{
		L: [3]Vec3{a.XfmVector(b.L[0]), a.XfmVector(b.L[1]), a.XfmVector(b.L[2])},
		P: a.XfmPoint(b.P),
	}
}

// Determinant of the linear part.
func (a Affine3) Det() float32 {
	return a.L[0].Dot(a.L[1].Cross(a.L[2]))
}

// Inverse of the transformation.
func (a Affine3) Inverse() (Affine3, error) {
	det := a.Det()
	if math32.Abs(det) < floatCmpEpsilon {
		return Affine3{}, ErrSingularMatrix
	}

	// Rows of the inverse linear part are the cross products of the columns.
	invDet := 1 / det
	r0 := a.L[1].Cross(a.L[2]).Mul(invDet)
	r1 := a.L[2].Cross(a.L[0]).Mul(invDet)
	r2 := a.L[0].Cross(a.L[1]).Mul(invDet)

	inv := Affine3{
		L: [3]Vec3{
			{r0[0], r1[0], r2[0]},
			{r0[1], r1[1], r2[1]},
			{r0[2], r1[2], r2[2]},
		},
	}
	inv.P = inv.XfmVector(a.P).Mul(-1)
	return inv, nil
}

// Transform the eight corners of a box and return their bounds.
func (a Affine3) XfmBBox(b BBox) BBox {
	out := EmptyBBox()
	for i := 0; i < 8; i++ {
		corner := Vec3{b[i&1][0], b[(i>>1)&1][1], b[(i>>2)&1][2]}
		out = out.Extend(a.XfmPoint(corner))
	}
	return out
}
