package engine

import (
	"unsafe"

	"github.com/achilleasa/rtcore/types"
)

// InvalidGeometryID marks "no hit" in the GeomID, PrimID and InstID fields.
const InvalidGeometryID = ^uint32(0)

// Width is the number of rays traced together by one query call.
type Width int

const (
	W1  Width = 1
	W4  Width = 4
	W8  Width = 8
	W16 Width = 16
)

// Widths lists all supported packet widths in ascending order.
var Widths = [...]Width{W1, W4, W8, W16}

// Valid returns true for 1, 4, 8 and 16.
func (w Width) Valid() bool {
	return w.Index() >= 0
}

// Index maps a width to its slot in per-width callback tables.
func (w Width) Index() int {
	switch w {
	case W1:
		return 0
	case W4:
		return 1
	case W8:
		return 2
	case W16:
		return 3
	}
	return -1
}

// Alignment returns the required byte alignment for rays and validity
// masks of this width.
func (w Width) Alignment() uintptr {
	if w == W1 {
		return 16
	}
	return uintptr(w) * 4
}

// Ray is a single ray together with its hit record.
type Ray struct {
	Org types.Vec3
	_   float32
	Dir types.Vec3
	_   float32

	TNear float32
	TFar  float32
	Time  float32
	Mask  uint32

	// Unnormalized geometry normal of the hit.
	Ng types.Vec3
	_  float32

	// Barycentric hit coordinates.
	U, V float32

	GeomID uint32
	PrimID uint32
	InstID uint32
}

// ResetHit sets the hit ids to InvalidGeometryID.
func (r *Ray) ResetHit() {
	r.GeomID = InvalidGeometryID
	r.PrimID = InvalidGeometryID
	r.InstID = InvalidGeometryID
}

// Hit returns true if the ray recorded a hit.
func (r *Ray) Hit() bool {
	return r.GeomID != InvalidGeometryID
}

// The number of 32-bit fields of a ray, excluding padding.
const rayFields = 18

// RayPacket stores Width rays in structure-of-arrays form. All field
// slices share one backing array whose start is aligned to 64 bytes when
// the packet is allocated with NewRayPacket.
type RayPacket struct {
	width Width

	OrgX, OrgY, OrgZ []float32
	DirX, DirY, DirZ []float32
	TNear, TFar      []float32
	Time             []float32
	Mask             []uint32
	NgX, NgY, NgZ    []float32
	U, V             []float32
	GeomID           []uint32
	PrimID           []uint32
	InstID           []uint32
}

// alignedWords returns n uint32 words whose first element is aligned to align bytes.
func alignedWords(n int, align uintptr) []uint32 {
	pad := int(align / 4)
	buf := make([]uint32, n+pad)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	off := 0
	if rem := addr % align; rem != 0 {
		off = int((align - rem) / 4)
	}
	return buf[off : off+n : off+n]
}

func f32view(words []uint32) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&words[0])), len(words))
}

// NewRay allocates a 16 byte aligned ray with an empty hit record.
func NewRay(org, dir types.Vec3, tnear, tfar float32) *Ray {
	words := alignedWords(int(unsafe.Sizeof(Ray{})/4), 16)
	r := (*Ray)(unsafe.Pointer(&words[0]))
	r.Org = org
	r.Dir = dir
	r.TNear = tnear
	r.TFar = tfar
	r.Mask = ^uint32(0)
	r.ResetHit()
	return r
}

// NewRayPacket allocates an aligned packet of the given width with every
// lane's hit record cleared and its mask set to all ones.
func NewRayPacket(width Width) *RayPacket {
	w := int(width)
	words := alignedWords(rayFields*w, 64)
	field := func(i int) []uint32 {
		return words[i*w : (i+1)*w : (i+1)*w]
	}

	p := &RayPacket{
		width:  width,
		OrgX:   f32view(field(0)),
		OrgY:   f32view(field(1)),
		OrgZ:   f32view(field(2)),
		DirX:   f32view(field(3)),
		DirY:   f32view(field(4)),
		DirZ:   f32view(field(5)),
		TNear:  f32view(field(6)),
		TFar:   f32view(field(7)),
		Time:   f32view(field(8)),
		Mask:   field(9),
		NgX:    f32view(field(10)),
		NgY:    f32view(field(11)),
		NgZ:    f32view(field(12)),
		U:      f32view(field(13)),
		V:      f32view(field(14)),
		GeomID: field(15),
		PrimID: field(16),
		InstID: field(17),
	}
	for lane := 0; lane < w; lane++ {
		p.Mask[lane] = ^uint32(0)
		p.GeomID[lane] = InvalidGeometryID
		p.PrimID[lane] = InvalidGeometryID
		p.InstID[lane] = InvalidGeometryID
	}
	return p
}

// NewValidMask allocates an aligned validity mask with every lane active.
func NewValidMask(width Width) []int32 {
	words := alignedWords(int(width), width.Alignment())
	mask := unsafe.Slice((*int32)(unsafe.Pointer(&words[0])), len(words))
	for i := range mask {
		mask[i] = -1
	}
	return mask
}

// Width returns the number of lanes in the packet.
func (p *RayPacket) Width() Width {
	return p.width
}

// Ray extracts a lane into a single ray.
func (p *RayPacket) Ray(lane int) Ray {
	return Ray{
		Org:    types.Vec3{p.OrgX[lane], p.OrgY[lane], p.OrgZ[lane]},
		Dir:    types.Vec3{p.DirX[lane], p.DirY[lane], p.DirZ[lane]},
		TNear:  p.TNear[lane],
		TFar:   p.TFar[lane],
		Time:   p.Time[lane],
		Mask:   p.Mask[lane],
		Ng:     types.Vec3{p.NgX[lane], p.NgY[lane], p.NgZ[lane]},
		U:      p.U[lane],
		V:      p.V[lane],
		GeomID: p.GeomID[lane],
		PrimID: p.PrimID[lane],
		InstID: p.InstID[lane],
	}
}

// SetRay writes a single ray into a lane.
func (p *RayPacket) SetRay(lane int, r Ray) {
	p.OrgX[lane], p.OrgY[lane], p.OrgZ[lane] = r.Org[0], r.Org[1], r.Org[2]
	p.DirX[lane], p.DirY[lane], p.DirZ[lane] = r.Dir[0], r.Dir[1], r.Dir[2]
	p.TNear[lane] = r.TNear
	p.TFar[lane] = r.TFar
	p.Time[lane] = r.Time
	p.Mask[lane] = r.Mask
	p.NgX[lane], p.NgY[lane], p.NgZ[lane] = r.Ng[0], r.Ng[1], r.Ng[2]
	p.U[lane] = r.U
	p.V[lane] = r.V
	p.GeomID[lane] = r.GeomID
	p.PrimID[lane] = r.PrimID
	p.InstID[lane] = r.InstID
}

// Clone returns a deep copy of the packet.
func (p *RayPacket) Clone() *RayPacket {
	out := NewRayPacket(p.width)
	for lane := 0; lane < int(p.width); lane++ {
		out.SetRay(lane, p.Ray(lane))
	}
	return out
}

// Base returns the address of the first packet field; used for alignment checks.
func (p *RayPacket) Base() uintptr {
	if len(p.OrgX) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&p.OrgX[0]))
}

// Complete returns true if every field slice holds Width lanes.
func (p *RayPacket) Complete() bool {
	w := int(p.width)
	for _, n := range []int{
		len(p.OrgX), len(p.OrgY), len(p.OrgZ), len(p.DirX), len(p.DirY), len(p.DirZ),
		len(p.TNear), len(p.TFar), len(p.Time), len(p.Mask), len(p.NgX), len(p.NgY),
		len(p.NgZ), len(p.U), len(p.V), len(p.GeomID), len(p.PrimID), len(p.InstID),
	} {
		if n != w {
			return false
		}
	}
	return w > 0
}
