package engine

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/achilleasa/rtcore/types"
)

// BufferType identifies one of the data arrays attached to a geometry.
type BufferType uint8

const (
	IndexBuffer BufferType = iota
	VertexBuffer0
	VertexBuffer1
	FaceBuffer
	LevelBuffer
	EdgeCreaseIndexBuffer
	EdgeCreaseWeightBuffer
	VertexCreaseIndexBuffer
	VertexCreaseWeightBuffer
	HoleBuffer
	UserVertexBuffer0
	UserVertexBuffer1
)

func (t BufferType) String() string {
	switch t {
	case IndexBuffer:
		return "index"
	case VertexBuffer0:
		return "vertex0"
	case VertexBuffer1:
		return "vertex1"
	case FaceBuffer:
		return "face"
	case LevelBuffer:
		return "level"
	case EdgeCreaseIndexBuffer:
		return "edge-crease-index"
	case EdgeCreaseWeightBuffer:
		return "edge-crease-weight"
	case VertexCreaseIndexBuffer:
		return "vertex-crease-index"
	case VertexCreaseWeightBuffer:
		return "vertex-crease-weight"
	case HoleBuffer:
		return "hole"
	case UserVertexBuffer0:
		return "user-vertex0"
	case UserVertexBuffer1:
		return "user-vertex1"
	}
	return "unknown"
}

// Buffer is a strided view over a byte array. Buffers start out owning
// storage sized for their element count; SetBuffer replaces the storage
// with a caller-owned slice.
type Buffer struct {
	data   []byte
	offset int
	stride int

	// Number of elements and the minimum bytes each element occupies.
	count    int
	elemSize int

	owned  bool
	mapped bool

	// Set by Update/UpdateBuffer; cleared by the next build.
	dirty bool
}

// Upper bound for the owned storage of a single geometry.
const maxGeometryBytes = 1 << 40

// The shape of an owned buffer, known before its storage is allocated.
type bufferLayout struct {
	t        BufferType
	count    int
	stride   int
	elemSize int
}

// Total owned bytes needed by layouts. Requests that overflow or exceed
// maxGeometryBytes fail with ErrAllocationTooLarge.
func layoutBytes(layouts []bufferLayout) (int64, error) {
	var total int64
	for _, l := range layouts {
		if int64(l.count) > (maxGeometryBytes-total)/int64(l.stride) {
			return 0, ErrAllocationTooLarge
		}
		total += int64(l.count) * int64(l.stride)
	}
	return total, nil
}

func newBuffer(count, stride, elemSize int) *Buffer {
	return &Buffer{
		data:     make([]byte, count*stride),
		stride:   stride,
		count:    count,
		elemSize: elemSize,
		owned:    true,
		dirty:    true,
	}
}

// Size of the owned storage in bytes; zero for caller-owned buffers.
func (b *Buffer) ownedBytes() int64 {
	if !b.owned {
		return 0
	}
	return int64(len(b.data))
}

// Count returns the number of elements in the buffer.
func (b *Buffer) Count() int {
	return b.count
}

// Stride returns the distance in bytes between consecutive elements.
func (b *Buffer) Stride() int {
	return b.stride
}

// Mapped returns true while the buffer is mapped for writing.
func (b *Buffer) Mapped() bool {
	return b.mapped
}

// Map returns the writable storage starting at the buffer offset.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped {
		return nil, ErrBufferMapped
	}
	b.mapped = true
	return b.data[b.offset:], nil
}

// Unmap marks the buffer contents as final.
func (b *Buffer) Unmap() error {
	if !b.mapped {
		return ErrBufferNotMapped
	}
	b.mapped = false
	b.dirty = true
	return nil
}

// Share points the buffer at caller-owned storage. It returns the number
// of owned bytes released.
func (b *Buffer) Share(data []byte, offset, stride int) (int64, error) {
	if b.mapped {
		return 0, ErrBufferMapped
	}
	if offset < 0 || stride <= 0 || offset%4 != 0 || stride%4 != 0 {
		return 0, ErrBufferAlignment
	}
	if stride < b.elemSize {
		return 0, ErrBufferTooSmall
	}
	if b.count > 0 && offset+(b.count-1)*stride+b.elemSize > len(data) {
		return 0, ErrBufferTooSmall
	}

	released := b.ownedBytes()
	b.data = data
	b.offset = offset
	b.stride = stride
	b.owned = false
	b.dirty = true
	return released, nil
}

func (b *Buffer) elem(i int) []byte {
	start := b.offset + i*b.stride
	return b.data[start : start+b.elemSize]
}

// Float32 reads component c of element i. Components may extend into the
// stride padding.
func (b *Buffer) Float32(i, c int) float32 {
	return math.Float32frombits(b.Uint32(i, c))
}

// Uint32 reads component c of element i.
func (b *Buffer) Uint32(i, c int) uint32 {
	start := b.offset + i*b.stride + c*4
	return binary.NativeEndian.Uint32(b.data[start : start+4])
}

// Vec3 reads the first three float components of element i.
func (b *Buffer) Vec3(i int) types.Vec3 {
	e := b.elem(i)
	return types.Vec3{
		math.Float32frombits(binary.NativeEndian.Uint32(e[0:])),
		math.Float32frombits(binary.NativeEndian.Uint32(e[4:])),
		math.Float32frombits(binary.NativeEndian.Uint32(e[8:])),
	}
}

// Float32s reinterprets a byte slice as float32 values. The slice must be
// 4 byte aligned; buffers returned by MapBuffer always are.
func Float32s(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// Uint32s reinterprets a byte slice as uint32 values.
func Uint32s(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// AsBytes returns the bytes backing a float32 or uint32 slice.
func AsBytes[T float32 | uint32 | int32](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
}
