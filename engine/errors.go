package engine

import "errors"

var (
	ErrOutOfMemory          = errors.New("engine: memory monitor forced termination")
	ErrAllocationTooLarge   = errors.New("engine: element count exceeds the addressable buffer size")
	ErrInvalidGeometry      = errors.New("engine: invalid geometry id")
	ErrInvalidBuffer        = errors.New("engine: invalid buffer type for geometry")
	ErrBufferTooSmall       = errors.New("engine: buffer too small for element count")
	ErrBufferAlignment      = errors.New("engine: buffer offset and stride must be 4 byte aligned")
	ErrBufferMapped         = errors.New("engine: buffer is already mapped")
	ErrBufferNotMapped      = errors.New("engine: buffer is not mapped")
	ErrMappedAtBuild        = errors.New("engine: geometry has mapped buffers")
	ErrInvalidTimeSteps     = errors.New("engine: only 1 or 2 time steps are supported")
	ErrUnsupportedOperation = errors.New("engine: operation not supported by geometry type")
	ErrInvalidArgument      = errors.New("engine: invalid argument")
	ErrInvalidTransform     = errors.New("engine: instance transform is not invertible")
)
