package rtcore

import (
	"errors"
	"fmt"

	"github.com/achilleasa/rtcore/engine"
	"github.com/achilleasa/rtcore/types"
)

// Code is the error code stored in a thread's error cell.
type Code int

const (
	NoError Code = iota
	UnknownError
	InvalidArgument
	InvalidOperation
	OutOfMemory
	UnsupportedCPU
)

func (c Code) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case UnknownError:
		return "UNKNOWN_ERROR"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InvalidOperation:
		return "INVALID_OPERATION"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case UnsupportedCPU:
		return "UNSUPPORTED_CPU"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the error recorded by a failed API call.
type Error struct {
	Code Code

	// The API call that failed.
	Op string

	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("rtcore: %s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("rtcore: %s: %s: %s", e.Op, e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Engine and math errors grouped by the code they surface as.
var (
	argumentErrors = []error{
		engine.ErrInvalidGeometry,
		engine.ErrInvalidBuffer,
		engine.ErrBufferTooSmall,
		engine.ErrAllocationTooLarge,
		engine.ErrInvalidArgument,
		engine.ErrInvalidTransform,
		types.ErrShortMatrix,
		types.ErrSingularMatrix,
	}
	operationErrors = []error{
		engine.ErrBufferAlignment,
		engine.ErrBufferMapped,
		engine.ErrBufferNotMapped,
		engine.ErrMappedAtBuild,
		engine.ErrInvalidTimeSteps,
		engine.ErrUnsupportedOperation,
		types.ErrUnknownLayout,
	}
)

// Map an internal error to its code.
func codeOf(err error) Code {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	if errors.Is(err, engine.ErrOutOfMemory) {
		return OutOfMemory
	}
	for _, target := range argumentErrors {
		if errors.Is(err, target) {
			return InvalidArgument
		}
	}
	for _, target := range operationErrors {
		if errors.Is(err, target) {
			return InvalidOperation
		}
	}
	return UnknownError
}

// Convert any error into an *Error tagged with the failing call.
func asError(op string, err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		out := *apiErr
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return &Error{Code: codeOf(err), Op: op, Msg: err.Error(), Err: err}
}

// Convert a recovered panic value into an error.
func panicError(v interface{}) error {
	switch e := v.(type) {
	case *Error:
		return e
	case error:
		if codeOf(e) == UnknownError {
			return &Error{Code: UnknownError, Msg: "internal fault: " + e.Error(), Err: e}
		}
		return e
	}
	return &Error{Code: UnknownError, Msg: fmt.Sprintf("internal fault: %v", v)}
}
