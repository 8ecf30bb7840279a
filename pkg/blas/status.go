package blas

import (
	"errors"
	"fmt"
)

// Status is the result of a routine invocation. It is returned by value and
// never carries state beyond its code.
type Status int

// Codes follow the numbering of the OpenCL-based library this layer mirrors so
// that logs and tools can be compared side by side.
const (
	Success              Status = 0
	InvalidValue         Status = -30
	InvalidKernel        Status = -48
	InvalidBufferSize    Status = -61
	InvalidIncrement     Status = -1013
	InvalidLeadDimension Status = -1016
	InvalidDimension     Status = -1017
)

var (
	ErrInvalidValue         = errors.New("invalid value")
	ErrInvalidKernel        = errors.New("invalid kernel")
	ErrInvalidBufferSize    = errors.New("invalid buffer size")
	ErrInvalidIncrement     = errors.New("invalid increment")
	ErrInvalidLeadDimension = errors.New("invalid leading dimension")
	ErrInvalidDimension     = errors.New("invalid dimension")
)

var statusNames = map[Status]string{
	Success:              "success",
	InvalidValue:         "invalid-value",
	InvalidKernel:        "invalid-kernel",
	InvalidBufferSize:    "invalid-buffer-size",
	InvalidIncrement:     "invalid-increment",
	InvalidLeadDimension: "invalid-lead-dimension",
	InvalidDimension:     "invalid-dimension",
}

var statusErrors = map[Status]error{
	InvalidValue:         ErrInvalidValue,
	InvalidKernel:        ErrInvalidKernel,
	InvalidBufferSize:    ErrInvalidBufferSize,
	InvalidIncrement:     ErrInvalidIncrement,
	InvalidLeadDimension: ErrInvalidLeadDimension,
	InvalidDimension:     ErrInvalidDimension,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Err converts a status into an error. Success maps to nil.
func (s Status) Err() error {
	if s == Success {
		return nil
	}
	return &StatusError{Status: s}
}

// ErrorIn reports whether s is anything other than Success.
func ErrorIn(s Status) bool {
	return s != Success
}

// StatusError wraps a non-success Status so it can travel through error
// returns. errors.Is matches it against the Err* sentinels.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blas: %s (%d)", e.Status, int(e.Status))
}

func (e *StatusError) Unwrap() error {
	return statusErrors[e.Status]
}
