// Package device defines the boundary between routine dispatch and an
// execution backend. Backends (host, cuda, webgpu) implement these interfaces;
// the dispatcher never looks behind them.
package device

import (
	"errors"

	"github.com/samcharles93/blast/pkg/blas"
)

var (
	ErrProgramNotFound      = errors.New("program not found")
	ErrKernelNotFound       = errors.New("kernel not found")
	ErrArgument             = errors.New("invalid kernel argument")
	ErrLaunch               = errors.New("kernel launch failed")
	ErrUnsupportedPrecision = errors.New("precision not supported by backend")
	ErrQueueClosed          = errors.New("queue closed")
)

// Buffer is an opaque device memory handle. Size reports the allocated
// capacity in bytes.
type Buffer interface {
	Size() int64
}

// Program is a compiled collection of kernels for one routine and precision.
type Program interface {
	Name() string
	Precision() blas.Precision
}

// Kernel is a launchable entry point of a Program. Arguments are positional
// and must match the kernel's declared signature exactly.
type Kernel interface {
	Name() string
	SetArgument(index int, value any) error
}

// ProgramCache supplies compiled programs. It never compiles on behalf of the
// dispatcher; a miss is reported as ErrProgramNotFound.
type ProgramCache interface {
	GetProgram(routine string, precision blas.Precision) (Program, error)
}

// Queue is an in-order execution queue on one device.
type Queue interface {
	Device() Info
	CreateKernel(program Program, name string) (Kernel, error)
	// Enqueue schedules k over an NDRange of global work-items split into
	// work-groups of local size. It may return before the kernel runs.
	Enqueue(k Kernel, global, local []int) error
	// Finish blocks until every enqueued command has completed and reports the
	// first failure among them.
	Finish() error
	Alloc(precision blas.Precision, n int) (Buffer, error)
	Release(b Buffer) error
}

// Info describes the device behind a queue. Tuning lookups key on Name and
// Vendor.
type Info struct {
	Backend          string   `json:"backend" yaml:"backend"`
	Name             string   `json:"name" yaml:"name"`
	Vendor           string   `json:"vendor" yaml:"vendor"`
	MaxWorkGroupSize int      `json:"max_work_group_size" yaml:"max_work_group_size"`
	Features         []string `json:"features,omitempty" yaml:"features,omitempty"`
}
