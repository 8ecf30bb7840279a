// Package blast is the host-side entry point for BLAS routines. Each routine
// validates its operands, picks a fast or generic kernel from the device's
// tuning parameters, binds arguments and launches on a device.Queue, then
// waits for completion. Results are reported as blas.Status values.
package blast

import (
	"fmt"

	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/routine"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Event describes one kernel launch reported to an observer.
type Event = routine.Event

// Engine binds routines to one queue and program cache. It is safe for
// concurrent use. Calls on the same queue, from this or any other Engine,
// run one at a time.
type Engine struct {
	d   *routine.Dispatcher
	log logger.Logger
}

type options struct {
	tuning   *tuning.Database
	log      logger.Logger
	observer func(Event)
}

type Option func(*options)

func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTuning replaces the built-in tuning database.
func WithTuning(db *tuning.Database) Option {
	return func(o *options) { o.tuning = db }
}

// WithObserver registers fn to be called after every kernel launch.
func WithObserver(fn func(Event)) Option {
	return func(o *options) { o.observer = fn }
}

// New resolves tuning parameters for the queue's device once; routine calls
// never consult the database again. Programs that report the parameters they
// were compiled with override the database.
func New(queue device.Queue, programs device.ProgramCache, opts ...Option) (*Engine, error) {
	o := options{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	d, err := routine.NewDispatcher(routine.Config{
		Queue:    queue,
		Programs: programs,
		Tuning:   o.tuning,
		Logger:   o.log,
		Routines: Routines(),
		Observer: o.observer,
	})
	if err != nil {
		return nil, fmt.Errorf("blast: %w", err)
	}
	return &Engine{d: d, log: o.log}, nil
}

func (e *Engine) Device() device.Info {
	return e.d.Device()
}

// Params returns the resolved tuning parameters of a kernel family.
func (e *Engine) Params(family string, p blas.Precision) (tuning.Params, bool) {
	params, ok := e.d.Params(family, p)
	if !ok {
		return nil, false
	}
	return params.Clone(), true
}

// Vector is a strided view into a device buffer: element i lives at
// Offset + i*Inc.
type Vector struct {
	Buffer device.Buffer
	Offset int
	Inc    int
}

// Vec is a contiguous view from element zero.
func Vec(b device.Buffer) Vector {
	return Vector{Buffer: b, Inc: 1}
}

func (v Vector) operand(name string, n int, p blas.Precision) routine.VectorOperand {
	return routine.VectorOperand{
		Name:     name,
		N:        n,
		Buffer:   v.Buffer,
		Offset:   v.Offset,
		Inc:      v.Inc,
		ElemSize: p.ElemSize(),
	}
}

// Scalar is a single element of a device buffer, used for reduction results.
type Scalar struct {
	Buffer device.Buffer
	Offset int
}

// Matrix is a dense matrix in a device buffer with leading dimension LD.
type Matrix struct {
	Buffer device.Buffer
	Offset int
	LD     int
}

func flag(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
