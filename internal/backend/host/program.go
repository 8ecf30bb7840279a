package host

import (
	"fmt"
	"maps"
	"slices"

	"github.com/x448/float16"

	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

type argKind uint8

const (
	argInt argKind = iota
	argScalar
	argBuffer
)

func (k argKind) String() string {
	switch k {
	case argInt:
		return "int32"
	case argScalar:
		return "scalar"
	default:
		return "buffer"
	}
}

// group identifies one emulated work-group.
type group struct {
	id     int
	local  int
	global int
}

type groupFunc func(g group)

// kernelDef is a compiled entry point: its argument signature and a binder
// that turns a complete argument list into a work-group body.
type kernelDef[T blas.Element] struct {
	name string
	sig  []argKind
	bind func(a args[T]) groupFunc
}

type args[T blas.Element] []any

func (a args[T]) i32(i int) int   { return int(a[i].(int32)) }
func (a args[T]) scalar(i int) T  { return a[i].(T) }
func (a args[T]) vec(i int) []T   { return a[i].(*Buffer[T]).data }
func (a args[T]) flag(i int) bool { return a[i].(int32) != 0 }

type kernel[T blas.Element] struct {
	def  *kernelDef[T]
	args []any
}

func (k *kernel[T]) Name() string { return k.def.name }

func (k *kernel[T]) SetArgument(index int, value any) error {
	if index < 0 || index >= len(k.def.sig) {
		return fmt.Errorf("%w: %s takes %d arguments, got index %d", device.ErrArgument, k.def.name, len(k.def.sig), index)
	}
	want := k.def.sig[index]
	ok := false
	switch want {
	case argInt:
		_, ok = value.(int32)
	case argScalar:
		_, ok = value.(T)
	case argBuffer:
		b, isBuf := value.(*Buffer[T])
		ok = isBuf && b != nil
	}
	if !ok {
		return fmt.Errorf("%w: %s argument %d wants %s, got %T", device.ErrArgument, k.def.name, index, want, value)
	}
	k.args[index] = value
	return nil
}

// launch snapshots the bound arguments so later SetArgument calls do not
// affect work already enqueued.
func (k *kernel[T]) launch() (groupFunc, error) {
	a := make(args[T], len(k.args))
	for i, v := range k.args {
		if v == nil {
			return nil, fmt.Errorf("%w: %s argument %d not set", device.ErrArgument, k.def.name, i)
		}
		a[i] = v
	}
	return k.def.bind(a), nil
}

type launcher interface {
	device.Kernel
	launch() (groupFunc, error)
}

// Program holds the kernels of one routine compiled for one precision with
// its tuning parameters baked in.
type Program struct {
	routine   string
	precision blas.Precision
	params    tuning.Params
	kernels   map[string]func() launcher
}

func (p *Program) Name() string              { return p.routine }
func (p *Program) Precision() blas.Precision { return p.precision }

// Params returns the tuning set the program was compiled with.
func (p *Program) Params() tuning.Params { return p.params.Clone() }

func (p *Program) Kernels() []string {
	return slices.Sorted(maps.Keys(p.kernels))
}

// family maps each routine to the tuning family its kernels read.
var family = map[string]string{
	device.RoutineAxpy: tuning.KernelAxpy,
	device.RoutineScal: tuning.KernelAxpy,
	device.RoutineCopy: tuning.KernelAxpy,
	device.RoutineSwap: tuning.KernelAxpy,
	device.RoutineDot:  tuning.KernelDot,
	device.RoutineGemv: tuning.KernelGemv,
}

func sources[T blas.Element](routine string, params tuning.Params) ([]*kernelDef[T], error) {
	o := arithFor[T]()
	switch routine {
	case device.RoutineAxpy:
		return axpyKernels(params, o)
	case device.RoutineScal:
		return scalKernels(params, o)
	case device.RoutineCopy:
		return copyKernels[T](params)
	case device.RoutineSwap:
		return swapKernels[T](params)
	case device.RoutineDot:
		return dotKernels(params, o)
	case device.RoutineGemv:
		return gemvKernels(params, o)
	default:
		return nil, fmt.Errorf("%w: %s", device.ErrProgramNotFound, routine)
	}
}

func instantiate[T blas.Element](routine string, params tuning.Params) (map[string]func() launcher, error) {
	defs, err := sources[T](routine, params)
	if err != nil {
		return nil, err
	}
	out := make(map[string]func() launcher, len(defs))
	for _, def := range defs {
		out[def.name] = func() launcher {
			return &kernel[T]{def: def, args: make([]any, len(def.sig))}
		}
	}
	return out, nil
}

func compile(routine string, p blas.Precision, params tuning.Params) (*Program, error) {
	var (
		kernels map[string]func() launcher
		err     error
	)
	switch p {
	case blas.Half:
		kernels, err = instantiate[float16.Float16](routine, params)
	case blas.Single:
		kernels, err = instantiate[float32](routine, params)
	case blas.Double:
		kernels, err = instantiate[float64](routine, params)
	case blas.ComplexSingle:
		kernels, err = instantiate[complex64](routine, params)
	case blas.ComplexDouble:
		kernels, err = instantiate[complex128](routine, params)
	default:
		return nil, fmt.Errorf("%w: %s", device.ErrUnsupportedPrecision, p)
	}
	if err != nil {
		return nil, err
	}
	return &Program{routine: routine, precision: p, params: params, kernels: kernels}, nil
}

type programKey struct {
	routine   string
	precision blas.Precision
}

// Programs is the host program cache. Every routine is compiled for every
// precision when the cache is built; lookups never compile.
type Programs struct {
	programs map[programKey]*Program
}

// NewPrograms compiles all host routines against the parameters db resolves
// for info.
func NewPrograms(db *tuning.Database, info device.Info) (*Programs, error) {
	if db == nil {
		db = tuning.Default()
	}
	c := &Programs{programs: make(map[programKey]*Program)}
	for _, routine := range device.Routines() {
		for _, p := range blas.Precisions() {
			params, err := db.Lookup(family[routine], p, info)
			if err != nil {
				return nil, fmt.Errorf("host: compile %s/%s: %w", routine, p, err)
			}
			prog, err := compile(routine, p, params)
			if err != nil {
				return nil, fmt.Errorf("host: compile %s/%s: %w", routine, p, err)
			}
			c.programs[programKey{routine: routine, precision: p}] = prog
		}
	}
	return c, nil
}

func (c *Programs) GetProgram(routine string, p blas.Precision) (device.Program, error) {
	prog, ok := c.programs[programKey{routine: routine, precision: p}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", device.ErrProgramNotFound, routine, p)
	}
	return prog, nil
}
