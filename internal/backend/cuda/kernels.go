//go:build cuda

package cuda

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/blast/internal/backend/cuda/native"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

type argKind uint8

const (
	argInt argKind = iota
	argScalar
	argBuffer
)

type args []any

func (a args) i32(i int) int     { return int(a[i].(int32)) }
func (a args) buf(i int) *Buffer { return a[i].(*Buffer) }

// at views buffer argument buf at the offset held in argument off. Fast
// kernels pass off < 0 for an unoffset view.
func (a args) at(buf, off int) native.DeviceBuffer {
	if off < 0 {
		return a.buf(buf).at(0)
	}
	return a.buf(buf).at(a.i32(off))
}

func (a args) scalar(i int) float64 {
	switch v := a[i].(type) {
	case float32:
		return float64(v)
	default:
		return v.(float64)
	}
}

// level binds the cuBLAS entry points of one precision.
type level struct {
	axpy func(h native.BlasHandle, n int, alpha float64, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) error
	scal func(h native.BlasHandle, n int, alpha float64, x native.DeviceBuffer, incx int) error
	copy func(h native.BlasHandle, n int, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) error
	swap func(h native.BlasHandle, n int, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) error
	dot  func(h native.BlasHandle, n int, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) (float64, error)
	gemv func(h native.BlasHandle, op native.BlasOp, m, n int, alpha float64, a native.DeviceBuffer, lda int,
		x native.DeviceBuffer, incx int, beta float64, y native.DeviceBuffer, incy int) error
	// store writes v into dst from host memory.
	store func(dst native.DeviceBuffer, v float64) error
}

var levels = map[blas.Precision]level{
	blas.Single: {
		axpy: func(h native.BlasHandle, n int, alpha float64, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) error {
			return native.Saxpy(h, n, float32(alpha), x, incx, y, incy)
		},
		scal: func(h native.BlasHandle, n int, alpha float64, x native.DeviceBuffer, incx int) error {
			return native.Sscal(h, n, float32(alpha), x, incx)
		},
		copy: native.Scopy,
		swap: native.Sswap,
		dot: func(h native.BlasHandle, n int, x native.DeviceBuffer, incx int, y native.DeviceBuffer, incy int) (float64, error) {
			v, err := native.Sdot(h, n, x, incx, y, incy)
			return float64(v), err
		},
		gemv: func(h native.BlasHandle, op native.BlasOp, m, n int, alpha float64, a native.DeviceBuffer, lda int,
			x native.DeviceBuffer, incx int, beta float64, y native.DeviceBuffer, incy int) error {
			return native.Sgemv(h, op, m, n, float32(alpha), a, lda, x, incx, float32(beta), y, incy)
		},
		store: func(dst native.DeviceBuffer, v float64) error {
			f := float32(v)
			return native.MemcpyH2D(dst, unsafe.Pointer(&f), int64(unsafe.Sizeof(f)))
		},
	},
	blas.Double: {
		axpy: native.Daxpy,
		scal: native.Dscal,
		copy: native.Dcopy,
		swap: native.Dswap,
		dot:  native.Ddot,
		gemv: native.Dgemv,
		store: func(dst native.DeviceBuffer, v float64) error {
			return native.MemcpyH2D(dst, unsafe.Pointer(&v), int64(unsafe.Sizeof(v)))
		},
	},
}

type kernelDef struct {
	name string
	sig  []argKind
	run  func(q *Queue, l level, a args) error
}

func sig(kinds ...argKind) []argKind { return kinds }

var (
	sigXY        = sig(argInt, argBuffer, argBuffer)
	sigXYStrided = sig(argInt, argBuffer, argInt, argInt, argBuffer, argInt, argInt)
)

// sources lists the kernels of each routine. Argument lists match the host
// backend so the same dispatch plan drives either one; cuBLAS picks its own
// launch configuration, so geometry is only checked, never used.
var sources = map[string][]*kernelDef{
	device.RoutineAxpy: {
		{name: device.KernelXaxpyFast, sig: sig(argInt, argScalar, argBuffer, argBuffer),
			run: func(q *Queue, l level, a args) error {
				return l.axpy(q.blas, a.i32(0), a.scalar(1), a.at(2, -1), 1, a.at(3, -1), 1)
			}},
		{name: device.KernelXaxpy, sig: sig(argInt, argScalar, argBuffer, argInt, argInt, argBuffer, argInt, argInt),
			run: func(q *Queue, l level, a args) error {
				return l.axpy(q.blas, a.i32(0), a.scalar(1), a.at(2, 3), a.i32(4), a.at(5, 6), a.i32(7))
			}},
	},
	device.RoutineScal: {
		{name: device.KernelXscalFast, sig: sig(argInt, argScalar, argBuffer),
			run: func(q *Queue, l level, a args) error {
				return l.scal(q.blas, a.i32(0), a.scalar(1), a.at(2, -1), 1)
			}},
		{name: device.KernelXscal, sig: sig(argInt, argScalar, argBuffer, argInt, argInt),
			run: func(q *Queue, l level, a args) error {
				return l.scal(q.blas, a.i32(0), a.scalar(1), a.at(2, 3), a.i32(4))
			}},
	},
	device.RoutineCopy: {
		{name: device.KernelXcopyFast, sig: sigXY,
			run: func(q *Queue, l level, a args) error {
				return l.copy(q.blas, a.i32(0), a.at(1, -1), 1, a.at(2, -1), 1)
			}},
		{name: device.KernelXcopy, sig: sigXYStrided,
			run: func(q *Queue, l level, a args) error {
				return l.copy(q.blas, a.i32(0), a.at(1, 2), a.i32(3), a.at(4, 5), a.i32(6))
			}},
	},
	device.RoutineSwap: {
		{name: device.KernelXswapFast, sig: sigXY,
			run: func(q *Queue, l level, a args) error {
				return l.swap(q.blas, a.i32(0), a.at(1, -1), 1, a.at(2, -1), 1)
			}},
		{name: device.KernelXswap, sig: sigXYStrided,
			run: func(q *Queue, l level, a args) error {
				return l.swap(q.blas, a.i32(0), a.at(1, 2), a.i32(3), a.at(4, 5), a.i32(6))
			}},
	},
	device.RoutineDot: {
		// cuBLAS reduces in one call: the full sum lands in temp[0] and the
		// epilogue moves it to the output.
		{name: device.KernelXdot, sig: sig(argInt, argBuffer, argInt, argInt, argBuffer, argInt, argInt, argBuffer, argInt),
			run: func(q *Queue, l level, a args) error {
				v, err := l.dot(q.blas, a.i32(0), a.at(1, 2), a.i32(3), a.at(4, 5), a.i32(6))
				if err != nil {
					return err
				}
				return l.store(a.buf(7).at(0), v)
			}},
		{name: device.KernelXdotEpilogue, sig: sig(argBuffer, argBuffer, argInt),
			run: func(q *Queue, l level, a args) error {
				temp, dot := a.buf(0), a.buf(1)
				return native.MemcpyD2DAsync(dot.at(a.i32(2)), temp.at(0), int64(dot.precision.ElemSize()), q.stream)
			}},
	},
	device.RoutineGemv: {
		{name: device.KernelXgemv, sig: sigGemv, run: gemv(-1)},
		{name: device.KernelXgemvFast, sig: sigGemv, run: gemv(0)},
		{name: device.KernelXgemvFastRot, sig: sigGemv, run: gemv(1)},
	},
}

// Argument positions of the gemv kernels.
const (
	gemvM = iota
	gemvN
	gemvAlpha
	gemvBeta
	gemvRotated
	gemvA
	gemvAOff
	gemvLD
	gemvX
	gemvXOff
	gemvXInc
	gemvY
	gemvYOff
	gemvYInc
	gemvConj
)

var sigGemv = sig(argInt, argInt, argScalar, argScalar, argInt,
	argBuffer, argInt, argInt, argBuffer, argInt, argInt, argBuffer, argInt, argInt, argInt)

// gemv binds a gemv entry point. rotated < 0 reads the flag from the
// arguments; the fast kernels have their layout fixed.
func gemv(rotated int) func(q *Queue, l level, a args) error {
	return func(q *Queue, l level, a args) error {
		rot := rotated == 1
		if rotated < 0 {
			rot = a.i32(gemvRotated) != 0
		}
		m, n := a.i32(gemvM), a.i32(gemvN)
		op, rows, cols := native.BlasOpN, m, n
		if rot {
			// Stored as the n x m column-major transpose.
			op, rows, cols = native.BlasOpT, n, m
		}
		return l.gemv(q.blas, op, rows, cols, a.scalar(gemvAlpha),
			a.at(gemvA, gemvAOff), a.i32(gemvLD),
			a.at(gemvX, gemvXOff), a.i32(gemvXInc),
			a.scalar(gemvBeta),
			a.at(gemvY, gemvYOff), a.i32(gemvYInc))
	}
}

type kernel struct {
	def       *kernelDef
	precision blas.Precision
	args      []any
}

func (k *kernel) Name() string { return k.def.name }

func (k *kernel) SetArgument(index int, value any) error {
	if index < 0 || index >= len(k.def.sig) {
		return fmt.Errorf("%w: %s takes %d arguments, got index %d", device.ErrArgument, k.def.name, len(k.def.sig), index)
	}
	ok := false
	switch k.def.sig[index] {
	case argInt:
		_, ok = value.(int32)
	case argScalar:
		switch value.(type) {
		case float32:
			ok = k.precision == blas.Single
		case float64:
			ok = k.precision == blas.Double
		}
	case argBuffer:
		b, isBuf := value.(*Buffer)
		ok = isBuf && b != nil && b.precision == k.precision
	}
	if !ok {
		return fmt.Errorf("%w: %s argument %d got %T", device.ErrArgument, k.def.name, index, value)
	}
	k.args[index] = value
	return nil
}

// snapshot copies the bound arguments, failing on any unset slot.
func (k *kernel) snapshot() (args, error) {
	a := make(args, len(k.args))
	for i, v := range k.args {
		if v == nil {
			return nil, fmt.Errorf("%w: %s argument %d not set", device.ErrArgument, k.def.name, i)
		}
		a[i] = v
	}
	return a, nil
}
