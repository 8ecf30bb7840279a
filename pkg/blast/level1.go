package blast

import (
	"github.com/samcharles93/blast/internal/routine"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// vectorLaunch names both kernel flavours of a level-1 routine with their
// argument lists.
type vectorLaunch struct {
	fast, generic         string
	fastArgs, genericArgs []any
}

// runVector drives the shared level-1 path: zero-length check, validation of
// every operand, tile-based selection, launch.
func runVector(e *Engine, desc *routine.Descriptor, p blas.Precision, n int, l vectorLaunch, ops ...routine.VectorOperand) (status blas.Status) {
	if n == 0 {
		return blas.InvalidDimension
	}
	call := e.d.Begin(desc, p)
	defer call.Recover(&status)

	checks := make([]routine.Operand, len(ops))
	for i, op := range ops {
		checks[i] = op
	}
	if st := call.Validate(checks...); st != blas.Success {
		return st
	}
	params, st := call.Params(tuning.KernelAxpy)
	if st != blas.Success {
		return st
	}
	wgs, wpt, vw := params.Get("WGS"), params.Get("WPT"), params.Get("VW")

	variant := routine.SelectVector(n, wgs*wpt*vw, ops...)
	if st := call.Select(variant); st != blas.Success {
		return st
	}
	launch := routine.Launch{Kernel: l.generic, Args: l.genericArgs, Geometry: routine.GenericGeometry(n, wgs, wpt)}
	if variant == routine.Fast {
		launch = routine.Launch{Kernel: l.fast, Args: l.fastArgs, Geometry: routine.FastGeometry(n, wgs, wpt, vw)}
	}
	return call.Run(routine.Plan{Launches: []routine.Launch{launch}})
}

// Axpy computes y = alpha*x + y over n elements.
func Axpy[T blas.Element](e *Engine, n int, alpha T, x, y Vector) blas.Status {
	p := blas.PrecisionOf[T]()
	return runVector(e, axpyRoutine, p, n, vectorLaunch{
		fast:     device.KernelXaxpyFast,
		fastArgs: []any{int32(n), alpha, x.Buffer, y.Buffer},
		generic:  device.KernelXaxpy,
		genericArgs: []any{
			int32(n), alpha,
			x.Buffer, int32(x.Offset), int32(x.Inc),
			y.Buffer, int32(y.Offset), int32(y.Inc),
		},
	}, x.operand("x", n, p), y.operand("y", n, p))
}

// Scal computes x = alpha*x.
func Scal[T blas.Element](e *Engine, n int, alpha T, x Vector) blas.Status {
	p := blas.PrecisionOf[T]()
	return runVector(e, scalRoutine, p, n, vectorLaunch{
		fast:        device.KernelXscalFast,
		fastArgs:    []any{int32(n), alpha, x.Buffer},
		generic:     device.KernelXscal,
		genericArgs: []any{int32(n), alpha, x.Buffer, int32(x.Offset), int32(x.Inc)},
	}, x.operand("x", n, p))
}

// Copy computes y = x.
func Copy[T blas.Element](e *Engine, n int, x, y Vector) blas.Status {
	p := blas.PrecisionOf[T]()
	return runVector(e, copyRoutine, p, n, xyLaunch(device.KernelXcopyFast, device.KernelXcopy, n, x, y),
		x.operand("x", n, p), y.operand("y", n, p))
}

// Swap exchanges x and y.
func Swap[T blas.Element](e *Engine, n int, x, y Vector) blas.Status {
	p := blas.PrecisionOf[T]()
	return runVector(e, swapRoutine, p, n, xyLaunch(device.KernelXswapFast, device.KernelXswap, n, x, y),
		x.operand("x", n, p), y.operand("y", n, p))
}

func xyLaunch(fast, generic string, n int, x, y Vector) vectorLaunch {
	return vectorLaunch{
		fast:     fast,
		fastArgs: []any{int32(n), x.Buffer, y.Buffer},
		generic:  generic,
		genericArgs: []any{
			int32(n),
			x.Buffer, int32(x.Offset), int32(x.Inc),
			y.Buffer, int32(y.Offset), int32(y.Inc),
		},
	}
}

// Dot computes dot = x.y. For complex types it is the unconjugated product.
func Dot[T blas.Element](e *Engine, n int, dot Scalar, x, y Vector) blas.Status {
	return runDot[T](e, n, dot, x, y, false)
}

// Dotu is the unconjugated complex dot product; identical to Dot.
func Dotu[T blas.Element](e *Engine, n int, dot Scalar, x, y Vector) blas.Status {
	return runDot[T](e, n, dot, x, y, false)
}

// Dotc computes dot = conj(x).y.
func Dotc[T blas.Element](e *Engine, n int, dot Scalar, x, y Vector) blas.Status {
	return runDot[T](e, n, dot, x, y, true)
}

// runDot launches the two-stage reduction: 2*WGS2 groups of WGS1 items write
// partial sums into a scratch buffer, then one group of WGS2 items folds them
// into dot.
func runDot[T blas.Element](e *Engine, n int, dot Scalar, x, y Vector, conj bool) (status blas.Status) {
	if n == 0 {
		return blas.InvalidDimension
	}
	p := blas.PrecisionOf[T]()
	call := e.d.Begin(dotRoutine, p)
	defer call.Recover(&status)

	st := call.Validate(
		x.operand("x", n, p),
		y.operand("y", n, p),
		routine.ScalarOperand{Name: "dot", Buffer: dot.Buffer, Offset: dot.Offset, ElemSize: p.ElemSize()},
	)
	if st != blas.Success {
		return st
	}
	params, st := call.Params(tuning.KernelDot)
	if st != blas.Success {
		return st
	}
	wgs1, wgs2 := params.Get("WGS1"), params.Get("WGS2")
	if st := call.Select(routine.Generic); st != blas.Success {
		return st
	}

	temp := routine.ScratchRef(0)
	return call.Run(routine.Plan{
		Scratch: []int{2 * wgs2},
		Launches: []routine.Launch{
			{
				Kernel: device.KernelXdot,
				Args: []any{
					int32(n),
					x.Buffer, int32(x.Offset), int32(x.Inc),
					y.Buffer, int32(y.Offset), int32(y.Inc),
					temp, flag(conj),
				},
				Geometry: routine.Geometry1D(wgs1*2*wgs2, wgs1),
			},
			{
				Kernel:   device.KernelXdotEpilogue,
				Args:     []any{temp, dot.Buffer, int32(dot.Offset)},
				Geometry: routine.Geometry1D(wgs2, wgs2),
			},
		},
	})
}
