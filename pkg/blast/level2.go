package blast

import (
	"github.com/samcharles93/blast/internal/routine"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

var gemvKernels = map[routine.Variant]string{
	routine.Generic:     device.KernelXgemv,
	routine.Fast:        device.KernelXgemvFast,
	routine.FastRotated: device.KernelXgemvFastRot,
}

// Gemv computes y = alpha*op(A)*x + beta*y where A is m x n in the given
// layout and op is selected by trans. A row-major A is handled as its
// column-major transpose. An unknown layout or trans is InvalidValue.
func Gemv[T blas.Element](e *Engine, layout blas.Layout, trans blas.Transpose, m, n int,
	alpha T, a Matrix, x Vector, beta T, y Vector) (status blas.Status) {
	if m == 0 || n == 0 {
		return blas.InvalidDimension
	}
	if !layout.Valid() || !trans.Valid() {
		return blas.InvalidValue
	}
	p := blas.PrecisionOf[T]()
	call := e.d.Begin(gemvRoutine, p)
	defer call.Recover(&status)

	transposed := trans != blas.NoTrans
	rotated := (layout == blas.ColMajor && transposed) || (layout == blas.RowMajor && !transposed)
	conj := trans == blas.ConjTrans

	// Stored extent of A, and the output/reduction lengths of op(A).
	aOne, aTwo := m, n
	if layout == blas.RowMajor {
		aOne, aTwo = n, m
	}
	mReal, nReal := m, n
	if transposed {
		mReal, nReal = n, m
	}

	st := call.Validate(
		routine.MatrixOperand{
			Name: "a", One: aOne, Two: aTwo,
			Buffer: a.Buffer, Offset: a.Offset, LD: a.LD,
			ElemSize: p.ElemSize(),
		},
		x.operand("x", nReal, p),
		y.operand("y", mReal, p),
	)
	if st != blas.Success {
		return st
	}
	params, st := call.Params(tuning.KernelGemv)
	if st != blas.Success {
		return st
	}
	variant, geometry := routine.SelectMatVec(params, mReal, nReal, a.Offset, a.LD, rotated, conj)
	if st := call.Select(variant); st != blas.Success {
		return st
	}

	return call.Run(routine.Plan{Launches: []routine.Launch{{
		Kernel: gemvKernels[variant],
		Args: []any{
			int32(mReal), int32(nReal), alpha, beta, flag(rotated),
			a.Buffer, int32(a.Offset), int32(a.LD),
			x.Buffer, int32(x.Offset), int32(x.Inc),
			y.Buffer, int32(y.Offset), int32(y.Inc),
			flag(conj),
		},
		Geometry: geometry,
	}}})
}
