package routine

import (
	"math"
	"math/bits"

	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Sizes, offsets and increments reach kernels as 32-bit ints.
const maxKernelInt = math.MaxInt32

// Operand is anything Call.Validate can check.
type Operand interface {
	Check() blas.Status
}

// TestVector checks that n elements at offset with stride inc fit in buf.
func TestVector(n int, buf device.Buffer, offset, inc, elemSize int) blas.Status {
	if n <= 0 || n > maxKernelInt {
		return blas.InvalidDimension
	}
	if inc <= 0 || inc > maxKernelInt {
		return blas.InvalidIncrement
	}
	if buf == nil || offset < 0 || offset > maxKernelInt {
		return blas.InvalidBufferSize
	}
	// last index = (n-1)*inc + offset
	hi, last := bits.Mul64(uint64(n-1), uint64(inc))
	if hi != 0 {
		return blas.InvalidBufferSize
	}
	return checkExtent(buf, last, uint64(offset)+1, elemSize)
}

// TestVectorScalar checks a single-element output such as a DOT result.
func TestVectorScalar(buf device.Buffer, offset, elemSize int) blas.Status {
	if buf == nil || offset < 0 || offset > maxKernelInt {
		return blas.InvalidBufferSize
	}
	return checkExtent(buf, 0, uint64(offset)+1, elemSize)
}

// TestMatrix checks a column-major one x two matrix with leading dimension ld.
func TestMatrix(one, two int, buf device.Buffer, offset, ld, elemSize int) blas.Status {
	if one <= 0 || two <= 0 || one > maxKernelInt || two > maxKernelInt {
		return blas.InvalidDimension
	}
	if ld < one || ld > maxKernelInt {
		return blas.InvalidLeadDimension
	}
	if buf == nil || offset < 0 || offset > maxKernelInt {
		return blas.InvalidBufferSize
	}
	// elements = ld*(two-1) + one + offset
	hi, span := bits.Mul64(uint64(ld), uint64(two-1))
	if hi != 0 {
		return blas.InvalidBufferSize
	}
	return checkExtent(buf, span, uint64(one)+uint64(offset), elemSize)
}

// checkExtent verifies (a+b)*elemSize bytes fit in buf, treating any
// overflow as out of bounds.
func checkExtent(buf device.Buffer, a, b uint64, elemSize int) blas.Status {
	elems, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return blas.InvalidBufferSize
	}
	hi, required := bits.Mul64(elems, uint64(elemSize))
	if hi != 0 || required > math.MaxInt64 {
		return blas.InvalidBufferSize
	}
	if int64(required) > buf.Size() {
		return blas.InvalidBufferSize
	}
	return blas.Success
}

// VectorOperand is a vector view checked by TestVector.
type VectorOperand struct {
	Name     string
	N        int
	Buffer   device.Buffer
	Offset   int
	Inc      int
	ElemSize int
}

func (v VectorOperand) Check() blas.Status {
	return TestVector(v.N, v.Buffer, v.Offset, v.Inc, v.ElemSize)
}

// Canonical reports whether the view is contiguous from element zero.
func (v VectorOperand) Canonical() bool {
	return v.Offset == 0 && v.Inc == 1
}

type ScalarOperand struct {
	Name     string
	Buffer   device.Buffer
	Offset   int
	ElemSize int
}

func (s ScalarOperand) Check() blas.Status {
	return TestVectorScalar(s.Buffer, s.Offset, s.ElemSize)
}

type MatrixOperand struct {
	Name     string
	One, Two int
	Buffer   device.Buffer
	Offset   int
	LD       int
	ElemSize int
}

func (m MatrixOperand) Check() blas.Status {
	return TestMatrix(m.One, m.Two, m.Buffer, m.Offset, m.LD, m.ElemSize)
}
