package host

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Buffer is host memory holding elements of one precision. Kernels read and
// write Data in place.
type Buffer[T blas.Element] struct {
	data []T
}

// Alloc returns a zeroed buffer of n elements.
func Alloc[T blas.Element](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// FromSlice wraps s without copying. Writes by kernels are visible through s.
func FromSlice[T blas.Element](s []T) *Buffer[T] {
	return &Buffer[T]{data: s}
}

func (b *Buffer[T]) Size() int64 {
	return int64(len(b.data)) * int64(blas.PrecisionOf[T]().ElemSize())
}

// Slice exposes the backing storage. Do not read it while a queue that
// references b has unfinished work.
func (b *Buffer[T]) Slice() []T {
	return b.data
}

func (b *Buffer[T]) Len() int {
	return len(b.data)
}

// allocBuffer creates an untyped buffer for Queue.Alloc.
func allocBuffer(p blas.Precision, n int) (device.Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: buffer of %d elements", device.ErrArgument, n)
	}
	switch p {
	case blas.Half:
		return Alloc[float16.Float16](n), nil
	case blas.Single:
		return Alloc[float32](n), nil
	case blas.Double:
		return Alloc[float64](n), nil
	case blas.ComplexSingle:
		return Alloc[complex64](n), nil
	case blas.ComplexDouble:
		return Alloc[complex128](n), nil
	default:
		return nil, fmt.Errorf("%w: %s", device.ErrUnsupportedPrecision, p)
	}
}

func releaseBuffer(b device.Buffer) error {
	switch buf := b.(type) {
	case *Buffer[float16.Float16]:
		buf.data = nil
	case *Buffer[float32]:
		buf.data = nil
	case *Buffer[float64]:
		buf.data = nil
	case *Buffer[complex64]:
		buf.data = nil
	case *Buffer[complex128]:
		buf.data = nil
	default:
		return fmt.Errorf("%w: %T is not a host buffer", device.ErrArgument, b)
	}
	return nil
}
