//go:build cuda

package cuda

import (
	"fmt"
	"unsafe"

	"github.com/samcharles93/blast/internal/backend/cuda/native"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Buffer is a device allocation of n elements of one precision.
type Buffer struct {
	dev       native.DeviceBuffer
	precision blas.Precision
	n         int
}

func (b *Buffer) Size() int64 { return int64(b.n) * int64(b.precision.ElemSize()) }

func (b *Buffer) Len() int { return b.n }

func (b *Buffer) Precision() blas.Precision { return b.precision }

// at returns a view offset elements into the allocation.
func (b *Buffer) at(offset int) native.DeviceBuffer {
	return b.dev.Offset(int64(offset) * int64(b.precision.ElemSize()))
}

type real interface {
	float32 | float64
}

// Upload copies src into the start of b. It blocks until the copy completes.
func Upload[T real](b *Buffer, src []T) error {
	if err := checkHostSlice[T](b, len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	return native.MemcpyH2D(b.dev, unsafe.Pointer(&src[0]), int64(len(src))*int64(unsafe.Sizeof(src[0])))
}

// Download copies the start of b into dst. Callers must Finish the queue
// first so pending kernels have written their results.
func Download[T real](b *Buffer, dst []T) error {
	if err := checkHostSlice[T](b, len(dst)); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	return native.MemcpyD2H(unsafe.Pointer(&dst[0]), b.dev, int64(len(dst))*int64(unsafe.Sizeof(dst[0])))
}

func checkHostSlice[T real](b *Buffer, n int) error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", device.ErrArgument)
	}
	if blas.PrecisionOf[T]() != b.precision {
		return fmt.Errorf("%w: %s buffer with %T slice", device.ErrArgument, b.precision, *new(T))
	}
	if n > b.n {
		return fmt.Errorf("%w: %d elements into buffer of %d", device.ErrArgument, n, b.n)
	}
	return nil
}

func supported(p blas.Precision) bool {
	return p == blas.Single || p == blas.Double
}
