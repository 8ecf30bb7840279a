package host

import (
	"github.com/x448/float16"

	"github.com/samcharles93/blast/pkg/blas"
)

// arith is the scalar arithmetic a kernel needs for one element type.
// float16 has no native operators, so its ops round-trip through float32.
type arith[T blas.Element] struct {
	add  func(a, b T) T
	mul  func(a, b T) T
	conj func(a T) T
}

// fma returns a*b + c.
func (o arith[T]) fma(a, b, c T) T {
	return o.add(o.mul(a, b), c)
}

type native interface {
	float32 | float64 | complex64 | complex128
}

func nativeArith[T native]() arith[T] {
	return arith[T]{
		add:  func(a, b T) T { return a + b },
		mul:  func(a, b T) T { return a * b },
		conj: func(a T) T { return a },
	}
}

func arithFor[T blas.Element]() arith[T] {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return any(arith[float16.Float16]{
			add: func(a, b float16.Float16) float16.Float16 {
				return float16.Fromfloat32(a.Float32() + b.Float32())
			},
			mul: func(a, b float16.Float16) float16.Float16 {
				return float16.Fromfloat32(a.Float32() * b.Float32())
			},
			conj: func(a float16.Float16) float16.Float16 { return a },
		}).(arith[T])
	case float32:
		return any(nativeArith[float32]()).(arith[T])
	case float64:
		return any(nativeArith[float64]()).(arith[T])
	case complex64:
		o := nativeArith[complex64]()
		o.conj = func(a complex64) complex64 { return complex(real(a), -imag(a)) }
		return any(o).(arith[T])
	default:
		o := nativeArith[complex128]()
		o.conj = func(a complex128) complex128 { return complex(real(a), -imag(a)) }
		return any(o).(arith[T])
	}
}
