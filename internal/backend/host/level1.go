package host

import (
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// forFast visits the elements owned by each work-item of g in the fast
// layout: WPT strips of VW consecutive elements, strips global items apart.
// There are no bounds checks; the launcher guarantees n == global*wpt*vw.
func forFast(g group, wpt, vw int, fn func(i int)) {
	for lid := range g.local {
		id := g.id*g.local + lid
		for w := range wpt {
			base := (w*g.global + id) * vw
			for v := range vw {
				fn(base + v)
			}
		}
	}
}

// forStrided is a grid-stride loop over [0, n).
func forStrided(g group, n int, fn func(i int)) {
	for lid := range g.local {
		for id := g.id*g.local + lid; id < n; id += g.global {
			fn(id)
		}
	}
}

var (
	sigFastXY    = []argKind{argInt, argBuffer, argBuffer}
	sigGenericXY = []argKind{argInt, argBuffer, argInt, argInt, argBuffer, argInt, argInt}
)

func vectorTile(params tuning.Params) (wpt, vw int, err error) {
	if err := params.Require("WGS", "WPT", "VW"); err != nil {
		return 0, 0, err
	}
	return params.Get("WPT"), params.Get("VW"), nil
}

func axpyKernels[T blas.Element](params tuning.Params, o arith[T]) ([]*kernelDef[T], error) {
	wpt, vw, err := vectorTile(params)
	if err != nil {
		return nil, err
	}
	return []*kernelDef[T]{
		{
			name: device.KernelXaxpyFast,
			sig:  []argKind{argInt, argScalar, argBuffer, argBuffer},
			bind: func(a args[T]) groupFunc {
				alpha, x, y := a.scalar(1), a.vec(2), a.vec(3)
				return func(g group) {
					forFast(g, wpt, vw, func(i int) { y[i] = o.fma(alpha, x[i], y[i]) })
				}
			},
		},
		{
			name: device.KernelXaxpy,
			sig:  []argKind{argInt, argScalar, argBuffer, argInt, argInt, argBuffer, argInt, argInt},
			bind: func(a args[T]) groupFunc {
				n, alpha := a.i32(0), a.scalar(1)
				x, xoff, xinc := a.vec(2), a.i32(3), a.i32(4)
				y, yoff, yinc := a.vec(5), a.i32(6), a.i32(7)
				return func(g group) {
					forStrided(g, n, func(i int) {
						yi := i*yinc + yoff
						y[yi] = o.fma(alpha, x[i*xinc+xoff], y[yi])
					})
				}
			},
		},
	}, nil
}

func scalKernels[T blas.Element](params tuning.Params, o arith[T]) ([]*kernelDef[T], error) {
	wpt, vw, err := vectorTile(params)
	if err != nil {
		return nil, err
	}
	return []*kernelDef[T]{
		{
			name: device.KernelXscalFast,
			sig:  []argKind{argInt, argScalar, argBuffer},
			bind: func(a args[T]) groupFunc {
				alpha, x := a.scalar(1), a.vec(2)
				return func(g group) {
					forFast(g, wpt, vw, func(i int) { x[i] = o.mul(alpha, x[i]) })
				}
			},
		},
		{
			name: device.KernelXscal,
			sig:  []argKind{argInt, argScalar, argBuffer, argInt, argInt},
			bind: func(a args[T]) groupFunc {
				n, alpha := a.i32(0), a.scalar(1)
				x, xoff, xinc := a.vec(2), a.i32(3), a.i32(4)
				return func(g group) {
					forStrided(g, n, func(i int) {
						xi := i*xinc + xoff
						x[xi] = o.mul(alpha, x[xi])
					})
				}
			},
		},
	}, nil
}

func copyKernels[T blas.Element](params tuning.Params) ([]*kernelDef[T], error) {
	wpt, vw, err := vectorTile(params)
	if err != nil {
		return nil, err
	}
	return []*kernelDef[T]{
		{
			name: device.KernelXcopyFast,
			sig:  sigFastXY,
			bind: func(a args[T]) groupFunc {
				x, y := a.vec(1), a.vec(2)
				return func(g group) {
					forFast(g, wpt, vw, func(i int) { y[i] = x[i] })
				}
			},
		},
		{
			name: device.KernelXcopy,
			sig:  sigGenericXY,
			bind: func(a args[T]) groupFunc {
				n := a.i32(0)
				x, xoff, xinc := a.vec(1), a.i32(2), a.i32(3)
				y, yoff, yinc := a.vec(4), a.i32(5), a.i32(6)
				return func(g group) {
					forStrided(g, n, func(i int) { y[i*yinc+yoff] = x[i*xinc+xoff] })
				}
			},
		},
	}, nil
}

func swapKernels[T blas.Element](params tuning.Params) ([]*kernelDef[T], error) {
	wpt, vw, err := vectorTile(params)
	if err != nil {
		return nil, err
	}
	return []*kernelDef[T]{
		{
			name: device.KernelXswapFast,
			sig:  sigFastXY,
			bind: func(a args[T]) groupFunc {
				x, y := a.vec(1), a.vec(2)
				return func(g group) {
					forFast(g, wpt, vw, func(i int) { x[i], y[i] = y[i], x[i] })
				}
			},
		},
		{
			name: device.KernelXswap,
			sig:  sigGenericXY,
			bind: func(a args[T]) groupFunc {
				n := a.i32(0)
				x, xoff, xinc := a.vec(1), a.i32(2), a.i32(3)
				y, yoff, yinc := a.vec(4), a.i32(5), a.i32(6)
				return func(g group) {
					forStrided(g, n, func(i int) {
						xi, yi := i*xinc+xoff, i*yinc+yoff
						x[xi], y[yi] = y[yi], x[xi]
					})
				}
			},
		},
	}, nil
}
