package host

import (
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Stage one of DOT: every work-group reduces a grid-stride slice of x.y into
// temp[group]. Stage two sums the 2*WGS2 partials into dot[dotoff].
func dotKernels[T blas.Element](params tuning.Params, o arith[T]) ([]*kernelDef[T], error) {
	if err := params.Require("WGS1", "WGS2"); err != nil {
		return nil, err
	}
	return []*kernelDef[T]{
		{
			name: device.KernelXdot,
			sig: []argKind{
				argInt,
				argBuffer, argInt, argInt,
				argBuffer, argInt, argInt,
				argBuffer, argInt,
			},
			bind: func(a args[T]) groupFunc {
				n := a.i32(0)
				x, xoff, xinc := a.vec(1), a.i32(2), a.i32(3)
				y, yoff, yinc := a.vec(4), a.i32(5), a.i32(6)
				temp, conj := a.vec(7), a.flag(8)
				return func(g group) {
					var acc T
					for lid := range g.local {
						for id := g.id*g.local + lid; id < n; id += g.global {
							xv := x[id*xinc+xoff]
							if conj {
								xv = o.conj(xv)
							}
							acc = o.fma(xv, y[id*yinc+yoff], acc)
						}
					}
					temp[g.id] = acc
				}
			},
		},
		{
			name: device.KernelXdotEpilogue,
			sig:  []argKind{argBuffer, argBuffer, argInt},
			bind: func(a args[T]) groupFunc {
				temp, dot, dotoff := a.vec(0), a.vec(1), a.i32(2)
				return func(g group) {
					if g.id != 0 {
						return
					}
					var acc T
					for lid := range g.local {
						acc = o.add(acc, o.add(temp[lid], temp[lid+g.local]))
					}
					dot[dotoff] = acc
				}
			},
		},
	}, nil
}

const (
	gemvM = iota
	gemvN
	gemvAlpha
	gemvBeta
	gemvRotated
	gemvA
	gemvAOff
	gemvALd
	gemvX
	gemvXOff
	gemvXInc
	gemvY
	gemvYOff
	gemvYInc
	gemvConj
)

var sigGemv = []argKind{
	gemvM: argInt, gemvN: argInt,
	gemvAlpha: argScalar, gemvBeta: argScalar,
	gemvRotated: argInt,
	gemvA:       argBuffer, gemvAOff: argInt, gemvALd: argInt,
	gemvX: argBuffer, gemvXOff: argInt, gemvXInc: argInt,
	gemvY: argBuffer, gemvYOff: argInt, gemvYInc: argInt,
	gemvConj: argInt,
}

// gemvRows returns a function computing y[i] = alpha*sum_k A(i,k)*x[k] + beta*y[i].
// A(i,k) is a[k*ld+i] for a column-major A and a[i*ld+k] when rotated.
func gemvRows[T blas.Element](a args[T], o arith[T], rotated bool) (func(i int), int) {
	m, n := a.i32(gemvM), a.i32(gemvN)
	alpha, beta := a.scalar(gemvAlpha), a.scalar(gemvBeta)
	mat, aoff, ld := a.vec(gemvA), a.i32(gemvAOff), a.i32(gemvALd)
	x, xoff, xinc := a.vec(gemvX), a.i32(gemvXOff), a.i32(gemvXInc)
	y, yoff, yinc := a.vec(gemvY), a.i32(gemvYOff), a.i32(gemvYInc)
	conj := a.flag(gemvConj)

	row := func(i int) {
		var acc T
		for k := range n {
			var av T
			if rotated {
				av = mat[aoff+i*ld+k]
			} else {
				av = mat[aoff+k*ld+i]
			}
			if conj {
				av = o.conj(av)
			}
			acc = o.fma(av, x[k*xinc+xoff], acc)
		}
		yi := i*yinc + yoff
		y[yi] = o.add(o.mul(alpha, acc), o.mul(beta, y[yi]))
	}
	return row, m
}

// forRows hands each work-item wpt rows, global rows apart.
func forRows(g group, wpt, m int, guard bool, row func(i int)) {
	for lid := range g.local {
		id := g.id*g.local + lid
		for w := range wpt {
			i := w*g.global + id
			if guard && i >= m {
				continue
			}
			row(i)
		}
	}
}

func gemvKernels[T blas.Element](params tuning.Params, o arith[T]) ([]*kernelDef[T], error) {
	if err := params.Require("WGS1", "WPT1", "WGS2", "WPT2", "VW2", "WGS3", "WPT3", "VW3"); err != nil {
		return nil, err
	}
	wpt1, wpt2, wpt3 := params.Get("WPT1"), params.Get("WPT2"), params.Get("WPT3")
	return []*kernelDef[T]{
		{
			name: device.KernelXgemv,
			sig:  sigGemv,
			bind: func(a args[T]) groupFunc {
				row, m := gemvRows(a, o, a.flag(gemvRotated))
				return func(g group) { forRows(g, wpt1, m, true, row) }
			},
		},
		{
			name: device.KernelXgemvFast,
			sig:  sigGemv,
			bind: func(a args[T]) groupFunc {
				row, m := gemvRows(a, o, false)
				return func(g group) { forRows(g, wpt2, m, false, row) }
			},
		},
		{
			name: device.KernelXgemvFastRot,
			sig:  sigGemv,
			bind: func(a args[T]) groupFunc {
				row, m := gemvRows(a, o, true)
				return func(g group) { forRows(g, wpt3, m, false, row) }
			},
		},
	}, nil
}
