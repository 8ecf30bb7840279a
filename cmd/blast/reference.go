package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/samcharles93/blast/internal/api"
	"github.com/samcharles93/blast/pkg/blas"
)

type shape struct {
	n, m   int
	incX   int
	incY   int
	alpha  float64
	beta   float64
	layout blas.Layout
	trans  blas.Transpose
}

func extent(n, inc int) int {
	if n <= 0 {
		return 0
	}
	return 1 + (n-1)*inc
}

func randomVector(rng *rand.Rand, n, inc int) *api.VectorData {
	data := make([]float64, extent(n, inc))
	for i := range data {
		data[i] = 2*rng.Float64() - 1
	}
	return &api.VectorData{Data: data, Inc: inc}
}

// buildRequest fills a request for routine with operands drawn from rng.
func buildRequest(routine string, s shape, p blas.Precision, rng *rand.Rand) (api.RoutineRequest, error) {
	req := api.RoutineRequest{
		Precision: p.String(),
		N:         s.n,
		Alpha:     s.alpha,
	}
	switch routine {
	case "axpy", "copy", "swap", "dot", "dotu", "dotc":
		req.X = randomVector(rng, s.n, s.incX)
		req.Y = randomVector(rng, s.n, s.incY)
	case "scal":
		req.X = randomVector(rng, s.n, s.incX)
	case "gemv":
		req.M = s.m
		req.Beta = s.beta
		req.Layout = s.layout.String()
		req.Trans = s.trans.String()
		xn, yn := s.n, s.m
		if s.trans != blas.NoTrans {
			xn, yn = s.m, s.n
		}
		ld := s.m
		if s.layout == blas.RowMajor {
			ld = s.n
		}
		a := randomVector(rng, s.m*s.n, 1)
		req.A = &api.MatrixData{Data: a.Data, LD: max(ld, 1)}
		req.X = randomVector(rng, xn, s.incX)
		req.Y = randomVector(rng, yn, s.incY)
	default:
		return api.RoutineRequest{}, fmt.Errorf("unknown routine %q", routine)
	}
	return req, nil
}

// expected holds the reference outcome of a routine computed in float64.
type expected struct {
	x, y   []float64
	result *float64
	// depth is the longest accumulation chain, used to scale the tolerance.
	depth int
}

func clone(v *api.VectorData) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v.Data...)
}

func at(v *api.VectorData, i int) int {
	return v.Offset + i*v.Inc
}

func reference(routine string, req api.RoutineRequest) expected {
	out := expected{x: clone(req.X), y: clone(req.Y), depth: 1}
	n := req.N
	switch routine {
	case "axpy":
		for i := range n {
			out.y[at(req.Y, i)] += req.Alpha * req.X.Data[at(req.X, i)]
		}
	case "scal":
		for i := range n {
			out.x[at(req.X, i)] *= req.Alpha
		}
	case "copy":
		for i := range n {
			out.y[at(req.Y, i)] = req.X.Data[at(req.X, i)]
		}
	case "swap":
		for i := range n {
			out.x[at(req.X, i)], out.y[at(req.Y, i)] = req.Y.Data[at(req.Y, i)], req.X.Data[at(req.X, i)]
		}
	case "dot", "dotu", "dotc":
		var sum float64
		for i := range n {
			sum += req.X.Data[at(req.X, i)] * req.Y.Data[at(req.Y, i)]
		}
		out.result = &sum
		out.depth = n
	case "gemv":
		layout, _ := blas.ParseLayout(req.Layout)
		trans, _ := blas.ParseTranspose(req.Trans)
		elem := func(i, j int) float64 {
			if layout == blas.RowMajor {
				return req.A.Data[req.A.Offset+i*req.A.LD+j]
			}
			return req.A.Data[req.A.Offset+i+j*req.A.LD]
		}
		rows, cols := req.M, n
		if trans != blas.NoTrans {
			rows, cols = n, req.M
		}
		for i := range rows {
			var sum float64
			for k := range cols {
				if trans != blas.NoTrans {
					sum += elem(k, i) * req.X.Data[at(req.X, k)]
				} else {
					sum += elem(i, k) * req.X.Data[at(req.X, k)]
				}
			}
			yi := at(req.Y, i)
			out.y[yi] = req.Alpha*sum + req.Beta*req.Y.Data[yi]
		}
		out.depth = cols
	}
	return out
}

func epsilon(p blas.Precision) float64 {
	switch p {
	case blas.Half:
		return 1e-3
	case blas.Single:
		return 1.2e-7
	default:
		return 2.3e-16
	}
}

// maxError reports the largest difference between run and want, relative to
// the magnitude of the expected value.
func maxError(run api.RoutineRun, want expected) float64 {
	var worst float64
	cmp := func(got, exp []float64) {
		for i := range min(len(got), len(exp)) {
			d := math.Abs(got[i]-exp[i]) / (1 + math.Abs(exp[i]))
			worst = max(worst, d)
		}
	}
	cmp(run.X, want.x)
	cmp(run.Y, want.y)
	if want.result != nil && run.Result != nil {
		cmp([]float64{*run.Result}, []float64{*want.result})
	}
	return worst
}

// tolerance is the error a correct kernel may accumulate at precision p.
func tolerance(p blas.Precision, want expected) float64 {
	return 8 * epsilon(p) * float64(max(want.depth, 1))
}
