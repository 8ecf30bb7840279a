package api

import (
	"fmt"
	"strings"

	"github.com/x448/float16"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/blast"
	"github.com/samcharles93/blast/pkg/device"
)

// real is the element set reachable over JSON.
type real interface {
	float16.Float16 | float32 | float64
}

// Run executes the named routine on the operands in req and returns the
// outcome. A non-success routine status is reported in the run, not as an
// error; errors are reserved for malformed requests and transfer failures.
func (s *Server) Run(name string, req RoutineRequest) (RoutineRun, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "axpy", "scal", "copy", "swap", "dot", "dotu", "dotc", "gemv":
	default:
		return RoutineRun{}, fmt.Errorf("%w: %q", ErrUnknownRoutine, name)
	}
	p := blas.Single
	if req.Precision != "" {
		parsed, err := blas.ParsePrecision(req.Precision)
		if err != nil {
			return RoutineRun{}, newInvalidRequest(err.Error())
		}
		p = parsed
	}
	switch p {
	case blas.Half:
		return runAs[float16.Float16](s, name, &req)
	case blas.Single:
		return runAs[float32](s, name, &req)
	case blas.Double:
		return runAs[float64](s, name, &req)
	default:
		return RoutineRun{}, newInvalidRequest(fmt.Sprintf("precision %s is not available over HTTP", p))
	}
}

type operands struct {
	h    *backend.Handle
	bufs []device.Buffer
}

func (o *operands) release() {
	for _, b := range o.bufs {
		_ = o.h.Queue.Release(b)
	}
}

// upload places data on the device. Empty data yields a nil buffer, which
// the routine rejects during validation.
func upload[T real](o *operands, data []float64) (device.Buffer, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := backend.Upload(o.h, fromFloats[T](data))
	if err != nil {
		return nil, err
	}
	o.bufs = append(o.bufs, b)
	return b, nil
}

func vector[T real](o *operands, v *VectorData) (blast.Vector, error) {
	if v == nil {
		return blast.Vector{Inc: 1}, nil
	}
	b, err := upload[T](o, v.Data)
	if err != nil {
		return blast.Vector{}, err
	}
	inc := v.Inc
	if inc == 0 {
		inc = 1
	}
	return blast.Vector{Buffer: b, Offset: v.Offset, Inc: inc}, nil
}

func download[T real](o *operands, b device.Buffer, n int) ([]float64, error) {
	if b == nil {
		return nil, nil
	}
	out := make([]T, n)
	if err := backend.Download(o.h, b, out); err != nil {
		return nil, err
	}
	return toFloats(out), nil
}

func runAs[T real](s *Server, name string, req *RoutineRequest) (RoutineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launches = nil

	ops := &operands{h: s.handle}
	defer ops.release()

	x, err := vector[T](ops, req.X)
	if err != nil {
		return RoutineRun{}, err
	}
	y, err := vector[T](ops, req.Y)
	if err != nil {
		return RoutineRun{}, err
	}

	var (
		st     blas.Status
		result device.Buffer
	)
	switch name {
	case "axpy":
		st = blast.Axpy(s.engine, req.N, fromFloat[T](req.Alpha), x, y)
	case "scal":
		st = blast.Scal(s.engine, req.N, fromFloat[T](req.Alpha), x)
	case "copy":
		st = blast.Copy[T](s.engine, req.N, x, y)
	case "swap":
		st = blast.Swap[T](s.engine, req.N, x, y)
	case "dot", "dotu", "dotc":
		if result, err = upload[T](ops, []float64{0}); err != nil {
			return RoutineRun{}, err
		}
		dot := blast.Scalar{Buffer: result}
		switch name {
		case "dotc":
			st = blast.Dotc[T](s.engine, req.N, dot, x, y)
		case "dotu":
			st = blast.Dotu[T](s.engine, req.N, dot, x, y)
		default:
			st = blast.Dot[T](s.engine, req.N, dot, x, y)
		}
	case "gemv":
		layout, err := blas.ParseLayout(req.Layout)
		if err != nil {
			return RoutineRun{}, newInvalidRequest(err.Error())
		}
		trans, err := blas.ParseTranspose(req.Trans)
		if err != nil {
			return RoutineRun{}, newInvalidRequest(err.Error())
		}
		var a blast.Matrix
		if req.A != nil {
			buf, err := upload[T](ops, req.A.Data)
			if err != nil {
				return RoutineRun{}, err
			}
			a = blast.Matrix{Buffer: buf, Offset: req.A.Offset, LD: req.A.LD}
		}
		st = blast.Gemv(s.engine, layout, trans, req.M, req.N,
			fromFloat[T](req.Alpha), a, x, fromFloat[T](req.Beta), y)
	}

	run := RoutineRun{
		ID:        newRunID(),
		Object:    "routine.run",
		CreatedAt: s.clock().Unix(),
		Routine:   name,
		Precision: blas.PrecisionOf[T]().String(),
		Status:    st.String(),
		Code:      int(st),
		Launches:  s.launches,
	}
	if req.X != nil {
		if run.X, err = download[T](ops, x.Buffer, len(req.X.Data)); err != nil {
			return RoutineRun{}, err
		}
	}
	if req.Y != nil {
		if run.Y, err = download[T](ops, y.Buffer, len(req.Y.Data)); err != nil {
			return RoutineRun{}, err
		}
	}
	if result != nil && st == blas.Success {
		v, err := download[T](ops, result, 1)
		if err != nil {
			return RoutineRun{}, err
		}
		run.Result = &v[0]
	}
	return run, nil
}

func fromFloat[T real](v float64) T {
	var out T
	switch p := any(&out).(type) {
	case *float16.Float16:
		*p = float16.Fromfloat32(float32(v))
	case *float32:
		*p = float32(v)
	case *float64:
		*p = v
	}
	return out
}

func fromFloats[T real](s []float64) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = fromFloat[T](v)
	}
	return out
}

func toFloats[T real](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		switch x := any(v).(type) {
		case float16.Float16:
			out[i] = float64(x.Float32())
		case float32:
			out[i] = float64(x)
		case float64:
			out[i] = x
		}
	}
	return out
}
