package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/x448/float16"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/blast"
	"github.com/samcharles93/blast/pkg/device"
)

type real interface {
	float16.Float16 | float32 | float64
}

func unit[T real]() T {
	var out T
	switch p := any(&out).(type) {
	case *float16.Float16:
		*p = float16.Fromfloat32(1)
	case *float32:
		*p = 1
	case *float64:
		*p = 1
	}
	return out
}

type benchResult struct {
	Routine   string
	Precision blas.Precision
	Kernel    string
	Variant   string
	N         int
	Repeats   int
	Mean      time.Duration
	GBps      float64
	GFLOPS    float64
}

// traffic returns the bytes moved and flops executed by one call.
func traffic(routine string, n, elem int) (bytes, flops float64) {
	fn, fe := float64(n), float64(elem)
	switch routine {
	case "axpy":
		return 3 * fn * fe, 2 * fn
	case "scal":
		return 2 * fn * fe, fn
	case "copy":
		return 2 * fn * fe, 0
	case "swap":
		return 4 * fn * fe, 0
	case "dot":
		return 2 * fn * fe, 2 * fn
	case "gemv":
		return (fn*fn + 3*fn) * fe, 2 * fn * fn
	}
	return 0, 0
}

func benchRoutine[T real](ctx context.Context, h *backend.Handle, db *tuning.Database, routine string, n, repeats int) (benchResult, error) {
	var kernel, variant string
	e, err := blast.New(h.Queue, h.Programs,
		blast.WithTuning(db),
		blast.WithLogger(logger.FromContext(ctx)),
		blast.WithObserver(func(ev blast.Event) {
			if kernel == "" {
				kernel, variant = ev.Kernel, ev.Variant.String()
			}
		}),
	)
	if err != nil {
		return benchResult{}, err
	}

	var bufs []device.Buffer
	defer func() {
		for _, b := range bufs {
			_ = h.Queue.Release(b)
		}
	}()
	alloc := func(count int) (device.Buffer, error) {
		b, err := backend.Upload(h, make([]T, count))
		if err == nil {
			bufs = append(bufs, b)
		}
		return b, err
	}
	xb, err := alloc(n)
	if err != nil {
		return benchResult{}, err
	}
	yb, err := alloc(n)
	if err != nil {
		return benchResult{}, err
	}
	x, y := blast.Vec(xb), blast.Vec(yb)
	one := unit[T]()

	var call func() blas.Status
	switch routine {
	case "axpy":
		call = func() blas.Status { return blast.Axpy(e, n, one, x, y) }
	case "scal":
		call = func() blas.Status { return blast.Scal(e, n, one, x) }
	case "copy":
		call = func() blas.Status { return blast.Copy[T](e, n, x, y) }
	case "swap":
		call = func() blas.Status { return blast.Swap[T](e, n, x, y) }
	case "dot":
		rb, err := alloc(1)
		if err != nil {
			return benchResult{}, err
		}
		call = func() blas.Status { return blast.Dot[T](e, n, blast.Scalar{Buffer: rb}, x, y) }
	case "gemv":
		ab, err := alloc(n * n)
		if err != nil {
			return benchResult{}, err
		}
		a := blast.Matrix{Buffer: ab, LD: n}
		call = func() blas.Status {
			return blast.Gemv(e, blas.ColMajor, blas.NoTrans, n, n, one, a, x, one, y)
		}
	default:
		return benchResult{}, fmt.Errorf("unknown routine %q", routine)
	}

	if st := call(); st != blas.Success {
		return benchResult{}, st.Err()
	}
	start := time.Now()
	for range repeats {
		if err := ctx.Err(); err != nil {
			return benchResult{}, err
		}
		if st := call(); st != blas.Success {
			return benchResult{}, st.Err()
		}
	}
	elapsed := time.Since(start)

	p := blas.PrecisionOf[T]()
	bytes, flops := traffic(routine, n, p.ElemSize())
	secs := elapsed.Seconds()
	res := benchResult{
		Routine:   routine,
		Precision: p,
		Kernel:    kernel,
		Variant:   variant,
		N:         n,
		Repeats:   repeats,
		Mean:      elapsed / time.Duration(max(repeats, 1)),
	}
	if secs > 0 {
		res.GBps = bytes * float64(repeats) / secs / 1e9
		res.GFLOPS = flops * float64(repeats) / secs / 1e9
	}
	return res, nil
}

func benchAs(ctx context.Context, p blas.Precision, h *backend.Handle, db *tuning.Database, routine string, n, repeats int) (benchResult, error) {
	switch p {
	case blas.Half:
		return benchRoutine[float16.Float16](ctx, h, db, routine, n, repeats)
	case blas.Double:
		return benchRoutine[float64](ctx, h, db, routine, n, repeats)
	default:
		return benchRoutine[float32](ctx, h, db, routine, n, repeats)
	}
}

func benchCmd() *cli.Command {
	var (
		n       int64
		repeats int64
	)

	flags := append([]cli.Flag{}, commonBackendFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "vector length (matrix order for gemv)",
			Value:       1 << 20,
			Destination: &n,
		},
		&cli.Int64Flag{
			Name:        "repeats",
			Aliases:     []string{"r"},
			Usage:       "timed calls per routine",
			Value:       20,
			Destination: &repeats,
		},
	)

	return &cli.Command{
		Name:      "bench",
		Usage:     "Measure routine throughput on the selected backend",
		ArgsUsage: "[routine...]",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBenchConfig(cmd, LoadConfig(), &repeats)
			log := logger.FromContext(ctx)

			p, err := realPrecision()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			routines := cmd.Args().Slice()
			if len(routines) == 0 {
				routines = []string{"axpy", "scal", "copy", "swap", "dot", "gemv"}
			}

			h, db, err := openBackend(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = h.Close() }()

			info := h.Queue.Device()
			fmt.Printf("device: %s (%s, %s)\n", info.Name, info.Vendor, h.Name)
			for _, r := range routines {
				r = strings.ToLower(strings.TrimSpace(r))
				size := int(n)
				if r == "gemv" {
					// keep the matrix comparable to the vector workloads
					size = max(int(math.Sqrt(float64(n))), 1)
				}
				res, err := benchAs(ctx, p, h, db, r, size, int(repeats))
				if err != nil {
					log.Error("benchmark failed", "routine", r, "error", err)
					continue
				}
				fmt.Printf("%-5s %-6s n=%-9d %-14s %-8s %10s  %8.2f GB/s  %8.2f GFLOP/s\n",
					res.Routine, res.Precision, res.N, res.Kernel, res.Variant,
					res.Mean, res.GBps, res.GFLOPS)
			}
			return nil
		},
	}
}
