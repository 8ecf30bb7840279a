package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/api"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/pkg/blas"
)

func runCmd() *cli.Command {
	var (
		n, m       int64
		incX, incY int64
		alpha      float64
		beta       float64
		layout     string
		trans      string
		seed       int64
		asJSON     bool
	)

	flags := append([]cli.Flag{}, commonBackendFlags()...)
	flags = append(flags,
		&cli.Int64Flag{Name: "n", Usage: "vector length, or columns of A for gemv", Value: 1024, Destination: &n},
		&cli.Int64Flag{Name: "m", Usage: "rows of A (gemv)", Value: 256, Destination: &m},
		&cli.Int64Flag{Name: "incx", Usage: "stride of x", Value: 1, Destination: &incX},
		&cli.Int64Flag{Name: "incy", Usage: "stride of y", Value: 1, Destination: &incY},
		&cli.Float64Flag{Name: "alpha", Value: 1.5, Destination: &alpha},
		&cli.Float64Flag{Name: "beta", Value: 0.5, Destination: &beta},
		&cli.StringFlag{Name: "layout", Usage: "matrix layout (col, row)", Value: "col", Destination: &layout},
		&cli.StringFlag{Name: "trans", Usage: "transpose A (n, t, c)", Value: "n", Destination: &trans},
		&cli.Int64Flag{Name: "seed", Usage: "operand RNG seed", Value: 1, Destination: &seed},
		&cli.BoolFlag{Name: "json", Usage: "print the run as JSON", Destination: &asJSON},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Run one routine on random operands and check it against a reference",
		ArgsUsage: "<axpy|scal|copy|swap|dot|dotu|dotc|gemv>",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBackendConfig(cmd, LoadConfig())
			log := logger.FromContext(ctx)

			name := strings.ToLower(strings.TrimSpace(cmd.Args().First()))
			if name == "" {
				return cli.Exit("error: routine name is required", 2)
			}
			p, err := realPrecision()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			l, err := blas.ParseLayout(layout)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			t, err := blas.ParseTranspose(trans)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}

			rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
			req, err := buildRequest(name, shape{
				n: int(n), m: int(m),
				incX: int(incX), incY: int(incY),
				alpha: alpha, beta: beta,
				layout: l, trans: t,
			}, p, rng)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}

			h, db, err := openBackend(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = h.Close() }()

			server, err := api.NewServer(h, db, api.NewRunStore(1), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			run, err := server.Run(name, req)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			want := reference(name, req)
			errMax, tol := maxError(run, want), tolerance(p, want)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return err
				}
			} else {
				printRun(os.Stdout, h.Name, run, errMax, tol)
			}

			if run.Code != int(blas.Success) {
				return cli.Exit(fmt.Sprintf("%s: %s", name, run.Status), 1)
			}
			if errMax > tol {
				return cli.Exit(fmt.Sprintf("%s: max error %.3g exceeds tolerance %.3g", name, errMax, tol), 1)
			}
			return nil
		},
	}
}

func printRun(w io.Writer, backendName string, run api.RoutineRun, errMax, tol float64) {
	_, _ = fmt.Fprintf(w, "routine:   %s (%s) on %s\n", run.Routine, run.Precision, backendName)
	_, _ = fmt.Fprintf(w, "status:    %s (%d)\n", run.Status, run.Code)
	for _, l := range run.Launches {
		_, _ = fmt.Fprintf(w, "kernel:    %-14s %-8s global=%v local=%v\n", l.Kernel, l.Variant, l.Global, l.Local)
	}
	if run.Result != nil {
		_, _ = fmt.Fprintf(w, "result:    %g\n", *run.Result)
	}
	if run.Code == int(blas.Success) {
		_, _ = fmt.Fprintf(w, "max error: %.3g (tolerance %.3g)\n", errMax, tol)
	}
}
