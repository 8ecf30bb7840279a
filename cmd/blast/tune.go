package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// axpyCandidates expands the Xaxpy search space around the device's current
// parameters, dropping work-groups the device cannot run.
func axpyCandidates(db *tuning.Database, p blas.Precision, info device.Info) ([]tuning.Params, error) {
	base, err := db.Lookup(tuning.KernelAxpy, p, info)
	if err != nil {
		return nil, err
	}
	var out []tuning.Params
	for _, c := range tuning.Candidates(base, tuning.AxpySpace()) {
		if info.MaxWorkGroupSize > 0 && c.Get("WGS") > info.MaxWorkGroupSize {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// mergeEntry replaces the row of entries keyed like e, or appends e.
func mergeEntry(entries []tuning.Entry, e tuning.Entry) []tuning.Entry {
	for i, old := range entries {
		if old.Kernel == e.Kernel && old.Precision == e.Precision &&
			old.Vendor == e.Vendor && old.Device == e.Device {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}

func readEntries(path string) ([]tuning.Entry, error) {
	fh, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()
	return tuning.Decode(fh, tuning.FormatForPath(path))
}

func tuneCmd() *cli.Command {
	var (
		n       int64
		repeats int64
		out     string
	)

	flags := append([]cli.Flag{}, commonBackendFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "n",
			Usage:       "vector length to tune for",
			Value:       1 << 20,
			Destination: &n,
		},
		&cli.Int64Flag{
			Name:        "repeats",
			Aliases:     []string{"r"},
			Usage:       "timed calls per candidate",
			Value:       10,
			Destination: &repeats,
		},
		&cli.StringFlag{
			Name:        "out",
			Aliases:     []string{"o"},
			Usage:       "merge the winning row into this tuning file (stdout if empty)",
			Destination: &out,
		},
	)

	return &cli.Command{
		Name:  "tune",
		Usage: "Search Xaxpy work-group parameters for the selected device",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBenchConfig(cmd, LoadConfig(), &repeats)
			log := logger.FromContext(ctx)

			p, err := realPrecision()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			base, err := loadTuning()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			// Probe once so every candidate runs on the same backend.
			probe, err := backend.Open(backendName, base, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open backend: %v", err), 1)
			}
			resolved, info := probe.Name, probe.Queue.Device()
			_ = probe.Close()

			candidates, err := axpyCandidates(base, p, info)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("tuning", "kernel", tuning.KernelAxpy, "device", info.Name,
				"precision", p.String(), "candidates", len(candidates))

			row := func(params tuning.Params) tuning.Entry {
				return tuning.Entry{
					Kernel:    tuning.KernelAxpy,
					Precision: p.String(),
					Device:    info.Name,
					Params:    params,
				}
			}
			tuner := tuning.NewAutotuner()
			key := tuning.TuneKey{Kernel: tuning.KernelAxpy, Precision: p, Device: info.Name, N: int(n)}
			best, err := tuner.Tune(key, candidates, func(params tuning.Params) (float64, error) {
				db, err := base.With(row(params))
				if err != nil {
					return 0, err
				}
				h, err := backend.Open(resolved, db, log)
				if err != nil {
					return 0, err
				}
				defer func() { _ = h.Close() }()
				res, err := benchAs(ctx, p, h, db, "axpy", int(n), int(repeats))
				if err != nil {
					log.Debug("candidate failed", "params", params.String(), "error", err)
					return 0, err
				}
				log.Debug("candidate", "params", params.String(), "gbps", res.GBps)
				return res.GBps, nil
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("best candidate", "params", best.Params.String(), "gbps", best.Score)

			entry := row(best.Params)
			if strings.TrimSpace(out) == "" {
				return tuning.Encode(os.Stdout, tuning.FormatYAML, []tuning.Entry{entry})
			}
			existing, err := readEntries(out)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read %s: %v", out, err), 1)
			}
			if err := tuning.WriteFile(out, mergeEntry(existing, entry)); err != nil {
				return cli.Exit(fmt.Sprintf("error: write %s: %v", out, err), 1)
			}
			log.Info("tuning written", "path", out)
			return nil
		},
	}
}
