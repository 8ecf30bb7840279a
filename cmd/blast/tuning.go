package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// resolvedEntries returns one row per family and real precision holding the
// parameters info resolves to.
func resolvedEntries(db *tuning.Database, info device.Info) ([]tuning.Entry, error) {
	var out []tuning.Entry
	for _, family := range db.Kernels() {
		for _, p := range []blas.Precision{blas.Half, blas.Single, blas.Double} {
			params, err := db.Lookup(family, p, info)
			if err != nil {
				return nil, err
			}
			out = append(out, tuning.Entry{
				Kernel:    family,
				Precision: p.String(),
				Device:    info.Name,
				Params:    params,
			})
		}
	}
	return out, nil
}

func tuningCmd() *cli.Command {
	var (
		format string
		all    bool
	)

	flags := append([]cli.Flag{}, commonBackendFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "output format (yaml, json)",
			Value:       tuning.FormatYAML,
			Destination: &format,
		},
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "dump every database row instead of the device's resolved parameters",
			Destination: &all,
		},
	)

	return &cli.Command{
		Name:  "tuning",
		Usage: "Print tuning parameters",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBackendConfig(cmd, LoadConfig())

			if all {
				db, err := loadTuning()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				return tuning.Encode(os.Stdout, format, db.Entries())
			}

			h, db, err := openBackend(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			info := h.Queue.Device()
			_ = h.Close()

			entries, err := resolvedEntries(db, info)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return tuning.Encode(os.Stdout, format, entries)
		},
	}
}
