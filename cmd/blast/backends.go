package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
)

func backendsCmd() *cli.Command {
	var probe bool

	return &cli.Command{
		Name:  "backends",
		Usage: "List the backends compiled into this binary",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "probe",
				Usage:       "open each backend and print its device",
				Destination: &probe,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			for _, name := range strings.Split(backend.Available(), ",") {
				if !probe {
					fmt.Println(name)
					continue
				}
				h, err := backend.Open(name, tuning.Default(), log)
				if err != nil {
					fmt.Printf("%-7s unavailable: %v\n", name, err)
					continue
				}
				info := h.Queue.Device()
				_ = h.Close()
				fmt.Printf("%-7s %s (%s) max-work-group=%d features=%s\n",
					name, info.Name, info.Vendor, info.MaxWorkGroupSize, strings.Join(info.Features, ","))
			}
			return nil
		},
	}
}
