package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/api"
	"github.com/samcharles93/blast/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		history     int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve routines over HTTP",
		Flags: append(commonBackendFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "history",
				Usage:       "number of runs kept for GET /v1/runs/:id",
				Value:       256,
				Destination: &history,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, LoadConfig(), &addr, &history)
			log := logger.FromContext(ctx)

			h, db, err := openBackend(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = h.Close() }()

			server, err := api.NewServer(h, db, api.NewRunStore(int(history)), log.With("component", "api"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			info := h.Queue.Device()
			log.Info("starting server", "address", addr, "backend", h.Name, "device", info.Name)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
