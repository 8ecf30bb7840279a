package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:   "blast",
		Usage:  "BLAS routine dispatch on host, CUDA and WebGPU devices",
		Flags:  loggingFlags(),
		Before: setupLogging,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			benchCmd(),
			tuneCmd(),
			tuningCmd(),
			serveCmd(),
			backendsCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	applyLoggingConfig(cmd, LoadConfig())
	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, level, logFormat)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 2)
	}
	return logger.WithContext(ctx, log), nil
}
