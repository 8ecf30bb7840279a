package main

import "github.com/urfave/cli/v3"

var (
	backendName string
	tuningFile  string
	precision   string
	logLevel    string
	logFormat   string
	debug       bool
)

func commonBackendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "execution backend (auto, host, cuda, webgpu)",
			Value:       "auto",
			Sources:     cli.EnvVars("BLAST_BACKEND"),
			Destination: &backendName,
		},
		&cli.StringFlag{
			Name:        "tuning-file",
			Usage:       "YAML or JSON tuning overrides layered over the built-in database",
			Sources:     cli.EnvVars("BLAST_TUNING_FILE"),
			Destination: &tuningFile,
		},
		&cli.StringFlag{
			Name:        "precision",
			Aliases:     []string{"p"},
			Usage:       "element precision (half, single, double)",
			Value:       "single",
			Destination: &precision,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
