package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envBlastConfig = "BLAST_CONFIG"

// Config represents the blast configuration file (~/.config/blast/config.yaml).
// Empty strings and nil pointers mean "not set".
type Config struct {
	Backend    string `yaml:"backend"`
	TuningFile string `yaml:"tuning_file"`
	Precision  string `yaml:"precision"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	RunHistory    *int64 `yaml:"run_history"`

	// Benchmarks
	Repeats *int64 `yaml:"repeats"`
}

func configPath() string {
	if p := os.Getenv(envBlastConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blast", "config.yaml")
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyBackendConfig fills the shared backend flags from cfg when the
// corresponding flag was not given.
func applyBackendConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backendName = cfg.Backend
	}
	if cfg.TuningFile != "" && !c.IsSet("tuning-file") {
		tuningFile = cfg.TuningFile
	}
	if cfg.Precision != "" && !c.IsSet("precision") {
		precision = cfg.Precision
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, history *int64) {
	applyBackendConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RunHistory != nil && !c.IsSet("history") {
		*history = *cfg.RunHistory
	}
}

func applyBenchConfig(c *cli.Command, cfg Config, repeats *int64) {
	applyBackendConfig(c, cfg)
	if cfg.Repeats != nil && !c.IsSet("repeats") {
		*repeats = *cfg.Repeats
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
