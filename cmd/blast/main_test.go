package main

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/blast/internal/api"
	"github.com/samcharles93/blast/internal/backend"
	"github.com/samcharles93/blast/internal/backend/host"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(envBlastConfig, path)
}

func TestLoadConfig(t *testing.T) {
	writeConfig(t, "backend: host\nprecision: double\nrun_history: 12\nserver_address: 0.0.0.0:9000\n")

	cfg := LoadConfig()
	if cfg.Backend != "host" || cfg.Precision != "double" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("LoadConfig = %+v", cfg)
	}
	if cfg.RunHistory == nil || *cfg.RunHistory != 12 {
		t.Fatalf("RunHistory = %v", cfg.RunHistory)
	}
	if cfg.Repeats != nil {
		t.Fatalf("Repeats should be unset, got %d", *cfg.Repeats)
	}
}

func TestLoadConfigMissingOrBroken(t *testing.T) {
	t.Setenv(envBlastConfig, filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg := LoadConfig(); cfg.Backend != "" {
		t.Fatalf("missing file: %+v", cfg)
	}
	writeConfig(t, "backend: [unterminated\n")
	if cfg := LoadConfig(); cfg.Backend != "" {
		t.Fatalf("broken file: %+v", cfg)
	}
}

func TestFlagsBeatConfig(t *testing.T) {
	cfg := Config{Backend: "webgpu", Precision: "double", TuningFile: "tuned.yaml"}
	cmd := &cli.Command{
		Name:  "probe",
		Flags: commonBackendFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyBackendConfig(cmd, cfg)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"probe", "--backend", "host"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backendName != "host" {
		t.Fatalf("backend = %q, flag should win", backendName)
	}
	if precision != "double" || tuningFile != "tuned.yaml" {
		t.Fatalf("config not applied: precision=%q tuning=%q", precision, tuningFile)
	}
}

func TestRealPrecisionRejectsComplex(t *testing.T) {
	precision = "complex-single"
	t.Cleanup(func() { precision = "single" })
	if _, err := realPrecision(); err == nil {
		t.Fatal("complex precision should be rejected")
	}
}

func TestRoutinesMatchReference(t *testing.T) {
	db := tuning.Default()
	h, err := backend.Open(backend.Host, db, nil)
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	server, err := api.NewServer(h, db, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	shapes := []shape{
		{n: 300, m: 37, incX: 1, incY: 1, alpha: 1.5, beta: 0.5},
		{n: 129, m: 64, incX: 2, incY: 3, alpha: -0.25, beta: 2, layout: blas.RowMajor, trans: blas.Trans},
	}
	routines := []string{"axpy", "scal", "copy", "swap", "dot", "dotc", "gemv"}
	for _, p := range []blas.Precision{blas.Single, blas.Double} {
		for si, s := range shapes {
			for _, name := range routines {
				rng := rand.New(rand.NewPCG(uint64(si), 7))
				req, err := buildRequest(name, s, p, rng)
				if err != nil {
					t.Fatalf("buildRequest %s: %v", name, err)
				}
				run, err := server.Run(name, req)
				if err != nil {
					t.Fatalf("%s/%s: %v", name, p, err)
				}
				if run.Code != int(blas.Success) {
					t.Fatalf("%s/%s shape %d: status %s", name, p, si, run.Status)
				}
				want := reference(name, req)
				if got, tol := maxError(run, want), tolerance(p, want); got > tol {
					t.Fatalf("%s/%s shape %d: error %.3g > %.3g", name, p, si, got, tol)
				}
			}
		}
	}
}

func TestMergeEntry(t *testing.T) {
	entries := []tuning.Entry{
		{Kernel: tuning.KernelAxpy, Device: "host-avx2", Precision: "single", Params: tuning.Params{"WGS": 64}},
		{Kernel: tuning.KernelDot, Params: tuning.Params{"WGS1": 64}},
	}
	entries = mergeEntry(entries, tuning.Entry{Kernel: tuning.KernelAxpy, Device: "host-avx2", Precision: "single", Params: tuning.Params{"WGS": 128}})
	if len(entries) != 2 || entries[0].Params.Get("WGS") != 128 {
		t.Fatalf("replace: %+v", entries)
	}
	entries = mergeEntry(entries, tuning.Entry{Kernel: tuning.KernelAxpy, Device: "host-avx2", Precision: "double", Params: tuning.Params{"WGS": 32}})
	if len(entries) != 3 {
		t.Fatalf("append: %+v", entries)
	}
}

func TestReadEntriesMissingFile(t *testing.T) {
	entries, err := readEntries(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil || entries != nil {
		t.Fatalf("readEntries = %v, %v", entries, err)
	}
}

func TestAxpyCandidatesRespectDeviceLimit(t *testing.T) {
	info := host.Probe()
	info.MaxWorkGroupSize = 64
	cands, err := axpyCandidates(tuning.Default(), blas.Single, info)
	if err != nil {
		t.Fatalf("axpyCandidates: %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("no candidates")
	}
	for _, c := range cands {
		if c.Get("WGS") > 64 {
			t.Fatalf("candidate %s exceeds the work-group limit", c)
		}
	}
}

func TestResolvedEntriesCoverEveryFamily(t *testing.T) {
	db := tuning.Default()
	entries, err := resolvedEntries(db, host.Probe())
	if err != nil {
		t.Fatalf("resolvedEntries: %v", err)
	}
	if want := len(db.Kernels()) * 3; len(entries) != want {
		t.Fatalf("got %d rows, want %d", len(entries), want)
	}
	for _, e := range entries {
		if _, err := db.With(e); err != nil {
			t.Fatalf("row %+v does not load back: %v", e, err)
		}
	}
}

func TestBenchRoutineHost(t *testing.T) {
	db := tuning.Default()
	h, err := backend.Open(backend.Host, db, nil)
	if err != nil {
		t.Fatalf("open host: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	for _, r := range []string{"axpy", "dot", "gemv"} {
		res, err := benchAs(context.Background(), blas.Single, h, db, r, 256, 2)
		if err != nil {
			t.Fatalf("%s: %v", r, err)
		}
		if res.Kernel == "" || res.Repeats != 2 {
			t.Fatalf("%s: %+v", r, res)
		}
	}
}
