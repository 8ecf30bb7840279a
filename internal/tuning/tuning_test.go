package tuning

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

func TestDefaultHasEveryFamily(t *testing.T) {
	t.Parallel()

	db := Default()
	info := device.Info{Name: "unknown", Vendor: "nobody"}
	for _, p := range blas.Precisions() {
		for _, k := range []string{KernelAxpy, KernelDot, KernelGemv} {
			params, err := db.Lookup(k, p, info)
			if err != nil {
				t.Fatalf("Lookup(%s, %s): %v", k, p, err)
			}
			if err := params.Validate(); err != nil {
				t.Fatalf("Lookup(%s, %s): %v", k, p, err)
			}
		}
	}
}

func TestLookupSpecificity(t *testing.T) {
	t.Parallel()

	db, err := New(
		Entry{Kernel: "K", Device: "gpu0", Precision: "single", Params: Params{"WGS": 512}},
		Entry{Kernel: "K", Params: Params{"WGS": 64, "WPT": 1, "VW": 1}},
		Entry{Kernel: "K", Vendor: "acme", Params: Params{"WGS": 128, "VW": 2}},
		Entry{Kernel: "K", Precision: "single", Params: Params{"WPT": 2}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name string
		prec blas.Precision
		info device.Info
		want Params
	}{
		{"wildcard", blas.Double, device.Info{Name: "x", Vendor: "y"}, Params{"WGS": 64, "WPT": 1, "VW": 1}},
		{"precision", blas.Single, device.Info{Name: "x", Vendor: "y"}, Params{"WGS": 64, "WPT": 2, "VW": 1}},
		{"vendor", blas.Double, device.Info{Name: "x", Vendor: "ACME"}, Params{"WGS": 128, "WPT": 1, "VW": 2}},
		{"device", blas.Single, device.Info{Name: "gpu0", Vendor: "acme"}, Params{"WGS": 512, "WPT": 2, "VW": 2}},
	}
	for _, tc := range cases {
		got, err := db.Lookup("K", tc.prec, tc.info)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.String() != tc.want.String() {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestLookupUnknownKernel(t *testing.T) {
	t.Parallel()

	_, err := Default().Lookup("Xnope", blas.Single, device.Info{})
	if !errors.Is(err, ErrUnknownKernel) {
		t.Fatalf("expected ErrUnknownKernel, got %v", err)
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	t.Parallel()

	bad := []Entry{
		{Params: Params{"WGS": 1}},
		{Kernel: "K"},
		{Kernel: "K", Params: Params{"WGS": 0}},
		{Kernel: "K", Precision: "quad", Params: Params{"WGS": 1}},
	}
	for i, e := range bad {
		if _, err := New(e); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestWithOverridesWin(t *testing.T) {
	t.Parallel()

	db, err := Default().With(Entry{Kernel: KernelAxpy, Params: Params{"WGS": 32}})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	got, err := db.Lookup(KernelAxpy, blas.Single, device.Info{Name: "gpu", Vendor: "none"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Get("WGS") != 32 {
		t.Fatalf("override not applied: %s", got)
	}
	base, _ := Default().Lookup(KernelAxpy, blas.Single, device.Info{Name: "gpu", Vendor: "none"})
	if base.Get("WGS") != 64 {
		t.Fatalf("base database mutated: %s", base)
	}
}

func TestParamsTile(t *testing.T) {
	t.Parallel()

	p := Params{"WGS": 64, "WPT": 2, "VW": 2}
	if p.Tile("WGS", "WPT", "VW") != 256 {
		t.Fatalf("tile = %d", p.Tile("WGS", "WPT", "VW"))
	}
	if p.Tile("WGS", "MISSING") != 0 {
		t.Fatalf("missing parameter should zero the tile")
	}
	if err := p.Require("WGS", "X"); err == nil {
		t.Fatalf("expected Require error")
	}
}

func TestEncodeDecodeFormats(t *testing.T) {
	t.Parallel()

	entries := []Entry{{Kernel: KernelAxpy, Precision: "double", Vendor: "acme", Params: Params{"WGS": 128}}}
	for _, format := range []string{FormatYAML, FormatJSON} {
		var buf bytes.Buffer
		if err := Encode(&buf, format, entries); err != nil {
			t.Fatalf("%s encode: %v", format, err)
		}
		got, err := Decode(&buf, format)
		if err != nil {
			t.Fatalf("%s decode: %v", format, err)
		}
		if len(got) != 1 || got[0].Kernel != KernelAxpy || got[0].Params.Get("WGS") != 128 || got[0].Vendor != "acme" {
			t.Fatalf("%s: unexpected entries %+v", format, got)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	data := []byte("entries:\n  - kernel: Xaxpy\n    device: gpu0\n    params:\n      WGS: 16\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	db, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	got, err := db.Lookup(KernelAxpy, blas.Single, device.Info{Name: "gpu0"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Get("WGS") != 16 || got.Get("WPT") != 1 {
		t.Fatalf("unexpected params %s", got)
	}

	if _, err := LoadFile(Default(), filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "tuning.json")
	if err := WriteFile(path, []Entry{{Kernel: KernelDot, Params: Params{"WGS1": 32, "WGS2": 16}}}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	db, err := LoadFile(Default(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	got, err := db.Lookup(KernelDot, blas.Double, device.Info{})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Get("WGS1") != 32 || got.Get("WGS2") != 16 {
		t.Fatalf("unexpected params %s", got)
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	got := Candidates(Params{"WGS": 64, "WPT": 1}, map[string][]int{
		"WGS": {32, 64},
		"WPT": {1, 2, 0},
	})
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d: %v", len(got), got)
	}
	seen := map[string]bool{}
	for _, p := range got {
		seen[p.String()] = true
	}
	for _, want := range []string{"WGS=32 WPT=1", "WGS=32 WPT=2", "WGS=64 WPT=1", "WGS=64 WPT=2"} {
		if !seen[want] {
			t.Fatalf("missing candidate %s in %v", want, got)
		}
	}
}

func TestAutotunerPicksBestAndCaches(t *testing.T) {
	t.Parallel()

	tuner := NewAutotuner()
	key := TuneKey{Kernel: KernelAxpy, Precision: blas.Single, Device: "host", N: 1024}
	cands := []Params{{"WGS": 32}, {"WGS": 64}, {"WGS": 128}}
	calls := 0
	run := func(p Params) (float64, error) {
		calls++
		if p.Get("WGS") == 128 {
			return 0, errors.New("too big")
		}
		return float64(p.Get("WGS")), nil
	}
	best, err := tuner.Tune(key, cands, run)
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if best.Params.Get("WGS") != 64 {
		t.Fatalf("best = %s", best.Params)
	}
	if _, err := tuner.Tune(key, cands, run); err != nil {
		t.Fatalf("cached Tune: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected cached result, run called %d times", calls)
	}
	if len(tuner.Results()) != 1 {
		t.Fatalf("expected one cached result")
	}
}

func TestAutotunerAllFail(t *testing.T) {
	t.Parallel()

	_, err := NewAutotuner().Tune(TuneKey{}, []Params{{"WGS": 1}}, func(Params) (float64, error) {
		return 0, errors.New("boom")
	})
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}
