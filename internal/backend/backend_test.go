package backend

import (
	"errors"
	"strings"
	"testing"

	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":        Auto,
		"  HOST ": Host,
		"cpu":     Host,
		"cuda":    CUDA,
		"WebGPU":  WebGPU,
		"auto":    Auto,
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := Normalize("opencl"); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}

func TestAvailableListsHost(t *testing.T) {
	if !strings.HasPrefix(Available(), Host) {
		t.Fatalf("Available() = %q", Available())
	}
	if !Has(Host) || Has("opencl") {
		t.Fatal("Has reports wrong membership")
	}
}

func TestOpenHostRoundTrip(t *testing.T) {
	h, err := Open(Host, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()
	if h.Name != Host || h.Queue.Device().Backend != Host {
		t.Fatalf("opened %q on %+v", h.Name, h.Queue.Device())
	}

	b, err := Upload(h, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if b.Size() != 24 {
		t.Fatalf("Size = %d", b.Size())
	}
	out := make([]float64, 3)
	if err := Download(h, b, out); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if out[0] != 1 || out[2] != 3 {
		t.Fatalf("round trip = %v", out)
	}

	if err := Download(h, b, make([]float32, 3)); !errors.Is(err, device.ErrArgument) {
		t.Fatalf("mismatched precision read: %v", err)
	}
	if _, err := h.Programs.GetProgram(device.RoutineAxpy, blas.ComplexDouble); err != nil {
		t.Fatalf("host program missing: %v", err)
	}
}

func TestOpenUnavailable(t *testing.T) {
	if Has(CUDA) {
		t.Skip("cuda compiled in")
	}
	if _, err := Open(CUDA, nil, nil); !errors.Is(err, errUnavailable) {
		t.Fatalf("Open(cuda) err = %v", err)
	}
}

func TestOpenAutoFallsBackToHost(t *testing.T) {
	if Has(CUDA) || Has(WebGPU) {
		t.Skip("accelerated backend compiled in")
	}
	h, err := Open(Auto, nil, nil)
	if err != nil {
		t.Fatalf("Open(auto): %v", err)
	}
	defer h.Close()
	if h.Name != Host {
		t.Fatalf("auto opened %q", h.Name)
	}
}
