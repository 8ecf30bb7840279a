//go:build webgpu

package webgpu

import (
	"strings"
	"testing"

	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/blast"
	"github.com/samcharles93/blast/pkg/device"
)

func TestSourceBindsBuffersInOrder(t *testing.T) {
	params := tuning.Params{"WGS": 64, "WPT": 2, "VW": 4}
	var axpy *kernelDef
	for _, def := range sources[device.RoutineAxpy] {
		if def.name == device.KernelXaxpy {
			axpy = def
		}
	}
	code, err := axpy.source(params)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	for _, want := range []string{
		"@binding(1) var<storage, read_write> x",
		"@binding(2) var<storage, read_write> y",
		"const GROUP_SIZE : u32 = 64u;",
		"let alpha = bitcast<f32>(words[1]);",
		"let yinc = bitcast<i32>(words[5]);",
	} {
		if !strings.Contains(code, want) {
			t.Fatalf("source missing %q:\n%s", want, code)
		}
	}
}

func TestSourceRequiresGroupSize(t *testing.T) {
	def := sources[device.RoutineDot][0]
	if _, err := def.source(tuning.Params{"WGS2": 32}); err == nil {
		t.Fatal("expected missing WGS1 to fail")
	}
}

func TestPackSkipsBuffers(t *testing.T) {
	k := &kernel{compiled: &compiled{def: sources[device.RoutineCopy][1]}, args: make([]any, 7)}
	x, y := &Buffer{n: 4}, &Buffer{n: 4}
	for i, v := range []any{int32(4), x, int32(0), int32(1), y, int32(0), int32(1)} {
		k.args[i] = v
	}
	words, bufs, err := k.pack()
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(words) != 5*4 || len(bufs) != 2 || bufs[0] != x || bufs[1] != y {
		t.Fatalf("pack = %d bytes, %d buffers", len(words), len(bufs))
	}
	k.args[3] = nil
	if _, _, err := k.pack(); err == nil {
		t.Fatal("expected unset argument to fail")
	}
}

func TestAxpyOnAdapter(t *testing.T) {
	q, progs, err := Open(nil, nil)
	if err != nil {
		t.Skipf("no webgpu adapter: %v", err)
	}
	defer q.Close()

	e, err := blast.New(q, progs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const n = 1000
	xs, ys := make([]float32, n), make([]float32, n)
	for i := range xs {
		xs[i], ys[i] = float32(i), 1
	}
	xb, _ := q.Alloc(blas.Single, n)
	yb, _ := q.Alloc(blas.Single, n)
	x, y := xb.(*Buffer), yb.(*Buffer)
	if err := q.Upload(x, xs); err != nil {
		t.Fatal(err)
	}
	if err := q.Upload(y, ys); err != nil {
		t.Fatal(err)
	}

	if st := blast.Axpy(e, n, float32(3), blast.Vec(x), blast.Vec(y)); st != blas.Success {
		t.Fatalf("Axpy = %v", st)
	}
	got := make([]float32, n)
	if err := q.Download(y, got); err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i, v := range got {
		if want := 3*float32(i) + 1; v != want {
			t.Fatalf("y[%d] = %v, want %v", i, v, want)
		}
	}
}
