package host

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/x448/float16"

	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

func newTestHost(t *testing.T) (*Queue, *Programs) {
	t.Helper()
	q := NewQueue(WithWorkers(4))
	t.Cleanup(func() { _ = q.Close() })
	progs, err := NewPrograms(tuning.Default(), q.Device())
	if err != nil {
		t.Fatalf("NewPrograms: %v", err)
	}
	return q, progs
}

func kernelFor(t *testing.T, q *Queue, progs *Programs, routine string, p blas.Precision, name string) device.Kernel {
	t.Helper()
	prog, err := progs.GetProgram(routine, p)
	if err != nil {
		t.Fatalf("GetProgram(%s, %s): %v", routine, p, err)
	}
	k, err := q.CreateKernel(prog, name)
	if err != nil {
		t.Fatalf("CreateKernel(%s): %v", name, err)
	}
	return k
}

func bind(t *testing.T, k device.Kernel, args ...any) {
	t.Helper()
	for i, a := range args {
		if err := k.SetArgument(i, a); err != nil {
			t.Fatalf("SetArgument(%d): %v", i, err)
		}
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()
	info := Probe()
	if info.Backend != "host" || info.Vendor != Vendor {
		t.Fatalf("unexpected device %+v", info)
	}
	switch info.Name {
	case "host-generic", "host-avx2", "host-avx512", "host-neon":
	default:
		t.Fatalf("unexpected device name %q", info.Name)
	}
	if info.MaxWorkGroupSize <= 0 {
		t.Fatalf("max work-group size must be positive")
	}
}

func TestProgramsCompileEveryRoutine(t *testing.T) {
	t.Parallel()
	_, progs := newTestHost(t)
	want := map[string]int{
		device.RoutineAxpy: 2,
		device.RoutineScal: 2,
		device.RoutineCopy: 2,
		device.RoutineSwap: 2,
		device.RoutineDot:  2,
		device.RoutineGemv: 3,
	}
	for routine, n := range want {
		for _, p := range blas.Precisions() {
			prog, err := progs.GetProgram(routine, p)
			if err != nil {
				t.Fatalf("GetProgram(%s, %s): %v", routine, p, err)
			}
			hp := prog.(*Program)
			if got := len(hp.Kernels()); got != n {
				t.Fatalf("%s/%s has %d kernels, want %d", routine, p, got, n)
			}
			if hp.Precision() != p || hp.Name() != routine {
				t.Fatalf("program identity mismatch: %s/%s", hp.Name(), hp.Precision())
			}
		}
	}
	if _, err := progs.GetProgram("TRSM", blas.Single); !errors.Is(err, device.ErrProgramNotFound) {
		t.Fatalf("expected ErrProgramNotFound, got %v", err)
	}
}

func TestProgramsBakeTuning(t *testing.T) {
	t.Parallel()
	db, err := tuning.Default().With(tuning.Entry{Kernel: tuning.KernelAxpy, Vendor: Vendor, Params: tuning.Params{"WPT": 8}})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	progs, err := NewPrograms(db, Probe())
	if err != nil {
		t.Fatalf("NewPrograms: %v", err)
	}
	prog, _ := progs.GetProgram(device.RoutineScal, blas.Double)
	if got := prog.(*Program).Params().Get("WPT"); got != 8 {
		t.Fatalf("WPT = %d, want 8", got)
	}
}

func TestSetArgumentTypes(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	k := kernelFor(t, q, progs, device.RoutineAxpy, blas.Single, device.KernelXaxpyFast)

	cases := []struct {
		name  string
		index int
		value any
	}{
		{"int instead of int32", 0, 16},
		{"double alpha", 1, float64(2)},
		{"double buffer", 2, Alloc[float64](4)},
		{"nil buffer", 3, (*Buffer[float32])(nil)},
		{"index past end", 4, Alloc[float32](4)},
		{"negative index", -1, int32(1)},
	}
	for _, tc := range cases {
		if err := k.SetArgument(tc.index, tc.value); !errors.Is(err, device.ErrArgument) {
			t.Fatalf("%s: expected ErrArgument, got %v", tc.name, err)
		}
	}
}

func TestEnqueueRejectsBadRanges(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	x := Alloc[float32](64)
	k := kernelFor(t, q, progs, device.RoutineScal, blas.Single, device.KernelXscal)
	bind(t, k, int32(64), float32(2), x, int32(0), int32(1))

	cases := []struct {
		name          string
		global, local []int
	}{
		{"2-D", []int{64, 1}, []int{64, 1}},
		{"zero local", []int{64}, []int{0}},
		{"not a multiple", []int{100}, []int{64}},
		{"oversized group", []int{4096}, []int{4096}},
	}
	for _, tc := range cases {
		if err := q.Enqueue(k, tc.global, tc.local); !errors.Is(err, device.ErrLaunch) {
			t.Fatalf("%s: expected ErrLaunch, got %v", tc.name, err)
		}
	}
}

func TestEnqueueRequiresAllArguments(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	k := kernelFor(t, q, progs, device.RoutineAxpy, blas.Single, device.KernelXaxpyFast)
	bind(t, k, int32(4), float32(1))
	if err := q.Enqueue(k, []int{64}, []int{64}); !errors.Is(err, device.ErrArgument) {
		t.Fatalf("expected ErrArgument, got %v", err)
	}
}

func TestGenericAxpyStrided(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	x := FromSlice([]float64{1, -1, 2, -1, 3, -1, 4})
	y := FromSlice([]float64{10, 20, 30, 40})
	k := kernelFor(t, q, progs, device.RoutineAxpy, blas.Double, device.KernelXaxpy)
	bind(t, k, int32(4), float64(0.5), x, int32(0), int32(2), y, int32(0), int32(1))
	if err := q.Enqueue(k, []int{64}, []int{64}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	want := []float64{10.5, 21, 31.5, 42}
	for i, v := range y.Slice() {
		if v != want[i] {
			t.Fatalf("y[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestFastKernelTiles(t *testing.T) {
	t.Parallel()
	db, err := tuning.New(tuning.Entry{Kernel: tuning.KernelAxpy, Params: tuning.Params{"WGS": 4, "WPT": 2, "VW": 2}})
	if err != nil {
		t.Fatalf("tuning.New: %v", err)
	}
	db, err = db.With(
		tuning.Entry{Kernel: tuning.KernelDot, Params: tuning.Params{"WGS1": 4, "WGS2": 4}},
		tuning.Entry{Kernel: tuning.KernelGemv, Params: tuning.Params{
			"WGS1": 4, "WPT1": 1, "WGS2": 4, "WPT2": 1, "VW2": 1, "WGS3": 4, "WPT3": 1, "VW3": 1,
		}},
	)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	q := NewQueue()
	t.Cleanup(func() { _ = q.Close() })
	progs, err := NewPrograms(db, q.Device())
	if err != nil {
		t.Fatalf("NewPrograms: %v", err)
	}

	const n = 32 // two groups of 4 items, 4 elements per item
	x := Alloc[float32](n)
	for i := range x.Slice() {
		x.Slice()[i] = float32(i)
	}
	k := kernelFor(t, q, progs, device.RoutineScal, blas.Single, device.KernelXscalFast)
	bind(t, k, int32(n), float32(3), x)
	if err := q.Enqueue(k, []int{n / 4}, []int{4}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	for i, v := range x.Slice() {
		if v != float32(3*i) {
			t.Fatalf("x[%d] = %v, want %v (element skipped or repeated)", i, v, float32(3*i))
		}
	}
}

func TestKernelPanicReportedByFinish(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	x := Alloc[float32](8)
	y := Alloc[float32](8)
	k := kernelFor(t, q, progs, device.RoutineCopy, blas.Single, device.KernelXcopy)
	// n larger than either buffer makes the kernel index out of range.
	bind(t, k, int32(64), x, int32(0), int32(1), y, int32(0), int32(1))
	if err := q.Enqueue(k, []int{64}, []int{64}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Finish(); !errors.Is(err, device.ErrLaunch) {
		t.Fatalf("expected ErrLaunch from Finish, got %v", err)
	}
	if err := q.Finish(); err != nil {
		t.Fatalf("error should be cleared after Finish, got %v", err)
	}
}

func TestDotTwoStage(t *testing.T) {
	t.Parallel()
	q, progs := newTestHost(t)
	info := q.Device()
	params, err := tuning.Default().Lookup(tuning.KernelDot, blas.ComplexDouble, info)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	wgs1, wgs2 := params.Get("WGS1"), params.Get("WGS2")

	const n = 300
	xs := make([]complex128, n)
	ys := make([]complex128, n)
	var want complex128
	for i := range n {
		xs[i] = complex(float64(i%7), float64(i%3))
		ys[i] = complex(1, float64(i%5))
		want += cmplx.Conj(xs[i]) * ys[i]
	}
	x, y := FromSlice(xs), FromSlice(ys)
	temp := Alloc[complex128](2 * wgs2)
	dot := Alloc[complex128](2)

	stage1 := kernelFor(t, q, progs, device.RoutineDot, blas.ComplexDouble, device.KernelXdot)
	bind(t, stage1, int32(n), x, int32(0), int32(1), y, int32(0), int32(1), temp, int32(1))
	stage2 := kernelFor(t, q, progs, device.RoutineDot, blas.ComplexDouble, device.KernelXdotEpilogue)
	bind(t, stage2, temp, dot, int32(1))

	if err := q.Enqueue(stage1, []int{wgs1 * 2 * wgs2}, []int{wgs1}); err != nil {
		t.Fatalf("Enqueue stage 1: %v", err)
	}
	if err := q.Enqueue(stage2, []int{wgs2}, []int{wgs2}); err != nil {
		t.Fatalf("Enqueue stage 2: %v", err)
	}
	if err := q.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := dot.Slice()[1]; cmplx.Abs(got-want) > 1e-9 {
		t.Fatalf("dot = %v, want %v", got, want)
	}
	if dot.Slice()[0] != 0 {
		t.Fatalf("epilogue wrote outside dotoff")
	}
}

func TestHalfArith(t *testing.T) {
	t.Parallel()
	o := arithFor[float16.Float16]()
	got := o.fma(float16.Fromfloat32(1.5), float16.Fromfloat32(2), float16.Fromfloat32(0.25))
	if got.Float32() != 3.25 {
		t.Fatalf("half fma = %v, want 3.25", got.Float32())
	}
	c := arithFor[complex64]().conj(complex(1, 2))
	if c != complex(1, -2) {
		t.Fatalf("conj = %v", c)
	}
}

func TestAllocRelease(t *testing.T) {
	t.Parallel()
	q, _ := newTestHost(t)
	for _, p := range blas.Precisions() {
		b, err := q.Alloc(p, 10)
		if err != nil {
			t.Fatalf("Alloc(%s): %v", p, err)
		}
		if b.Size() != int64(10*p.ElemSize()) {
			t.Fatalf("%s buffer size = %d", p, b.Size())
		}
		if err := q.Release(b); err != nil {
			t.Fatalf("Release(%s): %v", p, err)
		}
		if b.Size() != 0 {
			t.Fatalf("released %s buffer still reports %d bytes", p, b.Size())
		}
	}
	if _, err := q.Alloc(blas.Single, 0); !errors.Is(err, device.ErrArgument) {
		t.Fatalf("expected ErrArgument for empty alloc, got %v", err)
	}
}

func TestClosedQueue(t *testing.T) {
	t.Parallel()
	q := NewQueue()
	progs, err := NewPrograms(nil, q.Device())
	if err != nil {
		t.Fatalf("NewPrograms: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	k := kernelFor(t, q, progs, device.RoutineScal, blas.Single, device.KernelXscal)
	bind(t, k, int32(1), float32(1), Alloc[float32](1), int32(0), int32(1))
	if err := q.Enqueue(k, []int{64}, []int{64}); !errors.Is(err, device.ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
