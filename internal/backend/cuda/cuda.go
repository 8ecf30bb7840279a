//go:build cuda

// Package cuda runs blast kernels through cuBLAS on an NVIDIA device. Only
// single and double precision are available.
package cuda

import (
	"fmt"
	"sync"

	"github.com/samcharles93/blast/internal/backend/cuda/native"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

const Vendor = "NVIDIA"

// Queue is an in-order queue over one CUDA stream and cuBLAS handle.
type Queue struct {
	info   device.Info
	log    logger.Logger
	stream native.Stream
	blas   native.BlasHandle

	mu     sync.Mutex
	closed bool
	err    error
}

// Open binds ordinal and creates its stream and cuBLAS handle.
func Open(ordinal int, log logger.Logger) (*Queue, *Programs, error) {
	if log == nil {
		log = logger.Discard()
	}
	count, err := native.DeviceCount()
	if err != nil {
		return nil, nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if ordinal < 0 || ordinal >= count {
		return nil, nil, fmt.Errorf("cuda device %d not present (%d detected)", ordinal, count)
	}
	if err := native.SetDevice(ordinal); err != nil {
		return nil, nil, fmt.Errorf("cuda set device %d: %w", ordinal, err)
	}
	threads, err := native.MaxThreadsPerBlock(ordinal)
	if err != nil {
		return nil, nil, fmt.Errorf("cuda device attributes: %w", err)
	}

	stream, err := native.NewStream()
	if err != nil {
		return nil, nil, fmt.Errorf("cuda stream create failed: %w", err)
	}
	handle, err := native.NewBlasHandle(stream)
	if err != nil {
		_ = stream.Destroy()
		return nil, nil, fmt.Errorf("cublas init failed: %w", err)
	}

	q := &Queue{
		info: device.Info{
			Backend:          "cuda",
			Name:             fmt.Sprintf("cuda:%d", ordinal),
			Vendor:           Vendor,
			MaxWorkGroupSize: threads,
		},
		log:    log,
		stream: stream,
		blas:   handle,
	}
	log.Debug("cuda queue opened", "device", q.info.Name, "max_threads", threads)
	return q, NewPrograms(), nil
}

func (q *Queue) Device() device.Info { return q.info }

func (q *Queue) CreateKernel(program device.Program, name string) (device.Kernel, error) {
	prog, ok := program.(*Program)
	if !ok || prog == nil {
		return nil, fmt.Errorf("%w: %T is not a cuda program", device.ErrProgramNotFound, program)
	}
	def, ok := prog.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s/%s", device.ErrKernelNotFound, name, prog.routine, prog.precision)
	}
	return &kernel{def: def, precision: prog.precision, args: make([]any, len(def.sig))}, nil
}

// Enqueue issues k on the stream. The range is validated against the device
// limits; cuBLAS chooses the actual launch shape.
func (q *Queue) Enqueue(k device.Kernel, global, local []int) (err error) {
	kn, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("%w: %T is not a cuda kernel", device.ErrArgument, k)
	}
	if len(global) != 1 || len(local) != 1 {
		return fmt.Errorf("%w: 1-D ranges only (global=%v local=%v)", device.ErrLaunch, global, local)
	}
	g, lsz := global[0], local[0]
	switch {
	case lsz <= 0 || g <= 0:
		return fmt.Errorf("%w: empty range global=%d local=%d", device.ErrLaunch, g, lsz)
	case lsz > q.info.MaxWorkGroupSize:
		return fmt.Errorf("%w: local size %d exceeds %d", device.ErrLaunch, lsz, q.info.MaxWorkGroupSize)
	case g%lsz != 0:
		return fmt.Errorf("%w: global %d is not a multiple of local %d", device.ErrLaunch, g, lsz)
	}
	a, err := kn.snapshot()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return device.ErrQueueClosed
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = launchPanic(kn.def.name, rec)
		}
		if err != nil && q.err == nil {
			q.err = err
		}
	}()
	if err := kn.def.run(q, levels[kn.precision], a); err != nil {
		q.log.Debug("cuda kernel failed", "kernel", kn.def.name, "error", err)
		return fmt.Errorf("%w: %s: %w", device.ErrLaunch, kn.def.name, err)
	}
	return nil
}

// Finish synchronizes the stream and returns the first failure since the
// previous Finish.
func (q *Queue) Finish() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	if syncErr := q.stream.Synchronize(); syncErr != nil && err == nil {
		err = fmt.Errorf("%w: %w", device.ErrLaunch, syncErr)
	}
	return err
}

func (q *Queue) Alloc(p blas.Precision, n int) (device.Buffer, error) {
	if !supported(p) {
		return nil, fmt.Errorf("%w: %s", device.ErrUnsupportedPrecision, p)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: alloc of %d elements", device.ErrArgument, n)
	}
	dev, err := native.AllocDevice(int64(n) * int64(p.ElemSize()))
	if err != nil {
		return nil, err
	}
	return &Buffer{dev: dev, precision: p, n: n}, nil
}

func (q *Queue) Release(b device.Buffer) error {
	buf, ok := b.(*Buffer)
	if !ok || buf == nil {
		return fmt.Errorf("%w: %T is not a cuda buffer", device.ErrArgument, b)
	}
	err := buf.dev.Free()
	buf.dev, buf.n = native.DeviceBuffer{}, 0
	return err
}

// Close drains the stream and destroys the cuBLAS handle and stream.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	err := q.stream.Synchronize()
	if e := q.blas.Destroy(); e != nil && err == nil {
		err = e
	}
	if e := q.stream.Destroy(); e != nil && err == nil {
		err = e
	}
	return err
}

// Program is the kernel table of one routine and precision.
type Program struct {
	routine   string
	precision blas.Precision
	kernels   map[string]*kernelDef
}

func (p *Program) Name() string              { return p.routine }
func (p *Program) Precision() blas.Precision { return p.precision }

type programKey struct {
	routine   string
	precision blas.Precision
}

// Programs holds a Program per routine for single and double precision.
type Programs struct {
	programs map[programKey]*Program
}

func NewPrograms() *Programs {
	c := &Programs{programs: make(map[programKey]*Program)}
	for routine, defs := range sources {
		for _, p := range blas.Precisions() {
			if !supported(p) {
				continue
			}
			kernels := make(map[string]*kernelDef, len(defs))
			for _, def := range defs {
				kernels[def.name] = def
			}
			c.programs[programKey{routine, p}] = &Program{routine: routine, precision: p, kernels: kernels}
		}
	}
	return c
}

func (c *Programs) GetProgram(routine string, p blas.Precision) (device.Program, error) {
	prog, ok := c.programs[programKey{routine, p}]
	if !ok {
		if !supported(p) {
			return nil, fmt.Errorf("%w: %s/%s: %w", device.ErrProgramNotFound, routine, p, device.ErrUnsupportedPrecision)
		}
		return nil, fmt.Errorf("%w: %s/%s", device.ErrProgramNotFound, routine, p)
	}
	return prog, nil
}

var (
	_ device.Queue        = (*Queue)(nil)
	_ device.ProgramCache = (*Programs)(nil)
	_ device.Buffer       = (*Buffer)(nil)
)
