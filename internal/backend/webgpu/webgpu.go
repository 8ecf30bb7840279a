//go:build webgpu

// Package webgpu compiles blast kernels to WGSL compute shaders. Only single
// precision is available.
package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

const (
	pollAttempts = 10000
	mapTimeout   = 5 * time.Second
)

// Context is the adapter and device a Queue runs on.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

// NewContext requests a high-performance adapter, falling back to low-power
// and then to the default.
func NewContext() (*Context, error) {
	c := &Context{Instance: wgpu.CreateInstance(nil)}
	if c.Instance == nil {
		return nil, fmt.Errorf("failed to create WebGPU instance")
	}
	var err error
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		c.Adapter, err = c.Instance.RequestAdapter(opts)
		if err == nil && c.Adapter != nil {
			break
		}
	}
	if c.Adapter == nil {
		c.Instance.Release()
		return nil, fmt.Errorf("all adapter attempts failed: %v", err)
	}
	c.Device, err = c.Adapter.RequestDevice(nil)
	if err != nil {
		c.Adapter.Release()
		c.Instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	c.Queue = c.Device.GetQueue()
	return c, nil
}

func (c *Context) Release() {
	c.Device.Release()
	c.Adapter.Release()
	c.Instance.Release()
}

// Info describes the adapter behind c.
func (c *Context) Info() device.Info {
	info := c.Adapter.GetInfo()
	limits := c.Adapter.GetLimits()
	return device.Info{
		Backend:          "webgpu",
		Name:             info.Name,
		Vendor:           strings.TrimSpace(info.VendorName),
		MaxWorkGroupSize: int(limits.Limits.MaxComputeInvocationsPerWorkgroup),
	}
}

// poll drives the device until queued work completes.
func (c *Context) poll() {
	for range pollAttempts {
		if c.Device.Poll(true, nil) {
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Buffer is a storage buffer of n single-precision elements.
type Buffer struct {
	buf *wgpu.Buffer
	n   int
}

func (b *Buffer) Size() int64 { return int64(b.n) * 4 }
func (b *Buffer) Len() int    { return b.n }

// Queue submits one command buffer per kernel to the device queue.
type Queue struct {
	ctx  *Context
	info device.Info
	log  logger.Logger

	mu       sync.Mutex
	closed   bool
	err      error
	inFlight []*wgpu.Buffer
}

// Open creates a context and compiles every routine against the parameters
// db resolves for the adapter.
func Open(db *tuning.Database, log logger.Logger) (*Queue, *Programs, error) {
	if log == nil {
		log = logger.Discard()
	}
	ctx, err := NewContext()
	if err != nil {
		return nil, nil, err
	}
	q := &Queue{ctx: ctx, info: ctx.Info(), log: log}
	progs, err := NewPrograms(ctx, db, q.info)
	if err != nil {
		ctx.Release()
		return nil, nil, err
	}
	log.Debug("webgpu queue opened", "adapter", q.info.Name, "vendor", q.info.Vendor)
	return q, progs, nil
}

func (q *Queue) Device() device.Info { return q.info }

func (q *Queue) CreateKernel(program device.Program, name string) (device.Kernel, error) {
	prog, ok := program.(*Program)
	if !ok || prog == nil {
		return nil, fmt.Errorf("%w: %T is not a webgpu program", device.ErrProgramNotFound, program)
	}
	c, ok := prog.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", device.ErrKernelNotFound, name, prog.routine)
	}
	return &kernel{compiled: c, args: make([]any, len(c.def.args))}, nil
}

func (q *Queue) Enqueue(k device.Kernel, global, local []int) (err error) {
	kn, ok := k.(*kernel)
	if !ok {
		return fmt.Errorf("%w: %T is not a webgpu kernel", device.ErrArgument, k)
	}
	if len(global) != 1 || len(local) != 1 {
		return fmt.Errorf("%w: 1-D ranges only (global=%v local=%v)", device.ErrLaunch, global, local)
	}
	g, lsz := global[0], local[0]
	switch {
	case lsz <= 0 || g <= 0:
		return fmt.Errorf("%w: empty range global=%d local=%d", device.ErrLaunch, g, lsz)
	case lsz != kn.compiled.groupSize:
		return fmt.Errorf("%w: %s compiled for work-group %d, launched with %d", device.ErrLaunch, kn.Name(), kn.compiled.groupSize, lsz)
	case g%lsz != 0:
		return fmt.Errorf("%w: global %d is not a multiple of local %d", device.ErrLaunch, g, lsz)
	}
	words, buffers, err := kn.pack()
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
			err = fmt.Errorf("%w: webgpu execution failed: %v", device.ErrLaunch, rec)
		}
		if err != nil && q.err == nil {
			q.err = err
		}
	}()
	return q.dispatch(kn, words, buffers, uint32(g/lsz))
}

func (q *Queue) dispatch(kn *kernel, words []byte, buffers []*Buffer, groups uint32) error {
	dev := q.ctx.Device
	argBuf, err := dev.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    kn.Name() + "_args",
		Contents: words,
		Usage:    wgpu.BufferUsageStorage,
	})
	if err != nil {
		return fmt.Errorf("%w: %s args: %w", device.ErrLaunch, kn.Name(), err)
	}
	q.inFlight = append(q.inFlight, argBuf)

	entries := make([]wgpu.BindGroupEntry, 0, len(buffers)+1)
	entries = append(entries, wgpu.BindGroupEntry{Binding: 0, Buffer: argBuf, Size: argBuf.GetSize()})
	for i, b := range buffers {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), Buffer: b.buf, Size: b.buf.GetSize()})
	}
	bg, err := dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   kn.Name() + "_bind",
		Layout:  kn.compiled.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: %s bind: %w", device.ErrLaunch, kn.Name(), err)
	}
	defer bg.Release()

	enc, err := dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: kn.Name()})
	if err != nil {
		return fmt.Errorf("%w: %s encoder: %w", device.ErrLaunch, kn.Name(), err)
	}
	defer enc.Release()
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(kn.compiled.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
	cmd, err := enc.Finish(nil)
	if err != nil {
		return fmt.Errorf("%w: %s finish: %w", device.ErrLaunch, kn.Name(), err)
	}
	q.ctx.Queue.Submit(cmd)
	cmd.Release()
	return nil
}

// Finish waits for submitted work and returns the first failure since the
// previous Finish.
func (q *Queue) Finish() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx.poll()
	for _, b := range q.inFlight {
		b.Release()
	}
	q.inFlight = q.inFlight[:0]
	err := q.err
	q.err = nil
	return err
}

func (q *Queue) Alloc(p blas.Precision, n int) (device.Buffer, error) {
	if p != blas.Single {
		return nil, fmt.Errorf("%w: %s", device.ErrUnsupportedPrecision, p)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: alloc of %d elements", device.ErrArgument, n)
	}
	buf, err := q.ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  uint64(n) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	return &Buffer{buf: buf, n: n}, nil
}

func (q *Queue) Release(b device.Buffer) error {
	buf, ok := b.(*Buffer)
	if !ok || buf == nil || buf.buf == nil {
		return fmt.Errorf("%w: %T is not a webgpu buffer", device.ErrArgument, b)
	}
	buf.buf.Destroy()
	buf.buf, buf.n = nil, 0
	return nil
}

// Upload writes src to the start of b.
func (q *Queue) Upload(b *Buffer, src []float32) error {
	if len(src) > b.n {
		return fmt.Errorf("%w: %d elements into buffer of %d", device.ErrArgument, len(src), b.n)
	}
	q.ctx.Queue.WriteBuffer(b.buf, 0, wgpu.ToBytes(src))
	return nil
}

// Download reads the first len(dst) elements of b through a staging buffer.
func (q *Queue) Download(b *Buffer, dst []float32) error {
	if len(dst) > b.n {
		return fmt.Errorf("%w: %d elements from buffer of %d", device.ErrArgument, len(dst), b.n)
	}
	size := uint64(len(dst)) * 4
	staging, err := q.ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ReadStaging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer staging.Destroy()

	enc, err := q.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	enc.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return err
	}
	q.ctx.Queue.Submit(cmd)
	cmd.Release()

	done := make(chan struct{})
	var mapErr error
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			mapErr = fmt.Errorf("map failed: %v", status)
		}
		close(done)
	})
	if err != nil {
		return fmt.Errorf("MapAsync failed: %w", err)
	}
	timeout := time.After(mapTimeout)
	for {
		q.ctx.Device.Poll(false, nil)
		select {
		case <-done:
			if mapErr != nil {
				return mapErr
			}
			copy(dst, wgpu.FromBytes[float32](staging.GetMappedRange(0, uint(size))))
			staging.Unmap()
			return nil
		case <-timeout:
			return fmt.Errorf("download timed out after %s", mapTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

// Close drains the queue and releases the device.
func (q *Queue) Close() error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil
	}
	err := q.Finish()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.ctx.Release()
	return err
}

type compiled struct {
	def       *kernelDef
	pipeline  *wgpu.ComputePipeline
	groupSize int
}

type kernel struct {
	compiled *compiled
	args     []any
}

func (k *kernel) Name() string { return k.compiled.def.name }

func (k *kernel) SetArgument(index int, value any) error {
	def := k.compiled.def
	if index < 0 || index >= len(def.args) {
		return fmt.Errorf("%w: %s takes %d arguments, got index %d", device.ErrArgument, def.name, len(def.args), index)
	}
	ok := false
	switch def.args[index].kind {
	case argInt:
		_, ok = value.(int32)
	case argScalar:
		_, ok = value.(float32)
	case argBuffer:
		b, isBuf := value.(*Buffer)
		ok = isBuf && b != nil && b.buf != nil
	}
	if !ok {
		return fmt.Errorf("%w: %s argument %s got %T", device.ErrArgument, def.name, def.args[index].name, value)
	}
	k.args[index] = value
	return nil
}

// pack encodes the integer and scalar arguments as little-endian words and
// collects the buffers in binding order.
func (k *kernel) pack() ([]byte, []*Buffer, error) {
	var (
		words   []byte
		buffers []*Buffer
	)
	for i, v := range k.args {
		switch v := v.(type) {
		case nil:
			return nil, nil, fmt.Errorf("%w: %s argument %d not set", device.ErrArgument, k.Name(), i)
		case int32:
			words = binary.LittleEndian.AppendUint32(words, uint32(v))
		case float32:
			words = binary.LittleEndian.AppendUint32(words, math.Float32bits(v))
		case *Buffer:
			buffers = append(buffers, v)
		}
	}
	return words, buffers, nil
}

// Program holds the compiled pipelines of one routine.
type Program struct {
	routine string
	params  tuning.Params
	kernels map[string]*compiled
}

func (p *Program) Name() string              { return p.routine }
func (p *Program) Precision() blas.Precision { return blas.Single }

// Params returns the tuning set the shaders were rendered with.
func (p *Program) Params() tuning.Params { return p.params.Clone() }

// Programs caches one Program per routine, all single precision.
type Programs struct {
	programs map[string]*Program
}

// family maps each routine to the tuning family its shaders read.
var family = map[string]string{
	device.RoutineAxpy: tuning.KernelAxpy,
	device.RoutineScal: tuning.KernelAxpy,
	device.RoutineCopy: tuning.KernelAxpy,
	device.RoutineSwap: tuning.KernelAxpy,
	device.RoutineDot:  tuning.KernelDot,
	device.RoutineGemv: tuning.KernelGemv,
}

func NewPrograms(ctx *Context, db *tuning.Database, info device.Info) (*Programs, error) {
	if db == nil {
		db = tuning.Default()
	}
	c := &Programs{programs: make(map[string]*Program)}
	for routine, defs := range sources {
		params, err := db.Lookup(family[routine], blas.Single, info)
		if err != nil {
			return nil, fmt.Errorf("webgpu: compile %s: %w", routine, err)
		}
		prog := &Program{routine: routine, params: params, kernels: make(map[string]*compiled, len(defs))}
		for _, def := range defs {
			k, err := compile(ctx, def, params)
			if err != nil {
				return nil, fmt.Errorf("webgpu: compile %s: %w", routine, err)
			}
			prog.kernels[def.name] = k
		}
		c.programs[routine] = prog
	}
	return c, nil
}

func compile(ctx *Context, def *kernelDef, params tuning.Params) (*compiled, error) {
	code, err := def.source(params)
	if err != nil {
		return nil, err
	}
	module, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          def.name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("%s shader: %w", def.name, err)
	}
	defer module.Release()
	pipeline, err := ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   def.name,
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		return nil, fmt.Errorf("%s pipeline: %w", def.name, err)
	}
	return &compiled{def: def, pipeline: pipeline, groupSize: params.Get(def.group)}, nil
}

func (c *Programs) GetProgram(routine string, p blas.Precision) (device.Program, error) {
	if p != blas.Single {
		return nil, fmt.Errorf("%w: %s/%s: %w", device.ErrProgramNotFound, routine, p, device.ErrUnsupportedPrecision)
	}
	prog, ok := c.programs[routine]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", device.ErrProgramNotFound, routine, p)
	}
	return prog, nil
}

var (
	_ device.Queue        = (*Queue)(nil)
	_ device.ProgramCache = (*Programs)(nil)
	_ device.Buffer       = (*Buffer)(nil)
)
