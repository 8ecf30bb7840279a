package host

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

type command struct {
	kernel string
	groups int
	local  int
	global int
	run    groupFunc
}

// Queue is an in-order host queue. A single executor goroutine drains
// commands in submission order; each command fans its work-groups out over
// at most GOMAXPROCS goroutines.
type Queue struct {
	info    device.Info
	log     logger.Logger
	workers int

	mu     sync.Mutex
	closed bool
	cmds   chan command
	done   chan struct{}

	// state guards pending and err; idle is signalled when pending drops to 0.
	state   sync.Mutex
	idle    *sync.Cond
	pending int
	err     error
}

type QueueOption func(*Queue)

func WithLogger(log logger.Logger) QueueOption {
	return func(q *Queue) { q.log = log }
}

// WithWorkers caps the goroutines one command may use. Values below one mean
// GOMAXPROCS.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithDevice overrides the probed device description.
func WithDevice(info device.Info) QueueOption {
	return func(q *Queue) { q.info = info }
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		info:    Probe(),
		log:     logger.Discard(),
		workers: runtime.GOMAXPROCS(0),
		cmds:    make(chan command, 64),
		done:    make(chan struct{}),
	}
	q.idle = sync.NewCond(&q.state)
	for _, opt := range opts {
		opt(q)
	}
	go q.loop()
	return q
}

func (q *Queue) Device() device.Info {
	return q.info
}

func (q *Queue) CreateKernel(program device.Program, name string) (device.Kernel, error) {
	prog, ok := program.(*Program)
	if !ok || prog == nil {
		return nil, fmt.Errorf("%w: %T is not a host program", device.ErrProgramNotFound, program)
	}
	factory, ok := prog.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s/%s", device.ErrKernelNotFound, name, prog.routine, prog.precision)
	}
	return factory(), nil
}

func (q *Queue) Enqueue(k device.Kernel, global, local []int) error {
	l, ok := k.(launcher)
	if !ok {
		return fmt.Errorf("%w: %T is not a host kernel", device.ErrArgument, k)
	}
	if len(global) != 1 || len(local) != 1 {
		return fmt.Errorf("%w: host queue runs 1-D ranges only (global=%v local=%v)", device.ErrLaunch, global, local)
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
	run, err := l.launch()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return device.ErrQueueClosed
	}
	q.state.Lock()
	q.pending++
	q.state.Unlock()
	q.cmds <- command{kernel: k.Name(), groups: g / lsz, local: lsz, global: g, run: run}
	return nil
}

// Finish waits for every enqueued command and returns the first failure since
// the previous Finish.
func (q *Queue) Finish() error {
	q.state.Lock()
	defer q.state.Unlock()
	for q.pending > 0 {
		q.idle.Wait()
	}
	err := q.err
	q.err = nil
	return err
}

func (q *Queue) Alloc(p blas.Precision, n int) (device.Buffer, error) {
	return allocBuffer(p, n)
}

func (q *Queue) Release(b device.Buffer) error {
	return releaseBuffer(b)
}

// Close drains outstanding work and stops the executor. Enqueue fails with
// ErrQueueClosed afterwards.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.cmds)
	q.mu.Unlock()
	<-q.done
	return q.Finish()
}

func (q *Queue) loop() {
	defer close(q.done)
	for cmd := range q.cmds {
		q.state.Lock()
		failed := q.err != nil
		q.state.Unlock()

		// Work queued behind a failure is dropped until the next Finish.
		var err error
		if !failed {
			err = q.execute(cmd)
			if err != nil {
				q.log.Debug("host kernel failed", "kernel", cmd.kernel, "groups", cmd.groups, "error", err)
			}
		}

		q.state.Lock()
		if err != nil && q.err == nil {
			q.err = err
		}
		q.pending--
		if q.pending == 0 {
			q.idle.Broadcast()
		}
		q.state.Unlock()
	}
}

func (q *Queue) execute(cmd command) error {
	var eg errgroup.Group
	eg.SetLimit(q.workers)
	for id := range cmd.groups {
		eg.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = kernelPanic(cmd.kernel, rec)
				}
			}()
			cmd.run(group{id: id, local: cmd.local, global: cmd.global})
			return nil
		})
	}
	return eg.Wait()
}

func kernelPanic(kernel string, rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("%w: %s: %w", device.ErrLaunch, kernel, recErr)
	}
	return fmt.Errorf("%w: %s: %v", device.ErrLaunch, kernel, rec)
}

var (
	_ device.Queue        = (*Queue)(nil)
	_ device.ProgramCache = (*Programs)(nil)
)
