package routine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Queue    device.Queue
	Programs device.ProgramCache
	// Tuning defaults to tuning.Default().
	Tuning   *tuning.Database
	Logger   logger.Logger
	Routines []*Descriptor
	// Observer, when set, is called after every successful enqueue. It must
	// be safe for concurrent use and must not start routines on the same
	// queue.
	Observer func(Event)
}

// Event describes one kernel launch.
type Event struct {
	CallID    string
	Routine   string
	Precision blas.Precision
	Kernel    string
	Variant   Variant
	Geometry  Geometry
}

type paramKey struct {
	family    string
	precision blas.Precision
}

// Dispatcher holds everything a routine needs that outlives a single call.
// All of it is read-only after NewDispatcher returns, so one Dispatcher may
// serve concurrent calls.
type Dispatcher struct {
	queue    device.Queue
	programs device.ProgramCache
	info     device.Info
	log      logger.Logger
	observer func(Event)
	params   map[paramKey]tuning.Params
}

// tunedProgram is implemented by programs compiled with their tuning
// parameters baked in.
type tunedProgram interface {
	device.Program
	Params() tuning.Params
}

// NewDispatcher resolves the tuning parameters of every routine family for
// every precision against the queue's device. Where a program reports the
// parameters it was compiled with, those replace the database's, so launch
// geometry always matches the kernels.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Queue == nil {
		return nil, errors.New("dispatcher: queue is required")
	}
	if cfg.Programs == nil {
		return nil, errors.New("dispatcher: program cache is required")
	}
	db := cfg.Tuning
	if db == nil {
		db = tuning.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	d := &Dispatcher{
		queue:    cfg.Queue,
		programs: cfg.Programs,
		info:     cfg.Queue.Device(),
		log:      log,
		observer: cfg.Observer,
		params:   make(map[paramKey]tuning.Params),
	}
	for _, desc := range cfg.Routines {
		for _, family := range desc.Tuning {
			for _, p := range blas.Precisions() {
				key := paramKey{family: family, precision: p}
				if _, ok := d.params[key]; ok {
					continue
				}
				params, err := db.Lookup(family, p, d.info)
				if err != nil {
					return nil, fmt.Errorf("dispatcher: routine %s: %w", desc.Name, err)
				}
				d.params[key] = params
			}
		}
	}
	if err := d.adoptProgramParams(cfg.Routines); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) adoptProgramParams(routines []*Descriptor) error {
	owner := make(map[paramKey]string)
	for _, desc := range routines {
		if len(desc.Tuning) != 1 {
			continue
		}
		for _, p := range blas.Precisions() {
			prog, err := d.programs.GetProgram(desc.Name, p)
			if err != nil {
				continue
			}
			tp, ok := prog.(tunedProgram)
			if !ok {
				continue
			}
			key := paramKey{family: desc.Tuning[0], precision: p}
			baked := tp.Params()
			if prev, ok := owner[key]; ok {
				if !maps.Equal(d.params[key], baked) {
					return fmt.Errorf("dispatcher: %s and %s programs were compiled with different %s/%s parameters",
						prev, desc.Name, key.family, p)
				}
				continue
			}
			if !maps.Equal(d.params[key], baked) {
				d.log.Debug("using program tuning",
					"routine", desc.Name,
					"precision", p.String(),
					"family", key.family,
					"params", baked.String(),
				)
			}
			owner[key] = desc.Name
			d.params[key] = baked
		}
	}
	return nil
}

// queueLocks holds one mutex per queue. Finish drains every command on a
// queue, so a call owns its queue from first allocation to last release and
// any failure Finish reports belongs to that call.
var queueLocks sync.Map

// LockQueue blocks until the caller owns q and returns the matching unlock.
// Queues are compared by identity; wrappers that implement
// Unwrap() device.Queue share the lock of the queue they wrap.
func LockQueue(q device.Queue) (unlock func()) {
	for {
		w, ok := q.(interface{ Unwrap() device.Queue })
		if !ok {
			break
		}
		q = w.Unwrap()
	}
	v, _ := queueLocks.LoadOrStore(q, new(sync.Mutex))
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (d *Dispatcher) Device() device.Info {
	return d.info
}

// Params returns the resolved set for a family, or false if no registered
// routine reads it.
func (d *Dispatcher) Params(family string, p blas.Precision) (tuning.Params, bool) {
	params, ok := d.params[paramKey{family: family, precision: p}]
	return params, ok
}

// Begin starts one invocation of desc.
func (d *Dispatcher) Begin(desc *Descriptor, p blas.Precision) *Call {
	return &Call{
		id:        uuid.NewString(),
		d:         d,
		desc:      desc,
		precision: p,
		state:     Start,
	}
}

// ScratchRef stands in for the i-th scratch buffer of a Plan inside
// Launch.Args.
type ScratchRef int

// Launch is one kernel invocation with its positional arguments.
type Launch struct {
	Kernel   string
	Args     []any
	Geometry Geometry
}

// Plan is everything Run sends to the backend.
type Plan struct {
	// Scratch lists element counts of temporary buffers, allocated in the
	// call's precision and released after the queue drains.
	Scratch  []int
	Launches []Launch
}

// Call is a single invocation. It is not safe for concurrent use and must not
// be reused.
type Call struct {
	id        string
	d         *Dispatcher
	desc      *Descriptor
	precision blas.Precision
	state     State
	variant   Variant
}

func (c *Call) ID() string                { return c.id }
func (c *Call) State() State              { return c.state }
func (c *Call) Variant() Variant          { return c.variant }
func (c *Call) Precision() blas.Precision { return c.precision }

func (c *Call) advance(to State) error {
	if !canTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, c.state, to)
	}
	c.state = to
	return nil
}

// Fail records a precondition failure and returns st unchanged.
func (c *Call) Fail(st blas.Status) blas.Status {
	from := c.state
	c.state = Errored
	if c.d.log.Enabled(slog.LevelDebug) {
		c.d.log.Debug("routine rejected arguments",
			"routine", c.desc.Name,
			"precision", c.precision.String(),
			"status", st.String(),
			"state", from.String(),
			"call_id", c.id,
		)
	}
	return st
}

// fault records an execution failure. The cause is logged; callers only ever
// see InvalidKernel.
func (c *Call) fault(err error) blas.Status {
	from := c.state
	c.state = Errored
	c.d.log.Warn("routine failed",
		"routine", c.desc.Name,
		"precision", c.precision.String(),
		"state", from.String(),
		"call_id", c.id,
		"error", err,
	)
	return blas.InvalidKernel
}

// Recover converts a panic in the calling routine into InvalidKernel. Use as
// `defer call.Recover(&status)` with a named result.
func (c *Call) Recover(status *blas.Status) {
	if rec := recover(); rec != nil {
		*status = c.fault(executionError(rec))
	}
}

// Validate checks operands in order and stops at the first failure.
func (c *Call) Validate(ops ...Operand) blas.Status {
	if c.state != Start {
		return c.fault(fmt.Errorf("%w: validate from %s", ErrIllegalTransition, c.state))
	}
	for _, op := range ops {
		if st := op.Check(); blas.ErrorIn(st) {
			return c.Fail(st)
		}
	}
	if err := c.advance(Validated); err != nil {
		return c.fault(err)
	}
	return blas.Success
}

// Params returns the tuning set of family for this call's precision.
func (c *Call) Params(family string) (tuning.Params, blas.Status) {
	params, ok := c.d.Params(family, c.precision)
	if !ok {
		return nil, c.fault(fmt.Errorf("%w: %s/%s", ErrMissingTuning, family, c.precision))
	}
	return params, blas.Success
}

func (c *Call) Select(v Variant) blas.Status {
	if err := c.advance(KernelSelected); err != nil {
		return c.fault(err)
	}
	c.variant = v
	return blas.Success
}

// Run fetches the routine's program, binds and enqueues every launch in
// order, then blocks until the queue drains. Calls sharing a queue run one at
// a time. Any backend error or panic becomes InvalidKernel.
func (c *Call) Run(plan Plan) (status blas.Status) {
	defer c.Recover(&status)

	if c.state != KernelSelected {
		return c.fault(fmt.Errorf("%w: run from %s", ErrIllegalTransition, c.state))
	}
	queue := c.d.queue
	defer LockQueue(queue)()

	program, err := c.d.programs.GetProgram(c.desc.Name, c.precision)
	if err != nil {
		return c.fault(fmt.Errorf("get program %s/%s: %w", c.desc.Name, c.precision, err))
	}

	var (
		scratch = make([]device.Buffer, 0, len(plan.Scratch))
		drained bool
	)
	defer func() {
		if len(scratch) == 0 {
			return
		}
		if !drained {
			_ = queue.Finish()
		}
		for _, b := range scratch {
			if err := queue.Release(b); err != nil {
				c.d.log.Warn("release scratch buffer", "routine", c.desc.Name, "call_id", c.id, "error", err)
			}
		}
	}()
	for _, n := range plan.Scratch {
		b, err := queue.Alloc(c.precision, n)
		if err != nil {
			return c.fault(fmt.Errorf("allocate scratch of %d elements: %w", n, err))
		}
		scratch = append(scratch, b)
	}

	for _, l := range plan.Launches {
		if !c.desc.HasKernel(l.Kernel) {
			return c.fault(fmt.Errorf("%w: %s is not a kernel of %s", device.ErrKernelNotFound, l.Kernel, c.desc.Name))
		}
		k, err := queue.CreateKernel(program, l.Kernel)
		if err != nil {
			return c.fault(fmt.Errorf("create kernel %s: %w", l.Kernel, err))
		}
		for i, arg := range l.Args {
			if ref, ok := arg.(ScratchRef); ok {
				if int(ref) < 0 || int(ref) >= len(scratch) {
					return c.fault(fmt.Errorf("%w: scratch reference %d out of range", device.ErrArgument, ref))
				}
				arg = scratch[ref]
			}
			if err := k.SetArgument(i, arg); err != nil {
				return c.fault(fmt.Errorf("set argument %d of %s: %w", i, l.Kernel, err))
			}
		}
		if err := c.advance(ArgumentsBound); err != nil {
			return c.fault(err)
		}

		if c.d.log.Enabled(slog.LevelDebug) {
			c.d.log.Debug("launching kernel",
				"routine", c.desc.Name,
				"precision", c.precision.String(),
				"kernel", l.Kernel,
				"variant", c.variant.String(),
				"global", l.Geometry.Global,
				"local", l.Geometry.Local,
				"call_id", c.id,
			)
		}
		if err := queue.Enqueue(k, l.Geometry.Global, l.Geometry.Local); err != nil {
			return c.fault(fmt.Errorf("enqueue %s: %w", l.Kernel, err))
		}
		if err := c.advance(Launched); err != nil {
			return c.fault(err)
		}
		if c.d.observer != nil {
			c.d.observer(Event{
				CallID:    c.id,
				Routine:   c.desc.Name,
				Precision: c.precision,
				Kernel:    l.Kernel,
				Variant:   c.variant,
				Geometry:  l.Geometry,
			})
		}
	}

	if err := queue.Finish(); err != nil {
		drained = true
		return c.fault(fmt.Errorf("finish: %w", err))
	}
	drained = true
	if err := c.advance(Finished); err != nil {
		return c.fault(err)
	}
	return blas.Success
}
