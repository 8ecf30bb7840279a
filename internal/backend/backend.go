// Package backend selects and opens an execution backend by name.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/x448/float16"

	"github.com/samcharles93/blast/internal/backend/host"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/routine"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

const (
	Host   = "host"
	CUDA   = "cuda"
	WebGPU = "webgpu"
	Auto   = "auto"
)

var errUnavailable = errors.New("backend not available in this build")

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case "cpu":
		return Host, nil
	case Host, CUDA, WebGPU, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, host, cuda, or webgpu)", backend)
	}
}

// Handle is an open backend: its queue, its program cache and the transfer
// hooks for moving host slices in and out of its buffers.
type Handle struct {
	Name     string
	Queue    device.Queue
	Programs device.ProgramCache

	write func(b device.Buffer, src any) error
	read  func(b device.Buffer, dst any) error
	close func() error
}

func (h *Handle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// Open opens the named backend. Auto prefers cuda, then webgpu, then host.
// db must be the database the engine uses, since backends bake parameters
// into their programs.
func Open(name string, db *tuning.Database, log logger.Logger) (*Handle, error) {
	name, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	if db == nil {
		db = tuning.Default()
	}
	switch name {
	case Host:
		return openHost(db, log)
	case CUDA:
		return openCUDA(log)
	case WebGPU:
		return openWebGPU(db, log)
	}

	for _, candidate := range []string{CUDA, WebGPU} {
		if !Has(candidate) {
			continue
		}
		var h *Handle
		if candidate == CUDA {
			h, err = openCUDA(log)
		} else {
			h, err = openWebGPU(db, log)
		}
		if err == nil {
			return h, nil
		}
		log.Info("backend unavailable, trying next", "backend", candidate, "error", err)
	}
	return openHost(db, log)
}

func openHost(db *tuning.Database, log logger.Logger) (*Handle, error) {
	q := host.NewQueue(host.WithLogger(log))
	progs, err := host.NewPrograms(db, q.Device())
	if err != nil {
		_ = q.Close()
		return nil, err
	}
	return &Handle{
		Name:     Host,
		Queue:    q,
		Programs: progs,
		write:    hostWrite,
		read:     hostRead,
		close:    q.Close,
	}, nil
}

func hostWrite(b device.Buffer, src any) error {
	switch s := src.(type) {
	case []float16.Float16:
		return hostCopy(b, s, true)
	case []float32:
		return hostCopy(b, s, true)
	case []float64:
		return hostCopy(b, s, true)
	case []complex64:
		return hostCopy(b, s, true)
	case []complex128:
		return hostCopy(b, s, true)
	}
	return fmt.Errorf("%w: cannot write %T", device.ErrArgument, src)
}

func hostRead(b device.Buffer, dst any) error {
	switch d := dst.(type) {
	case []float16.Float16:
		return hostCopy(b, d, false)
	case []float32:
		return hostCopy(b, d, false)
	case []float64:
		return hostCopy(b, d, false)
	case []complex64:
		return hostCopy(b, d, false)
	case []complex128:
		return hostCopy(b, d, false)
	}
	return fmt.Errorf("%w: cannot read into %T", device.ErrArgument, dst)
}

func hostCopy[T blas.Element](b device.Buffer, s []T, toDevice bool) error {
	hb, ok := b.(*host.Buffer[T])
	if !ok || hb == nil {
		return fmt.Errorf("%w: %T does not hold %s", device.ErrArgument, b, blas.PrecisionOf[T]())
	}
	if len(s) > hb.Len() {
		return fmt.Errorf("%w: %d elements against buffer of %d", device.ErrArgument, len(s), hb.Len())
	}
	if toDevice {
		copy(hb.Slice(), s)
	} else {
		copy(s, hb.Slice())
	}
	return nil
}

// Upload allocates a buffer on h and fills it with src.
func Upload[T blas.Element](h *Handle, src []T) (device.Buffer, error) {
	b, err := h.Queue.Alloc(blas.PrecisionOf[T](), len(src))
	if err != nil {
		return nil, err
	}
	if err := h.write(b, src); err != nil {
		_ = h.Queue.Release(b)
		return nil, err
	}
	return b, nil
}

// Download waits for queued work and copies the start of b into dst.
func Download[T blas.Element](h *Handle, b device.Buffer, dst []T) error {
	defer routine.LockQueue(h.Queue)()
	if err := h.Queue.Finish(); err != nil {
		return err
	}
	return h.read(b, dst)
}
