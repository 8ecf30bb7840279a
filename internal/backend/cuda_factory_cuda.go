//go:build cuda

package backend

import (
	"fmt"

	"github.com/samcharles93/blast/internal/backend/cuda"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/pkg/device"
)

const cudaEnabled = true

func openCUDA(log logger.Logger) (*Handle, error) {
	q, progs, err := cuda.Open(0, log)
	if err != nil {
		return nil, err
	}
	return &Handle{
		Name:     CUDA,
		Queue:    q,
		Programs: progs,
		write:    cudaWrite,
		read:     cudaRead,
		close:    q.Close,
	}, nil
}

func cudaWrite(b device.Buffer, src any) error {
	cb, ok := b.(*cuda.Buffer)
	if !ok {
		return fmt.Errorf("%w: %T is not a cuda buffer", device.ErrArgument, b)
	}
	switch s := src.(type) {
	case []float32:
		return cuda.Upload(cb, s)
	case []float64:
		return cuda.Upload(cb, s)
	}
	return fmt.Errorf("%w: cuda cannot write %T", device.ErrUnsupportedPrecision, src)
}

func cudaRead(b device.Buffer, dst any) error {
	cb, ok := b.(*cuda.Buffer)
	if !ok {
		return fmt.Errorf("%w: %T is not a cuda buffer", device.ErrArgument, b)
	}
	switch d := dst.(type) {
	case []float32:
		return cuda.Download(cb, d)
	case []float64:
		return cuda.Download(cb, d)
	}
	return fmt.Errorf("%w: cuda cannot read into %T", device.ErrUnsupportedPrecision, dst)
}
