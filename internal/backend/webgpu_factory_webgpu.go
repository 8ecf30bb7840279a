//go:build webgpu

package backend

import (
	"fmt"

	"github.com/samcharles93/blast/internal/backend/webgpu"
	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/device"
)

const webgpuEnabled = true

func openWebGPU(db *tuning.Database, log logger.Logger) (*Handle, error) {
	q, progs, err := webgpu.Open(db, log)
	if err != nil {
		return nil, err
	}
	return &Handle{
		Name:     WebGPU,
		Queue:    q,
		Programs: progs,
		write: func(b device.Buffer, src any) error {
			wb, s, err := webgpuArgs(b, src)
			if err != nil {
				return err
			}
			return q.Upload(wb, s)
		},
		read: func(b device.Buffer, dst any) error {
			wb, d, err := webgpuArgs(b, dst)
			if err != nil {
				return err
			}
			return q.Download(wb, d)
		},
		close: q.Close,
	}, nil
}

func webgpuArgs(b device.Buffer, s any) (*webgpu.Buffer, []float32, error) {
	wb, ok := b.(*webgpu.Buffer)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %T is not a webgpu buffer", device.ErrArgument, b)
	}
	f, ok := s.([]float32)
	if !ok {
		return nil, nil, fmt.Errorf("%w: webgpu cannot transfer %T", device.ErrUnsupportedPrecision, s)
	}
	return wb, f, nil
}
