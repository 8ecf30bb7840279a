//go:build !webgpu

package backend

import (
	"fmt"

	"github.com/samcharles93/blast/internal/logger"
	"github.com/samcharles93/blast/internal/tuning"
)

const webgpuEnabled = false

func openWebGPU(*tuning.Database, logger.Logger) (*Handle, error) {
	return nil, fmt.Errorf("webgpu: %w", errUnavailable)
}
