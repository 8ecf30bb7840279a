//go:build !cuda

package backend

import (
	"fmt"

	"github.com/samcharles93/blast/internal/logger"
)

const cudaEnabled = false

func openCUDA(logger.Logger) (*Handle, error) {
	return nil, fmt.Errorf("cuda: %w", errUnavailable)
}
