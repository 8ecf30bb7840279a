//go:build cuda

package cuda

import (
	"fmt"

	"github.com/samcharles93/blast/pkg/device"
)

// launchPanic converts a panic raised while a kernel ran on the stream into a
// launch error naming the kernel.
func launchPanic(kernel string, rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("%w: cuda kernel %s panicked: %w", device.ErrLaunch, kernel, recErr)
	}
	return fmt.Errorf("%w: cuda kernel %s panicked: %v", device.ErrLaunch, kernel, rec)
}
