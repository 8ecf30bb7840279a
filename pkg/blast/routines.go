package blast

import (
	"github.com/samcharles93/blast/internal/routine"
	"github.com/samcharles93/blast/internal/tuning"
	"github.com/samcharles93/blast/pkg/device"
)

// The level-1 vector routines share the Xaxpy tuning family.
var (
	axpyRoutine = &routine.Descriptor{
		Name:    device.RoutineAxpy,
		Kernels: []string{device.KernelXaxpy, device.KernelXaxpyFast},
		Tuning:  []string{tuning.KernelAxpy},
	}
	scalRoutine = &routine.Descriptor{
		Name:    device.RoutineScal,
		Kernels: []string{device.KernelXscal, device.KernelXscalFast},
		Tuning:  []string{tuning.KernelAxpy},
	}
	copyRoutine = &routine.Descriptor{
		Name:    device.RoutineCopy,
		Kernels: []string{device.KernelXcopy, device.KernelXcopyFast},
		Tuning:  []string{tuning.KernelAxpy},
	}
	swapRoutine = &routine.Descriptor{
		Name:    device.RoutineSwap,
		Kernels: []string{device.KernelXswap, device.KernelXswapFast},
		Tuning:  []string{tuning.KernelAxpy},
	}
	dotRoutine = &routine.Descriptor{
		Name:    device.RoutineDot,
		Kernels: []string{device.KernelXdot, device.KernelXdotEpilogue},
		Tuning:  []string{tuning.KernelDot},
	}
	gemvRoutine = &routine.Descriptor{
		Name:    device.RoutineGemv,
		Kernels: []string{device.KernelXgemv, device.KernelXgemvFast, device.KernelXgemvFastRot},
		Tuning:  []string{tuning.KernelGemv},
	}
)

// Routines lists the descriptors an Engine registers.
func Routines() []*routine.Descriptor {
	return []*routine.Descriptor{axpyRoutine, scalRoutine, copyRoutine, swapRoutine, dotRoutine, gemvRoutine}
}
