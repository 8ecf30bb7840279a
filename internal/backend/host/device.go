package host

import (
	"golang.org/x/sys/cpu"

	"github.com/samcharles93/blast/pkg/device"
)

const (
	Vendor = "host"

	maxWorkGroupSize = 1024
)

// Probe describes the CPU as a device. The name reflects the widest vector
// unit found, which is what the tuning database keys host rows on.
func Probe() device.Info {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.ARM64.HasASIMD, "asimd")
	add(cpu.ARM64.HasFPHP, "fphp")

	name := "host-generic"
	switch {
	case cpu.X86.HasAVX512F:
		name = "host-avx512"
	case cpu.X86.HasAVX2:
		name = "host-avx2"
	case cpu.ARM64.HasASIMD:
		name = "host-neon"
	}
	return device.Info{
		Backend:          "host",
		Name:             name,
		Vendor:           Vendor,
		MaxWorkGroupSize: maxWorkGroupSize,
		Features:         features,
	}
}
