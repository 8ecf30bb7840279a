package tuning

import "sync"

// Kernel families read by the routines.
const (
	KernelAxpy = "Xaxpy"
	KernelDot  = "Xdot"
	KernelGemv = "Xgemv"
)

// Generic defaults apply to any device; vendor and device rows refine them.
var defaultEntries = []Entry{
	{Kernel: KernelAxpy, Params: Params{"WGS": 64, "WPT": 1, "VW": 1}},
	{Kernel: KernelDot, Params: Params{"WGS1": 64, "WGS2": 64}},
	{Kernel: KernelGemv, Params: Params{
		"WGS1": 64, "WPT1": 1,
		"WGS2": 64, "WPT2": 1, "VW2": 1,
		"WGS3": 64, "WPT3": 1, "VW3": 1,
	}},

	// Host work-groups are emulated on goroutines: fewer, fatter groups win.
	{Kernel: KernelAxpy, Vendor: "host", Params: Params{"WGS": 64, "WPT": 4, "VW": 1}},
	{Kernel: KernelAxpy, Device: "host-avx2", Precision: "single", Params: Params{"VW": 8}},
	{Kernel: KernelAxpy, Device: "host-avx2", Precision: "double", Params: Params{"VW": 4}},
	{Kernel: KernelAxpy, Device: "host-avx512", Precision: "single", Params: Params{"VW": 16}},
	{Kernel: KernelAxpy, Device: "host-avx512", Precision: "double", Params: Params{"VW": 8}},
	{Kernel: KernelAxpy, Device: "host-neon", Precision: "single", Params: Params{"VW": 4}},
	{Kernel: KernelAxpy, Device: "host-neon", Precision: "double", Params: Params{"VW": 2}},
	{Kernel: KernelDot, Vendor: "host", Params: Params{"WGS1": 128, "WGS2": 32}},
	{Kernel: KernelGemv, Vendor: "host", Params: Params{"WPT1": 4, "WPT2": 4, "WPT3": 4}},

	{Kernel: KernelAxpy, Vendor: "NVIDIA", Params: Params{"WGS": 128, "WPT": 1, "VW": 2}},
	{Kernel: KernelAxpy, Vendor: "NVIDIA", Precision: "double", Params: Params{"VW": 1}},
	{Kernel: KernelDot, Vendor: "NVIDIA", Params: Params{"WGS1": 128, "WGS2": 32}},
	{Kernel: KernelGemv, Vendor: "NVIDIA", Params: Params{"WGS1": 128, "WGS2": 128, "WPT2": 2, "VW2": 2}},

	{Kernel: KernelAxpy, Vendor: "AMD", Params: Params{"WGS": 256, "WPT": 1, "VW": 2}},
	{Kernel: KernelAxpy, Vendor: "Intel", Params: Params{"WGS": 256, "WPT": 1, "VW": 1}},
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
)

// Default returns the built-in database. Every family the routines read has a
// wildcard row, so lookups for known kernels never fail.
func Default() *Database {
	defaultOnce.Do(func() {
		db, err := New(defaultEntries...)
		if err != nil {
			panic("tuning: invalid built-in database: " + err.Error())
		}
		defaultDB = db
	})
	return defaultDB
}
