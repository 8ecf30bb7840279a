package device

// Routine names are the keys programs are cached under. Every backend that
// ships a routine compiles it under the same name.
const (
	RoutineAxpy = "AXPY"
	RoutineScal = "SCAL"
	RoutineCopy = "COPY"
	RoutineSwap = "SWAP"
	RoutineDot  = "DOT"
	RoutineGemv = "GEMV"
)

// Routines lists every routine name in a stable order.
func Routines() []string {
	return []string{RoutineAxpy, RoutineScal, RoutineCopy, RoutineSwap, RoutineDot, RoutineGemv}
}

// Kernel entry points. Fast variants skip offset, stride and tail handling.
const (
	KernelXaxpy        = "Xaxpy"
	KernelXaxpyFast    = "XaxpyFast"
	KernelXscal        = "Xscal"
	KernelXscalFast    = "XscalFast"
	KernelXcopy        = "Xcopy"
	KernelXcopyFast    = "XcopyFast"
	KernelXswap        = "Xswap"
	KernelXswapFast    = "XswapFast"
	KernelXdot         = "Xdot"
	KernelXdotEpilogue = "XdotEpilogue"
	KernelXgemv        = "Xgemv"
	KernelXgemvFast    = "XgemvFast"
	KernelXgemvFastRot = "XgemvFastRot"
)
