package routine

import "slices"

// Descriptor identifies a routine: its name (the program-cache key), the
// kernels it may launch and the tuning families it reads. Descriptors are
// package-level values and must not be modified after init.
type Descriptor struct {
	Name    string
	Kernels []string
	Tuning  []string
}

func (d *Descriptor) HasKernel(name string) bool {
	return slices.Contains(d.Kernels, name)
}

// State is the progress of one invocation.
type State int

const (
	Start State = iota
	Validated
	KernelSelected
	ArgumentsBound
	Launched
	Finished
	Errored
)

var stateNames = [...]string{
	Start:          "start",
	Validated:      "validated",
	KernelSelected: "kernel-selected",
	ArgumentsBound: "arguments-bound",
	Launched:       "launched",
	Finished:       "finished",
	Errored:        "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Launched -> ArgumentsBound covers routines that launch more than one kernel.
var transitions = map[State][]State{
	Start:          {Validated},
	Validated:      {KernelSelected},
	KernelSelected: {ArgumentsBound},
	ArgumentsBound: {Launched},
	Launched:       {ArgumentsBound, Finished},
}

func canTransition(from, to State) bool {
	if to == Errored {
		return from != Finished && from != Errored
	}
	return slices.Contains(transitions[from], to)
}
