package blas

import (
	"fmt"
	"strings"
)

type Layout int

const (
	ColMajor Layout = iota
	RowMajor
)

func (l Layout) String() string {
	if l == RowMajor {
		return "row-major"
	}
	return "col-major"
}

func (l Layout) Valid() bool {
	return l == ColMajor || l == RowMajor
}

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "col", "col-major", "column-major", "102":
		return ColMajor, nil
	case "row", "row-major", "101":
		return RowMajor, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

type Transpose int

const (
	NoTrans Transpose = iota
	Trans
	ConjTrans
)

func (t Transpose) String() string {
	switch t {
	case Trans:
		return "transpose"
	case ConjTrans:
		return "conjugate"
	default:
		return "no-transpose"
	}
}

func (t Transpose) Valid() bool {
	return t >= NoTrans && t <= ConjTrans
}

func ParseTranspose(s string) (Transpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "no", "no-transpose", "111":
		return NoTrans, nil
	case "t", "yes", "transpose", "112":
		return Trans, nil
	case "c", "conj", "conjugate", "113":
		return ConjTrans, nil
	default:
		return 0, fmt.Errorf("unknown transpose %q", s)
	}
}
