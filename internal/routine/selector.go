package routine

import (
	"fmt"

	"github.com/samcharles93/blast/internal/tuning"
)

// Variant is the kernel flavour chosen for one invocation.
type Variant int

const (
	Generic Variant = iota
	Fast
	// FastRotated is the fast kernel for a transposed (rotated) matrix.
	FastRotated
)

func (v Variant) String() string {
	switch v {
	case Generic:
		return "generic"
	case Fast:
		return "fast"
	case FastRotated:
		return "fast-rotated"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// SelectVector picks Fast when every operand is contiguous from element zero
// and n is a whole number of tiles; anything else needs the Generic kernel,
// which handles offsets, strides and tails.
func SelectVector(n, tile int, operands ...VectorOperand) Variant {
	for _, op := range operands {
		if !op.Canonical() {
			return Generic
		}
	}
	if !IsMultiple(n, tile) {
		return Generic
	}
	return Fast
}

// SelectMatVec picks the GEMV kernel and its NDRange. m is the output length
// and n the reduction length after transposition is resolved. XgemvFast needs
// a non-rotated A, XgemvFastRot a rotated one; both need a zero offset, no
// conjugation and tile-aligned m, n and ld.
func SelectMatVec(params tuning.Params, m, n, offset, ld int, rotated, conj bool) (Variant, Geometry) {
	if offset == 0 && !conj {
		if !rotated &&
			IsMultiple(m, params.Tile("WGS2", "WPT2")) &&
			IsMultiple(n, params.Get("WGS2")) &&
			IsMultiple(ld, params.Get("VW2")) {
			return Fast, Geometry1D(m/params.Get("WPT2"), params.Get("WGS2"))
		}
		if rotated &&
			IsMultiple(m, params.Tile("WGS3", "WPT3")) &&
			IsMultiple(n, params.Get("WGS3")) &&
			IsMultiple(ld, params.Get("VW3")) {
			return FastRotated, Geometry1D(m/params.Get("WPT3"), params.Get("WGS3"))
		}
	}
	wgs, wpt := params.Get("WGS1"), params.Get("WPT1")
	return Generic, GenericGeometry(m, wgs, wpt)
}
