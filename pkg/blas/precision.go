package blas

import (
	"fmt"
	"strings"

	"github.com/x448/float16"
)

// Precision tags the numeric type a routine or program operates on.
type Precision int

const (
	Half Precision = iota
	Single
	Double
	ComplexSingle
	ComplexDouble
)

// Element is the set of element types routines are instantiated for.
type Element interface {
	float16.Float16 | float32 | float64 | complex64 | complex128
}

type precisionInfo struct {
	name     string
	short    string
	elemSize int
	complex  bool
}

// Immutable after package initialisation.
var precisionTable = [...]precisionInfo{
	Half:          {name: "half", short: "H", elemSize: 2},
	Single:        {name: "single", short: "S", elemSize: 4},
	Double:        {name: "double", short: "D", elemSize: 8},
	ComplexSingle: {name: "complex-single", short: "C", elemSize: 8, complex: true},
	ComplexDouble: {name: "complex-double", short: "Z", elemSize: 16, complex: true},
}

// Precisions lists every supported precision in table order.
func Precisions() []Precision {
	return []Precision{Half, Single, Double, ComplexSingle, ComplexDouble}
}

func (p Precision) valid() bool {
	return p >= Half && int(p) < len(precisionTable)
}

func (p Precision) String() string {
	if !p.valid() {
		return fmt.Sprintf("precision(%d)", int(p))
	}
	return precisionTable[p].name
}

// Short returns the one-letter BLAS prefix (S, D, C, Z, H).
func (p Precision) Short() string {
	if !p.valid() {
		return "?"
	}
	return precisionTable[p].short
}

// ElemSize is the size in bytes of one element.
func (p Precision) ElemSize() int {
	if !p.valid() {
		return 0
	}
	return precisionTable[p].elemSize
}

func (p Precision) IsComplex() bool {
	return p.valid() && precisionTable[p].complex
}

func (p Precision) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("unknown precision %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Precision) UnmarshalText(text []byte) error {
	parsed, err := ParsePrecision(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePrecision accepts the long names ("single"), the BLAS prefixes ("S")
// and the bit widths used by the original benchmarking clients ("32", "3232").
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "half", "h", "16", "f16":
		return Half, nil
	case "single", "s", "32", "f32", "float32":
		return Single, nil
	case "double", "d", "64", "f64", "float64":
		return Double, nil
	case "complex-single", "c", "3232", "c64", "complex64":
		return ComplexSingle, nil
	case "complex-double", "z", "6464", "c128", "complex128":
		return ComplexDouble, nil
	default:
		return 0, fmt.Errorf("unknown precision %q (expected half, single, double, complex-single, or complex-double)", s)
	}
}

// PrecisionOf maps an element type to its precision tag.
func PrecisionOf[T Element]() Precision {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return Half
	case float32:
		return Single
	case float64:
		return Double
	case complex64:
		return ComplexSingle
	default:
		return ComplexDouble
	}
}
