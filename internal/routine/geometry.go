package routine

import "fmt"

// CeilDiv is integer division rounding up. b must be positive.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Ceil rounds a up to the next multiple of b.
func Ceil(a, b int) int {
	return CeilDiv(a, b) * b
}

// IsMultiple reports whether a is an exact multiple of b. A non-positive b is
// never a valid tile, so the answer is false.
func IsMultiple(a, b int) bool {
	if b <= 0 {
		return false
	}
	return a%b == 0
}

// Geometry is an NDRange: global work-items per dimension and the work-group
// size per dimension.
type Geometry struct {
	Global []int
	Local  []int
}

func Geometry1D(global, local int) Geometry {
	return Geometry{Global: []int{global}, Local: []int{local}}
}

// FastGeometry launches ceil(n/(wpt*vw)) work-items in groups of wgs.
func FastGeometry(n, wgs, wpt, vw int) Geometry {
	return Geometry1D(CeilDiv(n, wpt*vw), wgs)
}

// GenericGeometry rounds n up to whole work-groups of wgs*wpt elements and
// launches one work-item per wpt elements.
func GenericGeometry(n, wgs, wpt int) Geometry {
	nCeiled := Ceil(n, wgs*wpt)
	return Geometry1D(nCeiled/wpt, wgs)
}

// Groups is the number of work-groups along dimension 0.
func (g Geometry) Groups() int {
	if len(g.Global) == 0 || len(g.Local) == 0 || g.Local[0] == 0 {
		return 0
	}
	return CeilDiv(g.Global[0], g.Local[0])
}

func (g Geometry) String() string {
	return fmt.Sprintf("global=%v local=%v", g.Global, g.Local)
}
