package tuning

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Params maps a tuning parameter name (WGS, WPT, VW, ...) to its value.
// A resolved Params is shared read-only between calls; use Clone before
// modifying.
type Params map[string]int

// Get returns the named value, or 0 when absent.
func (p Params) Get(name string) int {
	return p[name]
}

func (p Params) Lookup(name string) (int, bool) {
	v, ok := p[name]
	return v, ok
}

// Tile is the product of the named parameters, e.g. Tile("WGS", "WPT", "VW").
// A missing name contributes zero, which makes every divisibility test fail.
func (p Params) Tile(names ...string) int {
	out := 1
	for _, name := range names {
		out *= p[name]
	}
	return out
}

func (p Params) Clone() Params {
	return maps.Clone(p)
}

// Merge returns a copy of p overlaid with over.
func (p Params) Merge(over Params) Params {
	out := make(Params, len(p)+len(over))
	maps.Copy(out, p)
	maps.Copy(out, over)
	return out
}

// Validate rejects non-positive values; every parameter is a divisor somewhere.
func (p Params) Validate() error {
	for _, name := range p.Names() {
		if p[name] <= 0 {
			return fmt.Errorf("tuning parameter %s must be > 0 (got %d)", name, p[name])
		}
	}
	return nil
}

// Require reports the first of names that p does not define.
func (p Params) Require(names ...string) error {
	for _, name := range names {
		if _, ok := p[name]; !ok {
			return fmt.Errorf("missing tuning parameter %s", name)
		}
	}
	return nil
}

func (p Params) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

func (p Params) String() string {
	var b strings.Builder
	for i, name := range p.Names() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", name, p[name])
	}
	return b.String()
}
