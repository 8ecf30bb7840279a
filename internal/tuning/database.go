package tuning

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samcharles93/blast/pkg/blas"
	"github.com/samcharles93/blast/pkg/device"
)

var ErrUnknownKernel = errors.New("no tuning parameters for kernel")

// Entry is one row of the tuning database. Empty Precision, Vendor and Device
// act as wildcards; more specific rows override less specific ones.
type Entry struct {
	Kernel    string `yaml:"kernel" json:"kernel"`
	Precision string `yaml:"precision,omitempty" json:"precision,omitempty"`
	Vendor    string `yaml:"vendor,omitempty" json:"vendor,omitempty"`
	Device    string `yaml:"device,omitempty" json:"device,omitempty"`
	Params    Params `yaml:"params" json:"params"`

	precision *blas.Precision
}

func (e *Entry) compile() error {
	if strings.TrimSpace(e.Kernel) == "" {
		return fmt.Errorf("tuning entry without kernel name")
	}
	if len(e.Params) == 0 {
		return fmt.Errorf("tuning entry %s has no params", e.Kernel)
	}
	if err := e.Params.Validate(); err != nil {
		return fmt.Errorf("tuning entry %s: %w", e.Kernel, err)
	}
	e.precision = nil
	if e.Precision != "" {
		p, err := blas.ParsePrecision(e.Precision)
		if err != nil {
			return fmt.Errorf("tuning entry %s: %w", e.Kernel, err)
		}
		e.precision = &p
	}
	return nil
}

func (e *Entry) matches(kernel string, p blas.Precision, info device.Info) bool {
	if e.Kernel != kernel {
		return false
	}
	if e.precision != nil && *e.precision != p {
		return false
	}
	if e.Vendor != "" && !strings.EqualFold(e.Vendor, info.Vendor) {
		return false
	}
	if e.Device != "" && !strings.EqualFold(e.Device, info.Name) {
		return false
	}
	return true
}

func (e *Entry) specificity() int {
	score := 0
	if e.Device != "" {
		score += 4
	}
	if e.Vendor != "" {
		score += 2
	}
	if e.precision != nil {
		score++
	}
	return score
}

// Database holds tuning entries. It is immutable once built and safe for
// concurrent lookups.
type Database struct {
	entries []Entry
}

// New validates entries and builds a database from them alone.
func New(entries ...Entry) (*Database, error) {
	db := &Database{entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		e.Params = e.Params.Clone()
		if err := e.compile(); err != nil {
			return nil, err
		}
		db.entries = append(db.entries, e)
	}
	return db, nil
}

// With returns a new database with overrides appended. Overrides win over
// existing rows of equal specificity.
func (d *Database) With(overrides ...Entry) (*Database, error) {
	extra, err := New(overrides...)
	if err != nil {
		return nil, err
	}
	out := &Database{entries: make([]Entry, 0, len(d.entries)+len(extra.entries))}
	out.entries = append(out.entries, d.entries...)
	out.entries = append(out.entries, extra.entries...)
	return out, nil
}

// Lookup resolves the parameter set for a kernel family on a device.
func (d *Database) Lookup(kernel string, p blas.Precision, info device.Info) (Params, error) {
	var matched []*Entry
	for i := range d.entries {
		if d.entries[i].matches(kernel, p, info) {
			matched = append(matched, &d.entries[i])
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w %s (precision %s, device %s)", ErrUnknownKernel, kernel, p, info.Name)
	}
	slices.SortStableFunc(matched, func(a, b *Entry) int {
		return a.specificity() - b.specificity()
	})
	out := Params{}
	for _, e := range matched {
		out = out.Merge(e.Params)
	}
	return out, nil
}

// Entries returns a copy of the rows, in insertion order.
func (d *Database) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	for i, e := range d.entries {
		e.Params = e.Params.Clone()
		out[i] = e
	}
	return out
}

// Kernels lists the distinct kernel families in the database.
func (d *Database) Kernels() []string {
	var out []string
	for _, e := range d.entries {
		if !slices.Contains(out, e.Kernel) {
			out = append(out, e.Kernel)
		}
	}
	slices.Sort(out)
	return out
}
