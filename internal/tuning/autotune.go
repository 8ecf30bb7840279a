package tuning

import (
	"errors"
	"slices"
	"sync"

	"github.com/samcharles93/blast/pkg/blas"
)

var ErrNoCandidate = errors.New("no tuning candidate succeeded")

// TuneKey identifies one tuning problem.
type TuneKey struct {
	Kernel    string
	Precision blas.Precision
	Device    string
	N         int
}

type Tuned struct {
	Params Params
	Score  float64
}

// Autotuner caches the best candidate per key. Scores are throughputs: larger
// is better.
type Autotuner struct {
	mu    sync.RWMutex
	cache map[TuneKey]Tuned
}

func NewAutotuner() *Autotuner {
	return &Autotuner{
		cache: make(map[TuneKey]Tuned),
	}
}

// Tune runs every candidate through run and remembers the best. Candidates
// whose run fails are skipped; if all fail, ErrNoCandidate is returned joined
// with the last failure.
func (t *Autotuner) Tune(key TuneKey, candidates []Params, run func(Params) (float64, error)) (Tuned, error) {
	t.mu.RLock()
	if tuned, ok := t.cache[key]; ok {
		t.mu.RUnlock()
		return tuned, nil
	}
	t.mu.RUnlock()

	var (
		best    Tuned
		found   bool
		lastErr error
	)
	for _, cand := range candidates {
		score, err := run(cand)
		if err != nil {
			lastErr = err
			continue
		}
		if !found || score > best.Score {
			best = Tuned{Params: cand.Clone(), Score: score}
			found = true
		}
	}
	if !found {
		return Tuned{}, errors.Join(ErrNoCandidate, lastErr)
	}

	t.mu.Lock()
	t.cache[key] = best
	t.mu.Unlock()

	return best, nil
}

// Results returns the cached results keyed by TuneKey.
func (t *Autotuner) Results() map[TuneKey]Tuned {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[TuneKey]Tuned, len(t.cache))
	for k, v := range t.cache {
		out[k] = v
	}
	return out
}

// Candidates expands base over the cartesian product of space. Values that
// are not positive are dropped, and duplicate combinations are removed.
func Candidates(base Params, space map[string][]int) []Params {
	out := []Params{base.Clone()}
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		var next []Params
		for _, p := range out {
			for _, v := range space[name] {
				if v <= 0 {
					continue
				}
				c := p.Clone()
				c[name] = v
				next = append(next, c)
			}
		}
		if len(next) > 0 {
			out = next
		}
	}

	uniq := out[:0]
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		s := p.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, p)
	}
	return uniq
}

// AxpySpace is the search space used by the tune command for the Xaxpy
// family.
func AxpySpace() map[string][]int {
	return map[string][]int{
		"WGS": {32, 64, 128, 256},
		"WPT": {1, 2, 4, 8},
		"VW":  {1, 2, 4, 8},
	}
}
