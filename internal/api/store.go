package api

import (
	"sync"
)

const defaultStoreLimit = 256

// RunStore keeps the most recent routine runs, evicting the oldest beyond
// its limit.
type RunStore struct {
	mu    sync.Mutex
	limit int
	runs  map[string]RoutineRun
	order []string
}

func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = defaultStoreLimit
	}
	return &RunStore{
		limit: limit,
		runs:  make(map[string]RoutineRun),
	}
}

func (s *RunStore) Save(run RoutineRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run
	for len(s.order) > s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *RunStore) Get(id string) (RoutineRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *RunStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return false
	}
	delete(s.runs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}
