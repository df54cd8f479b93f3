package upload

import (
	"sort"
	"sync"
)

// Records keeps upload records around for diagnostics.
type Records interface {
	Find(id string) (Record, bool)
	Save(r Record)
}

// Store is an in-memory Records.
type Store struct {
	sync.RWMutex
	records map[string]Record
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
	}
}

func (s *Store) Find(id string) (Record, bool) {
	s.RLock()
	defer s.RUnlock()
	r, exists := s.records[id]
	return r, exists
}

func (s *Store) Save(r Record) {
	s.Lock()
	defer s.Unlock()
	s.records[r.ID.String()] = r
}

// List returns every record, oldest first.
func (s *Store) List() []Record {
	s.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
