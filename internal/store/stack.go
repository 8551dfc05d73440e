// Package store holds the process-lifetime stack registry and the deploy
// session slot.
package store

import (
	"sort"
	"sync"

	"github.com/picklr-io/infraviz/internal/ir"
)

// StackStore maps stack ids to their latest record. Records are copied on
// the way in and out, so callers never share state with the store. Entries
// are never evicted.
type StackStore struct {
	mu     sync.RWMutex
	stacks map[string]*ir.StackRecord
}

func NewStackStore() *StackStore {
	return &StackStore{stacks: make(map[string]*ir.StackRecord)}
}

// Put replaces the record for rec.StackID.
func (s *StackStore) Put(rec *ir.StackRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stacks[rec.StackID] = rec.Clone()
}

// Get returns a copy of the record for id.
func (s *StackStore) Get(id string) (*ir.StackRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stacks[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// SetStatus replaces the record for id with a copy carrying status. It
// reports false if id is unknown.
func (s *StackStore) SetStatus(id string, status ir.DeployStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.stacks[id]
	if !ok {
		return false
	}
	next := rec.Clone()
	next.DeployStatus = status
	s.stacks[id] = next
	return true
}

// List returns copies of all records, oldest first.
func (s *StackStore) List() []*ir.StackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ir.StackRecord, 0, len(s.stacks))
	for _, rec := range s.stacks {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].StackID < out[j].StackID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *StackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stacks)
}
