package delegation

import (
	"context"
	"sync"

	"github.com/fleetward/fleetward/app/models"
)

// MemoryStore is a process-local Store with the same compare-and-swap
// semantics as the database store.
type MemoryStore struct {
	mu      sync.Mutex
	rosters map[uint]*models.DelegationRoster
	links   map[uint]uint
	nextID  uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rosters: make(map[uint]*models.DelegationRoster),
		links:   make(map[uint]uint),
	}
}

func (s *MemoryStore) Load(_ context.Context, managerID uint) (*models.DelegationRoster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rosters[managerID]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, roster *models.DelegationRoster, expectedVersion uint, link LinkChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.rosters[roster.ManagerID]
	if roster.ID == 0 {
		if exists {
			return ErrConcurrentUpdate
		}
	} else if !exists || current.Version != expectedVersion {
		return ErrConcurrentUpdate
	}
	if link.Claim != 0 {
		if owner, ok := s.links[link.Claim]; ok && owner != roster.ManagerID {
			return ErrAlreadyDelegated
		}
	}

	if roster.ID == 0 {
		s.nextID++
		roster.ID = s.nextID
	}
	roster.Version = expectedVersion + 1
	s.rosters[roster.ManagerID] = roster.Clone()

	if link.Release != 0 && s.links[link.Release] == roster.ManagerID {
		delete(s.links, link.Release)
	}
	if link.Claim != 0 {
		s.links[link.Claim] = roster.ManagerID
	}
	return nil
}

func (s *MemoryStore) ManagerOf(_ context.Context, clientID uint) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.links[clientID]
	return m, ok, nil
}
