package store

import (
	"context"
	"sort"
	"sync"

	"carp/internal/caregiver/models"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
)

// InMemoryStore keys links by participant, mirroring the unique constraint.
type InMemoryStore struct {
	mu    sync.RWMutex
	links map[id.ParticipantID]models.Link
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{links: make(map[id.ParticipantID]models.Link)}
}

func (s *InMemoryStore) Link(ctx context.Context, link models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.links[link.ParticipantID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.links[link.ParticipantID] = link
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.links, link.ParticipantID)
	})
	return nil
}

func (s *InMemoryStore) FindByParticipant(_ context.Context, participantID id.ParticipantID) (*models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &link, nil
}

func (s *InMemoryStore) Unlink(ctx context.Context, caregiverID id.AccountID, participantID id.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[participantID]
	if !ok || link.CaregiverID != caregiverID {
		return false, nil
	}
	delete(s.links, participantID)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.links[participantID] = link
	})
	return true, nil
}

func (s *InMemoryStore) ListByCaregiver(_ context.Context, caregiverID id.AccountID) ([]models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Link
	for _, link := range s.links {
		if link.CaregiverID == caregiverID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
