package store

import (
	"context"
	"sync"
	"time"

	"carp/internal/identity/models"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
)

// InMemoryStore keeps participants in maps. It enforces the same unique keys
// as the Postgres schema: national ID and account.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[id.ParticipantID]models.Participant
	byNationalID map[id.NationalID]id.ParticipantID
	byAccount    map[id.AccountID]id.ParticipantID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[id.ParticipantID]models.Participant),
		byNationalID: make(map[id.NationalID]id.ParticipantID),
		byAccount:    make(map[id.AccountID]id.ParticipantID),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNationalID[p.NationalID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.participants[p.ID] = *p
	s.byNationalID[p.NationalID] = p.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.participants, p.ID)
		delete(s.byNationalID, p.NationalID)
	})
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) FindByNationalID(_ context.Context, nationalID id.NationalID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byNationalID[nationalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.participants[pid]
	return &p, nil
}

func (s *InMemoryStore) FindByAccount(_ context.Context, accountID id.AccountID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byAccount[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.participants[pid]
	return &p, nil
}

func (s *InMemoryStore) UpdateName(ctx context.Context, participantID id.ParticipantID, fullName string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := p
	p.FullName = fullName
	p.UpdatedAt = updatedAt
	s.participants[participantID] = p
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.participants[participantID] = prev
	})
	return nil
}

// SetAccount claims an unclaimed participant for accountID.
// Returns sentinel.ErrAlreadyUsed when the participant is already claimed or
// the account already owns another participant.
func (s *InMemoryStore) SetAccount(ctx context.Context, participantID id.ParticipantID, accountID id.AccountID, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.AccountID != nil {
		return sentinel.ErrAlreadyUsed
	}
	if _, owns := s.byAccount[accountID]; owns {
		return sentinel.ErrAlreadyUsed
	}
	prev := p
	account := accountID
	p.AccountID = &account
	p.UpdatedAt = updatedAt
	s.participants[participantID] = p
	s.byAccount[accountID] = participantID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.participants[participantID] = prev
		delete(s.byAccount, accountID)
	})
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants), nil
}
