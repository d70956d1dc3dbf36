package store

import (
	"context"
	"sort"
	"sync"

	identity "carp/internal/identity/models"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
)

// ParticipantLookup lets the in-memory store fill listing rows the way the
// Postgres store does with a join.
type ParticipantLookup interface {
	FindByID(ctx context.Context, participantID id.ParticipantID) (*identity.Participant, error)
}

type pairKey struct {
	event       id.EventID
	participant id.ParticipantID
}

// InMemoryStore holds events and registrations. The (event, participant) map
// key is the uniqueness constraint. LockEvent is a plain read: isolation comes
// from tx.MemoryRunner, which serializes whole transactions.
type InMemoryStore struct {
	mu            sync.RWMutex
	events        map[id.EventID]models.Event
	registrations map[pairKey]models.Registration
	participants  ParticipantLookup
}

func NewInMemoryStore(participants ParticipantLookup) *InMemoryStore {
	return &InMemoryStore{
		events:        make(map[id.EventID]models.Event),
		registrations: make(map[pairKey]models.Registration),
		participants:  participants,
	}
}

func (s *InMemoryStore) CreateEvent(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.events[e.ID] = *e
	return nil
}

func (s *InMemoryStore) FindEvent(_ context.Context, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemoryStore) LockEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	return s.FindEvent(ctx, eventID)
}

func (s *InMemoryStore) ListEvents(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events, nil
}

func (s *InMemoryStore) CountByEvent(_ context.Context, eventID id.EventID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.registrations {
		if key.event == eventID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountByEvents(_ context.Context, eventIDs []id.EventID) (map[id.EventID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.EventID]int, len(eventIDs))
	for _, eventID := range eventIDs {
		counts[eventID] = 0
	}
	for key := range s.registrations {
		if _, wanted := counts[key.event]; wanted {
			counts[key.event]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) Insert(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{event: reg.EventID, participant: reg.ParticipantID}
	if _, exists := s.registrations[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.events[reg.EventID]; !ok {
		return sentinel.ErrNotFound
	}
	s.registrations[key] = *reg
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.registrations, key)
	})
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, eventID id.EventID, participantID id.ParticipantID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{event: eventID, participant: participantID}
	reg, ok := s.registrations[key]
	if !ok {
		return false, nil
	}
	delete(s.registrations, key)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.registrations[key] = reg
	})
	return true, nil
}

func (s *InMemoryStore) ListByParticipant(_ context.Context, participantID id.ParticipantID) ([]models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Registration
	for key, reg := range s.registrations {
		if key.participant == participantID {
			out = append(out, reg)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) List(ctx context.Context, eventID *id.EventID) ([]models.RegistrationView, error) {
	s.mu.RLock()
	var regs []models.Registration
	for key, reg := range s.registrations {
		if eventID == nil || key.event == *eventID {
			regs = append(regs, reg)
		}
	}
	titles := make(map[id.EventID]string, len(s.events))
	for eid, e := range s.events {
		titles[eid] = e.Title
	}
	s.mu.RUnlock()

	sortNewestFirst(regs)
	views := make([]models.RegistrationView, 0, len(regs))
	for _, reg := range regs {
		view := models.RegistrationView{Registration: reg, EventTitle: titles[reg.EventID]}
		if s.participants != nil {
			if p, err := s.participants.FindByID(ctx, reg.ParticipantID); err == nil {
				view.ParticipantName = p.FullName
				view.NationalID = p.NationalID.String()
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func sortNewestFirst(regs []models.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
}
