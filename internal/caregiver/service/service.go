package service

import (
	"context"
	"errors"
	"log/slog"

	"carp/internal/access"
	"carp/internal/caregiver/models"
	identity "carp/internal/identity/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
	"carp/pkg/requestcontext"
)

// Store persists caregiver links.
type Store interface {
	Link(ctx context.Context, link models.Link) error
	FindByParticipant(ctx context.Context, participantID id.ParticipantID) (*models.Link, error)
	Unlink(ctx context.Context, caregiverID id.AccountID, participantID id.ParticipantID) (bool, error)
	ListByCaregiver(ctx context.Context, caregiverID id.AccountID) ([]models.Link, error)
}

// IdentityResolver is the slice of the identity service this module needs.
type IdentityResolver interface {
	Resolve(ctx context.Context, nationalID, claimedName string) (*identity.Participant, error)
	Get(ctx context.Context, participantID id.ParticipantID) (*identity.Participant, error)
}

// Service manages which seniors a caregiver may act for.
type Service struct {
	links    Store
	identity IdentityResolver
	tx       tx.Runner
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(links Store, identity IdentityResolver, opts ...Option) *Service {
	s := &Service{links: links, identity: identity}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

// AddSenior resolves the senior and links them to the calling caregiver.
// Linking a senior the caller already manages succeeds without change.
func (s *Service) AddSenior(ctx context.Context, caller access.Principal, nationalID, name string) (*identity.Participant, error) {
	if !caller.IsCaregiver() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only caregivers can add seniors")
	}
	if _, err := id.ParseNationalID(nationalID); err != nil {
		return nil, err
	}

	var senior *identity.Participant
	linked := false
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		linked = false
		p, err := s.identity.Resolve(txCtx, nationalID, name)
		if err != nil {
			return err
		}
		senior = p

		link := models.Link{
			CaregiverID:   caller.AccountID,
			ParticipantID: p.ID,
			CreatedAt:     requestcontext.Now(txCtx),
		}
		err = s.links.Link(txCtx, link)
		if err == nil {
			linked = true
			return nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link senior")
		}

		existing, err := s.links.FindByParticipant(txCtx, p.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load existing link")
		}
		if existing.CaregiverID != caller.AccountID {
			return dErrors.New(dErrors.CodeAlreadyLinkedElsewhere, "senior is already linked to another caregiver")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if linked {
		s.logAudit(ctx, "senior_linked",
			"caregiver_id", caller.AccountID.String(),
			"participant_id", senior.ID.String(),
		)
	}
	return senior, nil
}

// RemoveSenior deletes the caller's link to participantID if there is one.
// Registrations made on the senior's behalf are kept.
func (s *Service) RemoveSenior(ctx context.Context, caller access.Principal, participantID id.ParticipantID) error {
	if !caller.IsCaregiver() {
		return dErrors.New(dErrors.CodeUnauthorized, "only caregivers can remove seniors")
	}
	removed, err := s.links.Unlink(ctx, caller.AccountID, participantID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink senior")
	}
	if removed {
		s.logAudit(ctx, "senior_unlinked",
			"caregiver_id", caller.AccountID.String(),
			"participant_id", participantID.String(),
		)
	}
	return nil
}

// LinkedParticipants returns the set of participants caregiverID may act for.
func (s *Service) LinkedParticipants(ctx context.Context, caregiverID id.AccountID) (map[id.ParticipantID]struct{}, error) {
	links, err := s.links.ListByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked seniors")
	}
	set := make(map[id.ParticipantID]struct{}, len(links))
	for _, link := range links {
		set[link.ParticipantID] = struct{}{}
	}
	return set, nil
}

// ListSeniors returns the caller's linked seniors, oldest link first.
func (s *Service) ListSeniors(ctx context.Context, caller access.Principal) ([]*identity.Participant, error) {
	if !caller.IsCaregiver() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only caregivers have linked seniors")
	}
	links, err := s.links.ListByCaregiver(ctx, caller.AccountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list linked seniors")
	}
	seniors := make([]*identity.Participant, 0, len(links))
	for _, link := range links {
		p, err := s.identity.Get(ctx, link.ParticipantID)
		if err != nil {
			return nil, err
		}
		seniors = append(seniors, p)
	}
	return seniors, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
