package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identitymetrics "carp/internal/identity/metrics"
	"carp/internal/identity/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
	"carp/pkg/requestcontext"
)

// Store persists participants. Implementations return sentinel errors:
// ErrNotFound for missing rows and ErrAlreadyUsed for unique-key collisions.
type Store interface {
	Create(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error)
	FindByNationalID(ctx context.Context, nationalID id.NationalID) (*models.Participant, error)
	FindByAccount(ctx context.Context, accountID id.AccountID) (*models.Participant, error)
	UpdateName(ctx context.Context, participantID id.ParticipantID, fullName string, updatedAt time.Time) error
	SetAccount(ctx context.Context, participantID id.ParticipantID, accountID id.AccountID, updatedAt time.Time) error
}

// Service resolves human identities to canonical participants.
type Service struct {
	participants Store
	tx           tx.Runner
	logger       *slog.Logger
	metrics      *identitymetrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *identitymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxRunner sets the transaction boundary. Share one runner across
// services so nested calls join the same transaction.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(participants Store, opts ...Option) *Service {
	s := &Service{
		participants: participants,
		tracer:       otel.Tracer("carp/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

type resolveOutcome struct {
	created  bool
	enriched bool
	raced    bool
}

// Resolve returns the one participant for nationalID, creating a shadow
// profile on first sight and enriching its name when claimedName is more
// complete. Called inside a transaction, it joins it.
func (s *Service) Resolve(ctx context.Context, nationalID, claimedName string) (*models.Participant, error) {
	start := time.Now()
	nid, err := id.ParseNationalID(nationalID)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "identity.Resolve")
	defer span.End()

	var participant *models.Participant
	var outcome resolveOutcome
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, o, err := s.resolveInTx(txCtx, nid, claimedName)
		if err != nil {
			return err
		}
		participant, outcome = p, o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("participant.id", participant.ID.String()),
		attribute.Bool("participant.created", outcome.created),
	)
	s.recordOutcome(ctx, participant, nid, outcome)
	s.observeResolve(start)
	return participant, nil
}

func (s *Service) resolveInTx(ctx context.Context, nid id.NationalID, claimedName string) (*models.Participant, resolveOutcome, error) {
	var outcome resolveOutcome
	now := requestcontext.Now(ctx)

	p, err := s.participants.FindByNationalID(ctx, nid)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		candidate := models.NewParticipant(nid, claimedName, now)
		err := s.participants.Create(ctx, candidate)
		if err == nil {
			outcome.created = true
			return candidate, outcome, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, outcome, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create participant")
		}
		// Lost the race; the unique key picked the winner.
		outcome.raced = true
		p, err = s.participants.FindByNationalID(ctx, nid)
		if err != nil {
			return nil, outcome, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant after concurrent create")
		}
	default:
		return nil, outcome, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}

	if p.Enrich(claimedName, now) {
		if err := s.participants.UpdateName(ctx, p.ID, p.FullName, p.UpdatedAt); err != nil {
			return nil, outcome, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant name")
		}
		outcome.enriched = true
	}
	return p, outcome, nil
}

// Get loads a participant by ID.
func (s *Service) Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	if participantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "participant ID is required")
	}
	p, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		return nil, wrapParticipantErr(err)
	}
	return p, nil
}

// ParticipantForAccount returns the participant an account has claimed.
func (s *Service) ParticipantForAccount(ctx context.Context, accountID id.AccountID) (*models.Participant, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account ID is required")
	}
	p, err := s.participants.FindByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no participant is linked to this account")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	return p, nil
}

// ClaimAccount resolves the identity and links it to accountID. The link is
// set once: a participant claimed by another account, or an account that
// already owns another participant, fails with CodeConflict.
func (s *Service) ClaimAccount(ctx context.Context, accountID id.AccountID, nationalID, claimedName string) (*models.Participant, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account ID is required")
	}
	nid, err := id.ParseNationalID(nationalID)
	if err != nil {
		return nil, err
	}

	var participant *models.Participant
	var outcome resolveOutcome
	claimed := false
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		claimed = false
		p, o, err := s.resolveInTx(txCtx, nid, claimedName)
		if err != nil {
			return err
		}
		outcome = o
		if p.IsClaimedBy(accountID) {
			participant = p
			return nil
		}
		if !p.IsShadow() {
			return dErrors.New(dErrors.CodeConflict, "participant is already claimed by another account")
		}

		owned, err := s.participants.FindByAccount(txCtx, accountID)
		switch {
		case err == nil:
			if owned.ID != p.ID {
				return dErrors.New(dErrors.CodeConflict, "account already claims another participant")
			}
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account participant")
		}

		now := requestcontext.Now(txCtx)
		if err := s.participants.SetAccount(txCtx, p.ID, accountID, now); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "participant or account already claimed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim participant")
		}
		p.AccountID = &accountID
		p.UpdatedAt = now
		participant = p
		claimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordOutcome(ctx, participant, nid, outcome)
	if claimed {
		s.logAudit(ctx, "participant_claimed",
			"participant_id", participant.ID.String(),
			"account_id", accountID.String(),
		)
		if s.metrics != nil {
			s.metrics.IncrementAccountsClaimed()
		}
	}
	return participant, nil
}

func (s *Service) recordOutcome(ctx context.Context, p *models.Participant, nid id.NationalID, o resolveOutcome) {
	if o.created {
		s.logAudit(ctx, "participant_created",
			"participant_id", p.ID.String(),
			"national_id", nid.Masked(),
		)
	}
	if o.enriched {
		s.logAudit(ctx, "participant_name_enriched", "participant_id", p.ID.String())
	}
	if s.metrics == nil {
		return
	}
	if o.created {
		s.metrics.IncrementParticipantsCreated()
	}
	if o.enriched {
		s.metrics.IncrementNamesEnriched()
	}
	if o.raced {
		s.metrics.IncrementResolveRaces()
	}
}

func (s *Service) observeResolve(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveResolve(start)
	}
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

func wrapParticipantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
}
