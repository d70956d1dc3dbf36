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

	"carp/internal/access"
	identity "carp/internal/identity/models"
	registrationmetrics "carp/internal/registration/metrics"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/sentinel"
	"carp/pkg/platform/tx"
	"carp/pkg/requestcontext"
)

// Store persists events and registrations.
type Store interface {
	FindEvent(ctx context.Context, eventID id.EventID) (*models.Event, error)
	LockEvent(ctx context.Context, eventID id.EventID) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	CountByEvent(ctx context.Context, eventID id.EventID) (int, error)
	CountByEvents(ctx context.Context, eventIDs []id.EventID) (map[id.EventID]int, error)
	Insert(ctx context.Context, reg *models.Registration) error
	Delete(ctx context.Context, eventID id.EventID, participantID id.ParticipantID) (bool, error)
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]models.Registration, error)
	List(ctx context.Context, eventID *id.EventID) ([]models.RegistrationView, error)
}

// IdentityResolver locates or creates participants.
type IdentityResolver interface {
	Resolve(ctx context.Context, nationalID, claimedName string) (*identity.Participant, error)
	Get(ctx context.Context, participantID id.ParticipantID) (*identity.Participant, error)
}

// LinkLookup answers which participants a caregiver may act for.
type LinkLookup interface {
	LinkedParticipants(ctx context.Context, caregiverID id.AccountID) (map[id.ParticipantID]struct{}, error)
}

// Service admits participants to capacity-bounded events.
type Service struct {
	events   Store
	identity IdentityResolver
	links    LinkLookup
	tx       tx.Runner
	logger   *slog.Logger
	metrics  *registrationmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *registrationmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxRunner sets the transaction boundary. It must be the runner the
// identity service uses so participant creation commits with the admission.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(events Store, identity IdentityResolver, links LinkLookup, opts ...Option) *Service {
	s := &Service{
		events:   events,
		identity: identity,
		links:    links,
		tracer:   otel.Tracer("carp/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

// Register admits the targeted participant to the event. Resolution,
// authorization, the capacity check and the insert commit together or not at
// all, so the live count never exceeds the event's capacity.
func (s *Service) Register(ctx context.Context, caller access.Principal, req models.RegisterRequest) (*models.Registration, error) {
	start := time.Now()
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := authorizeRequestShape(caller, req); err != nil {
		s.recordRejection(ctx, registrationmetrics.ReasonUnauthorized, req.EventID, nil)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "registration.Register", trace.WithAttributes(
		attribute.String("event.id", req.EventID.String()),
		attribute.String("registration.source", req.Source.String()),
		attribute.String("caller.role", caller.Role.String()),
	))
	defer span.End()

	var (
		reg         *models.Registration
		participant *identity.Participant
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.targetParticipant(txCtx, req)
		if err != nil {
			return err
		}
		participant = p
		if err := s.authorizeParticipant(txCtx, caller, p); err != nil {
			return err
		}

		event, err := s.events.LockEvent(txCtx, req.EventID)
		if err != nil {
			return wrapEventErr(err)
		}
		count, err := s.events.CountByEvent(txCtx, event.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
		}
		if !event.HasRoomFor(count) {
			return dErrors.New(dErrors.CodeEventFull, "event is full")
		}

		candidate := models.NewRegistration(event.ID, p.ID, req.Source, requestcontext.Now(txCtx))
		if err := s.events.Insert(txCtx, candidate); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeDuplicateRegistration, "participant is already registered for this event")
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "event not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
		}
		reg = candidate
		return nil
	})
	if s.metrics != nil {
		s.metrics.ObserveAdmission(start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register failed")
		s.recordRegisterFailure(ctx, err, req.EventID, participant)
		return nil, err
	}

	span.SetAttributes(attribute.String("participant.id", reg.ParticipantID.String()))
	s.logAudit(ctx, "registration_admitted",
		"event_id", reg.EventID.String(),
		"participant_id", reg.ParticipantID.String(),
		"source", reg.Source.String(),
		"caller_role", caller.Role.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementAdmitted(reg.Source.String())
	}
	return reg, nil
}

func (s *Service) targetParticipant(ctx context.Context, req models.RegisterRequest) (*identity.Participant, error) {
	if req.Claim != nil {
		return s.identity.Resolve(ctx, req.Claim.NationalID, req.Claim.FullName)
	}
	return s.identity.Get(ctx, *req.ParticipantID)
}

// Unregister withdraws a participant from an event. Withdrawing a participant
// who is not registered succeeds.
func (s *Service) Unregister(ctx context.Context, caller access.Principal, eventID id.EventID, participantID id.ParticipantID) error {
	if !caller.Authenticated() {
		return dErrors.New(dErrors.CodeUnauthorized, "sign in to withdraw a registration")
	}
	if eventID.IsNil() || participantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "event ID and participant ID are required")
	}

	ctx, span := s.tracer.Start(ctx, "registration.Unregister", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("participant.id", participantID.String()),
	))
	defer span.End()

	removed := false
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		removed = false
		p, err := s.identity.Get(txCtx, participantID)
		if err != nil {
			return err
		}
		if err := s.authorizeParticipant(txCtx, caller, p); err != nil {
			return err
		}
		if _, err := s.events.FindEvent(txCtx, eventID); err != nil {
			return wrapEventErr(err)
		}
		removed, err = s.events.Delete(txCtx, eventID, participantID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete registration")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unregister failed")
		return err
	}

	if removed {
		s.logAudit(ctx, "registration_withdrawn",
			"event_id", eventID.String(),
			"participant_id", participantID.String(),
			"caller_role", caller.Role.String(),
		)
		if s.metrics != nil {
			s.metrics.IncrementWithdrawn()
		}
	}
	return nil
}

// CurrentRegistrationCount returns the live number of registrations.
func (s *Service) CurrentRegistrationCount(ctx context.Context, eventID id.EventID) (int, error) {
	if eventID.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	if _, err := s.events.FindEvent(ctx, eventID); err != nil {
		return 0, wrapEventErr(err)
	}
	n, err := s.events.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}
	return n, nil
}

// ListEvents returns every event by start time with its signup count.
func (s *Service) ListEvents(ctx context.Context) ([]models.EventSummary, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	ids := make([]id.EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	counts, err := s.events.CountByEvents(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrations")
	}

	summaries := make([]models.EventSummary, len(events))
	for i, e := range events {
		summaries[i] = models.Summarize(e, counts[e.ID])
	}
	return summaries, nil
}

// ListRegistrations is the staff roster, newest first. A nil eventID lists
// every event.
func (s *Service) ListRegistrations(ctx context.Context, caller access.Principal, eventID *id.EventID) ([]models.RegistrationView, error) {
	if !caller.IsStaff() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only staff can list registrations")
	}
	if eventID != nil {
		if _, err := s.events.FindEvent(ctx, *eventID); err != nil {
			return nil, wrapEventErr(err)
		}
	}
	views, err := s.events.List(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return views, nil
}

// ParticipantHistory returns a participant's registrations, newest first.
func (s *Service) ParticipantHistory(ctx context.Context, caller access.Principal, participantID id.ParticipantID) ([]models.Registration, error) {
	if !caller.Authenticated() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in to view registrations")
	}
	p, err := s.identity.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(ctx, caller, p); err != nil {
		return nil, err
	}
	regs, err := s.events.ListByParticipant(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrations")
	}
	return regs, nil
}

func (s *Service) recordRegisterFailure(ctx context.Context, err error, eventID id.EventID, p *identity.Participant) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeEventFull:
		s.recordRejection(ctx, registrationmetrics.ReasonEventFull, eventID, p)
	case dErrors.CodeDuplicateRegistration:
		s.recordRejection(ctx, registrationmetrics.ReasonDuplicate, eventID, p)
	case dErrors.CodeUnauthorized:
		s.recordRejection(ctx, registrationmetrics.ReasonUnauthorized, eventID, p)
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "registration failed",
				"event_id", eventID.String(),
				"error", err,
			)
		}
	}
}

func (s *Service) recordRejection(ctx context.Context, reason string, eventID id.EventID, p *identity.Participant) {
	attrs := []any{"event_id", eventID.String(), "reason", reason}
	if p != nil {
		attrs = append(attrs, "participant_id", p.ID.String())
	}
	s.logAudit(ctx, "registration_rejected", attrs...)
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attributes = append(attributes, "client_ip", ip)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func wrapEventErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
}
