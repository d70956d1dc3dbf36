package service

import (
	"context"

	"carp/internal/access"
	identity "carp/internal/identity/models"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
)

// authorizeRequestShape rejects what the caller's role can never do,
// before any storage access.
func authorizeRequestShape(caller access.Principal, req models.RegisterRequest) error {
	if req.Source == id.SourceWalkIn && !caller.IsStaff() {
		return dErrors.New(dErrors.CodeUnauthorized, "only staff can record walk-in registrations")
	}
	if !caller.Authenticated() && req.ParticipantID != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "guests must register with an identity claim")
	}
	return nil
}

// authorizeParticipant checks the caller may act for p. Guests may register
// any identity they claim; every other caller acts only for the participant
// they own, a senior they are linked to, or anyone when staff.
func (s *Service) authorizeParticipant(ctx context.Context, caller access.Principal, p *identity.Participant) error {
	switch {
	case !caller.Authenticated():
		return nil
	case caller.IsStaff():
		return nil
	case caller.IsSenior():
		if p.IsClaimedBy(caller.AccountID) {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "seniors can only act for themselves")
	case caller.IsCaregiver():
		linked, err := s.links.LinkedParticipants(ctx, caller.AccountID)
		if err != nil {
			return err
		}
		if _, ok := linked[p.ID]; ok {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "participant is not linked to this caregiver")
	}
	return dErrors.New(dErrors.CodeUnauthorized, "caller cannot act for this participant")
}
