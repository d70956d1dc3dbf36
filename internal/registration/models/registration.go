package models

import (
	"strings"
	"time"

	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
)

// Registration admits one participant to one event.
// Invariant: at most one Registration exists per (EventID, ParticipantID).
type Registration struct {
	ID            id.RegistrationID     `json:"id"`
	EventID       id.EventID            `json:"event_id"`
	ParticipantID id.ParticipantID      `json:"participant_id"`
	Source        id.RegistrationSource `json:"source"`
	CreatedAt     time.Time             `json:"created_at"`
}

func NewRegistration(eventID id.EventID, participantID id.ParticipantID, source id.RegistrationSource, now time.Time) *Registration {
	return &Registration{
		ID:            id.NewRegistrationID(),
		EventID:       eventID,
		ParticipantID: participantID,
		Source:        source,
		CreatedAt:     now,
	}
}

// RegistrationView is the staff listing row.
type RegistrationView struct {
	Registration
	EventTitle      string `json:"event_title"`
	ParticipantName string `json:"participant_name"`
	NationalID      string `json:"national_id"`
}

// IdentityClaim is a national ID plus the name the caller gave with it.
type IdentityClaim struct {
	NationalID string `json:"national_id"`
	FullName   string `json:"full_name"`
}

// RegisterRequest targets a participant either by identity claim or by ID.
type RegisterRequest struct {
	EventID       id.EventID
	Claim         *IdentityClaim
	ParticipantID *id.ParticipantID
	Source        id.RegistrationSource
}

// Normalize trims the claim and defaults the source.
func (r *RegisterRequest) Normalize() {
	if r.Claim != nil {
		r.Claim.NationalID = strings.TrimSpace(r.Claim.NationalID)
		r.Claim.FullName = strings.TrimSpace(r.Claim.FullName)
	}
	if r.Source == "" {
		r.Source = id.SourceOnline
	}
}

// Validate checks request shape. Authorization is the service's job.
func (r *RegisterRequest) Validate() error {
	if r.EventID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	if (r.Claim == nil) == (r.ParticipantID == nil) {
		return dErrors.New(dErrors.CodeInvalidInput, "exactly one of identity claim or participant ID is required")
	}
	if r.ParticipantID != nil && r.ParticipantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "participant ID cannot be nil")
	}
	if r.Claim != nil {
		if _, err := id.ParseNationalID(r.Claim.NationalID); err != nil {
			return err
		}
	}
	if !r.Source.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid registration source")
	}
	return nil
}
