// Package domain holds the primitive value types shared across modules.
//
// IDs are distinct named types over uuid.UUID so a ParticipantID can never be
// passed where an EventID is expected. Construct them from external input with
// the Parse functions; direct conversion bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "carp/pkg/domain-errors"
)

type (
	ParticipantID  uuid.UUID
	EventID        uuid.UUID
	RegistrationID uuid.UUID
	AccountID      uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// ParseParticipantID parses a non-nil participant UUID.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s, "participant ID")
	return ParticipantID(u), err
}

// ParseEventID parses a non-nil event UUID.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event ID")
	return EventID(u), err
}

// ParseRegistrationID parses a non-nil registration UUID.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration ID")
	return RegistrationID(u), err
}

// ParseAccountID parses a non-nil account UUID.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account ID")
	return AccountID(u), err
}

func (id ParticipantID) String() string  { return uuid.UUID(id).String() }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id AccountID) String() string      { return uuid.UUID(id).String() }

func (id ParticipantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id ParticipantID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AccountID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *ParticipantID) UnmarshalText(b []byte) error {
	parsed, err := ParseParticipantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *AccountID) UnmarshalText(b []byte) error {
	parsed, err := ParseAccountID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewParticipantID, NewEventID and NewRegistrationID mint random IDs.
func NewParticipantID() ParticipantID   { return ParticipantID(uuid.New()) }
func NewEventID() EventID               { return EventID(uuid.New()) }
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }
