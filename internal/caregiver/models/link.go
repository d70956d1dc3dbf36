package models

import (
	"time"

	id "carp/pkg/domain"
)

// Link says a caregiver account may act for a participant.
// Invariant: a participant has at most one link at a time; removing the link
// leaves the participant and its registrations untouched.
type Link struct {
	CaregiverID   id.AccountID     `json:"caregiver_id"`
	ParticipantID id.ParticipantID `json:"participant_id"`
	CreatedAt     time.Time        `json:"created_at"`
}
