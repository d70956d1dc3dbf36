package models

import (
	"strings"
	"time"

	id "carp/pkg/domain"
)

// Participant is the one canonical record of a human, keyed by national ID.
//
// Invariants:
//   - exactly one Participant exists per NationalID, forever
//   - ID and NationalID never change after creation
//   - AccountID is set at most once (nil means a shadow profile)
type Participant struct {
	ID         id.ParticipantID `json:"id"`
	NationalID id.NationalID    `json:"-"`
	FullName   string           `json:"full_name"`
	AccountID  *id.AccountID    `json:"account_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewParticipant builds a shadow profile.
func NewParticipant(nationalID id.NationalID, fullName string, now time.Time) *Participant {
	return &Participant{
		ID:         id.NewParticipantID(),
		NationalID: nationalID,
		FullName:   NormalizeName(fullName),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsShadow reports whether no account has claimed the participant.
func (p *Participant) IsShadow() bool {
	return p.AccountID == nil
}

// IsClaimedBy reports whether account owns this participant.
func (p *Participant) IsClaimedBy(account id.AccountID) bool {
	return p.AccountID != nil && *p.AccountID == account
}

// Enrich applies the name enrichment rule and reports whether the name changed.
func (p *Participant) Enrich(claimedName string, now time.Time) bool {
	claimed := NormalizeName(claimedName)
	if !ShouldReplaceName(p.FullName, claimed) {
		return false
	}
	p.FullName = claimed
	p.UpdatedAt = now
	return true
}

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

var placeholderNames = map[string]bool{
	"":        true,
	"-":       true,
	"n/a":     true,
	"na":      true,
	"unknown": true,
	"walk-in": true,
	"walkin":  true,
	"guest":   true,
}

// ShouldReplaceName decides whether claimed may overwrite stored.
//
// A stored name is replaced when it is blank or a placeholder, or when the
// claimed name extends it: each stored word is a case-insensitive prefix of the
// claimed word at the same position, and the claimed name has more words
// ("Jane" -> "Jane Doe", "J Tan" -> "Jane Tan Mei Ling"). A different name never
// overwrites a real one, so the outcome does not depend on who resolves first.
func ShouldReplaceName(stored, claimed string) bool {
	stored = NormalizeName(stored)
	claimed = NormalizeName(claimed)
	if claimed == "" || isPlaceholder(claimed) || strings.EqualFold(stored, claimed) {
		return false
	}
	if isPlaceholder(stored) {
		return true
	}

	storedWords := strings.Fields(strings.ToLower(stored))
	claimedWords := strings.Fields(strings.ToLower(claimed))
	if len(claimedWords) <= len(storedWords) {
		return false
	}
	for i, w := range storedWords {
		if !strings.HasPrefix(claimedWords[i], w) {
			return false
		}
	}
	return true
}

func isPlaceholder(name string) bool {
	return placeholderNames[strings.ToLower(name)]
}
