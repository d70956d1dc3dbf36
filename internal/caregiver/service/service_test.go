package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carp/internal/access"
	"carp/internal/caregiver/store"
	identityservice "carp/internal/identity/service"
	identitystore "carp/internal/identity/store"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/tx"
)

type CaregiverServiceSuite struct {
	suite.Suite
	ctx        context.Context
	links      *store.InMemoryStore
	identities *identitystore.InMemoryStore
	service    *Service
	caregiver  access.Principal
	other      access.Principal
}

func TestCaregiverServiceSuite(t *testing.T) {
	suite.Run(t, new(CaregiverServiceSuite))
}

func (s *CaregiverServiceSuite) SetupTest() {
	s.ctx = context.Background()
	runner := tx.NewMemoryRunner()
	s.links = store.NewInMemoryStore()
	s.identities = identitystore.NewInMemoryStore()
	resolver := identityservice.New(s.identities, identityservice.WithTxRunner(runner))
	s.service = New(s.links, resolver, WithTxRunner(runner))
	s.caregiver = access.NewPrincipal(id.AccountID(uuid.New()), id.RoleCaregiver)
	s.other = access.NewPrincipal(id.AccountID(uuid.New()), id.RoleCaregiver)
}

func (s *CaregiverServiceSuite) TestAddSenior() {
	s.Run("links a new senior as a shadow profile", func() {
		senior, err := s.service.AddSenior(s.ctx, s.caregiver, "S1234567A", "Tan Ah Kow")
		s.Require().NoError(err)
		s.True(senior.IsShadow())

		linked, err := s.service.LinkedParticipants(s.ctx, s.caregiver.AccountID)
		s.Require().NoError(err)
		s.Contains(linked, senior.ID)
	})

	s.Run("adding the same senior twice is idempotent", func() {
		first, err := s.service.AddSenior(s.ctx, s.caregiver, "S1234567A", "")
		s.Require().NoError(err)
		second, err := s.service.AddSenior(s.ctx, s.caregiver, "s1234567a", "Tan Ah Kow")
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)

		linked, err := s.service.LinkedParticipants(s.ctx, s.caregiver.AccountID)
		s.Require().NoError(err)
		s.Len(linked, 1)
	})

	s.Run("a senior with another caregiver is rejected", func() {
		_, err := s.service.AddSenior(s.ctx, s.other, "S1234567A", "Tan Ah Kow")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLinkedElsewhere))
	})

	s.Run("non-caregivers cannot add seniors", func() {
		for _, caller := range []access.Principal{
			access.Guest(),
			access.NewPrincipal(id.AccountID(uuid.New()), id.RoleSenior),
			access.NewPrincipal(id.AccountID(uuid.New()), id.RoleStaff),
		} {
			_, err := s.service.AddSenior(s.ctx, caller, "T7654321Z", "Lim")
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "role %s", caller.Role)
		}
	})

	s.Run("malformed national ID is rejected", func() {
		_, err := s.service.AddSenior(s.ctx, s.caregiver, "not-an-nric", "Lim")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidIdentity))
	})
}

type noTxRunner struct{ opened bool }

func (r *noTxRunner) RunInTx(context.Context, func(context.Context) error) error {
	r.opened = true
	return nil
}

func (s *CaregiverServiceSuite) TestAddSenior_MalformedIDRejectedBeforeStorage() {
	runner := &noTxRunner{}
	svc := New(s.links, identityservice.New(s.identities), WithTxRunner(runner))

	_, err := svc.AddSenior(s.ctx, s.caregiver, "12345", "Lim")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidIdentity))
	s.False(runner.opened)
}

func (s *CaregiverServiceSuite) TestAddSenior_RejectedLinkLeavesNoNewParticipant() {
	_, err := s.service.AddSenior(s.ctx, s.caregiver, "S1234567A", "Tan")
	s.Require().NoError(err)
	before, err := s.identities.Count(s.ctx)
	s.Require().NoError(err)

	_, err = s.service.AddSenior(s.ctx, s.other, "S1234567A", "Tan")
	s.Require().Error(err)

	after, err := s.identities.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *CaregiverServiceSuite) TestRemoveSenior() {
	senior, err := s.service.AddSenior(s.ctx, s.caregiver, "S1234567A", "Tan Ah Kow")
	s.Require().NoError(err)

	s.Run("another caregiver removing is a no-op", func() {
		s.Require().NoError(s.service.RemoveSenior(s.ctx, s.other, senior.ID))
		linked, err := s.service.LinkedParticipants(s.ctx, s.caregiver.AccountID)
		s.Require().NoError(err)
		s.Contains(linked, senior.ID)
	})

	s.Run("removes the link but keeps the participant", func() {
		s.Require().NoError(s.service.RemoveSenior(s.ctx, s.caregiver, senior.ID))

		linked, err := s.service.LinkedParticipants(s.ctx, s.caregiver.AccountID)
		s.Require().NoError(err)
		s.NotContains(linked, senior.ID)

		_, err = s.identities.FindByID(s.ctx, senior.ID)
		s.NoError(err)
	})

	s.Run("removing twice is idempotent", func() {
		s.NoError(s.service.RemoveSenior(s.ctx, s.caregiver, senior.ID))
	})

	s.Run("after unlinking another caregiver may link", func() {
		relinked, err := s.service.AddSenior(s.ctx, s.other, "S1234567A", "")
		s.Require().NoError(err)
		s.Equal(senior.ID, relinked.ID)
	})

	s.Run("staff cannot remove links", func() {
		staff := access.NewPrincipal(id.AccountID(uuid.New()), id.RoleStaff)
		err := s.service.RemoveSenior(s.ctx, staff, senior.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *CaregiverServiceSuite) TestListSeniors() {
	a, err := s.service.AddSenior(s.ctx, s.caregiver, "S1234567A", "Tan Ah Kow")
	s.Require().NoError(err)
	b, err := s.service.AddSenior(s.ctx, s.caregiver, "T7654321Z", "Lim Bee Hoon")
	s.Require().NoError(err)
	_, err = s.service.AddSenior(s.ctx, s.other, "G1111111B", "Someone Else")
	s.Require().NoError(err)

	seniors, err := s.service.ListSeniors(s.ctx, s.caregiver)
	s.Require().NoError(err)
	s.Len(seniors, 2)
	got := []id.ParticipantID{seniors[0].ID, seniors[1].ID}
	s.ElementsMatch([]id.ParticipantID{a.ID, b.ID}, got)

	_, err = s.service.ListSeniors(s.ctx, access.Guest())
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
