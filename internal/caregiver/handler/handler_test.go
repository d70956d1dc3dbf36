package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carp/internal/access"
	"carp/internal/caregiver/handler/mocks"
	identity "carp/internal/identity/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/caregiver-mocks.go -package=mocks Service
type CaregiverHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    chi.Router
	accountID uuid.UUID
	caller    access.Principal
}

func TestCaregiverHandlerSuite(t *testing.T) {
	suite.Run(t, new(CaregiverHandlerSuite))
}

func (s *CaregiverHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.accountID = uuid.New()
	s.caller = access.NewPrincipal(id.AccountID(s.accountID), id.RoleCaregiver)
}

func (s *CaregiverHandlerSuite) asCaregiver(req *http.Request) *http.Request {
	return testutil.WithCaller(req, s.accountID.String(), id.RoleCaregiver)
}

func (s *CaregiverHandlerSuite) TestAddSenior() {
	s.Run("links and returns the senior", func() {
		senior := identity.NewParticipant("S1234567A", "Tan Ah Kow", time.Now())
		s.service.EXPECT().AddSenior(gomock.Any(), s.caller, "S1234567A", "Tan Ah Kow").Return(senior, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/caregiver/seniors", AddSeniorRequest{NationalID: "S1234567A", FullName: "Tan Ah Kow"})
		rr := testutil.DoRequest(s.router, s.asCaregiver(req))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[SeniorResponse](s.T(), rr)
		s.Equal(senior.ID, resp.ID)
		s.Equal("S****567A", resp.NationalID)
	})

	s.Run("linked elsewhere maps to conflict", func() {
		s.service.EXPECT().AddSenior(gomock.Any(), s.caller, "S1234567A", "").
			Return(nil, dErrors.New(dErrors.CodeAlreadyLinkedElsewhere, "senior is already linked to another caregiver"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/caregiver/seniors", AddSeniorRequest{NationalID: "S1234567A"})
		rr := testutil.DoRequest(s.router, s.asCaregiver(req))

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_linked_elsewhere")
	})
}

func (s *CaregiverHandlerSuite) TestRemoveSenior() {
	pid := id.NewParticipantID()
	s.service.EXPECT().RemoveSenior(gomock.Any(), s.caller, pid).Return(nil)

	req := testutil.NewRequest(s.T(), http.MethodDelete, "/caregiver/seniors/"+pid.String())
	rr := testutil.DoRequest(s.router, s.asCaregiver(req))
	s.Equal(http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(s.router, s.asCaregiver(testutil.NewRequest(s.T(), http.MethodDelete, "/caregiver/seniors/bad")))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *CaregiverHandlerSuite) TestListSeniors() {
	s.Run("lists seniors", func() {
		s.service.EXPECT().ListSeniors(gomock.Any(), s.caller).Return([]*identity.Participant{
			identity.NewParticipant("S1234567A", "Tan Ah Kow", time.Now()),
		}, nil)

		rr := testutil.DoRequest(s.router, s.asCaregiver(testutil.NewRequest(s.T(), http.MethodGet, "/caregiver/seniors")))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[seniorsResponse](s.T(), rr)
		s.Require().Len(resp.Seniors, 1)
		s.Equal("Tan Ah Kow", resp.Seniors[0].FullName)
	})

	s.Run("guests must authenticate", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/caregiver/seniors"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthenticated")
	})

	s.Run("other roles are forbidden", func() {
		senior := access.NewPrincipal(id.AccountID(s.accountID), id.RoleSenior)
		s.service.EXPECT().ListSeniors(gomock.Any(), senior).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "only caregivers have linked seniors"))

		req := testutil.NewRequest(s.T(), http.MethodGet, "/caregiver/seniors")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, s.accountID.String(), id.RoleSenior))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")
	})
}
