package handler

import (
	"encoding/json"
	"errors"
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
	"carp/internal/registration/handler/mocks"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/registration-mocks.go -package=mocks Service
type RegistrationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	eventID id.EventID
}

func TestRegistrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHandlerSuite))
}

func (s *RegistrationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.eventID = id.NewEventID()
}

func (s *RegistrationHandlerSuite) decodeError(body []byte) map[string]string {
	var resp map[string]string
	s.Require().NoError(json.Unmarshal(body, &resp))
	return resp
}

func (s *RegistrationHandlerSuite) TestRegister() {
	path := "/events/" + s.eventID.String() + "/registrations"

	s.Run("guest registers by identity claim", func() {
		want := models.RegisterRequest{
			EventID: s.eventID,
			Claim:   &models.IdentityClaim{NationalID: "S1234567A", FullName: "Jane"},
		}
		reg := models.NewRegistration(s.eventID, id.NewParticipantID(), id.SourceOnline, time.Now())
		s.service.EXPECT().Register(gomock.Any(), access.Guest(), want).Return(reg, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, RegisterRequest{NationalID: "S1234567A", FullName: "Jane"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusCreated, rr.Code)
		var got models.Registration
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
		s.Equal(reg.ID, got.ID)
		s.Equal(id.SourceOnline, got.Source)
	})

	s.Run("staff walk-in by participant ID carries the caller", func() {
		staffID := uuid.New()
		pid := id.NewParticipantID()
		want := models.RegisterRequest{EventID: s.eventID, ParticipantID: &pid, Source: id.SourceWalkIn}
		caller := access.NewPrincipal(id.AccountID(staffID), id.RoleStaff)
		s.service.EXPECT().Register(gomock.Any(), caller, want).
			Return(models.NewRegistration(s.eventID, pid, id.SourceWalkIn, time.Now()), nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, RegisterRequest{ParticipantID: pid.String(), Source: "walkin"})
		req = testutil.WithCaller(req, staffID.String(), id.RoleStaff)
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusCreated, rr.Code)
	})

	s.Run("event full maps to conflict", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeEventFull, "event is full"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, RegisterRequest{NationalID: "S1234567A"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusConflict, rr.Code)
		s.Equal("event_full", s.decodeError(rr.Body.Bytes())["error"])
	})

	s.Run("duplicate maps to conflict", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateRegistration, "already registered"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, RegisterRequest{NationalID: "S1234567A"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusConflict, rr.Code)
		s.Equal("duplicate_registration", s.decodeError(rr.Body.Bytes())["error"])
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeInternal, "failed to save registration"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, RegisterRequest{NationalID: "S1234567A"})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusInternalServerError, rr.Code)
		resp := s.decodeError(rr.Body.Bytes())
		s.Equal("internal_error", resp["error"])
		s.NotContains(resp, "error_description")
	})

	s.Run("malformed event ID never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/not-a-uuid/registrations", RegisterRequest{NationalID: "S1234567A"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("unknown fields are rejected", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, path, `{"nric":"S1234567A"}`)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("bad_request", s.decodeError(rr.Body.Bytes())["error"])
	})
}

func (s *RegistrationHandlerSuite) TestUnregister() {
	accountID := uuid.New()
	pid := id.NewParticipantID()
	path := "/events/" + s.eventID.String() + "/registrations/" + pid.String()
	caller := access.NewPrincipal(id.AccountID(accountID), id.RoleCaregiver)

	s.Run("succeeds with no content", func() {
		s.service.EXPECT().Unregister(gomock.Any(), caller, s.eventID, pid).Return(nil)

		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodDelete, path), accountID.String(), id.RoleCaregiver)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("unauthorized maps to forbidden", func() {
		s.service.EXPECT().Unregister(gomock.Any(), caller, s.eventID, pid).
			Return(dErrors.New(dErrors.CodeUnauthorized, "participant is not linked to this caregiver"))

		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodDelete, path), accountID.String(), id.RoleCaregiver)
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})
}

func (s *RegistrationHandlerSuite) TestCount() {
	s.service.EXPECT().CurrentRegistrationCount(gomock.Any(), s.eventID).Return(7, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/events/"+s.eventID.String()+"/count"))

	s.Equal(http.StatusOK, rr.Code)
	var resp countResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal(7, resp.Count)
	s.Equal(s.eventID, resp.EventID)
}

func (s *RegistrationHandlerSuite) TestListEvents() {
	e := models.Event{ID: s.eventID, Title: "Karaoke", MaxCapacity: 2}
	s.service.EXPECT().ListEvents(gomock.Any()).Return([]models.EventSummary{models.Summarize(e, 2)}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/events"))

	s.Equal(http.StatusOK, rr.Code)
	var resp eventsResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Require().Len(resp.Events, 1)
	s.True(resp.Events[0].IsFull)
	s.Equal("Karaoke", resp.Events[0].Title)
}

func (s *RegistrationHandlerSuite) TestListRegistrations() {
	staffID := uuid.New()
	caller := access.NewPrincipal(id.AccountID(staffID), id.RoleStaff)

	s.Run("passes the event filter", func() {
		eventID := s.eventID
		s.service.EXPECT().ListRegistrations(gomock.Any(), caller, &eventID).Return(nil, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/registrations?event_id="+s.eventID.String())
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, staffID.String(), id.RoleStaff))

		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"registrations":[]}`, rr.Body.String())
	})

	s.Run("no filter lists everything", func() {
		s.service.EXPECT().ListRegistrations(gomock.Any(), caller, (*id.EventID)(nil)).Return(nil, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/registrations")
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, staffID.String(), id.RoleStaff))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("bad filter", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registrations?event_id=nope"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *RegistrationHandlerSuite) TestParticipantHistory() {
	pid := id.NewParticipantID()
	s.service.EXPECT().ParticipantHistory(gomock.Any(), access.Guest(), pid).
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "sign in to view registrations"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+pid.String()+"/registrations"))

	s.Equal(http.StatusForbidden, rr.Code)
	s.Equal("unauthorized", s.decodeError(rr.Body.Bytes())["error"])
}
