package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carp/internal/access"
	"carp/internal/registration/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/httputil"
	"carp/pkg/requestcontext"
)

// Service defines the registration operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, caller access.Principal, req models.RegisterRequest) (*models.Registration, error)
	Unregister(ctx context.Context, caller access.Principal, eventID id.EventID, participantID id.ParticipantID) error
	CurrentRegistrationCount(ctx context.Context, eventID id.EventID) (int, error)
	ListEvents(ctx context.Context) ([]models.EventSummary, error)
	ListRegistrations(ctx context.Context, caller access.Principal, eventID *id.EventID) ([]models.RegistrationView, error)
	ParticipantHistory(ctx context.Context, caller access.Principal, participantID id.ParticipantID) ([]models.Registration, error)
}

// Handler serves event and registration endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.handleListEvents)
	r.Get("/events/{eventID}/count", h.handleCount)
	r.Post("/events/{eventID}/registrations", h.handleRegister)
	r.Delete("/events/{eventID}/registrations/{participantID}", h.handleUnregister)
	r.Get("/registrations", h.handleListRegistrations)
	r.Get("/participants/{participantID}/registrations", h.handleParticipantHistory)
}

// RegisterRequest is the body of POST /events/{eventID}/registrations.
// Send national_id (and optionally full_name) or participant_id, not both.
type RegisterRequest struct {
	NationalID    string `json:"national_id,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	Source        string `json:"source,omitempty"`
}

func (req RegisterRequest) toModel(eventID id.EventID) (models.RegisterRequest, error) {
	out := models.RegisterRequest{
		EventID: eventID,
		Source:  id.RegistrationSource(req.Source),
	}
	if req.NationalID != "" {
		out.Claim = &models.IdentityClaim{NationalID: req.NationalID, FullName: req.FullName}
	}
	if req.ParticipantID != "" {
		pid, err := id.ParseParticipantID(req.ParticipantID)
		if err != nil {
			return out, err
		}
		out.ParticipantID = &pid
	}
	return out, nil
}

type countResponse struct {
	EventID id.EventID `json:"event_id"`
	Count   int        `json:"count"`
}

type eventsResponse struct {
	Events []models.EventSummary `json:"events"`
}

type registrationsResponse struct {
	Registrations []models.RegistrationView `json:"registrations"`
}

type historyResponse struct {
	ParticipantID id.ParticipantID      `json:"participant_id"`
	Registrations []models.Registration `json:"registrations"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	var body RegisterRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	req, err := body.toModel(eventID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	reg, err := h.service.Register(ctx, access.FromContext(ctx), req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if err := h.service.Unregister(ctx, access.FromContext(ctx), eventID, participantID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	n, err := h.service.CurrentRegistrationCount(ctx, eventID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, countResponse{EventID: eventID, Count: n})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.service.ListEvents(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if events == nil {
		events = []models.EventSummary{}
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func (h *Handler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var eventID *id.EventID
	if raw := r.URL.Query().Get("event_id"); raw != "" {
		parsed, err := id.ParseEventID(raw)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		eventID = &parsed
	}

	views, err := h.service.ListRegistrations(ctx, access.FromContext(ctx), eventID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if views == nil {
		views = []models.RegistrationView{}
	}
	httputil.WriteJSON(w, http.StatusOK, registrationsResponse{Registrations: views})
}

func (h *Handler) handleParticipantHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	regs, err := h.service.ParticipantHistory(ctx, access.FromContext(ctx), participantID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	httputil.WriteJSON(w, http.StatusOK, historyResponse{ParticipantID: participantID, Registrations: regs})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "registration request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "registration request rejected",
			"request_id", requestcontext.RequestID(ctx),
			"code", string(code),
		)
	}
	httputil.WriteError(w, err)
}
