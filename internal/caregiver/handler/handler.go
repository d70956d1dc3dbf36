package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carp/internal/access"
	identity "carp/internal/identity/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/httputil"
	"carp/pkg/platform/middleware/auth"
	"carp/pkg/requestcontext"
)

// Service defines the caregiver operations exposed over HTTP.
type Service interface {
	AddSenior(ctx context.Context, caller access.Principal, nationalID, name string) (*identity.Participant, error)
	RemoveSenior(ctx context.Context, caller access.Principal, participantID id.ParticipantID) error
	ListSeniors(ctx context.Context, caller access.Principal) ([]*identity.Participant, error)
}

// Handler serves the caregiver's senior list.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/caregiver/seniors", func(r chi.Router) {
		r.Use(auth.RequireAuthenticated)
		r.Get("/", h.handleList)
		r.Post("/", h.handleAdd)
		r.Delete("/{participantID}", h.handleRemove)
	})
}

type AddSeniorRequest struct {
	NationalID string `json:"national_id"`
	FullName   string `json:"full_name,omitempty"`
}

type SeniorResponse struct {
	ID         id.ParticipantID `json:"id"`
	NationalID string           `json:"national_id"`
	FullName   string           `json:"full_name"`
}

type seniorsResponse struct {
	Seniors []SeniorResponse `json:"seniors"`
}

func toResponse(p *identity.Participant) SeniorResponse {
	return SeniorResponse{ID: p.ID, NationalID: p.NationalID.Masked(), FullName: p.FullName}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AddSeniorRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	senior, err := h.service.AddSenior(ctx, access.FromContext(ctx), req.NationalID, req.FullName)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(senior))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.service.RemoveSenior(ctx, access.FromContext(ctx), participantID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	seniors, err := h.service.ListSeniors(ctx, access.FromContext(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	resp := seniorsResponse{Seniors: make([]SeniorResponse, 0, len(seniors))}
	for _, p := range seniors {
		resp.Seniors = append(resp.Seniors, toResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "caregiver request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
