package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carp/internal/access"
	"carp/internal/identity/models"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/httputil"
	"carp/pkg/platform/middleware/auth"
	"carp/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	Resolve(ctx context.Context, nationalID, claimedName string) (*models.Participant, error)
	ClaimAccount(ctx context.Context, accountID id.AccountID, nationalID, claimedName string) (*models.Participant, error)
	ParticipantForAccount(ctx context.Context, accountID id.AccountID) (*models.Participant, error)
}

// Handler serves participant resolution and account claims.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/participants/resolve", h.handleResolve)
	r.With(auth.RequireAuthenticated).Route("/me/participant", func(r chi.Router) {
		r.Post("/", h.handleClaim)
		r.Get("/", h.handleGetMine)
	})
}

// IdentityRequest carries a national ID and the name given with it.
type IdentityRequest struct {
	NationalID string `json:"national_id"`
	FullName   string `json:"full_name,omitempty"`
}

// ParticipantResponse never carries the full national ID.
type ParticipantResponse struct {
	ID         id.ParticipantID `json:"id"`
	NationalID string           `json:"national_id"`
	FullName   string           `json:"full_name"`
	Claimed    bool             `json:"claimed"`
	CreatedAt  time.Time        `json:"created_at"`
}

func toResponse(p *models.Participant) ParticipantResponse {
	return ParticipantResponse{
		ID:         p.ID,
		NationalID: p.NationalID.Masked(),
		FullName:   p.FullName,
		Claimed:    !p.IsShadow(),
		CreatedAt:  p.CreatedAt,
	}
}

// handleResolve is the staff desk lookup: find or create the participant
// for a national ID before registering them.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !access.FromContext(ctx).IsStaff() {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeUnauthorized, "only staff can resolve participants"))
		return
	}

	var req IdentityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	p, err := h.service.Resolve(ctx, req.NationalID, req.FullName)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := access.FromContext(ctx)

	var req IdentityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	p, err := h.service.ClaimAccount(ctx, caller.AccountID, req.NationalID, req.FullName)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) handleGetMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := access.FromContext(ctx)
	p, err := h.service.ParticipantForAccount(ctx, caller.AccountID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if code := dErrors.CodeOf(err); code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, "identity request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
