package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "carp/pkg/domain"
	"carp/pkg/requestcontext"
)

// TokenValidator validates bearer tokens issued by the access guard.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims are the claims the core needs from a validated token.
type TokenClaims struct {
	AccountID string
	Role      string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// IdentifyCaller resolves the caller from an optional bearer token.
// Requests without an Authorization header continue as guests; a header that
// is present but invalid is rejected so a broken token never degrades to guest.
func IdentifyCaller(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthenticated access - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Invalid or expired token")
				return
			}

			accountID, err := id.ParseAccountID(claims.AccountID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Invalid token subject")
				return
			}
			role, err := id.ParseRole(claims.Role)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Invalid token role")
				return
			}

			ctx = requestcontext.WithCaller(ctx, accountID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects guests.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.Role(r.Context()) == id.RoleGuest {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
