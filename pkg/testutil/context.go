package testutil

import (
	"context"
	"net/http"

	id "carp/pkg/domain"
	"carp/pkg/requestcontext"
)

// WithCaller adds an authenticated caller to the request context.
// This simulates what the auth middleware does for a valid bearer token.
// If accountID is not a valid UUID, the request is returned unchanged (guest).
func WithCaller(req *http.Request, accountID string, role id.Role) *http.Request {
	parsed, err := id.ParseAccountID(accountID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), parsed, role))
}

// CallerContext returns a context carrying an authenticated caller, for service tests.
func CallerContext(accountID id.AccountID, role id.Role) context.Context {
	return requestcontext.WithCaller(context.Background(), accountID, role)
}
