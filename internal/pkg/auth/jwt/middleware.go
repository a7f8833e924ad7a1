package jwt

import (
	"context"
	"net/http"
	"strings"

	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/logx"
	"lexcollab/internal/pkg/resp"
)

// contextKey is a private type preventing context key collisions.
type contextKey string

// ContextAuthPayloadKey stores the parsed identity Payload in the request
// context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// RequireIdentityMiddleware validates the Bearer token on every request and
// injects the Payload into the context. Requests without a valid identity
// are rejected with 401; the collaboration API has no anonymous surface.
func RequireIdentityMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
				return
			}

			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
				return
			}

			payload, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Rejected request with invalid or expired JWT", "error", err)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PayloadFromContext returns the identity stored by the middleware, or nil
// when the request was not authenticated.
func PayloadFromContext(ctx context.Context) *Payload {
	payload, _ := ctx.Value(ContextAuthPayloadKey).(*Payload)
	return payload
}
