package auth

import (
	"net/http"
	"strings"

	"github.com/pavelanni/biopractice/internal/model"
)

// ErrorWriter reports a failed authentication to the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires a valid bearer access token and stores its user ID in the request context.
func (t *Tokens) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				onError(w, r, model.Unauthorized(model.ErrInvalidToken))
				return
			}
			claims, err := t.Parse(r.Context(), strings.TrimPrefix(h, "Bearer "), TokenAccess)
			if err != nil {
				onError(w, r, err)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(model.ContextWithUserID(r.Context(), userID)))
		})
	}
}
