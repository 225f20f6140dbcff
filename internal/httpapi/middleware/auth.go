package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

// TokenHeader carries the session token id.
const TokenHeader = "token"

type ctxKey struct{}

// ReadToken returns the token id from the token header or a bearer
// Authorization header.
func ReadToken(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return strings.TrimSpace(t)
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Phone returns the phone number of the authenticated caller.
func Phone(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(ctxKey{}).(string)
	return p, ok && p != ""
}

// WithPhone marks ctx as authenticated for phone.
func WithPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, ctxKey{}, phone)
}

// RequireToken only lets through requests carrying an unexpired token.
// The token's phone is stored in the request context.
func RequireToken(store repo.RecordStore, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ReadToken(r)
			if !repo.ValidKey(id) {
				deny(w, http.StatusUnauthorized, "missing token")
				return
			}
			tok, err := repo.Get[domain.Token](r.Context(), store, repo.Tokens, id)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			case err != nil:
				deny(w, http.StatusInternalServerError, "token lookup failed")
				return
			case tok.Expires <= now().UnixMilli():
				deny(w, http.StatusUnauthorized, "token expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPhone(r.Context(), tok.Phone)))
		})
	}
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
