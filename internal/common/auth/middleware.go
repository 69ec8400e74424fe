// internal/common/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"

	"tmis-business-guru/internal/common/errors"
)

type contextKey string

const (
	viewerContextKey contextKey = "viewer"
	tokenContextKey  contextKey = "token"
)

// ErrorWriter renders a failure; satisfied by errors.ErrorHandler.
type ErrorWriter interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware authenticates the bearer token, stores the Viewer and forwards the raw token so
// backend calls made for this request carry the caller's own credentials.
func Middleware(secret string, ew ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				ew.WriteError(w, r, errors.NewUnauthorizedError("missing bearer token"))
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				ew.WriteError(w, r, errors.NewUnauthorizedError(err.Error()))
				return
			}

			ctx := WithViewer(r.Context(), claims.Viewer())
			ctx = WithToken(ctx, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, v)
}

func GetViewer(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey).(Viewer)
	return v, ok
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

func GetToken(ctx context.Context) string {
	tok, _ := ctx.Value(tokenContextKey).(string)
	return tok
}
