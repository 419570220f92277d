package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"

	"github.com/LuxRender/LuxFire/internal/session"
)

type contextKey string

const claimsKey contextKey = "claims"

// GetClaims returns the authenticated identity stored by the Auth middleware.
func GetClaims(ctx context.Context) session.Claims {
	v, _ := ctx.Value(claimsKey).(session.Claims)
	return v
}

// Auth requires a valid Bearer token and stores its claims on the request
// context for handlers.
func Auth(sessions *session.Manager) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		auth := ctx.Header("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeUnauthorized(ctx, "authentication required")
			return
		}

		claims, err := sessions.ParseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			writeUnauthorized(ctx, "invalid token")
			return
		}

		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		echoCtx.SetRequest(r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		next(ctx)
	}
}

func writeUnauthorized(ctx huma.Context, msg string) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(huma.ErrorModel{
		Title:  http.StatusText(http.StatusUnauthorized),
		Status: http.StatusUnauthorized,
		Detail: msg,
	})
}
