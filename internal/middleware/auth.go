package middleware

import (
	"net/http"

	"payflow-be/internal/auth"
	"payflow-be/internal/logger"
	"payflow-be/internal/utils"

	"go.uber.org/zap"
)

// RequireAuth rejects requests without a valid access token and stores the
// token claims in the request context.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.ParseToken(auth.ExtractAccessToken(r), secret)
			if err != nil {
				logger.FromCtx(r.Context()).Warn("unauthorized request",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				utils.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
