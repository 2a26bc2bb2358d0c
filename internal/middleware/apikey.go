// internal/middleware/apikey.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nomadstar/clpt/internal/domain"
	"github.com/nomadstar/clpt/internal/repository"

	"go.uber.org/zap"
)

type contextKey string

const merchantContextKey contextKey = "merchant"

// APIKeyAuth authenticates requests by the X-API-Key header against the
// merchant directory and attaches the resolved merchant to the request
// context.
func APIKeyAuth(merchants repository.MerchantDirectory, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing X-API-Key header")
				return
			}

			merchant, err := merchants.GetByAPIKey(r.Context(), apiKey)
			if errors.Is(err, domain.ErrMerchantNotFound) {
				writeAuthError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			if err != nil {
				logger.Error("merchant lookup failed during auth", zap.Error(err))
				writeAuthError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), merchantContextKey, merchant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MerchantFromContext returns the authenticated merchant, or nil when
// the request did not pass through APIKeyAuth.
func MerchantFromContext(ctx context.Context) *domain.Merchant {
	merchant, _ := ctx.Value(merchantContextKey).(*domain.Merchant)
	return merchant
}

func writeAuthError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
