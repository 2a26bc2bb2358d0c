// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/nomadstar/clpt/internal/handler"
	authmw "github.com/nomadstar/clpt/internal/middleware"
	"github.com/nomadstar/clpt/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func SetupRoutes(
	intentHandler *handler.IntentHandler,
	webhookHandler *handler.WebhookHandler,
	merchantHandler *handler.MerchantHandler,
	merchants repository.MerchantDirectory,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Signature", "X-Timestamp"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Merchant onboarding
		r.Route("/merchants", func(r chi.Router) {
			r.Post("/", merchantHandler.HandleCreateMerchant)
			r.Get("/{id}", merchantHandler.HandleGetMerchant)
		})

		// Payment intents (merchant API key required)
		r.Route("/payment-intents", func(r chi.Router) {
			r.Use(authmw.APIKeyAuth(merchants, logger))
			r.Post("/", intentHandler.HandleCreateIntent)
			r.Get("/{id}", intentHandler.HandleGetIntent)
		})

		// Blockchain transfer notifications
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/blockchain", webhookHandler.HandleBlockchainWebhook)
		})
	})

	return r
}

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		})
	}
}
