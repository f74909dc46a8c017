// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/levisbarua/pesaflow/internal/handler"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Payment  *handler.PaymentHandler
	Callback *handler.CallbackHandler
	Wallet   *handler.WalletHandler
	Health   *handler.HealthHandler
}

func SetupRoutes(h Handlers, logger *zap.Logger) http.Handler {
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
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Get("/health", h.Health.Health)
			r.Post("/deposit", h.Payment.Deposit)
			r.Post("/withdraw", h.Payment.Withdraw)
		})

		// Provider callbacks
		r.Post("/callbacks/mpesa/stk", h.Callback.HandleMpesaSTKCallback)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.Wallet.CreateUser)
			r.Route("/{userId}", func(r chi.Router) {
				r.Get("/", h.Wallet.GetUser)
				r.Get("/transactions", h.Wallet.ListTransactions)
				r.Get("/notifications", h.Wallet.ListNotifications)
				r.Patch("/notifications/{notificationId}/read", h.Wallet.MarkNotificationRead)
			})
		})

		r.Get("/transactions/{id}", h.Wallet.GetTransaction)
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
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()))
		})
	}
}
