// Package sandbox предоставляет маршруты для основного приложения.
package sandbox

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/paylab/subscription-sandbox/internal/http/handlers/auth/federated"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/auth/login"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/auth/logout"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/auth/register"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/billing/portal"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/billing/simulatecancel"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/billing/simulatechange"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/billing/subscribe"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/billing/webhooksim"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/dashboard/panels"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/dashboard/stream"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/health"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/testdata/clear"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/testdata/event"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/testdata/roundtrip"
	syncdata "github.com/paylab/subscription-sandbox/internal/http/handlers/testdata/sync"
	"github.com/paylab/subscription-sandbox/internal/http/handlers/testdata/update"
	"github.com/paylab/subscription-sandbox/internal/http/middlewarectx"
	jwtlib "github.com/paylab/subscription-sandbox/internal/lib/jwt"
	"github.com/paylab/subscription-sandbox/internal/services/billing"
	"github.com/paylab/subscription-sandbox/internal/services/realtime"
	"github.com/paylab/subscription-sandbox/internal/services/session"
	"github.com/paylab/subscription-sandbox/internal/services/shell"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, tokenMaker jwtlib.Maker,
	sessionService *session.Service, realtimeService *realtime.Service,
	billingService *billing.Service, shellService *shell.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, sessionService, shellService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, sessionService, shellService).ServeHTTP)
		r.Post("/auth/federated", federated.New(logger, sessionService, shellService).ServeHTTP)
		r.Get("/health", health.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenMaker, sessionService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/auth/logout", logout.New(logger, sessionService, shellService).ServeHTTP)

			r.Post("/billing/subscribe", subscribe.New(logger, billingService, sessionService, shellService).ServeHTTP)
			r.Get("/billing/portal", portal.New(logger, billingService, shellService).ServeHTTP)
			r.Post("/billing/simulate/change", simulatechange.New(logger, billingService, sessionService, shellService).ServeHTTP)
			r.Post("/billing/simulate/cancel", simulatecancel.New(logger, billingService, sessionService, shellService).ServeHTTP)
			r.Post("/billing/simulate/webhooks", webhooksim.New(logger, billingService, sessionService, shellService).ServeHTTP)

			r.Get("/dashboard/panels", panels.New(logger, realtimeService, shellService).ServeHTTP)
			r.Get("/dashboard/stream", stream.New(logger, realtimeService, shellService).ServeHTTP)

			r.Post("/test/update", update.New(logger, realtimeService, shellService).ServeHTTP)
			r.Post("/test/event", event.New(logger, realtimeService, shellService).ServeHTTP)
			r.Post("/test/clear", clear.New(logger, realtimeService, shellService).ServeHTTP)
			r.Post("/test/roundtrip", roundtrip.New(logger, realtimeService, shellService).ServeHTTP)
			r.Post("/test/sync", syncdata.New(logger, sessionService, shellService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
