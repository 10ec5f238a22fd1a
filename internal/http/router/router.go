package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tekmax-dispatch/internal/http/handlers"
	custommw "tekmax-dispatch/internal/http/middleware"
	"tekmax-dispatch/internal/http/middleware/ratelimit"
	"tekmax-dispatch/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
func New(
	h *handlers.Handlers,
	wh *handlers.WebhookHandler,
	dh *handlers.DeliveryHandler,
	logger logx.Logger,
	rl *ratelimit.Middleware,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommw.Observability(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))

	r.Route("/api", func(api chi.Router) {
		webhooks := api.With()
		if rl != nil {
			webhooks = api.With(rl.Handler())
		}
		webhooks.Post("/webhooks/{source}", wh.Receive)

		api.Get("/deliveries/{id}", dh.Get)
		api.Get("/deliveries/{id}/status", dh.GetStatus)
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
