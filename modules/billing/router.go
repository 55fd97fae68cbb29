package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/billsync/pkg/clientip"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/requestid"
)

// Mountable is anything that can be mounted under a route.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the billing module. Webhook and Service are
// optional; their routes are only mounted when provided.
type RouterOptions struct {
	Webhook Mountable
	Service SubscriptionService

	// ReadinessChecks run on GET /health/ready.
	ReadinessChecks []httpserver.Check

	// ReadinessTimeout bounds each readiness check. Defaults to httpserver.DefaultCheckTimeout.
	ReadinessTimeout time.Duration

	// ClientIP resolves caller addresses for logging. Defaults to the remote address only.
	ClientIP *clientip.Resolver

	Logger *slog.Logger
}

// Router builds the billing HTTP surface.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Webhook: billing.NewWebhookHandler(verifier, dispatcher),
//	    Service: service,
//	}))
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.ReadinessTimeout
	if timeout <= 0 {
		timeout = httpserver.DefaultCheckTimeout
	}

	ips := opts.ClientIP
	if ips == nil {
		ips = clientip.New()
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, ips.Middleware)

	r.Route("/health", func(health chi.Router) {
		health.Get("/live", httpserver.LivenessHandler())
		health.Get("/ready", httpserver.ReadinessHandler(log, timeout, opts.ReadinessChecks...))
	})

	if opts.Webhook != nil {
		r.Method(http.MethodPost, "/webhook", opts.Webhook.Handle())
	}

	if opts.Service != nil {
		h := NewSessionHandlers(opts.Service, log)
		r.Post("/checkout-session", h.CreateCheckoutSession)
		r.Post("/portal-session", h.CreatePortalSession)
		r.Get("/subscription", h.CurrentSubscription)
		r.Get("/plans", h.Plans)
	}

	return r
}
