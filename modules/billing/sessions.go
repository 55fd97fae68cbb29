package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billsync/pkg/identity"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/subscription"
)

// SubscriptionService is the caller-facing part of subscription.Service.
type SubscriptionService interface {
	Authenticate(ctx context.Context, authToken string) (identity.Identity, error)
	CreateCheckoutSession(ctx context.Context, authToken, priceID string) (*subscription.SessionLink, error)
	CreatePortalSession(ctx context.Context, authToken string) (*subscription.SessionLink, error)
	CurrentSubscription(ctx context.Context, authToken string) (*subscription.Record, error)
	Plans() []subscription.Plan
}

// CheckoutRequest is the body of POST /checkout-session.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// SessionResponse carries the hosted page the caller is redirected to.
type SessionResponse struct {
	URL string `json:"url"`
}

// PlansResponse is the body of GET /plans.
type PlansResponse struct {
	Plans []subscription.Plan `json:"plans"`
}

// SessionHandlers serves the synchronous endpoints.
type SessionHandlers struct {
	service SubscriptionService
	logger  *slog.Logger
}

// NewSessionHandlers panics if service is nil. A nil logger means slog.Default.
func NewSessionHandlers(service SubscriptionService, log *slog.Logger) *SessionHandlers {
	if service == nil {
		panic("billing: SubscriptionService is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionHandlers{
		service: service,
		logger:  log.With(logger.Component("billing.sessions")),
	}
}

// CreateCheckoutSession handles POST /checkout-session.
func (h *SessionHandlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	token, err := bearer(r)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	if _, err := h.service.Authenticate(r.Context(), token); err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	var req CheckoutRequest
	if err := bindJSON(w, r, &req); err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	link, err := h.service.CreateCheckoutSession(r.Context(), token, req.PriceID)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{URL: link.URL})
}

// CreatePortalSession handles POST /portal-session. A caller without a
// subscription gets 400.
func (h *SessionHandlers) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	token, err := bearer(r)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	link, err := h.service.CreatePortalSession(r.Context(), token)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{URL: link.URL})
}

// CurrentSubscription handles GET /subscription.
func (h *SessionHandlers) CurrentSubscription(w http.ResponseWriter, r *http.Request) {
	token, err := bearer(r)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusNotFound)
		return
	}

	rec, err := h.service.CurrentSubscription(r.Context(), token)
	if err != nil {
		fail(w, r, h.logger, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Plans handles GET /plans.
func (h *SessionHandlers) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PlansResponse{Plans: h.service.Plans()})
}

// bearer extracts the token, reporting a missing or malformed header as an
// authentication failure.
func bearer(r *http.Request) (string, error) {
	token, err := identity.BearerToken(r)
	if err != nil {
		return "", errors.Join(subscription.ErrUnauthorized, err)
	}
	return token, nil
}
