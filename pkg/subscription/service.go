package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/billsync/pkg/identity"
	"github.com/dmitrymomot/billsync/pkg/logger"
)

// Service holds the synchronous, caller-facing operations: starting a
// checkout, opening the billing portal, and reading the current subscription.
type Service struct {
	store     Store
	identity  IdentityProvider
	processor Processor
	catalog   *Catalog
	clientURL string
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCatalog restricts checkout to prices listed in c.
func WithCatalog(c *Catalog) ServiceOption {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires the service. Panics if a required dependency is missing.
// clientURL is the frontend origin redirects are built from.
func NewService(store Store, idp IdentityProvider, processor Processor, clientURL string, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if idp == nil {
		panic("subscription: IdentityProvider is required")
	}
	if processor == nil {
		panic("subscription: Processor is required")
	}
	s := &Service{
		store:     store,
		identity:  idp,
		processor: processor,
		clientURL: strings.TrimRight(clientURL, "/"),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscription.service"))
	return s
}

// Authenticate resolves token to the caller. Every failure satisfies
// errors.Is(err, ErrAuth).
func (s *Service) Authenticate(ctx context.Context, token string) (identity.Identity, error) {
	id, err := s.identity.Authenticate(ctx, token)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if id.UserID == "" {
		return identity.Identity{}, ErrUnauthorized
	}
	return id, nil
}

// CreateCheckoutSession starts a subscription checkout for the caller.
// The user id travels in the session metadata so the completion event can
// be linked back. Nothing is written locally.
func (s *Service) CreateCheckoutSession(ctx context.Context, authToken, priceID string) (*SessionLink, error) {
	caller, err := s.Authenticate(ctx, authToken)
	if err != nil {
		return nil, err
	}

	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return nil, ErrMissingPrice
	}
	if s.catalog != nil {
		if _, ok := s.catalog.ByPriceID(priceID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPrice, priceID)
		}
	}

	link, err := s.processor.CreateCheckoutSession(ctx, CheckoutRequest{
		Mode:          CheckoutModeSubscription,
		PriceID:       priceID,
		Quantity:      1,
		CustomerEmail: caller.Email,
		SuccessURL:    s.clientURL + "/subscriptions?success=true",
		CancelURL:     s.clientURL + "/subscriptions?canceled=true",
		Metadata:      map[string]string{MetadataUserID: caller.UserID},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create checkout session",
			logger.UserID(caller.UserID), logger.Error(err))
		return nil, asUpstream("create checkout session", err)
	}
	if link == nil || link.URL == "" {
		return nil, &UpstreamError{Op: "create checkout session", Message: "no checkout URL returned"}
	}

	s.logger.InfoContext(ctx, "checkout session created",
		logger.UserID(caller.UserID),
		slog.String("price_id", priceID),
		slog.String("session_id", link.ID),
	)
	return link, nil
}

// CreatePortalSession opens the self-service billing portal for the
// caller's processor customer.
func (s *Service) CreatePortalSession(ctx context.Context, authToken string) (*SessionLink, error) {
	caller, err := s.Authenticate(ctx, authToken)
	if err != nil {
		return nil, err
	}

	records, err := s.store.FindByUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	customerID := portalCustomer(records)
	if customerID == "" {
		return nil, ErrNoSubscription
	}

	link, err := s.processor.CreatePortalSession(ctx, customerID, s.clientURL+"/subscriptions")
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create portal session",
			logger.UserID(caller.UserID), logger.CustomerID(customerID), logger.Error(err))
		return nil, asUpstream("create portal session", err)
	}
	if link == nil || link.URL == "" {
		return nil, &UpstreamError{Op: "create portal session", Message: "no portal URL returned"}
	}

	s.logger.InfoContext(ctx, "portal session created",
		logger.UserID(caller.UserID), logger.CustomerID(customerID))
	return link, nil
}

// CurrentSubscription returns the caller's current record, or ErrNoSubscription.
func (s *Service) CurrentSubscription(ctx context.Context, authToken string) (*Record, error) {
	caller, err := s.Authenticate(ctx, authToken)
	if err != nil {
		return nil, err
	}
	records, err := s.store.FindByUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	current := Current(records)
	if current == nil {
		return nil, ErrNoSubscription
	}
	return current, nil
}

// Plans lists the configured plans. Empty when no catalog is set.
func (s *Service) Plans() []Plan {
	if s.catalog == nil {
		return []Plan{}
	}
	return s.catalog.Plans()
}
