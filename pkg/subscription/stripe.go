package subscription

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeConfig holds processor API settings.
type StripeConfig struct {
	SecretKey string `env:"STRIPE_SECRET_KEY,required"`
	Breaker   BreakerConfig
}

type stripeCheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripePortalSessions interface {
	New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// StripeProcessor implements Processor on the Stripe API.
type StripeProcessor struct {
	checkout stripeCheckoutSessions
	portal   stripePortalSessions
}

// NewStripeProcessor creates a processor with its own API client.
// Panics if the secret key is empty.
func NewStripeProcessor(cfg StripeConfig) *StripeProcessor {
	if cfg.SecretKey == "" {
		panic("subscription: Stripe secret key is required")
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return NewStripeProcessorWithClients(api.CheckoutSessions, api.BillingPortalSessions)
}

// NewStripeProcessorWithClients creates a processor over existing session clients.
func NewStripeProcessorWithClients(checkout stripeCheckoutSessions, portal stripePortalSessions) *StripeProcessor {
	return &StripeProcessor{checkout: checkout, portal: portal}
}

// CreateCheckoutSession implements Processor.
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*SessionLink, error) {
	mode := req.Mode
	if mode == "" {
		mode = CheckoutModeSubscription
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(quantity),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if userID := req.Metadata[MetadataUserID]; userID != "" {
		params.ClientReferenceID = stripe.String(userID)
	}
	if mode == CheckoutModeSubscription && len(req.Metadata) > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{}
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
		if params.SubscriptionData != nil {
			params.SubscriptionData.AddMetadata(k, v)
		}
	}

	sess, err := p.checkout.New(params)
	if err != nil {
		return nil, stripeError("create checkout session", err)
	}
	return &SessionLink{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession implements Processor.
func (p *StripeProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*SessionLink, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.portal.New(params)
	if err != nil {
		return nil, stripeError("create portal session", err)
	}
	return &SessionLink{ID: sess.ID, URL: sess.URL}, nil
}

// stripeError surfaces the API's own message so the caller sees why it failed.
func stripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = string(se.Type)
		}
		return &UpstreamError{Op: op, Message: msg, StatusCode: se.HTTPStatusCode, Err: err}
	}
	return &UpstreamError{Op: op, Message: err.Error(), Err: err}
}
