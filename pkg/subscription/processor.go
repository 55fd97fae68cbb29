package subscription

import (
	"context"

	"github.com/dmitrymomot/billsync/pkg/identity"
)

// CheckoutMode is the kind of checkout session to create.
type CheckoutMode string

const CheckoutModeSubscription CheckoutMode = "subscription"

// CheckoutRequest describes a hosted checkout session.
type CheckoutRequest struct {
	Mode          CheckoutMode
	PriceID       string
	Quantity      int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	// Metadata is attached to the session and to the subscription it creates.
	Metadata map[string]string
}

// SessionLink is a hosted page the user is redirected to.
type SessionLink struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url"`
}

// Processor creates hosted sessions at the payment processor.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*SessionLink, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*SessionLink, error)
}

// IdentityProvider resolves a caller's bearer token.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (identity.Identity, error)
}
