package subscription

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/billsync/pkg/webhook"
)

// Error categories. Every error this package returns matches exactly one of
// them with errors.Is, which is how the HTTP boundary picks a status code.
var (
	ErrVerification = webhook.ErrVerification
	ErrLinkage      = errors.New("event cannot be linked to a user")
	ErrValidation   = errors.New("invalid request")
	ErrAuth         = errors.New("authentication failed")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("payment processor error")
)

var (
	ErrMissingUserID         = fmt.Errorf("%w: checkout session has no userId metadata", ErrLinkage)
	ErrMissingSubscriptionID = fmt.Errorf("%w: checkout session has no subscription", ErrLinkage)

	ErrMissingPrice   = fmt.Errorf("%w: price ID is required", ErrValidation)
	ErrUnknownPrice   = fmt.Errorf("%w: unknown price ID", ErrValidation)
	ErrInvalidPayload = fmt.Errorf("%w: event payload cannot be decoded", ErrValidation)

	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrAuth)

	ErrNoSubscription       = fmt.Errorf("%w: no subscription found", ErrNotFound)
	ErrSubscriptionNotFound = fmt.Errorf("%w: subscription record not found", ErrNotFound)

	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")
)

// UpstreamError reports a failed call to the payment processor.
// Message is the processor's own explanation, safe to show to the caller.
type UpstreamError struct {
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Op == "" {
		return "payment processor error: " + e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Temporary reports whether retrying the same call could succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// asUpstream wraps err into an UpstreamError unless it already is one.
func asUpstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Message: err.Error(), Err: err}
}
