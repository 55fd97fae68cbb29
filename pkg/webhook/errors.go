package webhook

import (
	"errors"
	"fmt"
)

// ErrVerification is the category every inbound verification failure
// belongs to. Callers classify with errors.Is(err, ErrVerification) and
// answer the delivery with a client error so the processor retries later.
var ErrVerification = errors.New("webhook verification failed")

// Verification errors. Each one wraps ErrVerification.
var (
	ErrMissingSecret     = fmt.Errorf("%w: signing secret is not configured", ErrVerification)
	ErrMissingSignature  = fmt.Errorf("%w: missing signature header", ErrVerification)
	ErrMalformedHeader   = fmt.Errorf("%w: malformed signature header", ErrVerification)
	ErrSignatureMismatch = fmt.Errorf("%w: no signature matches the payload", ErrVerification)
	ErrStaleSignature    = fmt.Errorf("%w: signature timestamp outside tolerance", ErrVerification)
	ErrMalformedPayload  = fmt.Errorf("%w: payload is not a valid event envelope", ErrVerification)
)

// Delivery errors returned by Sender.
var (
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrPermanentFailure = errors.New("permanent webhook failure")
	ErrTemporaryFailure = errors.New("temporary webhook failure")
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrEmptyPayload     = errors.New("webhook payload cannot be empty")
	ErrTimeout          = errors.New("webhook request timeout")
)

// IsVerificationError reports whether err came from signature or envelope checks.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrVerification)
}
