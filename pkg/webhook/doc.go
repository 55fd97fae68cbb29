// Package webhook authenticates inbound payment-processor webhook deliveries
// and re-delivers stored events to a receiver.
//
// Deliveries are signed with HMAC-SHA256 over "<timestamp>.<raw body>" and
// carry the result in a header of the form
//
//	Stripe-Signature: t=1700000000,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd
//
// A header may carry several v1 values (secret rotation) and several t/v1
// groups; each v1 is bound to the nearest preceding t. Verification succeeds
// when any v1 matches and its timestamp is within the tolerance window.
//
// # Verifying
//
//	v := webhook.NewVerifier(secret, webhook.WithTolerance(5*time.Minute))
//	evt, err := v.Verify(rawBody, r.Header.Get(webhook.SignatureHeader))
//	if errors.Is(err, webhook.ErrVerification) {
//	    // reject with 400
//	}
//
// The body must be the untouched bytes read from the request. Re-encoding
// JSON before verification changes the signed bytes.
//
// # Re-delivering
//
// Sender posts a stored payload to a running receiver, signing every
// attempt with a fresh timestamp and retrying temporary failures:
//
//	sender := webhook.NewSender()
//	res, err := sender.Send(ctx, "http://localhost:8080/webhook", payload,
//	    webhook.WithSigningSecret(secret),
//	    webhook.WithMaxRetries(3),
//	)
package webhook
