// Package subscription keeps a local projection of payment-processor
// subscriptions in sync with the processor's webhook events, and starts the
// hosted checkout and billing-portal flows that produce those events.
//
// # Projection
//
// A Dispatcher routes verified events (see package webhook) to a Projector
// through a fixed table:
//
//	checkout.session.completed    -> OnCheckoutCompleted
//	customer.subscription.created -> OnSubscriptionChange
//	customer.subscription.updated -> OnSubscriptionChange
//	customer.subscription.deleted -> OnSubscriptionDeleted
//
// Other event types are acknowledged with OutcomeIgnored. Every handler is
// idempotent so processor redelivery can be used as the retry mechanism:
// checkout inserts only if absent, changes are last-write-wins, and deletion
// is a soft cancel that keeps the first cancellation stamps.
//
// Subscription events may arrive before the checkout event. In that case a
// minimal record without a user is created, and the checkout event later
// links it to the user recorded in the "userId" metadata.
//
// # Storage
//
// Store is the persistence contract. MemoryStore serves tests and local runs;
// pgstore and redisstore provide durable implementations.
//
// # Sessions
//
// Service authenticates the caller with an IdentityProvider and asks a
// Processor for hosted session URLs. StripeProcessor talks to Stripe, and
// WithCircuitBreaker stops hammering the API while it is failing.
//
//	svc := subscription.NewService(store, idp,
//		subscription.WithCircuitBreaker(subscription.NewStripeProcessor(cfg), cfg.Breaker, log),
//		"https://app.example.com",
//		subscription.WithCatalog(catalog),
//	)
//	link, err := svc.CreateCheckoutSession(ctx, token, "price_pro_monthly")
//
// # Errors
//
// Every error matches one category with errors.Is: ErrVerification,
// ErrLinkage, ErrValidation, ErrAuth, ErrNotFound or ErrUpstream.
package subscription
