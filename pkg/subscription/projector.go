package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

// errUnchanged aborts a store update that would not modify the record.
var errUnchanged = errors.New("record unchanged")

// Projector applies processor events to subscription records.
// Every handler is idempotent: replaying an event leaves the record as the
// first delivery did, and concurrent deliveries converge through the store's
// per-key serialization.
type Projector struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithProjectorClock sets the time source for createdAt and cancellation stamps.
func WithProjectorClock(now func() time.Time) ProjectorOption {
	return func(p *Projector) {
		if now != nil {
			p.now = now
		}
	}
}

// WithProjectorLogger sets the logger.
func WithProjectorLogger(l *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProjector creates a projector over store. Panics if store is nil.
func NewProjector(store Store, opts ...ProjectorOption) *Projector {
	if store == nil {
		panic("subscription: Store is required")
	}
	p := &Projector{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logger.Component("subscription.projector"))
	return p
}

// OnCheckoutCompleted creates the first record of a subscription bought
// through checkout. A duplicate delivery is skipped. When the subscription
// events outran the checkout event, the minimal record they created gets
// the user and customer ids filled in; nothing else is touched.
func (p *Projector) OnCheckoutCompleted(ctx context.Context, s CheckoutSession) (DispatchResult, error) {
	res := DispatchResult{Type: EventCheckoutSessionCompleted, SubscriptionID: s.Subscription.String()}

	userID := s.UserID()
	if userID == "" {
		p.logger.ErrorContext(ctx, "checkout session without user id",
			slog.String("session_id", s.ID),
			logger.SubscriptionID(s.Subscription.String()),
		)
		return res, fmt.Errorf("%w: session %s", ErrMissingUserID, s.ID)
	}
	if s.Subscription == "" {
		p.logger.ErrorContext(ctx, "checkout session without subscription",
			slog.String("session_id", s.ID),
			slog.String("mode", s.Mode),
			logger.UserID(userID),
		)
		return res, fmt.Errorf("%w: session %s", ErrMissingSubscriptionID, s.ID)
	}

	now := p.now()
	rec := &Record{
		ID:         s.Subscription.String(),
		UserID:     userID,
		CustomerID: s.Customer.String(),
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inserted, err := p.store.Insert(ctx, rec)
	if err != nil {
		return res, fmt.Errorf("failed to insert subscription %s: %w", rec.ID, err)
	}
	if inserted {
		p.logger.InfoContext(ctx, "subscription created from checkout",
			logger.SubscriptionID(rec.ID),
			logger.UserID(userID),
			logger.CustomerID(rec.CustomerID),
		)
		res.Outcome = OutcomeApplied
		return res, nil
	}

	_, err = p.store.Update(ctx, rec.ID, func(existing *Record) error {
		changed := false
		if existing.UserID == "" {
			existing.UserID = userID
			changed = true
		} else if existing.UserID != userID {
			p.logger.WarnContext(ctx, "checkout user differs from recorded user",
				logger.SubscriptionID(rec.ID),
				logger.UserID(existing.UserID),
				slog.String("checkout_user_id", userID),
			)
		}
		if existing.CustomerID == "" && rec.CustomerID != "" {
			existing.CustomerID = rec.CustomerID
			changed = true
		}
		if !changed {
			return errUnchanged
		}
		existing.UpdatedAt = now
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		res.Outcome = OutcomeSkipped
		return res, nil
	case err != nil:
		return res, fmt.Errorf("failed to backfill subscription %s: %w", rec.ID, err)
	}

	p.logger.InfoContext(ctx, "subscription linked to user",
		logger.SubscriptionID(rec.ID),
		logger.UserID(userID),
	)
	res.Outcome = OutcomeApplied
	return res, nil
}

// OnSubscriptionChange mirrors created and updated events onto the record.
// The latest delivery wins; if the record does not exist yet it is created
// from whatever the payload carries.
func (p *Projector) OnSubscriptionChange(ctx context.Context, sub SubscriptionPayload) (DispatchResult, error) {
	res := DispatchResult{Type: EventSubscriptionUpdated, SubscriptionID: sub.ID}
	if sub.ID == "" {
		return res, fmt.Errorf("%w: subscription id is empty", ErrInvalidPayload)
	}

	now := p.now()
	created := false
	rec, err := p.store.Upsert(ctx, sub.ID,
		func() *Record {
			created = true
			return &Record{
				ID:         sub.ID,
				UserID:     sub.UserID(),
				CustomerID: sub.Customer.String(),
				CreatedAt:  now,
			}
		},
		func(r *Record) error {
			applySubscription(r, sub)
			if !sub.Status.Valid() {
				p.logger.WarnContext(ctx, "unknown subscription status, keeping previous",
					logger.SubscriptionID(sub.ID),
					slog.String("raw_status", string(sub.Status)),
					slog.String("status", string(r.Status)),
				)
			}
			if r.UserID == "" {
				r.UserID = sub.UserID()
			}
			if r.CustomerID == "" {
				r.CustomerID = sub.Customer.String()
			}
			r.UpdatedAt = now
			return nil
		},
	)
	if err != nil {
		return res, fmt.Errorf("failed to apply subscription %s: %w", sub.ID, err)
	}

	attrs := []any{
		logger.SubscriptionID(rec.ID),
		logger.UserID(rec.UserID),
		slog.String("status", string(rec.Status)),
	}
	switch {
	case created && rec.UserID == "":
		p.logger.WarnContext(ctx, "subscription created before checkout without user id", attrs...)
	case created:
		p.logger.InfoContext(ctx, "subscription created before checkout", attrs...)
	default:
		p.logger.InfoContext(ctx, "subscription updated", attrs...)
	}

	res.Outcome = OutcomeApplied
	return res, nil
}

// OnSubscriptionDeleted soft-terminates the record. Unknown subscriptions
// are skipped. Cancellation stamps written by an earlier delivery are kept.
func (p *Projector) OnSubscriptionDeleted(ctx context.Context, sub SubscriptionPayload) (DispatchResult, error) {
	res := DispatchResult{Type: EventSubscriptionDeleted, SubscriptionID: sub.ID}
	if sub.ID == "" {
		return res, fmt.Errorf("%w: subscription id is empty", ErrInvalidPayload)
	}

	now := p.now()
	_, err := p.store.Update(ctx, sub.ID, func(r *Record) error {
		if r.Status == StatusCanceled && !r.CancelAtPeriodEnd && r.CanceledAt != nil && r.EndedAt != nil {
			return errUnchanged
		}
		r.Status = StatusCanceled
		r.CancelAtPeriodEnd = false
		if r.CanceledAt == nil {
			r.CanceledAt = &now
		}
		if r.EndedAt == nil {
			r.EndedAt = &now
		}
		r.UpdatedAt = now
		return nil
	})
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		p.logger.InfoContext(ctx, "nothing to cancel", logger.SubscriptionID(sub.ID))
		res.Outcome = OutcomeSkipped
		return res, nil
	case errors.Is(err, errUnchanged):
		res.Outcome = OutcomeSkipped
		return res, nil
	case err != nil:
		return res, fmt.Errorf("failed to cancel subscription %s: %w", sub.ID, err)
	}

	p.logger.InfoContext(ctx, "subscription canceled", logger.SubscriptionID(sub.ID))
	res.Outcome = OutcomeApplied
	return res, nil
}

// applySubscription overwrites the plan and lifecycle fields from the payload.
// A status outside the known set leaves the stored one in place; a new record
// gets StatusIncomplete, which never grants access.
func applySubscription(r *Record, sub SubscriptionPayload) {
	item := sub.firstItem()
	switch {
	case sub.Status.Valid():
		r.Status = sub.Status
	case r.Status == "":
		r.Status = StatusIncomplete
	}
	r.PriceID = item.Price.ID
	r.Quantity = item.Quantity
	r.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	r.CurrentPeriodStart, r.CurrentPeriodEnd = sub.period()
	r.TrialStart = unixTimePtr(sub.TrialStart)
	r.TrialEnd = unixTimePtr(sub.TrialEnd)
}
