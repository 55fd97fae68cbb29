package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

// EventType is a processor event type string.
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
)

// Outcome describes what a dispatched event did to the store.
type Outcome string

const (
	// OutcomeApplied means the store was written.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the event was valid but already reflected:
	// a duplicate insert or nothing to cancel.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the event type is not handled.
	OutcomeIgnored Outcome = "ignored"
)

// DispatchResult reports the effect of one event.
type DispatchResult struct {
	Outcome        Outcome   `json:"outcome"`
	Type           EventType `json:"type"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
}

type handlerFunc func(ctx context.Context, object json.RawMessage) (DispatchResult, error)

// Dispatcher routes verified events to projector handlers through a fixed table.
type Dispatcher struct {
	handlers map[EventType]handlerFunc
	logger   *slog.Logger
}

// NewDispatcher builds the routing table over p. Panics if p is nil.
func NewDispatcher(p *Projector, log *slog.Logger) *Dispatcher {
	if p == nil {
		panic("subscription: Projector is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		handlers: map[EventType]handlerFunc{
			EventCheckoutSessionCompleted: route(p.OnCheckoutCompleted),
			EventSubscriptionCreated:      route(p.OnSubscriptionChange),
			EventSubscriptionUpdated:      route(p.OnSubscriptionChange),
			EventSubscriptionDeleted:      route(p.OnSubscriptionDeleted),
		},
		logger: log.With(logger.Component("subscription.dispatcher")),
	}
}

// route decodes data.object into the handler's payload type.
func route[T any](fn func(context.Context, T) (DispatchResult, error)) handlerFunc {
	return func(ctx context.Context, object json.RawMessage) (DispatchResult, error) {
		var payload T
		if len(object) == 0 {
			return DispatchResult{}, fmt.Errorf("%w: data.object is empty", ErrInvalidPayload)
		}
		if err := json.Unmarshal(object, &payload); err != nil {
			return DispatchResult{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return fn(ctx, payload)
	}
}

// Dispatch runs the handler registered for the event type. Unknown types
// are acknowledged with OutcomeIgnored. Handler errors are returned as is;
// the processor's redelivery is the retry mechanism.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *webhook.VerifiedEvent) (DispatchResult, error) {
	t := EventType(evt.Type)
	h, ok := d.handlers[t]
	if !ok {
		d.logger.InfoContext(ctx, "ignoring unhandled event type",
			logger.EventType(evt.Type),
			logger.EventID(evt.ID),
		)
		return DispatchResult{Outcome: OutcomeIgnored, Type: t}, nil
	}

	res, err := h(ctx, evt.Data.Object)
	res.Type = t
	if err != nil {
		return res, err
	}

	d.logger.DebugContext(ctx, "event dispatched",
		logger.EventType(evt.Type),
		logger.EventID(evt.ID),
		logger.SubscriptionID(res.SubscriptionID),
		logger.Outcome(string(res.Outcome)),
	)
	return res, nil
}

// EventTypes lists the handled event types in sorted order.
func (d *Dispatcher) EventTypes() []EventType {
	types := make([]EventType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
