package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billsync/pkg/archive"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/pkg/notify"
	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

// EventVerifier authenticates a raw delivery.
type EventVerifier interface {
	Verify(rawBody []byte, signatureHeader string) (*webhook.VerifiedEvent, error)
}

// EventDispatcher applies a verified event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt *webhook.VerifiedEvent) (subscription.DispatchResult, error)
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// WebhookHandler receives processor deliveries: it verifies the signature
// over the untouched body, archives the delivery and dispatches it.
type WebhookHandler struct {
	verifier   EventVerifier
	dispatcher EventDispatcher
	archiver   archive.Archiver
	notifier   notify.Notifier
	logger     *slog.Logger
}

// WebhookOption configures a WebhookHandler.
type WebhookOption func(*WebhookHandler)

// WithArchiver stores every verified delivery before it is dispatched.
func WithArchiver(a archive.Archiver) WebhookOption {
	return func(h *WebhookHandler) {
		if a != nil {
			h.archiver = a
		}
	}
}

// WithNotifier alerts operators about deliveries that redelivery cannot fix.
func WithNotifier(n notify.Notifier) WebhookOption {
	return func(h *WebhookHandler) {
		if n != nil {
			h.notifier = n
		}
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewWebhookHandler panics if verifier or dispatcher is nil.
func NewWebhookHandler(verifier EventVerifier, dispatcher EventDispatcher, opts ...WebhookOption) *WebhookHandler {
	if verifier == nil {
		panic("billing: EventVerifier is required")
	}
	if dispatcher == nil {
		panic("billing: EventDispatcher is required")
	}
	h := &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		archiver:   archive.Nop{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("billing.webhook"))
	if h.notifier == nil {
		h.notifier = notify.NewLog(h.logger)
	}
	return h
}

// Handle implements Mountable.
func (h *WebhookHandler) Handle() http.Handler {
	return http.HandlerFunc(h.ServeHTTP)
}

// ServeHTTP answers 200 for every delivery that was applied or deliberately
// ignored and 400 for anything the processor should redeliver.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := readBody(w, r)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	evt, err := h.verifier.Verify(raw, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		h.reject(w, r, err)
		return
	}

	if key, err := h.archiver.Archive(ctx, evt); err != nil {
		h.logger.WarnContext(ctx, "failed to archive event",
			logger.EventID(evt.ID), logger.EventType(evt.Type), logger.Error(err))
	} else if key != "" {
		h.logger.DebugContext(ctx, "event archived",
			logger.EventID(evt.ID), slog.String("key", key))
	}

	res, err := h.dispatcher.Dispatch(ctx, evt)
	if err != nil {
		if errors.Is(err, subscription.ErrLinkage) {
			h.alert(ctx, evt, err)
		}
		h.logger.ErrorContext(ctx, "failed to process event",
			logger.EventID(evt.ID),
			logger.EventType(evt.Type),
			logger.Error(err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.InfoContext(ctx, "event processed",
		logger.EventID(evt.ID),
		logger.EventType(evt.Type),
		logger.SubscriptionID(res.SubscriptionID),
		logger.Outcome(string(res.Outcome)),
	)
	writeJSON(w, http.StatusOK, WebhookResponse{Received: true})
}

func (h *WebhookHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "webhook rejected", logger.Error(err))
	writeError(w, http.StatusBadRequest, err.Error())
}

func (h *WebhookHandler) alert(ctx context.Context, evt *webhook.VerifiedEvent, cause error) {
	a := notify.Alert{
		Subject: "subscription event cannot be linked to a user",
		EventID: evt.ID,
		Type:    evt.Type,
		Err:     cause,
	}
	if id := evt.ObjectID(); id != "" {
		a.Fields = map[string]string{"object_id": id}
	}
	if err := h.notifier.Notify(ctx, a); err != nil {
		h.logger.ErrorContext(ctx, "failed to notify operators",
			logger.EventID(evt.ID), logger.Error(err))
	}
}
