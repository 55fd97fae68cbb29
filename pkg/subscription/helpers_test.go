package subscription_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProjector(store subscription.Store) *subscription.Projector {
	return subscription.NewProjector(store,
		subscription.WithProjectorClock(func() time.Time { return fixedNow }),
		subscription.WithProjectorLogger(discardLogger()),
	)
}

func verifiedEvent(t *testing.T, id string, typ subscription.EventType, object any) *webhook.VerifiedEvent {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &webhook.VerifiedEvent{
		Event: webhook.Event{
			ID:   id,
			Type: string(typ),
			Data: webhook.EventData{Object: raw},
		},
	}
}

func checkoutObject(sessionID, subID, customerID, userID string) map[string]any {
	obj := map[string]any{
		"id":       sessionID,
		"object":   "checkout.session",
		"mode":     "subscription",
		"customer": customerID,
	}
	if subID != "" {
		obj["subscription"] = subID
	}
	if userID != "" {
		obj["metadata"] = map[string]string{subscription.MetadataUserID: userID}
	}
	return obj
}

func subscriptionObject(subID, customerID string, status subscription.Status, priceID string) map[string]any {
	return map[string]any{
		"id":                   subID,
		"object":               "subscription",
		"customer":             customerID,
		"status":               string(status),
		"cancel_at_period_end": false,
		"current_period_start": fixedNow.Unix(),
		"current_period_end":   fixedNow.AddDate(0, 1, 0).Unix(),
		"items": map[string]any{
			"data": []map[string]any{{
				"id":       "si_1",
				"price":    map[string]any{"id": priceID},
				"quantity": 1,
			}},
		},
	}
}

func decodeSubscription(t *testing.T, obj map[string]any) subscription.SubscriptionPayload {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	var p subscription.SubscriptionPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func decodeCheckout(t *testing.T, obj map[string]any) subscription.CheckoutSession {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	var s subscription.CheckoutSession
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}
