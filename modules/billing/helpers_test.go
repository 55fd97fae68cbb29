package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/modules/billing"
	"github.com/dmitrymomot/billsync/pkg/identity"
	"github.com/dmitrymomot/billsync/pkg/notify"
	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/webhook"
)

const (
	webhookSecret = "whsec_test_secret"
	jwtSecret     = "super-secret-jwt-token-with-at-least-32-characters"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProcessor records checkout requests and returns canned links.
type fakeProcessor struct {
	mu        sync.Mutex
	checkouts []subscription.CheckoutRequest
	portals   []string
	err       error
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, req subscription.CheckoutRequest) (*subscription.SessionLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.checkouts = append(p.checkouts, req)
	return &subscription.SessionLink{ID: "cs_test_1", URL: "https://checkout.stripe.test/c/cs_test_1"}, nil
}

func (p *fakeProcessor) CreatePortalSession(_ context.Context, customerID, _ string) (*subscription.SessionLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.portals = append(p.portals, customerID)
	return &subscription.SessionLink{ID: "bps_1", URL: "https://billing.stripe.test/p/bps_1"}, nil
}

func (p *fakeProcessor) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProcessor) portalCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.portals...)
}

func (p *fakeProcessor) checkoutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.checkouts)
}

func (p *fakeProcessor) lastCheckout(t *testing.T) subscription.CheckoutRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.checkouts)
	return p.checkouts[len(p.checkouts)-1]
}

// recordingNotifier collects alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, a notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// app is the full billing pipeline over an in-memory store.
type app struct {
	store     *subscription.MemoryStore
	processor *fakeProcessor
	notifier  *recordingNotifier
	server    *httptest.Server
}

func newApp(t *testing.T) *app {
	t.Helper()
	log := discardLogger()

	store := subscription.NewMemoryStore()
	processor := &fakeProcessor{}
	notifier := &recordingNotifier{}

	idp, err := identity.NewHMACProvider(jwtSecret, identity.WithLogger(log))
	require.NoError(t, err)

	catalog, err := subscription.NewCatalog(subscription.DefaultPlans())
	require.NoError(t, err)

	service := subscription.NewService(store, idp, processor, "https://app.example.com",
		subscription.WithCatalog(catalog),
		subscription.WithServiceLogger(log),
	)
	projector := subscription.NewProjector(store, subscription.WithProjectorLogger(log))
	dispatcher := subscription.NewDispatcher(projector, log)
	verifier := webhook.NewVerifier(webhookSecret)

	router := billing.Router(billing.RouterOptions{
		Webhook: billing.NewWebhookHandler(verifier, dispatcher,
			billing.WithNotifier(notifier),
			billing.WithWebhookLogger(log),
		),
		Service: service,
		Logger:  log,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &app{store: store, processor: processor, notifier: notifier, server: srv}
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": "user" + userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func eventPayload(t *testing.T, id string, typ subscription.EventType, object any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    string(typ),
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return raw
}

func (a *app) deliver(t *testing.T, payload []byte, signature string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+"/webhook", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	return a.do(t, req)
}

func (a *app) deliverSigned(t *testing.T, payload []byte) (*http.Response, map[string]any) {
	t.Helper()
	return a.deliver(t, payload, webhook.Sign(webhookSecret, payload, time.Now()))
}

func (a *app) call(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.do(t, req)
}

func (a *app) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func checkoutCompleted(sessionID, subID, customerID, userID string) map[string]any {
	obj := map[string]any{
		"id":       sessionID,
		"object":   "checkout.session",
		"mode":     "subscription",
		"customer": customerID,
		"metadata": map[string]string{},
	}
	if subID != "" {
		obj["subscription"] = subID
	}
	if userID != "" {
		obj["metadata"] = map[string]string{subscription.MetadataUserID: userID}
	}
	return obj
}

func subscriptionUpdated(subID, customerID string, status subscription.Status) map[string]any {
	now := time.Now()
	return map[string]any{
		"id":                   subID,
		"object":               "subscription",
		"customer":             customerID,
		"status":               string(status),
		"current_period_start": now.Unix(),
		"current_period_end":   now.AddDate(0, 1, 0).Unix(),
		"items": map[string]any{
			"data": []map[string]any{{
				"id":       "si_1",
				"price":    map[string]any{"id": "price_pro_monthly"},
				"quantity": 1,
			}},
		},
	}
}
