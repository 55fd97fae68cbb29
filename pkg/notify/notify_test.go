package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/notify"
)

type mockPostmark struct {
	mock.Mock
}

func (m *mockPostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(postmark.EmailResponse), args.Error(1)
}

func sampleAlert() notify.Alert {
	return notify.Alert{
		Subject: "checkout session cannot be linked to a user",
		EventID: "evt_1",
		Type:    "checkout.session.completed",
		Err:     errors.New("checkout session has no userId metadata"),
		Fields:  map[string]string{"session_id": "cs_1", "customer_id": "cus_1"},
	}
}

func TestAlertBody(t *testing.T) {
	t.Parallel()
	body := sampleAlert().Body()
	assert.Contains(t, body, "event id:   evt_1")
	assert.Contains(t, body, "error:      checkout session has no userId metadata")
	assert.Less(t, bytes.Index([]byte(body), []byte("customer_id")), bytes.Index([]byte(body), []byte("session_id")))
}

func TestLog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	n := notify.NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"event_id":"evt_1"`)
	assert.Contains(t, out, `"session_id":"cs_1"`)
}

func TestNewPostmarkValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  notify.Config
		msg  string
	}{
		{"no server token", notify.Config{PostmarkAccountToken: "a", From: "a@example.com", To: "b@example.com"}, "PostmarkServerToken"},
		{"no account token", notify.Config{PostmarkServerToken: "s", From: "a@example.com", To: "b@example.com"}, "PostmarkAccountToken"},
		{"bad from", notify.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "nope", To: "b@example.com"}, "ALERT_FROM"},
		{"no to", notify.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "a@example.com"}, "ALERT_TO"},
		{"bad to", notify.Config{PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "a@example.com", To: "x@, y"}, "ALERT_TO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := notify.NewPostmark(tt.cfg)
			assert.ErrorIs(t, err, notify.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	n, err := notify.NewPostmark(notify.Config{
		PostmarkServerToken: "s", PostmarkAccountToken: "a",
		From: "billing@example.com", To: "ops@example.com, oncall@example.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, n)
	assert.True(t, notify.Config{PostmarkServerToken: "s"}.Enabled())
}

func TestPostmarkNotify(t *testing.T) {
	t.Parallel()

	t.Run("sends text email", func(t *testing.T) {
		t.Parallel()
		client := &mockPostmark{}
		client.On("SendEmail", mock.Anything, mock.MatchedBy(func(e postmark.Email) bool {
			return e.From == "billing@example.com" &&
				e.To == "ops@example.com" &&
				e.Subject == "[billsync] checkout session cannot be linked to a user" &&
				e.Tag == "billing-alert" &&
				bytes.Contains([]byte(e.TextBody), []byte("evt_1"))
		})).Return(postmark.EmailResponse{}, nil)

		n, err := notify.NewPostmarkWithClient(client, "billing@example.com", "ops@example.com")
		require.NoError(t, err)
		require.NoError(t, n.Notify(context.Background(), sampleAlert()))
		client.AssertExpectations(t)
	})

	t.Run("api error code", func(t *testing.T) {
		t.Parallel()
		client := &mockPostmark{}
		client.On("SendEmail", mock.Anything, mock.Anything).
			Return(postmark.EmailResponse{ErrorCode: 406, Message: "inactive recipient"}, nil)

		n, err := notify.NewPostmarkWithClient(client, "billing@example.com", "ops@example.com")
		require.NoError(t, err)
		err = n.Notify(context.Background(), sampleAlert())
		assert.ErrorIs(t, err, notify.ErrFailedToNotify)
		assert.Contains(t, err.Error(), "inactive recipient")
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()
		client := &mockPostmark{}
		client.On("SendEmail", mock.Anything, mock.Anything).Return(postmark.EmailResponse{}, errors.New("timeout"))

		n, err := notify.NewPostmarkWithClient(client, "billing@example.com", "ops@example.com")
		require.NoError(t, err)
		assert.ErrorIs(t, n.Notify(context.Background(), sampleAlert()), notify.ErrFailedToNotify)
	})
}

func TestMulti(t *testing.T) {
	t.Parallel()
	failing := &mockPostmark{}
	failing.On("SendEmail", mock.Anything, mock.Anything).Return(postmark.EmailResponse{}, errors.New("down"))
	pm, err := notify.NewPostmarkWithClient(failing, "billing@example.com", "ops@example.com")
	require.NoError(t, err)

	var buf bytes.Buffer
	m := notify.Multi{notify.NewLog(slog.New(slog.NewTextHandler(&buf, nil))), pm}
	err = m.Notify(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, notify.ErrFailedToNotify)
	assert.NotEmpty(t, buf.String(), "log notifier still ran")

	assert.NoError(t, notify.Multi{}.Notify(context.Background(), sampleAlert()))
}
