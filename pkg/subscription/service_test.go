package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/identity"
	"github.com/dmitrymomot/billsync/pkg/subscription"
)

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) Authenticate(ctx context.Context, token string) (identity.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(identity.Identity), args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateCheckoutSession(ctx context.Context, req subscription.CheckoutRequest) (*subscription.SessionLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.SessionLink), args.Error(1)
}

func (m *mockProcessor) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*subscription.SessionLink, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.SessionLink), args.Error(1)
}

type serviceFixture struct {
	store     *subscription.MemoryStore
	identity  *mockIdentity
	processor *mockProcessor
	svc       *subscription.Service
}

func newServiceFixture(t *testing.T, opts ...subscription.ServiceOption) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:     subscription.NewMemoryStore(),
		identity:  &mockIdentity{},
		processor: &mockProcessor{},
	}
	opts = append([]subscription.ServiceOption{subscription.WithServiceLogger(discardLogger())}, opts...)
	f.svc = subscription.NewService(f.store, f.identity, f.processor, "https://app.example.com/", opts...)
	t.Cleanup(func() {
		f.identity.AssertExpectations(t)
		f.processor.AssertExpectations(t)
	})
	return f
}

func (f *serviceFixture) authAs(userID, email string) {
	f.identity.On("Authenticate", mock.Anything, "token").
		Return(identity.Identity{UserID: userID, Email: email}, nil)
}

func defaultCatalog(t *testing.T) *subscription.Catalog {
	t.Helper()
	c, err := subscription.NewCatalog(subscription.DefaultPlans())
	require.NoError(t, err)
	return c
}

func TestNewServicePanics(t *testing.T) {
	t.Parallel()
	store, idp, proc := subscription.NewMemoryStore(), &mockIdentity{}, &mockProcessor{}
	assert.Panics(t, func() { subscription.NewService(nil, idp, proc, "") })
	assert.Panics(t, func() { subscription.NewService(store, nil, proc, "") })
	assert.Panics(t, func() { subscription.NewService(store, idp, nil, "") })
}

func TestService_CreateCheckoutSession(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, subscription.WithCatalog(defaultCatalog(t)))
		f.authAs("42", "user@example.com")
		f.processor.On("CreateCheckoutSession", mock.Anything, subscription.CheckoutRequest{
			Mode:          subscription.CheckoutModeSubscription,
			PriceID:       "price_pro_monthly",
			Quantity:      1,
			CustomerEmail: "user@example.com",
			SuccessURL:    "https://app.example.com/subscriptions?success=true",
			CancelURL:     "https://app.example.com/subscriptions?canceled=true",
			Metadata:      map[string]string{"userId": "42"},
		}).Return(&subscription.SessionLink{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil)

		link, err := f.svc.CreateCheckoutSession(context.Background(), "token", " price_pro_monthly ")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/cs_1", link.URL)
		assert.Zero(t, f.store.Len(), "checkout writes nothing locally")
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.identity.On("Authenticate", mock.Anything, "bad").
			Return(identity.Identity{}, identity.ErrInvalidToken)

		_, err := f.svc.CreateCheckoutSession(context.Background(), "bad", "price_pro_monthly")
		assert.ErrorIs(t, err, subscription.ErrUnauthorized)
		assert.ErrorIs(t, err, subscription.ErrAuth)
		assert.ErrorIs(t, err, identity.ErrInvalidToken)
	})

	t.Run("identity without user", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("", "")

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "price_pro_monthly")
		assert.ErrorIs(t, err, subscription.ErrUnauthorized)
	})

	t.Run("missing price", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "  ")
		assert.ErrorIs(t, err, subscription.ErrMissingPrice)
		assert.ErrorIs(t, err, subscription.ErrValidation)
	})

	t.Run("unknown price with catalog", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, subscription.WithCatalog(defaultCatalog(t)))
		f.authAs("42", "")

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "price_nope")
		assert.ErrorIs(t, err, subscription.ErrUnknownPrice)
		assert.ErrorIs(t, err, subscription.ErrValidation)
	})

	t.Run("any price without catalog", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		f.processor.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(r subscription.CheckoutRequest) bool {
			return r.PriceID == "price_custom"
		})).Return(&subscription.SessionLink{URL: "https://checkout.example/1"}, nil)

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "price_custom")
		require.NoError(t, err)
	})

	t.Run("processor failure", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		f.processor.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, errors.New("No such price: 'price_x'"))

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "price_x")
		require.ErrorIs(t, err, subscription.ErrUpstream)
		var ue *subscription.UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "No such price: 'price_x'", ue.Message)
		assert.Zero(t, f.store.Len())
	})

	t.Run("empty url from processor", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		f.processor.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&subscription.SessionLink{ID: "cs_1"}, nil)

		_, err := f.svc.CreateCheckoutSession(context.Background(), "token", "price_x")
		assert.ErrorIs(t, err, subscription.ErrUpstream)
	})
}

func TestService_CreatePortalSession(t *testing.T) {
	t.Parallel()

	t.Run("uses current subscription customer", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		_, err := f.store.Insert(context.Background(), &subscription.Record{
			ID: "sub_1", UserID: "42", CustomerID: "cus_1", Status: subscription.StatusActive, CreatedAt: fixedNow,
		})
		require.NoError(t, err)
		f.processor.On("CreatePortalSession", mock.Anything, "cus_1", "https://app.example.com/subscriptions").
			Return(&subscription.SessionLink{URL: "https://billing.stripe.com/p/1"}, nil)

		link, err := f.svc.CreatePortalSession(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "https://billing.stripe.com/p/1", link.URL)
	})

	t.Run("falls back to newest record with customer", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		ctx := context.Background()
		for _, rec := range []*subscription.Record{
			{ID: "sub_old", UserID: "42", CustomerID: "cus_old", Status: subscription.StatusCanceled, CreatedAt: fixedNow.Add(-48 * time.Hour)},
			{ID: "sub_new", UserID: "42", CustomerID: "cus_new", Status: subscription.StatusCanceled, CreatedAt: fixedNow},
		} {
			_, err := f.store.Insert(ctx, rec)
			require.NoError(t, err)
		}
		f.processor.On("CreatePortalSession", mock.Anything, "cus_new", mock.Anything).
			Return(&subscription.SessionLink{URL: "https://billing.stripe.com/p/2"}, nil)

		_, err := f.svc.CreatePortalSession(ctx, "token")
		require.NoError(t, err)
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")

		_, err := f.svc.CreatePortalSession(context.Background(), "token")
		assert.ErrorIs(t, err, subscription.ErrNoSubscription)
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("processor failure", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.authAs("42", "")
		_, err := f.store.Insert(context.Background(), &subscription.Record{ID: "sub_1", UserID: "42", CustomerID: "cus_1", Status: subscription.StatusActive})
		require.NoError(t, err)
		f.processor.On("CreatePortalSession", mock.Anything, "cus_1", mock.Anything).
			Return(nil, &subscription.UpstreamError{Op: "create portal session", Message: "portal not configured", StatusCode: 400})

		_, err = f.svc.CreatePortalSession(context.Background(), "token")
		var ue *subscription.UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "portal not configured", ue.Message)
	})
}

func TestService_CurrentSubscription(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.identity.On("Authenticate", mock.Anything, "token").
		Return(identity.Identity{UserID: "42"}, nil)

	_, err := f.svc.CurrentSubscription(context.Background(), "token")
	assert.ErrorIs(t, err, subscription.ErrNoSubscription)

	_, err = f.store.Insert(context.Background(), &subscription.Record{ID: "sub_1", UserID: "42", Status: subscription.StatusTrialing, CreatedAt: fixedNow})
	require.NoError(t, err)

	rec, err := f.svc.CurrentSubscription(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", rec.ID)
}

func TestService_Plans(t *testing.T) {
	t.Parallel()
	assert.Empty(t, newServiceFixture(t).svc.Plans())
	assert.Len(t, newServiceFixture(t, subscription.WithCatalog(defaultCatalog(t))).svc.Plans(), 6)
}
