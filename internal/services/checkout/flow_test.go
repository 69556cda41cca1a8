package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stripe-checkout-portal/internal/services/checkout"
	"stripe-checkout-portal/internal/services/payments/types"

	"github.com/stretchr/testify/require"
)

type creatorFunc func(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error)

func (f creatorFunc) CreatePaymentIntent(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
	return f(ctx, req)
}

type recordingCreator struct {
	mu       sync.Mutex
	requests []types.PaymentRequest
	secret   string
	err      error
}

func (c *recordingCreator) CreatePaymentIntent(_ context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}

	return &types.PaymentIntent{ID: "pi_1", ClientSecret: c.secret, Amount: req.Amount}, nil
}

func newFlow() *checkout.Flow {
	return checkout.NewFlow(checkout.DefaultPolicy(), checkout.DefaultAmount)
}

func TestFlowSetAmount(t *testing.T) {
	flow := newFlow()
	require.Equal(t, "100.00", flow.View().Amount)

	require.True(t, flow.SetAmount("12.3"))
	require.Equal(t, "12.3", flow.View().Amount)
	require.Equal(t, int64(1230), flow.View().MinorUnits)

	require.False(t, flow.SetAmount("12.345"))
	require.Equal(t, "12.3", flow.View().Amount)

	require.True(t, flow.SetAmount(""))
	view := flow.View()
	require.Equal(t, int64(0), view.MinorUnits)
	require.False(t, view.Payable)
	require.False(t, view.CanInitialize())

	require.True(t, flow.SetAmount("7."))
	require.True(t, flow.View().Payable)
}

func TestFlowInitiateSuccess(t *testing.T) {
	flow := newFlow()
	creator := &recordingCreator{secret: "tok_abc"}

	require.True(t, flow.SetAmount("20.00"))
	require.NoError(t, flow.Initiate(context.Background(), creator))

	require.Len(t, creator.requests, 1)
	require.Equal(t, int64(2000), creator.requests[0].Amount)
	require.Equal(t, "usd", creator.requests[0].Currency)

	view := flow.View()
	require.Equal(t, checkout.StateSucceeded, view.State)
	require.Equal(t, "tok_abc", view.ClientSecret)
	require.Equal(t, int64(2000), view.SessionAmount)
	require.True(t, view.HasSession())
	require.False(t, view.CanInitialize())

	notifications := flow.Notifications()
	require.Len(t, notifications, 1)
	require.Equal(t, checkout.SeverityInfo, notifications[0].Severity)
	require.Equal(t, "Payment Ready", notifications[0].Title)

	require.Empty(t, flow.Notifications())
}

func TestFlowInitiateFailure(t *testing.T) {
	flow := newFlow()
	creator := &recordingCreator{err: errors.New("status 500")}

	err := flow.Initiate(context.Background(), creator)
	require.Error(t, err)

	view := flow.View()
	require.Equal(t, checkout.StateFailed, view.State)
	require.Empty(t, view.ClientSecret)
	require.True(t, view.CanInitialize())

	notifications := flow.Notifications()
	require.Len(t, notifications, 1)
	require.True(t, notifications[0].Destructive())
	require.Equal(t, "Failed to initialize payment. Please try again.", notifications[0].Description)

	// manual retry
	creator.err = nil
	creator.secret = "tok_retry"
	require.NoError(t, flow.Initiate(context.Background(), creator))
	require.Equal(t, "tok_retry", flow.View().ClientSecret)
	require.Len(t, creator.requests, 2)
}

func TestFlowInitiateEmptyClientSecret(t *testing.T) {
	flow := newFlow()

	err := flow.Initiate(context.Background(), &recordingCreator{secret: ""})
	require.Error(t, err)
	require.Empty(t, flow.View().ClientSecret)
	require.Equal(t, checkout.StateFailed, flow.View().State)
	require.Len(t, flow.Notifications(), 1)
}

func TestFlowInitiateBelowMinimum(t *testing.T) {
	flow := newFlow()
	creator := &recordingCreator{secret: "tok_abc"}

	require.True(t, flow.SetAmount("0.49"))
	require.False(t, flow.View().CanInitialize())

	err := flow.Initiate(context.Background(), creator)
	require.ErrorIs(t, err, checkout.ErrBelowMinimum)
	require.Empty(t, creator.requests)

	notifications := flow.Notifications()
	require.Len(t, notifications, 1)
	require.True(t, notifications[0].Destructive())
	require.Equal(t, "Invalid Amount", notifications[0].Title)
	require.Equal(t, "Minimum payment amount is $0.50 USD", notifications[0].Description)
	require.Equal(t, checkout.StateIdle, flow.View().State)
}

func TestFlowInitiateAboveMaximum(t *testing.T) {
	flow := newFlow()
	creator := &recordingCreator{secret: "tok_abc"}

	require.True(t, flow.SetAmount("1000000.00"))
	require.ErrorIs(t, flow.Initiate(context.Background(), creator), checkout.ErrAboveMaximum)
	require.Empty(t, creator.requests)
	require.Equal(t, "Maximum payment amount is $999999.99 USD", flow.Notifications()[0].Description)
}

func TestFlowAmountChangeClearsSession(t *testing.T) {
	flow := newFlow()
	require.NoError(t, flow.Initiate(context.Background(), &recordingCreator{secret: "tok_abc"}))
	require.True(t, flow.View().HasSession())

	require.True(t, flow.SetAmount("25.00"))
	view := flow.View()
	require.False(t, view.HasSession())
	require.Empty(t, view.IntentID)
	require.Equal(t, checkout.StateIdle, view.State)

	require.True(t, flow.SetAmount("25.00"))
	require.False(t, flow.View().HasSession())

	// a rejected edit does not touch the session
	require.NoError(t, flow.Initiate(context.Background(), &recordingCreator{secret: "tok_def"}))
	require.False(t, flow.SetAmount("x"))
	require.Equal(t, "tok_def", flow.View().ClientSecret)
}

func TestFlowConfirmationFailedKeepsSession(t *testing.T) {
	flow := newFlow()
	require.NoError(t, flow.Initiate(context.Background(), &recordingCreator{secret: "tok_abc"}))
	flow.Notifications()

	flow.ConfirmationFailed("card declined")

	require.Equal(t, "tok_abc", flow.View().ClientSecret)
	notifications := flow.Notifications()
	require.Len(t, notifications, 1)
	require.True(t, notifications[0].Destructive())
	require.Equal(t, "card declined", notifications[0].Description)

	flow.ConfirmationFailed("")
	require.Equal(t, "An error occurred during payment", flow.Notifications()[0].Description)
}

func TestFlowSingleFlight(t *testing.T) {
	flow := newFlow()

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := creatorFunc(func(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
		close(started)
		<-release
		return &types.PaymentIntent{ID: "pi_1", ClientSecret: "tok_slow"}, nil
	})

	done := make(chan error, 1)
	go func() {
		done <- flow.Initiate(context.Background(), blocking)
	}()

	<-started
	require.Equal(t, checkout.StateInFlight, flow.View().State)
	require.False(t, flow.View().CanInitialize())

	second := &recordingCreator{secret: "tok_other"}
	require.ErrorIs(t, flow.Initiate(context.Background(), second), checkout.ErrInFlight)
	require.Empty(t, second.requests)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, "tok_slow", flow.View().ClientSecret)
}

func TestFlowDropsStaleIntent(t *testing.T) {
	flow := newFlow()

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := creatorFunc(func(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
		close(started)
		<-release
		return &types.PaymentIntent{ID: "pi_1", ClientSecret: "tok_stale"}, nil
	})

	done := make(chan error, 1)
	go func() {
		done <- flow.Initiate(context.Background(), blocking)
	}()

	<-started
	require.True(t, flow.SetAmount("42.00"))

	// the edit does not open a second request slot
	view := flow.View()
	require.Equal(t, checkout.StateInFlight, view.State)
	require.False(t, view.CanInitialize())

	second := &recordingCreator{secret: "tok_other"}
	require.ErrorIs(t, flow.Initiate(context.Background(), second), checkout.ErrInFlight)
	require.True(t, flow.SetAmount("100.00"))
	require.ErrorIs(t, flow.Initiate(context.Background(), second), checkout.ErrInFlight)
	require.Empty(t, second.requests)

	close(release)
	require.ErrorIs(t, <-done, checkout.ErrStaleAmount)

	view = flow.View()
	require.Empty(t, view.ClientSecret)
	require.Empty(t, view.IntentID)
	require.Equal(t, checkout.StateIdle, view.State)
	require.Equal(t, "100.00", view.Amount)
	require.True(t, view.CanInitialize())
	require.Empty(t, flow.Notifications())

	require.NoError(t, flow.Initiate(context.Background(), second))
	require.Len(t, second.requests, 1)
	require.Equal(t, int64(10000), second.requests[0].Amount)
	require.Equal(t, "tok_other", flow.View().ClientSecret)
}

func TestFlowComplete(t *testing.T) {
	flow := checkout.NewFlow(checkout.DefaultPolicy(), "10.00")
	require.True(t, flow.SetAmount("20.00"))
	require.NoError(t, flow.Initiate(context.Background(), &recordingCreator{secret: "tok_abc"}))

	flow.Complete()

	view := flow.View()
	require.Equal(t, "10.00", view.Amount)
	require.False(t, view.HasSession())
	require.Equal(t, checkout.StateIdle, view.State)
	require.Empty(t, flow.Notifications())
}
