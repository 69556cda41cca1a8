package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stripe-checkout-portal/internal/services/payments/types"

	"github.com/stripe/stripe-go/v84"
)

// NewStripeClient builds the process-wide Stripe client. backendURL is
// optional and replaces the public API base URL when set.
func NewStripeClient(secretKey, backendURL string) *stripe.Client {
	if backendURL == "" {
		return stripe.NewClient(secretKey)
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(backendURL),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return stripe.NewClient(secretKey, stripe.WithBackends(backends))
}

type StripeProvider struct {
	client          *stripe.Client
	defaultCurrency string
}

func NewStripeProvider(client *stripe.Client, defaultCurrency string) *StripeProvider {
	if client == nil {
		panic("stripe client required for StripeProvider")
	}

	return &StripeProvider{
		client:          client,
		defaultCurrency: strings.ToLower(defaultCurrency),
	}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = p.defaultCurrency
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.OrderID != "" {
		params.Metadata = map[string]string{
			"order_id": req.OrderID,
		}
	}

	pi, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}

	if pi.ClientSecret == "" {
		return nil, fmt.Errorf("%w: payment intent %q has no client secret", ErrMalformedResponse, pi.ID)
	}

	return toPaymentIntent(pi), nil
}

func (p *StripeProvider) GetPaymentIntent(ctx context.Context, id string) (*types.PaymentIntent, error) {
	pi, err := p.client.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPaymentIntentNotFound, id)
		}
		return nil, fmt.Errorf("retrieving payment intent: %w", err)
	}

	return toPaymentIntent(pi), nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *types.PaymentIntent {
	intent := &types.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       types.PaymentStatus(pi.Status),
	}
	if pi.LastPaymentError != nil {
		intent.LastError = pi.LastPaymentError.Msg
	}

	return intent
}
