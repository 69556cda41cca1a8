package providers

import (
	"context"
	"errors"

	"stripe-checkout-portal/internal/services/payments/types"
)

var (
	ErrPaymentIntentNotFound = errors.New("payment intent not found")
	ErrMalformedResponse     = errors.New("malformed processor response")
)

type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*types.PaymentIntent, error)
}
