package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stripe-checkout-portal/internal/services/checkout"
	"stripe-checkout-portal/internal/services/payments/handler"
	"stripe-checkout-portal/internal/services/payments/types"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	requests []types.PaymentRequest
	err      error
}

func (p *fakeProvider) CreatePaymentIntent(_ context.Context, req types.PaymentRequest) (*types.PaymentIntent, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}

	return &types.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Amount: req.Amount}, nil
}

func (p *fakeProvider) GetPaymentIntent(context.Context, string) (*types.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func newRouter(provider *fakeProvider) chi.Router {
	router := chi.NewRouter()
	handler.NewHandler(provider, checkout.DefaultPolicy()).AppendRoutes(router)

	return router
}

func post(router chi.Router, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payment-intents", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	return w
}

func TestCreatePaymentIntent(t *testing.T) {
	provider := &fakeProvider{}
	router := newRouter(provider)

	w := post(router, `{"amount":2000,"orderId":"order-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp types.PaymentIntentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "pi_123", resp.ID)
	require.Equal(t, "pi_123_secret", resp.ClientSecret)

	require.Len(t, provider.requests, 1)
	require.Equal(t, int64(2000), provider.requests[0].Amount)
	require.Equal(t, "USD", provider.requests[0].Currency)
	require.Equal(t, "order-1", provider.requests[0].OrderID)
}

func TestCreatePaymentIntentRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `{"amount":`, "invalid JSON"},
		{"zero amount", `{"amount":0}`, "invalid amount"},
		{"negative amount", `{"amount":-5}`, "invalid amount"},
		{"below minimum", `{"amount":49}`, "amount below minimum: $0.50"},
		{"above maximum", `{"amount":100000000}`, "amount above maximum: $999999.99"},
		{"unknown currency", `{"amount":2000,"currency":"zzz"}`, "invalid currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			w := post(newRouter(provider), tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, tt.wantErr, resp.Error)
			require.Empty(t, provider.requests)
		})
	}
}

func TestCreatePaymentIntentProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("stripe: api_error sk_test_leak")}
	w := post(newRouter(provider), `{"amount":2000}`)

	require.Equal(t, http.StatusBadGateway, w.Code)
	require.NotContains(t, w.Body.String(), "sk_test_leak")

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "failed to create payment intent", resp.Error)
}
