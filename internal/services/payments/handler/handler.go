package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"stripe-checkout-portal/internal/services/checkout"
	"stripe-checkout-portal/internal/services/payments/providers"
	"stripe-checkout-portal/internal/services/payments/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/render"
)

const maxBodyBytes = int64(4096)

type handler struct {
	provider providers.PaymentProvider
	policy   checkout.Policy
	validate *validator.Validate
	render   *render.Render
}

func NewHandler(provider providers.PaymentProvider, policy checkout.Policy) *handler {
	return &handler{
		provider: provider,
		policy:   policy,
		validate: validator.New(),
		render:   render.New(),
	}
}

func (h *handler) AppendRoutes(r chi.Router) {
	r.Post("/api/payment-intents", h.CreatePaymentIntent)
}

// CreatePaymentIntent creates an intent for the posted amount and returns
// only its client secret. The secret key never leaves the server.
func (h *handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	slog.Info("running CreatePaymentIntentHandler")

	var body types.PaymentRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.error(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if body.Currency == "" {
		body.Currency = h.policy.Currency
	}
	body.Currency = strings.ToUpper(body.Currency)

	if err := h.validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.error(w, http.StatusBadRequest, "invalid "+strings.ToLower(verrs[0].Field()))
			return
		}
		h.error(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.policy.Check(body.Amount); err != nil {
		h.error(w, http.StatusBadRequest, err.Error())
		return
	}

	intent, err := h.provider.CreatePaymentIntent(r.Context(), body)
	if err != nil {
		slog.Error("failed to create payment intent", "error", err, "amount", body.Amount)
		h.error(w, http.StatusBadGateway, "failed to create payment intent")
		return
	}

	slog.Info("payment intent created", "id", intent.ID, "amount", intent.Amount)

	h.render.JSON(w, http.StatusCreated, types.PaymentIntentResponse{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
	})
}

func (h *handler) error(w http.ResponseWriter, status int, msg string) {
	h.render.JSON(w, status, types.ErrorResponse{Error: msg})
}
