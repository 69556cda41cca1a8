package handler

import (
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"stripe-checkout-portal/internal/services/checkout"
	"stripe-checkout-portal/internal/services/payments/providers"
	"stripe-checkout-portal/internal/services/payments/types"

	"github.com/go-chi/chi/v5"
	"github.com/unrolled/render"
)

const (
	SessionCookie = "checkout_session"
	SuccessPath   = "/payment-success"

	maxBodyBytes = int64(4096)
)

//go:embed templates/*.tmpl
var templates embed.FS

type Options struct {
	MerchantName   string
	PublishableKey string
	// PublicURL is the externally visible base URL used to build the
	// processor's return URL.
	PublicURL     string
	SecureCookies bool
}

type handler struct {
	store    *checkout.Store
	provider providers.PaymentProvider
	render   *render.Render
	opts     Options
}

func NewHandler(store *checkout.Store, provider providers.PaymentProvider, opts Options) *handler {
	return &handler{
		store:    store,
		provider: provider,
		opts:     opts,
		render: render.New(render.Options{
			Directory:  "templates",
			FileSystem: &render.EmbedFileSystem{FS: templates},
			Extensions: []string{".tmpl"},
			Layout:     "layout",
		}),
	}
}

func (h *handler) AppendRoutes(r chi.Router) {
	r.Get("/", h.CheckoutPage)
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/amount", h.UpdateAmount)
		r.Post("/initialize", h.InitializePayment)
		r.Post("/confirmation", h.ConfirmationResult)
	})
	r.Get(SuccessPath, h.PaymentSuccess)
}

type checkoutPage struct {
	MerchantName   string
	PublishableKey string
	ReturnURL      string

	Amount         string
	AmountPattern  string
	CurrencyCode   string
	MinimumDisplay string
	CanInitialize  bool
	Initializing   bool

	HasSession    bool
	ClientSecret  string
	SessionAmount string

	Notifications []checkout.Notification
}

func (h *handler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	flow := h.flow(w, r)
	view := flow.View()

	page := checkoutPage{
		MerchantName:   h.opts.MerchantName,
		PublishableKey: h.opts.PublishableKey,
		ReturnURL:      h.returnURL(),
		Amount:         view.Amount,
		AmountPattern:  strings.TrimSuffix(strings.TrimPrefix(checkout.AmountPattern, "^"), "$"),
		CurrencyCode:   strings.ToUpper(view.Currency),
		MinimumDisplay: checkout.DisplayAmount(view.Minimum, view.Currency),
		CanInitialize:  view.CanInitialize(),
		Initializing:   view.State == checkout.StateInFlight,
		HasSession:     view.HasSession(),
		ClientSecret:   view.ClientSecret,
		Notifications:  flow.Notifications(),
	}
	if view.HasSession() {
		page.SessionAmount = checkout.DisplayAmount(view.SessionAmount, view.Currency)
	}

	h.render.HTML(w, http.StatusOK, "checkout", page)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type amountResponse struct {
	Accepted       bool   `json:"accepted"`
	Amount         string `json:"amount"`
	MinorUnits     int64  `json:"minorUnits"`
	Payable        bool   `json:"payable"`
	SessionCleared bool   `json:"sessionCleared"`
}

// UpdateAmount validates a keystroke. A rejected value leaves the flow as
// it was; an accepted one drops any payment session.
func (h *handler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	var body amountRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	flow := h.flow(w, r)
	hadSession := flow.View().HasSession()
	accepted := flow.SetAmount(body.Amount)
	view := flow.View()

	h.render.JSON(w, http.StatusOK, amountResponse{
		Accepted:       accepted,
		Amount:         view.Amount,
		MinorUnits:     view.MinorUnits,
		Payable:        view.Payable,
		SessionCleared: hadSession && !view.HasSession(),
	})
}

func (h *handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	slog.Info("running InitializePaymentHandler")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	flow := h.flow(w, r)

	if raw, ok := r.PostForm["amount"]; ok && !h.submitAmount(flow, strings.TrimSpace(raw[0])) {
		flow.Notify(checkout.Notification{
			Severity:    checkout.SeverityDestructive,
			Title:       "Invalid Amount",
			Description: "Enter an amount with at most two decimal places.",
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	err := flow.Initiate(r.Context(), h.provider)
	switch {
	case err == nil:
		slog.Info("payment session created", "amount", flow.View().SessionAmount)
	case errors.Is(err, checkout.ErrInFlight):
		slog.Info("payment initialization already in flight")
	case errors.Is(err, checkout.ErrStaleAmount):
		slog.Info("payment intent discarded", "error", err)
	case errors.Is(err, checkout.ErrBelowMinimum), errors.Is(err, checkout.ErrAboveMaximum):
		slog.Info("payment amount rejected", "error", err)
	default:
		slog.Error("failed to initialize payment", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// submitAmount applies the submitted amount unless it is the one already
// entered, so a resubmit does not invalidate a pending request.
func (h *handler) submitAmount(flow *checkout.Flow, raw string) bool {
	if raw == flow.View().Amount {
		return true
	}

	return flow.SetAmount(raw)
}

type confirmationRequest struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ConfirmationResult receives the outcome of the browser-side confirmation
// when it resolved with an error instead of navigating away.
func (h *handler) ConfirmationResult(w http.ResponseWriter, r *http.Request) {
	var body confirmationRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	flow, ok := h.existingFlow(r)
	if !ok {
		http.Error(w, "No checkout session", http.StatusConflict)
		return
	}

	if body.Error != nil {
		slog.Info("payment confirmation failed", "message", body.Error.Message)
		flow.ConfirmationFailed(body.Error.Message)
	}

	w.WriteHeader(http.StatusNoContent)
}

type successPage struct {
	MerchantName string
	Amount       string
	Processing   bool
}

type unverifiedPage struct {
	MerchantName string
	Reason       string
}

// PaymentSuccess is the processor's return URL. The payment intent named in
// the redirect is looked up before anything is shown as paid.
func (h *handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	slog.Info("running PaymentSuccessHandler")

	id := r.URL.Query().Get("payment_intent")
	if id == "" {
		h.unverified(w, http.StatusBadRequest, "No payment reference was provided.")
		return
	}

	intent, err := h.provider.GetPaymentIntent(r.Context(), id)
	if err != nil {
		if errors.Is(err, providers.ErrPaymentIntentNotFound) {
			h.unverified(w, http.StatusNotFound, "We could not find this payment.")
			return
		}
		slog.Error("failed to verify payment", "error", err, "payment_intent", id)
		h.unverified(w, http.StatusBadGateway, "We could not confirm your payment right now. Please check again shortly.")
		return
	}

	flow, ok := h.existingFlow(r)
	owned := ok && flow.View().IntentID == intent.ID

	switch {
	case intent.Status.Completed():
		slog.Info("payment verified", "payment_intent", intent.ID, "status", intent.Status)
		if owned {
			flow.Complete()
		}
		h.render.HTML(w, http.StatusOK, "success", successPage{
			MerchantName: h.opts.MerchantName,
			Amount:       checkout.DisplayAmount(intent.Amount, intent.Currency),
			Processing:   intent.Status != types.StatusSucceeded,
		})
	case intent.Status.Failed() && owned && attempted(r, intent):
		slog.Info("payment not completed", "payment_intent", intent.ID, "status", intent.Status)
		flow.ConfirmationFailed(intent.LastError)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		slog.Info("payment not verified", "payment_intent", intent.ID, "status", intent.Status)
		h.unverified(w, http.StatusConflict, "This payment has not been completed.")
	}
}

// attempted reports whether the payer tried to confirm intent. A fresh
// intent is also awaiting a payment method but has no failed attempt.
func attempted(r *http.Request, intent *types.PaymentIntent) bool {
	return intent.LastError != "" || r.URL.Query().Get("redirect_status") == "failed"
}

func (h *handler) unverified(w http.ResponseWriter, status int, reason string) {
	h.render.HTML(w, status, "unverified", unverifiedPage{
		MerchantName: h.opts.MerchantName,
		Reason:       reason,
	})
}

func (h *handler) existingFlow(r *http.Request) (*checkout.Flow, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}

	return h.store.Get(cookie.Value)
}

// flow returns the visitor's flow, starting a new one when the cookie is
// missing or has expired.
func (h *handler) flow(w http.ResponseWriter, r *http.Request) *checkout.Flow {
	if flow, ok := h.existingFlow(r); ok {
		return flow
	}

	id, flow := h.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	return flow
}

func (h *handler) returnURL() string {
	return strings.TrimRight(h.opts.PublicURL, "/") + SuccessPath
}
