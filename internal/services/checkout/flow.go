package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stripe-checkout-portal/internal/services/payments/types"
)

// DefaultAmount is the amount a new flow starts with.
const DefaultAmount = "100.00"

var (
	ErrInFlight = errors.New("payment initialization already in progress")
	// ErrStaleAmount is returned when the amount was edited while the
	// payment intent request was in flight. The intent is discarded.
	ErrStaleAmount = errors.New("amount changed while payment was initializing")
)

// RequestState tracks the payment intent request of a flow.
type RequestState int

const (
	StateIdle RequestState = iota
	StateInFlight
	StateSucceeded
	StateFailed
)

func (s RequestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("RequestState(%d)", int(s))
	}
}

// IntentCreator creates a payment intent on the processor side.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req types.PaymentRequest) (*types.PaymentIntent, error)
}

// Flow is the checkout state of one visitor. A client secret is held only
// while it belongs to the current amount; any accepted amount edit drops it.
type Flow struct {
	mu sync.Mutex

	policy        Policy
	defaultAmount Amount

	amount Amount
	// generation is bumped on every accepted amount edit so that a response
	// for an older amount can be recognized and dropped.
	generation uint64
	state      RequestState

	clientSecret  string
	intentID      string
	sessionAmount int64

	notifications []Notification
}

// View is a read-only snapshot of a Flow.
type View struct {
	Amount        string
	MinorUnits    int64
	Payable       bool
	State         RequestState
	ClientSecret  string
	IntentID      string
	SessionAmount int64
	Currency      string
	Minimum       int64
}

// HasSession reports whether the payment form should be mounted.
func (v View) HasSession() bool {
	return v.ClientSecret != ""
}

// CanInitialize reports whether a new payment intent may be requested.
func (v View) CanInitialize() bool {
	return v.Payable && v.State != StateInFlight && !v.HasSession()
}

func NewFlow(policy Policy, defaultAmount string) *Flow {
	amount, err := ParseAmount(defaultAmount)
	if err != nil {
		amount, _ = ParseAmount(DefaultAmount)
	}

	return &Flow{
		policy:        policy,
		defaultAmount: amount,
		amount:        amount,
	}
}

// SetAmount accepts raw if it is a well-formed amount and reports whether
// it did. An accepted edit always drops the current client secret; a
// rejected one leaves the flow untouched. A pending intent request stays
// in flight and its result is discarded when it returns.
func (f *Flow) SetAmount(raw string) bool {
	amount, err := ParseAmount(raw)
	if err != nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.amount = amount
	f.resetSession()

	return true
}

// Initiate requests a payment intent for the current amount. Only one
// request may be in flight; a second call returns ErrInFlight.
func (f *Flow) Initiate(ctx context.Context, creator IntentCreator) error {
	f.mu.Lock()

	minor := f.amount.MinorUnits()
	if err := f.policy.Check(minor); err != nil {
		f.notify(invalidAmountNotification(err, f.policy))
		f.mu.Unlock()
		return err
	}

	if f.state == StateInFlight {
		f.mu.Unlock()
		return ErrInFlight
	}

	f.state = StateInFlight
	generation := f.generation
	currency := f.policy.Currency
	f.mu.Unlock()

	intent, err := creator.CreatePaymentIntent(ctx, types.PaymentRequest{
		Amount:   minor,
		Currency: currency,
	})
	if err == nil && (intent == nil || intent.ClientSecret == "") {
		err = errors.New("payment intent has no client secret")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if generation != f.generation {
		f.state = StateIdle
		return fmt.Errorf("%w: %s", ErrStaleAmount, FormatMinorUnits(minor, currency))
	}

	if err != nil {
		f.state = StateFailed
		f.clearSession()
		f.notify(Notification{
			Severity:    SeverityDestructive,
			Title:       "Error",
			Description: "Failed to initialize payment. Please try again.",
		})
		return fmt.Errorf("initiating payment: %w", err)
	}

	f.state = StateSucceeded
	f.clientSecret = intent.ClientSecret
	f.intentID = intent.ID
	f.sessionAmount = minor
	f.notify(Notification{
		Severity:    SeverityInfo,
		Title:       "Payment Ready",
		Description: "Please complete your payment information below.",
	})

	return nil
}

// ConfirmationFailed records a rejected confirmation. The session stays so
// the payer can resubmit without a new intent.
func (f *Flow) ConfirmationFailed(message string) {
	if message == "" {
		message = "An error occurred during payment"
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.notify(Notification{
		Severity:    SeverityDestructive,
		Title:       "Payment Failed",
		Description: message,
	})
}

// Complete resets the flow after a verified payment.
func (f *Flow) Complete() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.amount = f.defaultAmount
	f.resetSession()
	f.notifications = nil
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	minor := f.amount.MinorUnits()

	return View{
		Amount:        f.amount.String(),
		MinorUnits:    minor,
		Payable:       f.policy.Payable(minor),
		State:         f.state,
		ClientSecret:  f.clientSecret,
		IntentID:      f.intentID,
		SessionAmount: f.sessionAmount,
		Currency:      f.policy.Currency,
		Minimum:       f.policy.Minimum,
	}
}

// Notify queues n for the next render.
func (f *Flow) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notify(n)
}

// Notifications returns and clears the queued notifications.
func (f *Flow) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.notifications
	f.notifications = nil

	return n
}

func (f *Flow) notify(n Notification) {
	f.notifications = append(f.notifications, n)
}

// resetSession drops the client secret and invalidates any pending request.
func (f *Flow) resetSession() {
	f.generation++
	if f.state != StateInFlight {
		f.state = StateIdle
	}
	f.clearSession()
}

func (f *Flow) clearSession() {
	f.clientSecret = ""
	f.intentID = ""
	f.sessionAmount = 0
}

func invalidAmountNotification(err error, p Policy) Notification {
	description := "Minimum payment amount is " + DisplayAmount(p.Minimum, p.Currency)
	if errors.Is(err, ErrAboveMaximum) {
		description = "Maximum payment amount is " + DisplayAmount(p.Maximum, p.Currency)
	}

	return Notification{
		Severity:    SeverityDestructive,
		Title:       "Invalid Amount",
		Description: description,
	}
}
