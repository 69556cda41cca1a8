package types

// PaymentStatus mirrors the processor's payment intent lifecycle.
type PaymentStatus string

const (
	StatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	StatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	StatusRequiresAction        PaymentStatus = "requires_action"
	StatusRequiresCapture       PaymentStatus = "requires_capture"
	StatusProcessing            PaymentStatus = "processing"
	StatusSucceeded             PaymentStatus = "succeeded"
	StatusCanceled              PaymentStatus = "canceled"
)

// Completed reports whether the payer has nothing left to do.
func (s PaymentStatus) Completed() bool {
	return s == StatusSucceeded || s == StatusProcessing
}

// Failed reports whether the last confirmation attempt was rejected.
func (s PaymentStatus) Failed() bool {
	return s == StatusRequiresPaymentMethod || s == StatusCanceled
}

type PaymentRequest struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
	OrderID  string `json:"orderId" validate:"omitempty,max=64,printascii"`
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       PaymentStatus
	// LastError is the processor's message for the most recent failed
	// confirmation, if any.
	LastError string
}

type PaymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
