package payment

import "time"

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
)

// Payment mirrors the payments table. Amounts are stored in major currency
// units; all cent arithmetic happens at the provider boundary.
type Payment struct {
	ID                  string
	Amount              float64
	Commission          float64
	ProviderAmount      float64
	Currency            string
	Status              Status
	StripePaymentIntent string
	StripeChargeID      *string
	MissionID           string
	UserID              string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	MissionTitle  *string
	MissionStatus *string
}

// CreateParams enumerates the fields persisted when an intent is opened.
type CreateParams struct {
	Amount              float64
	Commission          float64
	ProviderAmount      float64
	Currency            string
	StripePaymentIntent string
	MissionID           string
	UserID              string
}

// Intent is the provider-side handle for an in-progress charge attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	ChargeID     string
}

// IntentParams carries what the provider needs to open an intent.
type IntentParams struct {
	AmountCents int64
	Currency    string
	CustomerID  string
	Metadata    map[string]string
}

// WebhookEvent is a provider callback normalized for the service.
type WebhookEvent struct {
	Type     string
	IntentID string
}

// Webhook event types the service reacts to.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)
