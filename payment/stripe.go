package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider builds a provider from the account's secret key and the
// endpoint's webhook signing secret.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

// EnsureCustomer creates a customer record and returns its reference.
func (p *StripeProvider) EnsureCustomer(ctx context.Context, email, name string) (string, error) {
	cust, err := p.api.Customers.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(email),
		Name:   stripe.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateIntent opens a payment intent for the given amount in cents.
func (p *StripeProvider) CreateIntent(ctx context.Context, params IntentParams) (Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
	}
	if params.CustomerID != "" {
		piParams.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(piParams)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// GetIntent retrieves the current state of a payment intent.
func (p *StripeProvider) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	pi, err := p.api.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: get intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// Refund returns the captured funds of a settled intent.
func (p *StripeProvider) Refund(ctx context.Context, intentID string) error {
	_, err := p.api.Refunds.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(intentID),
	})
	if err != nil {
		return fmt.Errorf("stripe: refund intent: %w", err)
	}
	return nil
}

// ParseWebhook verifies the payload signature against the endpoint secret and
// normalizes the event. Unverifiable payloads are rejected before any parsing
// of their contents.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: verify webhook: %w", err)
	}

	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode webhook object: %w", err)
	}

	return WebhookEvent{Type: string(event.Type), IntentID: object.ID}, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) Intent {
	intent := Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	return intent
}
