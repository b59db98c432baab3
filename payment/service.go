package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"missionflow/mission"
)

var (
	// ErrNotMissionClient signals a payment attempt by someone other than the mission's client.
	ErrNotMissionClient = errors.New("payment: only the mission client can pay")
	// ErrPaymentExists signals the mission already has an active payment.
	ErrPaymentExists = errors.New("payment: mission already has an active payment")
	// ErrNotSucceeded signals a confirmation attempt on an intent the provider has not settled.
	ErrNotSucceeded = errors.New("payment: intent has not succeeded")
	// ErrBadSignature signals an unverifiable webhook payload.
	ErrBadSignature = errors.New("payment: invalid webhook signature")
	// ErrProvider wraps failures of the external payment capability; they
	// surface to the caller as a failed request.
	ErrProvider = errors.New("payment: provider failure")
)

// Provider is the external payment capability.
type Provider interface {
	EnsureCustomer(ctx context.Context, email, name string) (string, error)
	CreateIntent(ctx context.Context, params IntentParams) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
	Refund(ctx context.Context, intentID string) error
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// missionSource is the read access the service needs into missions.
type missionSource interface {
	GetByID(ctx context.Context, missionID string) (mission.Mission, error)
}

// customerStore reads and writes the payer's external customer reference.
type customerStore interface {
	PaymentProfile(ctx context.Context, userID string) (email, name, customerID string, err error)
	SetCustomerID(ctx context.Context, userID, customerID string) error
}

// Service owns the payment flow: intent creation, confirmation, webhook
// settlement, and cancellation reconciliation.
type Service struct {
	repo      Repository
	provider  Provider
	missions  missionSource
	customers customerStore
	currency  string
}

// NewService creates a payment service. Currency defaults to EUR.
func NewService(repo Repository, provider Provider, missions missionSource, customers customerStore) *Service {
	return &Service{
		repo:      repo,
		provider:  provider,
		missions:  missions,
		customers: customers,
		currency:  "eur",
	}
}

// IntentResult is handed back to the client for completing the charge.
type IntentResult struct {
	ClientSecret    string
	PaymentIntentID string
}

// CreateIntent opens a charge attempt for a mission. Amounts cross the
// provider boundary in integer cents so no floating rounding drifts between
// what we persist and what the processor captures.
func (s *Service) CreateIntent(ctx context.Context, userID, missionID string) (IntentResult, error) {
	m, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		return IntentResult{}, err
	}
	if m.ClientID != userID {
		return IntentResult{}, ErrNotMissionClient
	}

	if _, err := s.repo.GetActiveByMission(ctx, missionID); err == nil {
		return IntentResult{}, ErrPaymentExists
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return IntentResult{}, err
	}

	amountCents := toCents(m.EstimatedPrice)
	commissionCents := toCents(m.Commission)
	providerCents := amountCents - commissionCents

	email, name, customerID, err := s.customers.PaymentProfile(ctx, userID)
	if err != nil {
		return IntentResult{}, err
	}
	if customerID == "" {
		customerID, err = s.provider.EnsureCustomer(ctx, email, name)
		if err != nil {
			return IntentResult{}, fmt.Errorf("%w: create customer: %v", ErrProvider, err)
		}
		if err := s.customers.SetCustomerID(ctx, userID, customerID); err != nil {
			return IntentResult{}, err
		}
	}

	providerID := ""
	if m.ProviderID != nil {
		providerID = *m.ProviderID
	}
	intent, err := s.provider.CreateIntent(ctx, IntentParams{
		AmountCents: amountCents,
		Currency:    s.currency,
		CustomerID:  customerID,
		Metadata: map[string]string{
			"missionId":  m.ID,
			"clientId":   m.ClientID,
			"providerId": providerID,
		},
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: create intent: %v", ErrProvider, err)
	}

	if _, err := s.repo.Create(ctx, CreateParams{
		Amount:              m.EstimatedPrice,
		Commission:          m.Commission,
		ProviderAmount:      float64(providerCents) / 100,
		Currency:            s.currency,
		StripePaymentIntent: intent.ID,
		MissionID:           m.ID,
		UserID:              userID,
	}); err != nil {
		return IntentResult{}, err
	}

	return IntentResult{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// Confirm settles a payment after the client reports the charge finished.
// The intent's state is re-read from the provider, never trusted from input.
func (s *Service) Confirm(ctx context.Context, intentID string) error {
	intent, err := s.provider.GetIntent(ctx, intentID)
	if err != nil {
		return fmt.Errorf("%w: retrieve intent: %v", ErrProvider, err)
	}
	if intent.Status != "succeeded" {
		return ErrNotSucceeded
	}

	rows, err := s.repo.SetStatusByIntent(ctx, intentID, StatusCompleted, intent.ChargeID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// HandleWebhook verifies and applies a provider callback. Settlement is an
// update keyed by the intent reference: a duplicate delivery re-applies the
// same terminal status and an unknown intent updates zero rows, neither of
// which is an error.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	var status Status
	switch event.Type {
	case EventIntentSucceeded:
		status = StatusCompleted
	case EventIntentFailed:
		status = StatusFailed
	default:
		log.Printf("payment: unhandled webhook event %s", event.Type)
		return nil
	}

	rows, err := s.repo.SetStatusByIntent(ctx, event.IntentID, status, "")
	if err != nil {
		return err
	}
	if rows == 0 {
		log.Printf("payment: webhook %s for unknown intent %s", event.Type, event.IntentID)
	}
	return nil
}

// History returns the payer's payments newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Payment, error) {
	return s.repo.ListForUser(ctx, userID)
}

// ReleaseForMission reconciles a cancelled mission's active payment: captured
// funds are refunded, anything not yet captured is marked failed. No active
// payment is a no-op.
func (s *Service) ReleaseForMission(ctx context.Context, missionID string) error {
	p, err := s.repo.GetActiveByMission(ctx, missionID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil
		}
		return err
	}

	switch p.Status {
	case StatusCompleted:
		if err := s.provider.Refund(ctx, p.StripePaymentIntent); err != nil {
			return fmt.Errorf("%w: refund: %v", ErrProvider, err)
		}
		_, err = s.repo.SetStatusByIntent(ctx, p.StripePaymentIntent, StatusRefunded, "")
		return err
	case StatusPending, StatusProcessing:
		_, err = s.repo.SetStatusByIntent(ctx, p.StripePaymentIntent, StatusFailed, "")
		return err
	default:
		return nil
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
