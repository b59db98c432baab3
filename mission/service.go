package mission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

var (
	// ErrNotAuthorized signals the actor is neither the mission's client nor its provider.
	ErrNotAuthorized = errors.New("mission: not authorized")
	// ErrInvalidPrice signals a non-positive estimated price.
	ErrInvalidPrice = errors.New("mission: estimated price must be positive")
)

// Notifier delivers a best-effort push message to a device token.
type Notifier interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

// PaymentReleaser reconciles a mission's active payment when the mission is
// cancelled: captured funds are refunded, uncaptured intents voided.
type PaymentReleaser interface {
	ReleaseForMission(ctx context.Context, missionID string) error
}

// Service is the mission lifecycle engine: it owns state transitions, the
// commission computation, transition authorization, and side effects.
type Service struct {
	repo           Repository
	notifier       Notifier
	payments       PaymentReleaser
	commissionRate float64
	pushTimeout    time.Duration

	// spawn runs side-effect work; tests replace it to run inline.
	spawn func(func())
}

// NewService creates a lifecycle engine with the configured commission rate.
func NewService(repo Repository, commissionRate float64) *Service {
	return &Service{
		repo:           repo,
		commissionRate: commissionRate,
		pushTimeout:    5 * time.Second,
		spawn:          func(f func()) { go f() },
	}
}

// WithNotifier attaches the push capability. timeout bounds each delivery.
func (s *Service) WithNotifier(n Notifier, timeout time.Duration) *Service {
	s.notifier = n
	if timeout > 0 {
		s.pushTimeout = timeout
	}
	return s
}

// WithPayments attaches payment reconciliation for cancellations.
func (s *Service) WithPayments(p PaymentReleaser) *Service {
	s.payments = p
	return s
}

// CommissionFor computes the platform cut, rounded to cents. It is fixed at
// mission creation and never recomputed by later transitions.
func CommissionFor(price, rate float64) float64 {
	return math.Round(price*rate*100) / 100
}

// CreateRequest carries client-supplied mission fields.
type CreateRequest struct {
	Title          string
	Description    string
	Category       string
	IsUrgent       bool
	Latitude       float64
	Longitude      float64
	Address        string
	EstimatedPrice float64
}

// Create persists a new PENDING mission owned by the client.
func (s *Service) Create(ctx context.Context, clientID string, req CreateRequest) (Mission, error) {
	if req.EstimatedPrice <= 0 {
		return Mission{}, ErrInvalidPrice
	}

	return s.repo.Create(ctx, CreateParams{
		ClientID:       clientID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		IsUrgent:       req.IsUrgent,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Address:        req.Address,
		EstimatedPrice: req.EstimatedPrice,
		Commission:     CommissionFor(req.EstimatedPrice, s.commissionRate),
	})
}

// GetByID fetches a mission with participant profiles.
func (s *Service) GetByID(ctx context.Context, missionID string) (Mission, error) {
	return s.repo.GetByID(ctx, missionID)
}

// List returns missions matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Mission, error) {
	return s.repo.List(ctx, filters)
}

// ListForUser returns the user's missions as client, provider, or both.
func (s *Service) ListForUser(ctx context.Context, userID, as string) ([]Mission, error) {
	return s.repo.ListForUser(ctx, userID, as)
}

// Accept assigns the provider to a PENDING mission. The status check and the
// assignment are one atomic conditional update; under concurrent accepts
// exactly one caller wins and the rest observe ErrNotAvailable.
func (s *Service) Accept(ctx context.Context, missionID, providerID string) (Mission, error) {
	m, err := s.repo.AcceptPending(ctx, missionID, providerID)
	if err != nil {
		return Mission{}, err
	}

	s.notify(m.ClientID, "Mission Accepted",
		fmt.Sprintf("Your mission %q has been accepted", m.Title),
		map[string]string{"missionId": m.ID})

	return m, nil
}

// UpdateStatus applies a lifecycle transition on behalf of the actor. Only
// transitions present in the table are allowed:
//
//	ACCEPTED    -> IN_PROGRESS  (provider)
//	IN_PROGRESS -> COMPLETED    (provider)
//	any active  -> CANCELLED    (either party, via Cancel)
func (s *Service) UpdateStatus(ctx context.Context, missionID, actorID string, next Status) (Mission, error) {
	m, err := s.repo.GetByID(ctx, missionID)
	if err != nil {
		return Mission{}, err
	}

	// Authorization comes first and applies to every requested status value.
	if !isParticipant(m, actorID) {
		return Mission{}, ErrNotAuthorized
	}

	switch next {
	case StatusInProgress:
		if !isProvider(m, actorID) {
			return Mission{}, ErrNotAuthorized
		}
		if m.Status != StatusAccepted {
			return Mission{}, ErrInvalidTransition
		}
		m, err = s.repo.MarkInProgress(ctx, missionID)
	case StatusCompleted:
		if !isProvider(m, actorID) {
			return Mission{}, ErrNotAuthorized
		}
		if m.Status != StatusInProgress {
			return Mission{}, ErrInvalidTransition
		}
		m, err = s.repo.CompleteAndCountJob(ctx, missionID, actorID)
	case StatusCancelled:
		return s.Cancel(ctx, missionID, actorID)
	default:
		return Mission{}, ErrInvalidTransition
	}
	if err != nil {
		return Mission{}, err
	}

	s.notifyCounterpart(m, actorID, "Mission Status Updated",
		fmt.Sprintf("Mission %q is now %s", m.Title, m.Status))

	return m, nil
}

// Cancel moves an active mission to CANCELLED, releases its payment, and
// notifies the counterparty. Either participant may cancel before completion.
func (s *Service) Cancel(ctx context.Context, missionID, actorID string) (Mission, error) {
	m, err := s.repo.GetByID(ctx, missionID)
	if err != nil {
		return Mission{}, err
	}
	if !isParticipant(m, actorID) {
		return Mission{}, ErrNotAuthorized
	}
	if m.Status.Terminal() {
		return Mission{}, ErrInvalidTransition
	}

	m, err = s.repo.CancelActive(ctx, missionID)
	if err != nil {
		return Mission{}, err
	}

	if s.payments != nil {
		if err := s.payments.ReleaseForMission(ctx, missionID); err != nil {
			// The mission is already cancelled; surface the payment failure
			// so the caller knows the refund needs attention.
			return m, fmt.Errorf("mission: release payment: %w", err)
		}
	}

	s.notifyCounterpart(m, actorID, "Mission Cancelled",
		fmt.Sprintf("Mission %q has been cancelled", m.Title))

	return m, nil
}

func isParticipant(m Mission, actorID string) bool {
	return actorID == m.ClientID || isProvider(m, actorID)
}

func isProvider(m Mission, actorID string) bool {
	return m.ProviderID != nil && *m.ProviderID == actorID
}

// notifyCounterpart pushes to whichever participant did not act.
func (s *Service) notifyCounterpart(m Mission, actorID, title, body string) {
	recipient := m.ClientID
	if actorID == m.ClientID {
		if m.ProviderID == nil {
			return
		}
		recipient = *m.ProviderID
	}
	s.notify(recipient, title, body, map[string]string{"missionId": m.ID})
}

// notify delivers a push fire-and-forget: failures are logged and never fail
// or roll back the triggering transition.
func (s *Service) notify(userID, title, body string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
		defer cancel()

		token, err := s.repo.DeviceToken(ctx, userID)
		if err != nil {
			log.Printf("mission: lookup device token for %s: %v", userID, err)
			return
		}
		if token == "" {
			return
		}
		if err := s.notifier.Push(ctx, token, title, body, data); err != nil {
			log.Printf("mission: push to %s failed: %v", userID, err)
		}
	})
}
