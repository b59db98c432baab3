package mission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func TestCommissionFixedAtCreation(t *testing.T) {
	repo := newFakeRepo()
	svc := newInlineService(repo, 0.15)
	ctx := context.Background()

	m, err := svc.Create(ctx, "client-1", CreateRequest{
		Title:          "Assemble shelves",
		Description:    "Two bookshelves, tools provided",
		Category:       "handywork",
		EstimatedPrice: 100,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Commission != 15.0 {
		t.Fatalf("expected commission 15.0, got %v", m.Commission)
	}
	if m.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", m.Status)
	}
	if m.ProviderID != nil {
		t.Fatalf("expected nil provider on a pending mission")
	}

	// Rounding lands on cents.
	m2, err := svc.Create(ctx, "client-1", CreateRequest{Title: "t", Description: "d", Category: "c", EstimatedPrice: 99.99})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m2.Commission != 15.0 {
		t.Fatalf("expected commission 15.00 for 99.99, got %v", m2.Commission)
	}
}

func TestCreateRejectsNonPositivePrice(t *testing.T) {
	svc := newInlineService(newFakeRepo(), 0.15)
	for _, price := range []float64{0, -10} {
		if _, err := svc.Create(context.Background(), "client-1", CreateRequest{Title: "t", EstimatedPrice: price}); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %v: expected ErrInvalidPrice, got %v", price, err)
		}
	}
}

func TestAcceptTransitionAndNotification(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newInlineService(repo, 0.15).WithNotifier(notifier, time.Second)
	ctx := context.Background()

	repo.tokens["client-1"] = "client-device"
	m := repo.seed(t, "client-1", StatusPending, nil)

	accepted, err := svc.Accept(ctx, m.ID, "provider-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", accepted.Status)
	}
	if accepted.ProviderID == nil || *accepted.ProviderID != "provider-1" {
		t.Fatalf("expected provider-1 assigned, got %v", accepted.ProviderID)
	}
	if accepted.AcceptedAt == nil {
		t.Fatal("expected acceptedAt to be stamped")
	}

	if got := notifier.sent(); len(got) != 1 || got[0].token != "client-device" {
		t.Fatalf("expected one push to the client, got %+v", got)
	}

	// Second accept observes the post-transition state.
	if _, err := svc.Accept(ctx, m.ID, "provider-2"); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	if _, err := svc.Accept(ctx, "no-such-mission", "provider-2"); !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("expected ErrMissionNotFound, got %v", err)
	}
}

func TestAcceptExactlyOnceUnderConcurrency(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0.15)
	ctx := context.Background()

	m := repo.seed(t, "client-1", StatusPending, nil)

	const attempts = 16
	var (
		mu     sync.Mutex
		wins   int
		losses int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < attempts; i++ {
		providerID := uuid.NewString()
		g.Go(func() error {
			_, err := svc.Accept(gctx, m.ID, providerID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrNotAvailable):
				losses++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected accept error: %v", err)
	}

	if wins != 1 || losses != attempts-1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}
	final, _ := repo.GetByID(ctx, m.ID)
	if final.Status != StatusAccepted || final.ProviderID == nil {
		t.Fatalf("expected a single ACCEPTED assignment, got %s %v", final.Status, final.ProviderID)
	}
}

func TestUpdateStatusRejectsOutsiders(t *testing.T) {
	repo := newFakeRepo()
	svc := newInlineService(repo, 0.15)
	ctx := context.Background()

	provider := "provider-1"
	m := repo.seed(t, "client-1", StatusAccepted, &provider)

	for _, status := range []Status{StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled} {
		if _, err := svc.UpdateStatus(ctx, m.ID, "stranger", status); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("status %s: expected ErrNotAuthorized, got %v", status, err)
		}
	}
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	repo := newFakeRepo()
	svc := newInlineService(repo, 0.15)
	ctx := context.Background()

	provider := "provider-1"
	m := repo.seed(t, "client-1", StatusAccepted, &provider)

	// The client may not start or complete the work.
	if _, err := svc.UpdateStatus(ctx, m.ID, "client-1", StatusInProgress); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("client start: expected ErrNotAuthorized, got %v", err)
	}

	// Skipping ACCEPTED -> COMPLETED is rejected.
	if _, err := svc.UpdateStatus(ctx, m.ID, provider, StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip to completed: expected ErrInvalidTransition, got %v", err)
	}

	// Backward moves are rejected.
	if _, err := svc.UpdateStatus(ctx, m.ID, provider, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward: expected ErrInvalidTransition, got %v", err)
	}

	started, err := svc.UpdateStatus(ctx, m.ID, provider, StatusInProgress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress || started.StartedAt == nil {
		t.Fatalf("expected IN_PROGRESS with startedAt, got %+v", started)
	}

	done, err := svc.UpdateStatus(ctx, m.ID, provider, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected COMPLETED with completedAt, got %+v", done)
	}
}

func TestCompleteCountsJobExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newInlineService(repo, 0.15)
	ctx := context.Background()

	provider := "provider-1"
	m := repo.seed(t, "client-1", StatusInProgress, &provider)

	if _, err := svc.UpdateStatus(ctx, m.ID, provider, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if repo.jobs[provider] != 1 {
		t.Fatalf("expected totalJobs 1, got %d", repo.jobs[provider])
	}

	// A retried completion fails on the status guard and must not
	// double-increment.
	if _, err := svc.UpdateStatus(ctx, m.ID, provider, StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("retry: expected ErrInvalidTransition, got %v", err)
	}
	if repo.jobs[provider] != 1 {
		t.Fatalf("expected totalJobs to stay 1, got %d", repo.jobs[provider])
	}
}

func TestCancelRules(t *testing.T) {
	repo := newFakeRepo()
	releaser := &fakeReleaser{}
	svc := newInlineService(repo, 0.15).WithPayments(releaser)
	ctx := context.Background()

	provider := "provider-1"
	m := repo.seed(t, "client-1", StatusAccepted, &provider)

	cancelled, err := svc.Cancel(ctx, m.ID, "client-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected CANCELLED with cancelledAt, got %+v", cancelled)
	}
	if len(releaser.released) != 1 || releaser.released[0] != m.ID {
		t.Fatalf("expected payment release for %s, got %v", m.ID, releaser.released)
	}

	// Terminal states cannot be cancelled.
	done := repo.seed(t, "client-1", StatusCompleted, &provider)
	if _, err := svc.Cancel(ctx, done.ID, "client-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel completed: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Cancel(ctx, m.ID, "client-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel twice: expected ErrInvalidTransition, got %v", err)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{err: errors.New("push gateway down")}
	svc := newInlineService(repo, 0.15).WithNotifier(notifier, time.Second)
	ctx := context.Background()

	repo.tokens["client-1"] = "client-device"
	m := repo.seed(t, "client-1", StatusPending, nil)

	accepted, err := svc.Accept(ctx, m.ID, "provider-1")
	if err != nil {
		t.Fatalf("accept should succeed despite push failure, got %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", accepted.Status)
	}
}

func TestStatusChangeNotifiesCounterpart(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := newInlineService(repo, 0.15).WithNotifier(notifier, time.Second)
	ctx := context.Background()

	provider := "provider-1"
	repo.tokens["client-1"] = "client-device"
	repo.tokens[provider] = "provider-device"
	m := repo.seed(t, "client-1", StatusAccepted, &provider)

	// Provider acts, so the client is notified.
	if _, err := svc.UpdateStatus(ctx, m.ID, provider, StatusInProgress); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := notifier.sent()
	if len(got) != 1 || got[0].token != "client-device" {
		t.Fatalf("expected push to client-device, got %+v", got)
	}
}

// newInlineService runs side effects synchronously so tests can observe them.
func newInlineService(repo Repository, rate float64) *Service {
	svc := NewService(repo, rate)
	svc.spawn = func(f func()) { f() }
	return svc
}

type fakeRepo struct {
	mu       sync.Mutex
	missions map[string]Mission
	tokens   map[string]string
	jobs     map[string]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		missions: make(map[string]Mission),
		tokens:   make(map[string]string),
		jobs:     make(map[string]int),
	}
}

func (f *fakeRepo) seed(t *testing.T, clientID string, status Status, providerID *string) Mission {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	m := Mission{
		ID:             uuid.NewString(),
		Title:          "Seeded mission",
		Description:    "d",
		Category:       "c",
		EstimatedPrice: 100,
		Commission:     15,
		Status:         status,
		ClientID:       clientID,
		ProviderID:     providerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.missions[m.ID] = m
	return m
}

func (f *fakeRepo) Create(_ context.Context, params CreateParams) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	m := Mission{
		ID:             uuid.NewString(),
		Title:          params.Title,
		Description:    params.Description,
		Category:       params.Category,
		IsUrgent:       params.IsUrgent,
		Latitude:       params.Latitude,
		Longitude:      params.Longitude,
		Address:        params.Address,
		EstimatedPrice: params.EstimatedPrice,
		Commission:     params.Commission,
		Status:         StatusPending,
		ClientID:       params.ClientID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.missions[m.ID] = m
	return m, nil
}

func (f *fakeRepo) GetByID(_ context.Context, missionID string) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[missionID]
	if !ok {
		return Mission{}, ErrMissionNotFound
	}
	return m, nil
}

func (f *fakeRepo) List(_ context.Context, filters ListFilters) ([]Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Mission, 0, len(f.missions))
	for _, m := range f.missions {
		if filters.Status != "" && m.Status != filters.Status {
			continue
		}
		if filters.Category != "" && m.Category != filters.Category {
			continue
		}
		if filters.IsUrgent != nil && m.IsUrgent != *filters.IsUrgent {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) ListForUser(_ context.Context, userID, as string) ([]Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Mission, 0, len(f.missions))
	for _, m := range f.missions {
		isClient := m.ClientID == userID
		isProv := m.ProviderID != nil && *m.ProviderID == userID
		switch as {
		case "client":
			if !isClient {
				continue
			}
		case "provider":
			if !isProv {
				continue
			}
		default:
			if !isClient && !isProv {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) AcceptPending(_ context.Context, missionID, providerID string) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[missionID]
	if !ok {
		return Mission{}, ErrMissionNotFound
	}
	if m.Status != StatusPending {
		return Mission{}, ErrNotAvailable
	}
	now := time.Now()
	m.Status = StatusAccepted
	m.ProviderID = &providerID
	m.AcceptedAt = &now
	m.UpdatedAt = now
	f.missions[missionID] = m
	return m, nil
}

func (f *fakeRepo) MarkInProgress(_ context.Context, missionID string) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[missionID]
	if !ok {
		return Mission{}, ErrMissionNotFound
	}
	if m.Status != StatusAccepted {
		return Mission{}, ErrInvalidTransition
	}
	now := time.Now()
	m.Status = StatusInProgress
	m.StartedAt = &now
	m.UpdatedAt = now
	f.missions[missionID] = m
	return m, nil
}

func (f *fakeRepo) CompleteAndCountJob(_ context.Context, missionID, providerID string) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[missionID]
	if !ok {
		return Mission{}, ErrMissionNotFound
	}
	if m.Status != StatusInProgress || m.ProviderID == nil || *m.ProviderID != providerID {
		return Mission{}, ErrInvalidTransition
	}
	now := time.Now()
	m.Status = StatusCompleted
	m.CompletedAt = &now
	m.UpdatedAt = now
	f.missions[missionID] = m
	f.jobs[providerID]++
	return m, nil
}

func (f *fakeRepo) CancelActive(_ context.Context, missionID string) (Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[missionID]
	if !ok {
		return Mission{}, ErrMissionNotFound
	}
	if m.Status.Terminal() {
		return Mission{}, ErrInvalidTransition
	}
	now := time.Now()
	m.Status = StatusCancelled
	m.CancelledAt = &now
	m.UpdatedAt = now
	f.missions[missionID] = m
	return m, nil
}

func (f *fakeRepo) DeviceToken(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

type pushRecord struct {
	token string
	title string
	body  string
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	pushes []pushRecord
}

func (f *fakeNotifier) Push(_ context.Context, token, title, body string, _ map[string]string) error {
	f.mu.Lock()
	f.pushes = append(f.pushes, pushRecord{token: token, title: title, body: body})
	f.mu.Unlock()
	return f.err
}

func (f *fakeNotifier) sent() []pushRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pushRecord, len(f.pushes))
	copy(out, f.pushes)
	return out
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeReleaser) ReleaseForMission(_ context.Context, missionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, missionID)
	return nil
}
