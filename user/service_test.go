package user

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"missionflow/auth"
)

func TestUpdateProfilePartial(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	u := repo.seed(auth.RoleClient, nil, nil, false)

	name := "Renamed"
	available := true
	updated, err := svc.UpdateProfile(context.Background(), u.ID, UpdateParams{
		FirstName:   &name,
		IsAvailable: &available,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Renamed" {
		t.Fatalf("expected first name updated, got %q", updated.FirstName)
	}
	if !updated.IsAvailable {
		t.Fatal("expected availability updated")
	}
	// Untouched fields keep their values.
	if updated.LastName != u.LastName {
		t.Fatalf("expected last name untouched, got %q", updated.LastName)
	}
}

func TestUpdateProfileValidatesCoordinates(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	u := repo.seed(auth.RoleClient, nil, nil, false)

	badLat := 91.0
	if _, err := svc.UpdateProfile(context.Background(), u.ID, UpdateParams{Latitude: &badLat}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
	badLng := -181.0
	if _, err := svc.UpdateProfile(context.Background(), u.ID, UpdateParams{Longitude: &badLng}); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestUpdateProfileRequiresFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	u := repo.seed(auth.RoleClient, nil, nil, false)

	if _, err := svc.UpdateProfile(context.Background(), u.ID, UpdateParams{}); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
}

func TestNearbyProvidersFiltersByRadius(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	// Paris city center as the search point. The Louvre sits about 1 km out,
	// Orly about 15 km, Versailles about 18 km.
	near := repo.seed(auth.RoleProvider, ptr(48.8606), ptr(2.3376), true)
	repo.seed(auth.RoleProvider, ptr(48.7262), ptr(2.3652), true)
	repo.seed(auth.RoleProvider, ptr(48.8606), ptr(2.3376), false)
	repo.seed(auth.RoleClient, ptr(48.8566), ptr(2.3522), true)
	far := repo.seed(auth.RoleProvider, ptr(48.8049), ptr(2.1204), true)

	got, err := svc.NearbyProviders(context.Background(), 48.8566, 2.3522, 10)
	if err != nil {
		t.Fatalf("nearby providers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 provider within 10km, got %d", len(got))
	}
	if got[0].User.ID != near.ID {
		t.Fatalf("expected provider %s, got %s", near.ID, got[0].User.ID)
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm > 2 {
		t.Fatalf("unexpected distance %v", got[0].DistanceKm)
	}

	// A wider radius picks up the rest, nearest first.
	got, err = svc.NearbyProviders(context.Background(), 48.8566, 2.3522, 25)
	if err != nil {
		t.Fatalf("nearby providers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 providers within 25km, got %d", len(got))
	}
	if got[0].User.ID != near.ID || got[2].User.ID != far.ID {
		t.Fatal("expected providers ordered nearest first")
	}
}

func TestNearbyProvidersDefaultRadius(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	repo.seed(auth.RoleProvider, ptr(48.8606), ptr(2.3376), true)
	repo.seed(auth.RoleProvider, ptr(48.8049), ptr(2.1204), true)

	got, err := svc.NearbyProviders(context.Background(), 48.8566, 2.3522, 0)
	if err != nil {
		t.Fatalf("nearby providers: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected default radius to exclude distant provider, got %d", len(got))
	}
}

func TestNearbyProvidersValidatesPoint(t *testing.T) {
	svc := NewService(newFakeRepo())

	if _, err := svc.NearbyProviders(context.Background(), 120, 0, 10); !errors.Is(err, ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

type fakeRepo struct {
	users map[string]*auth.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*auth.User)}
}

func (f *fakeRepo) seed(role auth.Role, lat, lng *float64, available bool) auth.User {
	u := auth.User{
		ID:          uuid.NewString(),
		Email:       uuid.NewString() + "@example.com",
		FirstName:   "Test",
		LastName:    "User",
		Role:        role,
		Latitude:    lat,
		Longitude:   lng,
		IsAvailable: available,
	}
	f.users[u.ID] = &u
	return u
}

func (f *fakeRepo) GetByID(_ context.Context, userID string) (auth.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return *u, nil
}

func (f *fakeRepo) Update(_ context.Context, userID string, params UpdateParams) (auth.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}

	touched := false
	if params.FirstName != nil {
		u.FirstName, touched = *params.FirstName, true
	}
	if params.LastName != nil {
		u.LastName, touched = *params.LastName, true
	}
	if params.PhoneNumber != nil {
		u.PhoneNumber, touched = params.PhoneNumber, true
	}
	if params.ProfileImage != nil {
		u.ProfileImage, touched = params.ProfileImage, true
	}
	if params.Latitude != nil {
		u.Latitude, touched = params.Latitude, true
	}
	if params.Longitude != nil {
		u.Longitude, touched = params.Longitude, true
	}
	if params.Address != nil {
		u.Address, touched = params.Address, true
	}
	if params.IsAvailable != nil {
		u.IsAvailable, touched = *params.IsAvailable, true
	}
	if params.FCMToken != nil {
		u.FCMToken, touched = params.FCMToken, true
	}
	if !touched {
		return auth.User{}, ErrNoFields
	}
	return *u, nil
}

func (f *fakeRepo) ListAvailableProviders(_ context.Context) ([]auth.User, error) {
	out := make([]auth.User, 0, len(f.users))
	for _, u := range f.users {
		if u.Role == auth.RoleProvider && u.IsAvailable && u.Latitude != nil && u.Longitude != nil {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeRepo) PaymentProfile(_ context.Context, userID string) (string, string, string, error) {
	u, ok := f.users[userID]
	if !ok {
		return "", "", "", auth.ErrUserNotFound
	}
	cust := ""
	if u.StripeCustomerID != nil {
		cust = *u.StripeCustomerID
	}
	return u.Email, u.FirstName + " " + u.LastName, cust, nil
}

func (f *fakeRepo) SetCustomerID(_ context.Context, userID, customerID string) error {
	u, ok := f.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.StripeCustomerID = &customerID
	return nil
}

func ptr[T any](v T) *T { return &v }
