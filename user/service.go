package user

import (
	"context"
	"errors"
	"math"
	"sort"

	"missionflow/auth"
)

// ErrInvalidCoordinates signals a latitude or longitude outside its range.
var ErrInvalidCoordinates = errors.New("user: invalid coordinates")

// DefaultRadiusKm bounds a nearby-provider search when the caller gives none.
const DefaultRadiusKm = 10.0

// NearbyProvider is an available provider together with its distance from
// the search point.
type NearbyProvider struct {
	User       auth.User
	DistanceKm float64
}

// Service owns profile reads and writes and provider discovery.
type Service struct {
	repo Repository
}

// NewService creates a user service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID string) (auth.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// UpdateProfile applies a partial profile update for the user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, params UpdateParams) (auth.User, error) {
	if params.Latitude != nil && (*params.Latitude < -90 || *params.Latitude > 90) {
		return auth.User{}, ErrInvalidCoordinates
	}
	if params.Longitude != nil && (*params.Longitude < -180 || *params.Longitude > 180) {
		return auth.User{}, ErrInvalidCoordinates
	}
	return s.repo.Update(ctx, userID, params)
}

// NearbyProviders returns available providers within radiusKm of the point,
// nearest first. A non-positive radius falls back to DefaultRadiusKm.
func (s *Service) NearbyProviders(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyProvider, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	providers, err := s.repo.ListAvailableProviders(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]NearbyProvider, 0, len(providers))
	for _, p := range providers {
		if p.Latitude == nil || p.Longitude == nil {
			continue
		}
		d := haversineKm(lat, lng, *p.Latitude, *p.Longitude)
		if d <= radiusKm {
			nearby = append(nearby, NearbyProvider{User: p, DistanceKm: d})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two points in kilometers.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
