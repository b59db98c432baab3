package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"missionflow/user"
)

type updateProfileRequest struct {
	FirstName    *string  `json:"firstName"`
	LastName     *string  `json:"lastName"`
	PhoneNumber  *string  `json:"phoneNumber"`
	ProfileImage *string  `json:"profileImage"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Address      *string  `json:"address"`
	IsAvailable  *bool    `json:"isAvailable"`
	FCMToken     *string  `json:"fcmToken"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.users.UpdateProfile(r.Context(), p.UserID, user.UpdateParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		ProfileImage: req.ProfileImage,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Address:      req.Address,
		IsAvailable:  req.IsAvailable,
		FCMToken:     req.FCMToken,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (s *Server) handleNearbyProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	radius := 0.0
	if raw := q.Get("radius"); raw != "" {
		var err error
		if radius, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid radius")
			return
		}
	}

	providers, err := s.users.NearbyProviders(r.Context(), lat, lng, radius)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toNearbyProviderDTOs(providers))
}
