package httpapi

import (
	"time"

	"missionflow/auth"
	"missionflow/chat"
	"missionflow/mission"
	"missionflow/payment"
	"missionflow/user"
)

// userDTO is the public view of an account. The password hash never leaves
// the auth package boundary.
type userDTO struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	Role         auth.Role `json:"role"`
	ProfileImage *string   `json:"profileImage,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Address      *string   `json:"address,omitempty"`
	Rating       float64   `json:"rating"`
	TotalJobs    int       `json:"totalJobs"`
	IsAvailable  bool      `json:"isAvailable"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  u.PhoneNumber,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		Latitude:     u.Latitude,
		Longitude:    u.Longitude,
		Address:      u.Address,
		Rating:       u.Rating,
		TotalJobs:    u.TotalJobs,
		IsAvailable:  u.IsAvailable,
		CreatedAt:    u.CreatedAt,
	}
}

type partyDTO struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Rating      float64 `json:"rating"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

func toPartyDTO(p *mission.Party) *partyDTO {
	if p == nil {
		return nil
	}
	return &partyDTO{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Rating:      p.Rating,
		PhoneNumber: p.PhoneNumber,
	}
}

type missionDTO struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	IsUrgent       bool           `json:"isUrgent"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Address        string         `json:"address"`
	EstimatedPrice float64        `json:"estimatedPrice"`
	Commission     float64        `json:"commission"`
	Status         mission.Status `json:"status"`
	ClientID       string         `json:"clientId"`
	ProviderID     *string        `json:"providerId,omitempty"`
	Client         *partyDTO      `json:"client,omitempty"`
	Provider       *partyDTO      `json:"provider,omitempty"`
	AcceptedAt     *time.Time     `json:"acceptedAt,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CancelledAt    *time.Time     `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`

	Messages []chat.Message `json:"messages,omitempty"`
}

func toMissionDTO(m mission.Mission) missionDTO {
	return missionDTO{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Category:       m.Category,
		IsUrgent:       m.IsUrgent,
		Latitude:       m.Latitude,
		Longitude:      m.Longitude,
		Address:        m.Address,
		EstimatedPrice: m.EstimatedPrice,
		Commission:     m.Commission,
		Status:         m.Status,
		ClientID:       m.ClientID,
		ProviderID:     m.ProviderID,
		Client:         toPartyDTO(m.Client),
		Provider:       toPartyDTO(m.Provider),
		AcceptedAt:     m.AcceptedAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		CancelledAt:    m.CancelledAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toMissionDTOs(missions []mission.Mission) []missionDTO {
	out := make([]missionDTO, len(missions))
	for i, m := range missions {
		out[i] = toMissionDTO(m)
	}
	return out
}

type paymentDTO struct {
	ID             string         `json:"id"`
	Amount         float64        `json:"amount"`
	Commission     float64        `json:"commission"`
	ProviderAmount float64        `json:"providerAmount"`
	Currency       string         `json:"currency"`
	Status         payment.Status `json:"status"`
	MissionID      string         `json:"missionId"`
	MissionTitle   *string        `json:"missionTitle,omitempty"`
	MissionStatus  *string        `json:"missionStatus,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func toPaymentDTO(p payment.Payment) paymentDTO {
	return paymentDTO{
		ID:             p.ID,
		Amount:         p.Amount,
		Commission:     p.Commission,
		ProviderAmount: p.ProviderAmount,
		Currency:       p.Currency,
		Status:         p.Status,
		MissionID:      p.MissionID,
		MissionTitle:   p.MissionTitle,
		MissionStatus:  p.MissionStatus,
		CreatedAt:      p.CreatedAt,
	}
}

func toPaymentDTOs(payments []payment.Payment) []paymentDTO {
	out := make([]paymentDTO, len(payments))
	for i, p := range payments {
		out[i] = toPaymentDTO(p)
	}
	return out
}

type nearbyProviderDTO struct {
	userDTO
	DistanceKm float64 `json:"distanceKm"`
}

func toNearbyProviderDTOs(providers []user.NearbyProvider) []nearbyProviderDTO {
	out := make([]nearbyProviderDTO, len(providers))
	for i, p := range providers {
		out[i] = nearbyProviderDTO{userDTO: toUserDTO(p.User), DistanceKm: p.DistanceKm}
	}
	return out
}

// pageDTO is the envelope for paginated admin listings.
type pageDTO struct {
	Data  any `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
