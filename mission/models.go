package mission

import "time"

// Status is the lifecycle state of a mission.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Mission mirrors the missions table. Client and Provider are attached on
// reads that join the users table; conditional writes return them nil.
type Mission struct {
	ID             string
	Title          string
	Description    string
	Category       string
	IsUrgent       bool
	Latitude       float64
	Longitude      float64
	Address        string
	EstimatedPrice float64
	Commission     float64
	Status         Status
	ClientID       string
	ProviderID     *string
	AcceptedAt     *time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Client   *Party
	Provider *Party
}

// Party is the minimal counterpart profile attached to mission reads.
type Party struct {
	ID          string
	FirstName   string
	LastName    string
	Rating      float64
	PhoneNumber *string
}

// CreateParams enumerates the fields persisted for a new mission.
type CreateParams struct {
	ClientID       string
	Title          string
	Description    string
	Category       string
	IsUrgent       bool
	Latitude       float64
	Longitude      float64
	Address        string
	EstimatedPrice float64
	Commission     float64
}

// ListFilters narrows mission listings.
type ListFilters struct {
	Status   Status
	Category string
	IsUrgent *bool
}
