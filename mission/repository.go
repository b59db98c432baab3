package mission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrMissionNotFound signals the mission does not exist.
	ErrMissionNotFound = errors.New("mission: not found")
	// ErrNotAvailable signals an accept attempt on a mission that is no longer PENDING.
	ErrNotAvailable = errors.New("mission: not available")
	// ErrInvalidTransition signals a lifecycle move absent from the transition table.
	ErrInvalidTransition = errors.New("mission: invalid status transition")
)

// Repository handles mission persistence. Conditional operations perform the
// status check and the update as a single atomic statement, so concurrent
// callers serialize through the store rather than racing a read-then-write.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Mission, error)
	GetByID(ctx context.Context, missionID string) (Mission, error)
	List(ctx context.Context, filters ListFilters) ([]Mission, error)
	ListForUser(ctx context.Context, userID, as string) ([]Mission, error)

	AcceptPending(ctx context.Context, missionID, providerID string) (Mission, error)
	MarkInProgress(ctx context.Context, missionID string) (Mission, error)
	CompleteAndCountJob(ctx context.Context, missionID, providerID string) (Mission, error)
	CancelActive(ctx context.Context, missionID string) (Mission, error)

	DeviceToken(ctx context.Context, userID string) (string, error)
}

const missionColumns = `m.id, m.title, m.description, m.category, m.is_urgent,
	m.latitude, m.longitude, m.address, m.estimated_price, m.commission,
	m.status, m.client_id, m.provider_id,
	m.accepted_at, m.started_at, m.completed_at, m.cancelled_at,
	m.created_at, m.updated_at`

const partyColumns = `c.id, c.first_name, c.last_name, c.rating, c.phone_number,
	p.id, p.first_name, p.last_name, p.rating, p.phone_number`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed mission repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a PENDING mission owned by the client.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Mission, error) {
	insertSQL := `
		INSERT INTO missions (title, description, category, is_urgent,
			latitude, longitude, address, estimated_price, commission, client_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + bareMissionColumns()

	m, err := scanMission(r.pool.QueryRow(ctx, insertSQL,
		params.Title,
		params.Description,
		params.Category,
		params.IsUrgent,
		params.Latitude,
		params.Longitude,
		params.Address,
		params.EstimatedPrice,
		params.Commission,
		params.ClientID,
	))
	if err != nil {
		return Mission{}, fmt.Errorf("mission: create: %w", err)
	}
	return m, nil
}

// GetByID fetches a mission with client and provider profiles attached.
func (r *PGRepository) GetByID(ctx context.Context, missionID string) (Mission, error) {
	query := `
		SELECT ` + missionColumns + `, ` + partyColumns + `
		FROM missions m
		JOIN users c ON c.id = m.client_id
		LEFT JOIN users p ON p.id = m.provider_id
		WHERE m.id = $1
	`

	m, err := scanMissionWithParties(r.pool.QueryRow(ctx, query, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mission{}, ErrMissionNotFound
		}
		return Mission{}, fmt.Errorf("mission: get by id: %w", err)
	}
	return m, nil
}

// List returns missions matching the filters, newest first.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Mission, error) {
	query := `
		SELECT ` + missionColumns + `, ` + partyColumns + `
		FROM missions m
		JOIN users c ON c.id = m.client_id
		LEFT JOIN users p ON p.id = m.provider_id
		WHERE 1=1
	`
	args := make([]any, 0, 3)
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND m.status = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += fmt.Sprintf(" AND m.category = $%d", len(args))
	}
	if filters.IsUrgent != nil {
		args = append(args, *filters.IsUrgent)
		query += fmt.Sprintf(" AND m.is_urgent = $%d", len(args))
	}
	query += " ORDER BY m.created_at DESC"

	return r.queryMissions(ctx, query, args...)
}

// ListForUser returns missions where the user participates. as narrows the
// side: "client", "provider", or anything else for both.
func (r *PGRepository) ListForUser(ctx context.Context, userID, as string) ([]Mission, error) {
	query := `
		SELECT ` + missionColumns + `, ` + partyColumns + `
		FROM missions m
		JOIN users c ON c.id = m.client_id
		LEFT JOIN users p ON p.id = m.provider_id
		WHERE `
	switch as {
	case "client":
		query += "m.client_id = $1"
	case "provider":
		query += "m.provider_id = $1"
	default:
		query += "(m.client_id = $1 OR m.provider_id = $1)"
	}
	query += " ORDER BY m.created_at DESC"

	return r.queryMissions(ctx, query, userID)
}

// AcceptPending atomically assigns the provider iff the mission is still
// PENDING. Exactly one of N concurrent callers can win.
func (r *PGRepository) AcceptPending(ctx context.Context, missionID, providerID string) (Mission, error) {
	updateSQL := `
		UPDATE missions m
		SET provider_id = $2, status = 'ACCEPTED', accepted_at = now(), updated_at = now()
		WHERE m.id = $1 AND m.status = 'PENDING'
		RETURNING ` + missionColumns

	m, err := scanMission(r.pool.QueryRow(ctx, updateSQL, missionID, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mission{}, r.conditionMiss(ctx, missionID, ErrNotAvailable)
		}
		return Mission{}, fmt.Errorf("mission: accept: %w", err)
	}
	return m, nil
}

// MarkInProgress moves ACCEPTED to IN_PROGRESS and stamps started_at.
func (r *PGRepository) MarkInProgress(ctx context.Context, missionID string) (Mission, error) {
	updateSQL := `
		UPDATE missions m
		SET status = 'IN_PROGRESS', started_at = now(), updated_at = now()
		WHERE m.id = $1 AND m.status = 'ACCEPTED'
		RETURNING ` + missionColumns

	m, err := scanMission(r.pool.QueryRow(ctx, updateSQL, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mission{}, r.conditionMiss(ctx, missionID, ErrInvalidTransition)
		}
		return Mission{}, fmt.Errorf("mission: mark in progress: %w", err)
	}
	return m, nil
}

// CompleteAndCountJob moves IN_PROGRESS to COMPLETED and increments the
// provider's job counter in the same transaction. A retried completion hits
// the status guard and fails instead of double-incrementing.
func (r *PGRepository) CompleteAndCountJob(ctx context.Context, missionID, providerID string) (Mission, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Mission{}, fmt.Errorf("mission: begin complete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
		UPDATE missions m
		SET status = 'COMPLETED', completed_at = now(), updated_at = now()
		WHERE m.id = $1 AND m.status = 'IN_PROGRESS' AND m.provider_id = $2
		RETURNING ` + missionColumns

	m, err := scanMission(tx.QueryRow(ctx, updateSQL, missionID, providerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mission{}, r.conditionMiss(ctx, missionID, ErrInvalidTransition)
		}
		return Mission{}, fmt.Errorf("mission: complete: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET total_jobs = total_jobs + 1, updated_at = now() WHERE id = $1`, providerID); err != nil {
		return Mission{}, fmt.Errorf("mission: count provider job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Mission{}, fmt.Errorf("mission: commit complete tx: %w", err)
	}
	return m, nil
}

// CancelActive moves any non-terminal mission to CANCELLED.
func (r *PGRepository) CancelActive(ctx context.Context, missionID string) (Mission, error) {
	updateSQL := `
		UPDATE missions m
		SET status = 'CANCELLED', cancelled_at = now(), updated_at = now()
		WHERE m.id = $1 AND m.status IN ('PENDING','ACCEPTED','IN_PROGRESS')
		RETURNING ` + missionColumns

	m, err := scanMission(r.pool.QueryRow(ctx, updateSQL, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mission{}, r.conditionMiss(ctx, missionID, ErrInvalidTransition)
		}
		return Mission{}, fmt.Errorf("mission: cancel: %w", err)
	}
	return m, nil
}

// DeviceToken returns the push token registered for the user, or "" if none.
func (r *PGRepository) DeviceToken(ctx context.Context, userID string) (string, error) {
	var token *string
	err := r.pool.QueryRow(ctx, `SELECT fcm_token FROM users WHERE id = $1`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("mission: device token: %w", err)
	}
	if token == nil {
		return "", nil
	}
	return *token, nil
}

// conditionMiss distinguishes a missing mission from one whose state moved on.
func (r *PGRepository) conditionMiss(ctx context.Context, missionID string, stateErr error) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM missions WHERE id=$1)`, missionID).Scan(&exists); err != nil {
		return fmt.Errorf("mission: verify existence: %w", err)
	}
	if !exists {
		return ErrMissionNotFound
	}
	return stateErr
}

func (r *PGRepository) queryMissions(ctx context.Context, query string, args ...any) ([]Mission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mission: list: %w", err)
	}
	defer rows.Close()

	missions := make([]Mission, 0, 16)
	for rows.Next() {
		m, err := scanMissionWithParties(rows)
		if err != nil {
			return nil, fmt.Errorf("mission: scan: %w", err)
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mission: iterate: %w", err)
	}
	return missions, nil
}

func bareMissionColumns() string {
	// RETURNING on a bare UPDATE/INSERT has no table alias to qualify.
	return `id, title, description, category, is_urgent,
	latitude, longitude, address, estimated_price, commission,
	status, client_id, provider_id,
	accepted_at, started_at, completed_at, cancelled_at,
	created_at, updated_at`
}

func scanMission(row pgx.Row) (Mission, error) {
	var m Mission
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Category, &m.IsUrgent,
		&m.Latitude, &m.Longitude, &m.Address, &m.EstimatedPrice, &m.Commission,
		&m.Status, &m.ClientID, &m.ProviderID,
		&m.AcceptedAt, &m.StartedAt, &m.CompletedAt, &m.CancelledAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return Mission{}, err
	}
	return m, nil
}

func scanMissionWithParties(row pgx.Row) (Mission, error) {
	var (
		m      Mission
		client Party

		provID     *string
		provFirst  *string
		provLast   *string
		provRating *float64
		provPhone  *string
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Category, &m.IsUrgent,
		&m.Latitude, &m.Longitude, &m.Address, &m.EstimatedPrice, &m.Commission,
		&m.Status, &m.ClientID, &m.ProviderID,
		&m.AcceptedAt, &m.StartedAt, &m.CompletedAt, &m.CancelledAt,
		&m.CreatedAt, &m.UpdatedAt,
		&client.ID, &client.FirstName, &client.LastName, &client.Rating, &client.PhoneNumber,
		&provID, &provFirst, &provLast, &provRating, &provPhone,
	)
	if err != nil {
		return Mission{}, err
	}
	m.Client = &client
	if provID != nil {
		m.Provider = &Party{
			ID:          *provID,
			FirstName:   derefString(provFirst),
			LastName:    derefString(provLast),
			Rating:      derefFloat(provRating),
			PhoneNumber: provPhone,
		}
	}
	return m, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
