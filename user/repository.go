package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"missionflow/auth"
)

// ErrNoFields signals an update request that touches no columns.
var ErrNoFields = errors.New("user: no fields to update")

// UpdateParams enumerates the profile columns a user may change. Nil fields
// are left untouched.
type UpdateParams struct {
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	ProfileImage *string
	Latitude     *float64
	Longitude    *float64
	Address      *string
	IsAvailable  *bool
	FCMToken     *string
}

// Repository handles profile persistence on top of the shared users table.
type Repository interface {
	GetByID(ctx context.Context, userID string) (auth.User, error)
	Update(ctx context.Context, userID string, params UpdateParams) (auth.User, error)
	ListAvailableProviders(ctx context.Context) ([]auth.User, error)
	PaymentProfile(ctx context.Context, userID string) (email, name, customerID string, err error)
	SetCustomerID(ctx context.Context, userID, customerID string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed user repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID retrieves a user by ID.
func (r *PGRepository) GetByID(ctx context.Context, userID string) (auth.User, error) {
	selectSQL := `SELECT ` + auth.UserColumns() + ` FROM users WHERE id = $1`

	u, err := auth.ScanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("user: get by id: %w", err)
	}
	return u, nil
}

// Update applies the non-nil fields of params in a single UPDATE.
func (r *PGRepository) Update(ctx context.Context, userID string, params UpdateParams) (auth.User, error) {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	args = append(args, userID)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.FirstName != nil {
		add("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		add("last_name", *params.LastName)
	}
	if params.PhoneNumber != nil {
		add("phone_number", *params.PhoneNumber)
	}
	if params.ProfileImage != nil {
		add("profile_image", *params.ProfileImage)
	}
	if params.Latitude != nil {
		add("latitude", *params.Latitude)
	}
	if params.Longitude != nil {
		add("longitude", *params.Longitude)
	}
	if params.Address != nil {
		add("address", *params.Address)
	}
	if params.IsAvailable != nil {
		add("is_available", *params.IsAvailable)
	}
	if params.FCMToken != nil {
		add("fcm_token", *params.FCMToken)
	}

	if len(sets) == 0 {
		return auth.User{}, ErrNoFields
	}

	updateSQL := `
		UPDATE users
		SET ` + strings.Join(sets, ", ") + `, updated_at = now()
		WHERE id = $1
		RETURNING ` + auth.UserColumns()

	u, err := auth.ScanUser(r.pool.QueryRow(ctx, updateSQL, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("user: update: %w", err)
	}
	return u, nil
}

// ListAvailableProviders returns providers that are available and have a
// known location.
func (r *PGRepository) ListAvailableProviders(ctx context.Context) ([]auth.User, error) {
	query := `
		SELECT ` + auth.UserColumns() + `
		FROM users
		WHERE role = 'PROVIDER'
		  AND is_available
		  AND latitude IS NOT NULL
		  AND longitude IS NOT NULL
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("user: list available providers: %w", err)
	}
	defer rows.Close()

	providers := make([]auth.User, 0, 16)
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("user: scan provider: %w", err)
		}
		providers = append(providers, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user: iterate providers: %w", err)
	}
	return providers, nil
}

// PaymentProfile returns what the payment layer needs to open a charge for
// the user.
func (r *PGRepository) PaymentProfile(ctx context.Context, userID string) (string, string, string, error) {
	var (
		email, firstName, lastName string
		customerID                 *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT email, first_name, last_name, stripe_customer_id
		FROM users WHERE id = $1
	`, userID).Scan(&email, &firstName, &lastName, &customerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", "", auth.ErrUserNotFound
		}
		return "", "", "", fmt.Errorf("user: payment profile: %w", err)
	}

	cust := ""
	if customerID != nil {
		cust = *customerID
	}
	return email, firstName + " " + lastName, cust, nil
}

// SetCustomerID stores the external payment customer reference on the user.
func (r *PGRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1
	`, userID, customerID)
	if err != nil {
		return fmt.Errorf("user: set customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
