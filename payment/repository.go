package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrPaymentNotFound signals no payment row matches the lookup.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrDuplicateIntent signals a second payment row for the same intent reference.
	ErrDuplicateIntent = errors.New("payment: duplicate intent reference")
)

// Repository handles payment persistence. Status updates are keyed by the
// external intent reference so webhook retries and duplicate deliveries
// resolve to the same row instead of inserting a second one.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Payment, error)
	GetActiveByMission(ctx context.Context, missionID string) (Payment, error)
	SetStatusByIntent(ctx context.Context, intentID string, status Status, chargeID string) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]Payment, error)
}

const paymentColumns = `id, amount, commission, provider_amount, currency, status,
	stripe_payment_intent, stripe_charge_id, mission_id, user_id, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed payment repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a PENDING payment row keyed to the external intent.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Payment, error) {
	insertSQL := `
		INSERT INTO payments (amount, commission, provider_amount, currency,
			stripe_payment_intent, mission_id, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, insertSQL,
		params.Amount,
		params.Commission,
		params.ProviderAmount,
		params.Currency,
		params.StripePaymentIntent,
		params.MissionID,
		params.UserID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Payment{}, ErrDuplicateIntent
		}
		return Payment{}, fmt.Errorf("payment: create: %w", err)
	}
	return p, nil
}

// GetActiveByMission returns the mission's non-FAILED payment, if any.
func (r *PGRepository) GetActiveByMission(ctx context.Context, missionID string) (Payment, error) {
	selectSQL := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE mission_id = $1 AND status <> 'FAILED'
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.pool.QueryRow(ctx, selectSQL, missionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("payment: get active by mission: %w", err)
	}
	return p, nil
}

// SetStatusByIntent updates the payment row keyed by intent reference and
// returns how many rows changed. Zero rows means no matching payment; callers
// decide whether that is an error (confirm) or a no-op (webhook).
func (r *PGRepository) SetStatusByIntent(ctx context.Context, intentID string, status Status, chargeID string) (int64, error) {
	var charge *string
	if chargeID != "" {
		charge = &chargeID
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    stripe_charge_id = COALESCE($3, stripe_charge_id),
		    updated_at = now()
		WHERE stripe_payment_intent = $1
	`, intentID, status, charge)
	if err != nil {
		return 0, fmt.Errorf("payment: set status by intent: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListForUser returns the payer's payments newest first with mission summaries.
func (r *PGRepository) ListForUser(ctx context.Context, userID string) ([]Payment, error) {
	query := `
		SELECT p.id, p.amount, p.commission, p.provider_amount, p.currency, p.status,
		       p.stripe_payment_intent, p.stripe_charge_id, p.mission_id, p.user_id,
		       p.created_at, p.updated_at,
		       m.title, m.status
		FROM payments p
		JOIN missions m ON m.id = p.mission_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("payment: list for user: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0, 8)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.Amount, &p.Commission, &p.ProviderAmount, &p.Currency, &p.Status,
			&p.StripePaymentIntent, &p.StripeChargeID, &p.MissionID, &p.UserID,
			&p.CreatedAt, &p.UpdatedAt,
			&p.MissionTitle, &p.MissionStatus,
		); err != nil {
			return nil, fmt.Errorf("payment: scan: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.Amount, &p.Commission, &p.ProviderAmount, &p.Currency, &p.Status,
		&p.StripePaymentIntent, &p.StripeChargeID, &p.MissionID, &p.UserID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}
