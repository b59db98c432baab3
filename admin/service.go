// Package admin serves the dashboard: platform-wide aggregates and paginated
// listings over users, missions, and payments.
package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"missionflow/auth"
	"missionflow/mission"
	"missionflow/payment"
)

// Stats is the dashboard aggregate view.
type Stats struct {
	TotalUsers        int     `json:"totalUsers"`
	TotalClients      int     `json:"totalClients"`
	TotalProviders    int     `json:"totalProviders"`
	TotalMissions     int     `json:"totalMissions"`
	PendingMissions   int     `json:"pendingMissions"`
	ActiveMissions    int     `json:"activeMissions"`
	CompletedMissions int     `json:"completedMissions"`
	CancelledMissions int     `json:"cancelledMissions"`
	TotalRevenue      float64 `json:"totalRevenue"`
}

// ListFilters bounds a paginated admin listing.
type ListFilters struct {
	Role     string
	Status   string
	Page     int
	PageSize int
}

// Normalize clamps the page and page size to sane bounds.
func (f *ListFilters) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
}

func (f ListFilters) offset() int {
	return (f.Page - 1) * f.PageSize
}

// Service reads the dashboard directly off the pool. Listings are read-only
// aggregates over tables owned by other packages, so it skips the repository
// indirection those packages need for their write paths.
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates an admin service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// GetStats collects the dashboard aggregates. The independent counts run
// concurrently.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int, query string, args ...any) {
		g.Go(func() error {
			if err := s.pool.QueryRow(ctx, query, args...).Scan(dst); err != nil {
				return fmt.Errorf("admin: stats: %w", err)
			}
			return nil
		})
	}

	count(&stats.TotalUsers, `SELECT count(*) FROM users`)
	count(&stats.TotalClients, `SELECT count(*) FROM users WHERE role = 'CLIENT'`)
	count(&stats.TotalProviders, `SELECT count(*) FROM users WHERE role = 'PROVIDER'`)
	count(&stats.TotalMissions, `SELECT count(*) FROM missions`)
	count(&stats.PendingMissions, `SELECT count(*) FROM missions WHERE status = 'PENDING'`)
	count(&stats.ActiveMissions, `SELECT count(*) FROM missions WHERE status IN ('ACCEPTED','IN_PROGRESS')`)
	count(&stats.CompletedMissions, `SELECT count(*) FROM missions WHERE status = 'COMPLETED'`)
	count(&stats.CancelledMissions, `SELECT count(*) FROM missions WHERE status = 'CANCELLED'`)

	g.Go(func() error {
		err := s.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(commission), 0) FROM payments WHERE status = 'COMPLETED'`,
		).Scan(&stats.TotalRevenue)
		if err != nil {
			return fmt.Errorf("admin: stats revenue: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// ListUsers returns a page of users, optionally filtered by role, newest
// first, with the unpaginated total.
func (s *Service) ListUsers(ctx context.Context, filters ListFilters) ([]auth.User, int, error) {
	filters.Normalize()

	where := ``
	args := []any{filters.PageSize, filters.offset()}
	if filters.Role != "" {
		where = `WHERE role = $3`
		args = append(args, filters.Role)
	}

	query := `SELECT ` + auth.UserColumns() + `
		FROM users ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		u, err := auth.ScanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("admin: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("admin: iterate users: %w", err)
	}

	total, err := s.count(ctx, `users`, `role`, filters.Role)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListMissions returns a page of missions, optionally filtered by status,
// newest first, with the unpaginated total.
func (s *Service) ListMissions(ctx context.Context, filters ListFilters) ([]mission.Mission, int, error) {
	filters.Normalize()

	where := ``
	args := []any{filters.PageSize, filters.offset()}
	if filters.Status != "" {
		where = `WHERE status = $3`
		args = append(args, filters.Status)
	}

	query := `
		SELECT id, title, description, category, status, estimated_price, commission,
		       is_urgent, latitude, longitude, address, client_id, provider_id,
		       accepted_at, started_at, completed_at, cancelled_at, created_at, updated_at
		FROM missions ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("admin: list missions: %w", err)
	}
	defer rows.Close()

	missions := []mission.Mission{}
	for rows.Next() {
		var m mission.Mission
		if err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.Category, &m.Status, &m.EstimatedPrice, &m.Commission,
			&m.IsUrgent, &m.Latitude, &m.Longitude, &m.Address, &m.ClientID, &m.ProviderID,
			&m.AcceptedAt, &m.StartedAt, &m.CompletedAt, &m.CancelledAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("admin: scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("admin: iterate missions: %w", err)
	}

	total, err := s.count(ctx, `missions`, `status`, filters.Status)
	if err != nil {
		return nil, 0, err
	}
	return missions, total, nil
}

// ListPayments returns a page of payments, optionally filtered by status,
// newest first, with the unpaginated total.
func (s *Service) ListPayments(ctx context.Context, filters ListFilters) ([]payment.Payment, int, error) {
	filters.Normalize()

	where := ``
	args := []any{filters.PageSize, filters.offset()}
	if filters.Status != "" {
		where = `WHERE status = $3`
		args = append(args, filters.Status)
	}

	query := `
		SELECT id, amount, commission, provider_amount, currency, status,
		       stripe_payment_intent, stripe_charge_id, mission_id, user_id,
		       created_at, updated_at
		FROM payments ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("admin: list payments: %w", err)
	}
	defer rows.Close()

	payments := []payment.Payment{}
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(
			&p.ID, &p.Amount, &p.Commission, &p.ProviderAmount, &p.Currency, &p.Status,
			&p.StripePaymentIntent, &p.StripeChargeID, &p.MissionID, &p.UserID,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("admin: scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("admin: iterate payments: %w", err)
	}

	total, err := s.count(ctx, `payments`, `status`, filters.Status)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// count totals a table, optionally narrowed by one column equality. table and
// column come from call sites, never from input.
func (s *Service) count(ctx context.Context, table, column, value string) (int, error) {
	query := `SELECT count(*) FROM ` + table
	args := []any{}
	if value != "" {
		query += ` WHERE ` + column + ` = $1`
		args = append(args, value)
	}

	var total int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("admin: count %s: %w", table, err)
	}
	return total, nil
}
