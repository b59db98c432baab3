package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order; each entry runs at most once per database.
var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS users (
		id                 uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		email              text NOT NULL UNIQUE,
		password_hash      text NOT NULL,
		first_name         text NOT NULL,
		last_name          text NOT NULL,
		phone_number       text,
		role               text NOT NULL DEFAULT 'CLIENT'
		                   CHECK (role IN ('CLIENT','PROVIDER','ADMIN')),
		profile_image      text,
		latitude           double precision,
		longitude          double precision,
		address            text,
		rating             double precision NOT NULL DEFAULT 0,
		total_jobs         integer NOT NULL DEFAULT 0,
		is_available       boolean NOT NULL DEFAULT true,
		stripe_customer_id text,
		fcm_token          text,
		created_at         timestamptz NOT NULL DEFAULT now(),
		updated_at         timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS missions (
		id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		title           text NOT NULL,
		description     text NOT NULL,
		category        text NOT NULL,
		is_urgent       boolean NOT NULL DEFAULT false,
		latitude        double precision NOT NULL,
		longitude       double precision NOT NULL,
		address         text NOT NULL,
		estimated_price numeric(12,2) NOT NULL CHECK (estimated_price > 0),
		commission      numeric(12,2) NOT NULL,
		status          text NOT NULL DEFAULT 'PENDING'
		                CHECK (status IN ('PENDING','ACCEPTED','IN_PROGRESS','COMPLETED','CANCELLED')),
		client_id       uuid NOT NULL REFERENCES users(id),
		provider_id     uuid REFERENCES users(id),
		accepted_at     timestamptz,
		started_at      timestamptz,
		completed_at    timestamptz,
		cancelled_at    timestamptz,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now(),
		CHECK (
			(status = 'PENDING' AND provider_id IS NULL)
			OR status = 'CANCELLED'
			OR (status IN ('ACCEPTED','IN_PROGRESS','COMPLETED') AND provider_id IS NOT NULL)
		)
	)`,

	`CREATE INDEX IF NOT EXISTS missions_client_idx ON missions (client_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS missions_provider_idx ON missions (provider_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS missions_status_idx ON missions (status)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id                    uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		amount                numeric(12,2) NOT NULL,
		commission            numeric(12,2) NOT NULL,
		provider_amount       numeric(12,2) NOT NULL,
		currency              text NOT NULL DEFAULT 'eur',
		status                text NOT NULL DEFAULT 'PENDING'
		                      CHECK (status IN ('PENDING','PROCESSING','COMPLETED','FAILED','REFUNDED')),
		stripe_payment_intent text NOT NULL UNIQUE,
		stripe_charge_id      text,
		mission_id            uuid NOT NULL REFERENCES missions(id),
		user_id               uuid NOT NULL REFERENCES users(id),
		created_at            timestamptz NOT NULL DEFAULT now(),
		updated_at            timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS payments_mission_idx ON payments (mission_id)`,
	`CREATE INDEX IF NOT EXISTS payments_user_idx ON payments (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		content     text NOT NULL,
		mission_id  uuid NOT NULL REFERENCES missions(id),
		sender_id   uuid NOT NULL REFERENCES users(id),
		receiver_id uuid NOT NULL REFERENCES users(id),
		is_read     boolean NOT NULL DEFAULT false,
		created_at  timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS messages_mission_idx ON messages (mission_id, created_at ASC)`,
	`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (mission_id, receiver_id) WHERE NOT is_read`,
}

// Migrate applies any pending migrations, tracking progress in schema_migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    integer PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("db: create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("db: begin migration %d: %w", version, err)
		}

		var applied bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&applied); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("db: check migration %d: %w", version, err)
		}
		if applied {
			tx.Rollback(ctx)
			continue
		}

		if _, err := tx.Exec(ctx, stmt); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("db: apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("db: record migration %d: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("db: commit migration %d: %w", version, err)
		}
	}

	return nil
}
