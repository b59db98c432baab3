package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles message persistence. Messages are append-only; only the
// is_read flag mutates after insert.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Message, error)
	ListForMission(ctx context.Context, missionID string) ([]Message, error)
	MarkRead(ctx context.Context, missionID, receiverID string) (int64, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed message repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts an unread message and returns it with the sender's profile
// attached.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Message, error) {
	insertSQL := `
		WITH inserted AS (
			INSERT INTO messages (content, mission_id, sender_id, receiver_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, content, mission_id, sender_id, receiver_id, is_read, created_at
		)
		SELECT i.id, i.content, i.mission_id, i.sender_id, i.receiver_id, i.is_read, i.created_at,
		       u.first_name, u.last_name, u.profile_image
		FROM inserted i
		JOIN users u ON u.id = i.sender_id
	`

	var (
		m      Message
		sender SenderInfo
	)
	err := r.pool.QueryRow(ctx, insertSQL,
		params.Content, params.MissionID, params.SenderID, params.ReceiverID,
	).Scan(
		&m.ID, &m.Content, &m.MissionID, &m.SenderID, &m.ReceiverID, &m.IsRead, &m.CreatedAt,
		&sender.FirstName, &sender.LastName, &sender.ProfileImage,
	)
	if err != nil {
		return Message{}, fmt.Errorf("chat: create message: %w", err)
	}
	sender.ID = m.SenderID
	m.Sender = &sender
	return m, nil
}

// ListForMission returns the mission's messages oldest first, each with the
// sender's profile.
func (r *PGRepository) ListForMission(ctx context.Context, missionID string) ([]Message, error) {
	query := `
		SELECT m.id, m.content, m.mission_id, m.sender_id, m.receiver_id, m.is_read, m.created_at,
		       u.first_name, u.last_name, u.profile_image
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.mission_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("chat: list for mission: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0, 32)
	for rows.Next() {
		var (
			m      Message
			sender SenderInfo
		)
		if err := rows.Scan(
			&m.ID, &m.Content, &m.MissionID, &m.SenderID, &m.ReceiverID, &m.IsRead, &m.CreatedAt,
			&sender.FirstName, &sender.LastName, &sender.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		sender.ID = m.SenderID
		m.Sender = &sender
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}
	return messages, nil
}

// MarkRead flips is_read on every unread message addressed to receiverID in
// the mission and returns how many rows changed.
func (r *PGRepository) MarkRead(ctx context.Context, missionID, receiverID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET is_read = true
		WHERE mission_id = $1 AND receiver_id = $2 AND NOT is_read
	`, missionID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("chat: mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}
