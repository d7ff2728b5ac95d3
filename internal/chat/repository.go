package chat

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
)

// Repository handles chat message persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a message and fills id, created_at and the sender's name and type.
func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	const q = `WITH ins AS (
			INSERT INTO messages (legal_query_id, sender_id, message) VALUES ($1, $2, $3)
			RETURNING id, is_read, created_at, sender_id
		)
		SELECT ins.id, ins.is_read, ins.created_at, u.full_name, u.user_type
		FROM ins JOIN users u ON u.id = ins.sender_id`
	return r.pool.QueryRow(ctx, q, m.QueryID, m.SenderID, m.Message).
		Scan(&m.ID, &m.IsRead, &m.CreatedAt, &m.SenderName, &m.SenderType)
}

// ListAfter returns up to limit messages of a query with id greater than afterID, oldest first.
func (r *Repository) ListAfter(ctx context.Context, queryID, afterID int64, limit int) ([]models.Message, error) {
	const q = `SELECT m.id, m.legal_query_id, m.sender_id, m.message, m.is_read, m.created_at, u.full_name, u.user_type
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.legal_query_id = $1 AND m.id > $2
		ORDER BY m.id ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, queryID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.QueryID, &m.SenderID, &m.Message, &m.IsRead, &m.CreatedAt, &m.SenderName, &m.SenderType)
		return m, err
	})
}

// MarkRead marks messages of a query up to and including upToID as read, except those
// sent by readerID.
func (r *Repository) MarkRead(ctx context.Context, queryID, readerID, upToID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE messages SET is_read = TRUE
		WHERE legal_query_id = $1 AND sender_id <> $2 AND id <= $3 AND is_read = FALSE`, queryID, readerID, upToID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountAfter counts messages with id greater than afterID not sent by excludeSender.
func (r *Repository) CountAfter(ctx context.Context, queryID, afterID, excludeSender int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages
		WHERE legal_query_id = $1 AND id > $2 AND sender_id <> $3`, queryID, afterID, excludeSender).Scan(&n)
	return n, err
}
