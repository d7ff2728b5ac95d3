package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForUser returns a user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.UserNotification, error) {
	rows, err := r.pool.Query(ctx, `SELECT un.id, un.notification_id, un.user_id, n.title, n.message, n.type,
			un.is_read, un.read_at, un.created_at
		FROM user_notifications un
		JOIN notifications n ON n.id = un.notification_id
		WHERE un.user_id = $1
		ORDER BY un.created_at DESC, un.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UserNotification, error) {
		var n models.UserNotification
		err := row.Scan(&n.ID, &n.NotificationID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&n.IsRead, &n.ReadAt, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.UserNotification{}
	}
	return list, nil
}

// UnreadCount returns how many of a user's notifications are unread.
func (r *Repository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one of the user's notifications read and reports whether it exists.
func (r *Repository) MarkRead(ctx context.Context, userID, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE user_notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Broadcast inserts a notification and delivers it to every user in the audience
// in one transaction. It returns the recipients.
func (r *Repository) Broadcast(ctx context.Context, n *models.Notification) ([]models.Recipient, error) {
	var recipients []models.Recipient
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO notifications (title, message, type, target_audience, created_by)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
			n.Title, n.Message, n.Type, n.TargetAudience, n.CreatedBy).Scan(&n.ID, &n.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		rows, err := tx.Query(ctx, `WITH delivered AS (
				INSERT INTO user_notifications (notification_id, user_id)
				SELECT $1::bigint, u.id FROM users u
				WHERE $2::text = 'all'
					OR ($2::text = 'lawyers' AND u.user_type = 'lawyer')
					OR ($2::text = 'clients' AND u.user_type = 'client')
				ON CONFLICT (notification_id, user_id) DO NOTHING
				RETURNING user_id
			)
			SELECT u.id, u.email, u.full_name FROM delivered d JOIN users u ON u.id = d.user_id ORDER BY u.id`,
			n.ID, n.TargetAudience)
		if err != nil {
			return fmt.Errorf("fan out notification: %w", err)
		}
		recipients, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Recipient, error) {
			var rc models.Recipient
			err := row.Scan(&rc.UserID, &rc.Email, &rc.FullName)
			return rc, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return recipients, nil
}
