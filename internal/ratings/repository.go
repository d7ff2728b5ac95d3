package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

const selectRating = `SELECT r.id, r.query_id, r.client_id, r.lawyer_id, r.rating, r.review, r.created_at,
		c.full_name, l.full_name, lq.title
	FROM ratings r
	JOIN users c ON c.id = r.client_id
	JOIN users l ON l.id = r.lawyer_id
	JOIN legal_queries lq ON lq.id = r.query_id`

// Repository handles rating persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a rating repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRating(row pgx.Row) (models.Rating, error) {
	var r models.Rating
	err := row.Scan(&r.ID, &r.QueryID, &r.ClientID, &r.LawyerID, &r.Rating, &r.Review, &r.CreatedAt,
		&r.ClientName, &r.LawyerName, &r.QueryTitle)
	return r, err
}

// Create inserts a rating and recomputes the lawyer's average in one transaction.
// It returns ErrAlreadyRated when the query already has a rating.
func (r *Repository) Create(ctx context.Context, rt *models.Rating) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const ins = `INSERT INTO ratings (query_id, client_id, lawyer_id, rating, review)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
		err := tx.QueryRow(ctx, ins, rt.QueryID, rt.ClientID, rt.LawyerID, rt.Rating, rt.Review).Scan(&rt.ID, &rt.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyRated
			}
			return fmt.Errorf("insert rating: %w", err)
		}
		const avg = `UPDATE users SET average_rating = (
				SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) FROM ratings WHERE lawyer_id = $1
			), updated_at = NOW() WHERE id = $1`
		if _, err := tx.Exec(ctx, avg, rt.LawyerID); err != nil {
			return fmt.Errorf("update average rating: %w", err)
		}
		return nil
	})
}

// ForQuery returns the rating of a query, or nil.
func (r *Repository) ForQuery(ctx context.Context, queryID int64) (*models.Rating, error) {
	rt, err := scanRating(r.pool.QueryRow(ctx, selectRating+` WHERE r.query_id = $1`, queryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// List returns the most recent ratings, optionally for one lawyer.
func (r *Repository) List(ctx context.Context, lawyerID int64, limit int) ([]models.Rating, error) {
	q := selectRating
	args := []interface{}{limit}
	if lawyerID > 0 {
		q += ` WHERE r.lawyer_id = $2`
		args = append(args, lawyerID)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY r.created_at DESC LIMIT $1`, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Rating, error) {
		return scanRating(row)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Rating{}
	}
	return list, nil
}
