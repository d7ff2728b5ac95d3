package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

const selectQuery = `SELECT lq.id, lq.client_id, lq.lawyer_id, lq.category, lq.title, lq.description, lq.urgency_level,
		lq.status, lq.payment_amount_cents, lq.payment_status, lq.created_at, lq.updated_at,
		c.full_name, c.email, COALESCE(l.full_name, '')
	FROM legal_queries lq
	JOIN users c ON c.id = lq.client_id
	LEFT JOIN users l ON l.id = lq.lawyer_id`

// Repository handles legal query persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a query repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanQuery(row pgx.Row) (*models.LegalQuery, error) {
	var q models.LegalQuery
	err := row.Scan(&q.ID, &q.ClientID, &q.LawyerID, &q.Category, &q.Title, &q.Description, &q.UrgencyLevel,
		&q.Status, &q.PaymentAmountCents, &q.PaymentStatus, &q.CreatedAt, &q.UpdatedAt,
		&q.ClientName, &q.ClientEmail, &q.LawyerName)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func collect(rows pgx.Rows) ([]models.LegalQuery, error) {
	defer rows.Close()
	list := []models.LegalQuery{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// CategoryExists reports whether name is a known category.
func (r *Repository) CategoryExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM legal_query_categories WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

// Categories returns all categories by name.
func (r *Repository) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM legal_query_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Create inserts a pending query and, in the same transaction, assigns a random verified
// lawyer of the query's category who speaks language. q is updated in place.
func (r *Repository) Create(ctx context.Context, q *models.LegalQuery, language string) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const ins = `INSERT INTO legal_queries (client_id, category, title, description, urgency_level, status, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, ins, q.ClientID, q.Category, q.Title, q.Description, q.UrgencyLevel,
			models.QueryStatusPending, models.QueryPaymentPending).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return fmt.Errorf("insert query: %w", err)
		}
		q.Status = models.QueryStatusPending
		q.PaymentStatus = models.QueryPaymentPending

		const match = `SELECT u.id, u.full_name FROM lawyers l JOIN users u ON u.id = l.user_id
			WHERE l.verification_status = 'verified' AND u.status = 'active'
				AND l.specialization = $1 AND $2 = ANY(l.languages)
			ORDER BY random() LIMIT 1`
		var lawyerID int64
		var lawyerName string
		err := tx.QueryRow(ctx, match, q.Category, language).Scan(&lawyerID, &lawyerName)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("match lawyer: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE legal_queries SET lawyer_id = $1, status = $2, updated_at = NOW() WHERE id = $3`,
			lawyerID, models.QueryStatusAssigned, q.ID); err != nil {
			return fmt.Errorf("assign lawyer: %w", err)
		}
		q.LawyerID = &lawyerID
		q.LawyerName = lawyerName
		q.Status = models.QueryStatusAssigned
		return nil
	})
}

// GetByID returns a query with client and lawyer names, or nil.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.LegalQuery, error) {
	q, err := scanQuery(r.pool.QueryRow(ctx, selectQuery+` WHERE lq.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return q, err
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	ClientID int64
	LawyerID int64
	Status   models.QueryStatus
	Limit    int
}

// List returns queries matching f, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.LegalQuery, error) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID > 0 {
		add("lq.client_id = $%d", f.ClientID)
	}
	if f.LawyerID > 0 {
		add("lq.lawyer_id = $%d", f.LawyerID)
	}
	if f.Status != "" {
		add("lq.status = $%d", f.Status)
	}
	q := selectQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY lq.created_at DESC, lq.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// PendingForLawyer returns unassigned pending queries in the lawyer's specialization,
// most urgent first, then oldest first.
func (r *Repository) PendingForLawyer(ctx context.Context, lawyerUserID int64) ([]models.LegalQuery, error) {
	q := selectQuery + `
		WHERE lq.status = 'pending' AND lq.lawyer_id IS NULL
			AND lq.category = (SELECT specialization FROM lawyers WHERE user_id = $1)
		ORDER BY CASE lq.urgency_level WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, lq.created_at ASC`
	rows, err := r.pool.Query(ctx, q, lawyerUserID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Accept assigns a pending query to the lawyer with a fee, creating a default lawyer
// profile if the user has none. It returns ErrNotAvailable when the query is not pending.
func (r *Repository) Accept(ctx context.Context, queryID, lawyerUserID, amountCents int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO lawyers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, lawyerUserID); err != nil {
			return fmt.Errorf("ensure lawyer profile: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE legal_queries
			SET lawyer_id = $1, status = $2, payment_amount_cents = $3, payment_status = $4, updated_at = NOW()
			WHERE id = $5 AND status = $6`,
			lawyerUserID, models.QueryStatusAssigned, amountCents, models.QueryPaymentPending, queryID, models.QueryStatusPending)
		if err != nil {
			return fmt.Errorf("accept query: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotAvailable
		}
		return nil
	})
}

// Transition moves a query to status to if its current status is one of from.
// It reports whether a row changed.
func (r *Repository) Transition(ctx context.Context, queryID int64, from []models.QueryStatus, to models.QueryStatus) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE legal_queries SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`,
		to, queryID, states)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
