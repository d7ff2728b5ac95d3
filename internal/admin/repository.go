package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

// Repository runs admin reporting and moderation queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Analytics gathers the dashboard figures.
func (r *Repository) Analytics(ctx context.Context) (*Analytics, error) {
	a := &Analytics{QueriesByStatus: map[string]int64{}}
	err := r.pool.QueryRow(ctx, `SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE user_type = 'lawyer'),
			(SELECT COUNT(*) FROM users WHERE user_type = 'client'),
			(SELECT COUNT(*) FROM lawyers WHERE verification_status = 'pending'),
			(SELECT COUNT(*) FROM legal_queries),
			(SELECT COUNT(*) FROM ratings),
			(SELECT COALESCE(AVG(rating), 0)::float8 FROM ratings)`).
		Scan(&a.Totals.Users, &a.Totals.Lawyers, &a.Totals.Clients, &a.Totals.PendingVerifications,
			&a.Totals.Queries, &a.Totals.Ratings, &a.Totals.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM legal_queries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queries by status: %w", err)
	}
	var status string
	var n int64
	_, err = pgx.ForEachRow(rows, []any{&status, &n}, func() error {
		a.QueriesByStatus[status] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("queries by status: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, COUNT(*)
		FROM users
		WHERE created_at >= date_trunc('month', NOW()) - INTERVAL '11 months'
		GROUP BY month ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("user growth: %w", err)
	}
	a.UserGrowth, err = pgx.CollectRows(rows, pgx.RowToStructByPos[MonthCount])
	if err != nil {
		return nil, fmt.Errorf("user growth: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT category, COUNT(*) FROM legal_queries GROUP BY category ORDER BY COUNT(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	a.Categories, err = pgx.CollectRows(rows, pgx.RowToStructByPos[CategoryCount])
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT
			COUNT(*) FILTER (WHERE payment_status = 'success'),
			COALESCE(SUM(amount_cents) FILTER (WHERE payment_status = 'success'), 0)::bigint,
			COUNT(*) FILTER (WHERE payment_status = 'pending'),
			COUNT(*) FILTER (WHERE payment_status IN ('failed', 'cancelled')),
			COUNT(*) FILTER (WHERE payment_status = 'chargedback')
		FROM payments`).
		Scan(&a.Payments.Successful, &a.Payments.RevenueCents, &a.Payments.Pending, &a.Payments.Failed, &a.Payments.Chargedback)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	return a, nil
}

// Users lists accounts, newest first, with the lawyer profile fields when present.
func (r *Repository) Users(ctx context.Context, f UserFilter) ([]models.UserPublic, error) {
	var conds []string
	var args []interface{}
	if f.UserType != "" {
		args = append(args, f.UserType)
		conds = append(conds, fmt.Sprintf("u.user_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("u.status = $%d", len(args)))
	}
	q := `SELECT u.id, u.username, u.email, u.full_name, u.user_type, u.status, u.language_preference,
			u.average_rating::float8, u.created_at, COALESCE(l.specialization, ''), COALESCE(l.verification_status, '')
		FROM users u LEFT JOIN lawyers l ON l.user_id = u.id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY u.created_at DESC, u.id DESC"
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UserPublic, error) {
		var u models.UserPublic
		err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.UserType, &u.Status, &u.LanguagePreference,
			&u.AverageRating, &u.CreatedAt, &u.Specialization, &u.VerificationStatus)
		return u, err
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	return list, nil
}

// SetUserStatus changes an account's status and logs the action. Admin accounts are
// left untouched. It reports whether a row changed.
func (r *Repository) SetUserStatus(ctx context.Context, adminID, userID int64, status models.UserStatus) (bool, error) {
	changed := false
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2 AND user_type <> 'admin'`,
			status, userID)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		changed = true
		return insertLog(ctx, tx, adminID, "update_user_status", "user", userID, map[string]any{"status": status})
	})
	return changed, err
}

const selectVerification = `SELECT v.id, v.lawyer_id, v.document_type, v.document_key, v.status, v.notes,
		v.reviewed_by, v.reviewed_at, v.created_at, u.full_name, u.email, l.specialization, l.bar_council_number
	FROM lawyer_verifications v
	JOIN lawyers l ON l.id = v.lawyer_id
	JOIN users u ON u.id = l.user_id`

func scanVerification(row pgx.Row) (models.LawyerVerification, error) {
	var v models.LawyerVerification
	err := row.Scan(&v.ID, &v.LawyerID, &v.DocumentType, &v.DocumentKey, &v.Status, &v.Notes,
		&v.ReviewedBy, &v.ReviewedAt, &v.CreatedAt, &v.LawyerName, &v.LawyerEmail, &v.Specialization, &v.BarCouncilNumber)
	return v, err
}

// Verifications lists submitted documents, oldest first, optionally by status.
func (r *Repository) Verifications(ctx context.Context, status models.VerificationStatus) ([]models.LawyerVerification, error) {
	q := selectVerification
	var args []interface{}
	if status != "" {
		q += ` WHERE v.status = $1`
		args = append(args, status)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY v.created_at ASC, v.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LawyerVerification, error) {
		return scanVerification(row)
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.LawyerVerification{}
	}
	return list, nil
}

// Verification returns one submitted document, or nil.
func (r *Repository) Verification(ctx context.Context, id int64) (*models.LawyerVerification, error) {
	v, err := scanVerification(r.pool.QueryRow(ctx, selectVerification+` WHERE v.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Verify records an admin decision on a lawyer: the profile status, the account
// status on approval, the latest submitted document and the audit log change together.
func (r *Repository) Verify(ctx context.Context, d Decision) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var lawyerID int64
		err := tx.QueryRow(ctx, `UPDATE lawyers SET verification_status = $1, updated_at = NOW()
			WHERE user_id = $2 RETURNING id`, d.Status, d.LawyerUserID).Scan(&lawyerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLawyerNotFound
		}
		if err != nil {
			return fmt.Errorf("update lawyer: %w", err)
		}
		if d.Status == models.VerificationVerified {
			_, err = tx.Exec(ctx, `UPDATE users SET status = 'active', updated_at = NOW()
				WHERE id = $1 AND user_type = 'lawyer'`, d.LawyerUserID)
			if err != nil {
				return fmt.Errorf("activate lawyer: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `UPDATE lawyer_verifications SET status = $1, notes = $2, reviewed_by = $3, reviewed_at = NOW()
			WHERE id = (SELECT id FROM lawyer_verifications WHERE lawyer_id = $4 ORDER BY created_at DESC, id DESC LIMIT 1)`,
			d.Status, d.Notes, d.AdminID, lawyerID)
		if err != nil {
			return fmt.Errorf("update verification: %w", err)
		}
		action := "verify_advisor"
		if d.Status == models.VerificationRejected {
			action = "reject_advisor"
		}
		return insertLog(ctx, tx, d.AdminID, action, "lawyer", d.LawyerUserID, map[string]any{"notes": d.Notes})
	})
}

// Logs returns the most recent moderation actions.
func (r *Repository) Logs(ctx context.Context, limit int) ([]models.AdminLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(admin_id, 0), action, target_type, target_id,
			COALESCE(details, '{}'::jsonb), created_at
		FROM admin_logs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AdminLog, error) {
		var l models.AdminLog
		err := row.Scan(&l.ID, &l.AdminID, &l.Action, &l.TargetType, &l.TargetID, &l.Details, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.AdminLog{}
	}
	return list, nil
}

func insertLog(ctx context.Context, tx pgx.Tx, adminID int64, action, targetType string, targetID int64, details map[string]any) error {
	b, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO admin_logs (admin_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5)`, adminID, action, targetType, targetID, b)
	if err != nil {
		return fmt.Errorf("insert admin log: %w", err)
	}
	return nil
}
