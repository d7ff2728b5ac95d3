package lawyers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

const lawyerColumns = `id, user_id, specialization, experience_years, bar_council_number, verification_status,
	hourly_rate_cents, languages, bio, created_at, updated_at`

// Repository handles lawyer profile and verification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a lawyer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLawyer(row pgx.Row) (*models.Lawyer, error) {
	var l models.Lawyer
	err := row.Scan(&l.ID, &l.UserID, &l.Specialization, &l.ExperienceYears, &l.BarCouncilNumber,
		&l.VerificationStatus, &l.HourlyRateCents, &l.Languages, &l.Bio, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Ensure returns the lawyer profile of a user, creating a default one if missing.
func (r *Repository) Ensure(ctx context.Context, userID int64) (*models.Lawyer, error) {
	if _, err := r.pool.Exec(ctx, `INSERT INTO lawyers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("ensure lawyer profile: %w", err)
	}
	return scanLawyer(r.pool.QueryRow(ctx, `SELECT `+lawyerColumns+` FROM lawyers WHERE user_id = $1`, userID))
}

// Update writes the editable profile fields and returns the stored profile.
func (r *Repository) Update(ctx context.Context, userID int64, p Profile) (*models.Lawyer, error) {
	return scanLawyer(r.pool.QueryRow(ctx, `INSERT INTO lawyers
			(user_id, specialization, experience_years, bar_council_number, hourly_rate_cents, languages, bio)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			specialization = EXCLUDED.specialization,
			experience_years = EXCLUDED.experience_years,
			bar_council_number = EXCLUDED.bar_council_number,
			hourly_rate_cents = EXCLUDED.hourly_rate_cents,
			languages = EXCLUDED.languages,
			bio = EXCLUDED.bio,
			updated_at = NOW()
		RETURNING `+lawyerColumns,
		userID, p.Specialization, p.ExperienceYears, p.BarCouncilNumber, p.HourlyRateCents, p.Languages, p.Bio))
}

// CreateVerification records a submitted document and puts the profile back into review.
func (r *Repository) CreateVerification(ctx context.Context, v *models.LawyerVerification) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO lawyer_verifications (lawyer_id, document_type, document_key, status)
			VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			v.LawyerID, v.DocumentType, v.DocumentKey, models.VerificationPending).Scan(&v.ID, &v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}
		v.Status = models.VerificationPending
		_, err = tx.Exec(ctx, `UPDATE lawyers SET verification_status = $1, updated_at = NOW()
			WHERE id = $2 AND verification_status = $3`,
			models.VerificationPending, v.LawyerID, models.VerificationRejected)
		if err != nil {
			return fmt.Errorf("reopen verification: %w", err)
		}
		return nil
	})
}

// LatestVerification returns the most recent document submitted by a lawyer, or nil.
func (r *Repository) LatestVerification(ctx context.Context, lawyerID int64) (*models.LawyerVerification, error) {
	var v models.LawyerVerification
	err := r.pool.QueryRow(ctx, `SELECT id, lawyer_id, document_type, document_key, status, notes,
			reviewed_by, reviewed_at, created_at
		FROM lawyer_verifications WHERE lawyer_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, lawyerID).
		Scan(&v.ID, &v.LawyerID, &v.DocumentType, &v.DocumentKey, &v.Status, &v.Notes,
			&v.ReviewedBy, &v.ReviewedAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
