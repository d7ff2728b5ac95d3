package auth

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

// ErrUserExists is returned when the username or email is taken.
var ErrUserExists = errors.New("Username or email already exists")

const userColumns = `id, username, email, password_hash, full_name, user_type, status,
	language_preference, average_rating::float8, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FullName, &u.UserType, &u.Status,
		&u.LanguagePreference, &u.AverageRating, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByLogin returns a user by email or username, or nil if absent.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) OR username = $1 LIMIT 1`, login))
}

// CreateUserParams holds registration fields.
type CreateUserParams struct {
	Username           string
	Email              string
	PasswordHash       string
	FullName           string
	UserType           models.UserType
	Status             models.UserStatus
	LanguagePreference string
}

// Create inserts a user, and a pending lawyer profile for lawyers, in one transaction.
func (r *Repository) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	var user *models.User
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, `INSERT INTO users
			(username, email, password_hash, full_name, user_type, status, language_preference)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+userColumns,
			p.Username, p.Email, p.PasswordHash, p.FullName, string(p.UserType), string(p.Status), p.LanguagePreference))
		if err != nil {
			return err
		}
		if p.UserType == models.UserTypeLawyer {
			if _, err := tx.Exec(ctx, `INSERT INTO lawyers (user_id, languages) VALUES ($1, ARRAY[$2::text])`,
				u.ID, p.LanguagePreference); err != nil {
				return fmt.Errorf("create lawyer profile: %w", err)
			}
		}
		user = u
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}
