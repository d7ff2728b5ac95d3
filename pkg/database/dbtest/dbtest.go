// Package dbtest connects repository tests to a real PostgreSQL database.
// Tests are skipped unless TEST_DATABASE_URL is set; rows are created with unique
// names so packages can share one database.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database"
)

// EnvURL names the variable holding the test database DSN.
const EnvURL = "TEST_DATABASE_URL"

// Pool returns a migrated pool, or skips the test when no database is configured.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvURL)
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 4, zap.NewNop())
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return pool
}

// User inserts an active user of the given type and returns its id.
func User(t *testing.T, pool *pgxpool.Pool, userType models.UserType) int64 {
	t.Helper()
	tag := uuid.NewString()[:8]
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO users (username, email, password_hash, full_name, user_type, status)
		VALUES ($1, $2, 'x', $3, $4, 'active') RETURNING id`,
		"u_"+tag, tag+"@test.cyblex.lk", "Test "+tag, userType).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// Lawyer inserts an active lawyer user with a profile and returns the user id.
func Lawyer(t *testing.T, pool *pgxpool.Pool, specialization string, status models.VerificationStatus, languages ...string) int64 {
	t.Helper()
	id := User(t, pool, models.UserTypeLawyer)
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	_, err := pool.Exec(context.Background(), `INSERT INTO lawyers (user_id, specialization, verification_status, languages)
		VALUES ($1, $2, $3, $4)`, id, specialization, status, languages)
	if err != nil {
		t.Fatalf("insert lawyer: %v", err)
	}
	return id
}

// Query inserts a legal query in status and returns its id. lawyerID may be zero.
func Query(t *testing.T, pool *pgxpool.Pool, clientID, lawyerID int64, category string, status models.QueryStatus) int64 {
	t.Helper()
	var lawyer *int64
	if lawyerID > 0 {
		lawyer = &lawyerID
	}
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO legal_queries (client_id, lawyer_id, category, title, description, status)
		VALUES ($1, $2, $3, 'Test query', 'Details', $4) RETURNING id`, clientID, lawyer, category, status).Scan(&id)
	if err != nil {
		t.Fatalf("insert query: %v", err)
	}
	return id
}

// Category returns a category name unique to this test, so lawyer matching only sees
// rows the test created.
func Category(t *testing.T) string {
	t.Helper()
	return "Test " + uuid.NewString()[:8]
}
