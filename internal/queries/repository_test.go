package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/database/dbtest"
)

func newQuery(clientID int64, category string) *models.LegalQuery {
	return &models.LegalQuery{
		ClientID:     clientID,
		Category:     category,
		Title:        "Boundary wall dispute",
		Description:  "My neighbour built on my land",
		UrgencyLevel: models.UrgencyHigh,
	}
}

func TestRepositoryCreateMatchesVerifiedLawyer(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	category := dbtest.Category(t)
	clientID := dbtest.User(t, pool, models.UserTypeClient)
	dbtest.Lawyer(t, pool, category, models.VerificationPending, "si")
	dbtest.Lawyer(t, pool, category, models.VerificationVerified, "en")
	match := dbtest.Lawyer(t, pool, category, models.VerificationVerified, "en", "si")

	q := newQuery(clientID, category)
	require.NoError(t, repo.Create(ctx, q, "si"))
	require.NotNil(t, q.LawyerID)
	assert.Equal(t, match, *q.LawyerID)
	assert.Equal(t, models.QueryStatusAssigned, q.Status)

	stored, err := repo.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusAssigned, stored.Status)
	assert.Equal(t, q.LawyerName, stored.LawyerName)
}

func TestRepositoryCreateWithoutMatchStaysPending(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	category := dbtest.Category(t)
	clientID := dbtest.User(t, pool, models.UserTypeClient)
	dbtest.Lawyer(t, pool, category, models.VerificationVerified, "en")

	q := newQuery(clientID, category)
	require.NoError(t, repo.Create(ctx, q, "ta"))
	assert.Nil(t, q.LawyerID)
	assert.Equal(t, models.QueryStatusPending, q.Status)
}

func TestRepositoryPendingOrderAndAccept(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	category := dbtest.Category(t)
	clientID := dbtest.User(t, pool, models.UserTypeClient)
	lawyerID := dbtest.Lawyer(t, pool, category, models.VerificationPending)

	low := newQuery(clientID, category)
	low.UrgencyLevel = models.UrgencyLow
	require.NoError(t, repo.Create(ctx, low, "en"))
	high := newQuery(clientID, category)
	require.NoError(t, repo.Create(ctx, high, "en"))

	list, err := repo.PendingForLawyer(ctx, lawyerID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, high.ID, list[0].ID, "high urgency first")

	require.NoError(t, repo.Accept(ctx, high.ID, lawyerID, 250000))
	assert.ErrorIs(t, repo.Accept(ctx, high.ID, lawyerID, 250000), ErrNotAvailable)

	got, err := repo.GetByID(ctx, high.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusAssigned, got.Status)
	assert.Equal(t, int64(250000), got.PaymentAmountCents)

	// a lawyer without a profile gets a default one on accept
	newcomer := dbtest.User(t, pool, models.UserTypeLawyer)
	require.NoError(t, repo.Accept(ctx, low.ID, newcomer, 100000))
	var profiles int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM lawyers WHERE user_id = $1`, newcomer).Scan(&profiles))
	assert.Equal(t, 1, profiles)
}

func TestRepositoryTransition(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	clientID := dbtest.User(t, pool, models.UserTypeClient)
	id := dbtest.Query(t, pool, clientID, 0, dbtest.Category(t), models.QueryStatusPending)

	ok, err := repo.Transition(ctx, id, []models.QueryStatus{models.QueryStatusAssigned}, models.QueryStatusInProgress)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, id, []models.QueryStatus{models.QueryStatusPending, models.QueryStatusAssigned}, models.QueryStatusCancelled)
	require.NoError(t, err)
	assert.True(t, ok)
}
