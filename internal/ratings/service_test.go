package ratings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
)

type memStore struct {
	ratings []models.Rating
	average map[int64]float64
}

func (m *memStore) Create(_ context.Context, rt *models.Rating) error {
	for _, r := range m.ratings {
		if r.QueryID == rt.QueryID {
			return ErrAlreadyRated
		}
	}
	rt.ID = int64(len(m.ratings) + 1)
	rt.CreatedAt = time.Now()
	m.ratings = append(m.ratings, *rt)
	var sum, n int
	for _, r := range m.ratings {
		if r.LawyerID == rt.LawyerID {
			sum += r.Rating
			n++
		}
	}
	m.average[rt.LawyerID] = float64(sum) / float64(n)
	return nil
}

func (m *memStore) ForQuery(_ context.Context, queryID int64) (*models.Rating, error) {
	for _, r := range m.ratings {
		if r.QueryID == queryID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(_ context.Context, lawyerID int64, limit int) ([]models.Rating, error) {
	out := []models.Rating{}
	for i := len(m.ratings) - 1; i >= 0 && len(out) < limit; i-- {
		if lawyerID == 0 || m.ratings[i].LawyerID == lawyerID {
			out = append(out, m.ratings[i])
		}
	}
	return out, nil
}

type queryMap map[int64]*models.LegalQuery

func (q queryMap) GetByID(_ context.Context, id int64) (*models.LegalQuery, error) {
	if v, ok := q[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

var (
	client = auth.Identity{UserID: 10, UserType: models.UserTypeClient}
	other  = auth.Identity{UserID: 11, UserType: models.UserTypeClient}
	lawyer = auth.Identity{UserID: 20, UserType: models.UserTypeLawyer}
	admin  = auth.Identity{UserID: 1, UserType: models.UserTypeAdmin}
)

func setup() (*Service, *memStore) {
	lawyerID := int64(20)
	store := &memStore{average: map[int64]float64{}}
	queries := queryMap{
		1: {ID: 1, ClientID: 10, LawyerID: &lawyerID, Status: models.QueryStatusCompleted, Title: "Deed dispute"},
		2: {ID: 2, ClientID: 10, LawyerID: &lawyerID, Status: models.QueryStatusInProgress},
		3: {ID: 3, ClientID: 10, Status: models.QueryStatusCompleted},
		4: {ID: 4, ClientID: 10, LawyerID: &lawyerID, Status: models.QueryStatusCompleted},
	}
	return NewService(store, queries, zap.NewNop()), store
}

func TestSubmit(t *testing.T) {
	svc, store := setup()
	ctx := context.Background()

	rt, err := svc.Submit(ctx, client, 1, 5, "  Very helpful  ")
	require.NoError(t, err)
	assert.Equal(t, int64(20), rt.LawyerID)
	assert.Equal(t, "Very helpful", rt.Review)
	assert.Equal(t, "Deed dispute", rt.QueryTitle)

	_, err = svc.Submit(ctx, client, 4, 2, "")
	require.NoError(t, err)
	assert.InDelta(t, 3.5, store.average[20], 0.001)

	_, err = svc.Submit(ctx, client, 1, 4, "again")
	assert.ErrorIs(t, err, ErrAlreadyRated)
}

func TestSubmitRejections(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	cases := []struct {
		name    string
		id      auth.Identity
		queryID int64
		rating  int
		review  string
		want    error
	}{
		{"zero", client, 1, 0, "", ErrInvalidRating},
		{"six", client, 1, 6, "", ErrInvalidRating},
		{"long review", client, 1, 3, strings.Repeat("x", maxReviewLength+1), ErrReviewTooLong},
		{"missing", client, 99, 3, "", ErrNotFound},
		{"not owner", other, 1, 3, "", ErrNotFound},
		{"lawyer", lawyer, 1, 3, "", ErrNotFound},
		{"in progress", client, 2, 3, "", ErrNotCompleted},
		{"no lawyer", client, 3, 3, "", ErrNoLawyer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.id, tc.queryID, tc.rating, tc.review)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGet(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	st, err := svc.Get(ctx, client, 1)
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.True(t, st.CanRate)

	st, err = svc.Get(ctx, lawyer, 1)
	require.NoError(t, err)
	assert.False(t, st.CanRate)

	st, err = svc.Get(ctx, client, 2)
	require.NoError(t, err)
	assert.False(t, st.CanRate)

	_, err = svc.Submit(ctx, client, 1, 4, "")
	require.NoError(t, err)
	st, err = svc.Get(ctx, admin, 1)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, 4, st.Rating.Rating)

	_, err = svc.Get(ctx, other, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := svc.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := setup()
	h := NewHandler(svc, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetIdentity(c, client)
		c.Next()
	})
	r.POST("/queries/:id/rating", h.Submit)
	r.GET("/queries/:id/rating", h.Get)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/queries/1/rating", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "data.can_rate").Bool())

	w = do(http.MethodPost, "/queries/1/rating", `{"rating": "5", "review": "Great"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(5), gjson.Get(w.Body.String(), "data.rating").Int())

	w = do(http.MethodPost, "/queries/1/rating", `{"rating": 4}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(http.MethodPost, "/queries/4/rating", `{"rating": "great"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/queries/2/rating", `{"rating": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrNotCompleted.Error(), gjson.Get(w.Body.String(), "message").String())

	w = do(http.MethodGet, "/queries/1/rating", "")
	assert.True(t, gjson.Get(w.Body.String(), "data.exists").Bool())

	w = do(http.MethodGet, "/queries/x/rating", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
