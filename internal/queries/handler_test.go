package queries

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, zap.NewNop())
	as := func(id auth.Identity) gin.HandlerFunc {
		return func(c *gin.Context) {
			auth.SetIdentity(c, id)
			c.Next()
		}
	}
	r.GET("/categories", h.Categories)
	r.POST("/client/queries", as(client), h.Submit)
	r.GET("/client/queries/:id", as(client), h.Get)
	r.POST("/client/queries/:id/cancel", as(client), h.Cancel)
	r.GET("/lawyer/queries/pending", as(lawyer), h.Pending)
	r.POST("/lawyer/queries/:id/accept", as(lawyer), h.Accept)
	r.POST("/lawyer/queries/:id/complete", as(lawyer), h.Complete)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQueryEndpoints(t *testing.T) {
	svc, store, _ := newService()
	store.lawyers[20] = lawyerProfile{specialization: "Family Law"}
	r := newRouter(svc)

	w := send(r, http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "data.#").Int())

	w = send(r, http.MethodPost, "/client/queries", `{"category": "Family Law"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", gjson.Get(w.Body.String(), "message").String())

	w = send(r, http.MethodPost, "/client/queries", `{"category": "Family Law", "title": "Custody", "description": "short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrDescriptionLength.Error(), gjson.Get(w.Body.String(), "message").String())

	w = send(r, http.MethodPost, "/client/queries",
		`{"category": "Family Law", "title": "Custody question", "description": "Need advice about custody after divorce.", "urgency_level": "high"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := gjson.Get(w.Body.String(), "data.id").String()
	assert.Equal(t, "pending", gjson.Get(w.Body.String(), "data.status").String())

	w = send(r, http.MethodGet, "/lawyer/queries/pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, gjson.Get(w.Body.String(), "data.0.id").String())

	w = send(r, http.MethodPost, "/lawyer/queries/"+id+"/accept", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/lawyer/queries/"+id+"/accept", `{"payment_amount": "2500"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Query accepted successfully with payment amount of LKR 2500.00", gjson.Get(w.Body.String(), "message").String())
	assert.Equal(t, int64(250000), gjson.Get(w.Body.String(), "data.payment_amount_cents").Int())

	w = send(r, http.MethodPost, "/lawyer/queries/"+id+"/accept", `{"payment_amount": 2500}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodPost, "/lawyer/queries/"+id+"/complete", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrPaymentRequired.Error(), gjson.Get(w.Body.String(), "message").String())

	w = send(r, http.MethodGet, "/client/queries/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, "/client/queries/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", gjson.Get(w.Body.String(), "data.status").String())
}
