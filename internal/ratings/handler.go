package ratings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/pkg/response"
)

// SubmitRequest is the body for POST /queries/:id/rating.
type SubmitRequest struct {
	Rating interface{} `json:"rating"`
	Review string      `json:"review"`
}

// Handler handles rating HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a rating handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRating), errors.Is(err, ErrReviewTooLong),
		errors.Is(err, ErrNotCompleted), errors.Is(err, ErrNoLawyer):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyRated):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("rating request failed", zap.Error(err))
		response.Internal(c, "An error occurred, please try again")
	}
}

func request(c *gin.Context) (auth.Identity, int64, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return id, 0, false
	}
	queryID, err := cast.ToInt64E(c.Param("id"))
	if err != nil || queryID <= 0 {
		response.BadRequest(c, "Query ID is required")
		return id, 0, false
	}
	return id, queryID, true
}

// Submit handles POST /queries/:id/rating (client only).
func (h *Handler) Submit(c *gin.Context) {
	id, queryID, ok := request(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, ErrInvalidRating.Error())
		return
	}
	rating, err := cast.ToIntE(req.Rating)
	if err != nil {
		response.BadRequest(c, ErrInvalidRating.Error())
		return
	}
	rt, err := h.service.Submit(c.Request.Context(), id, queryID, rating, req.Review)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, rt)
}

// Get handles GET /queries/:id/rating.
func (h *Handler) Get(c *gin.Context) {
	id, queryID, ok := request(c)
	if !ok {
		return
	}
	st, err := h.service.Get(c.Request.Context(), id, queryID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, st)
}
