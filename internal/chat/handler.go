package chat

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/pkg/response"
)

// SendRequest is the body for POST /queries/:id/messages.
type SendRequest struct {
	Message string `json:"message" form:"message"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrQueryCancelled):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrQueryNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAccessDenied):
		response.Forbidden(c, err.Error())
	default:
		h.logger.Error("chat request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "Database error occurred")
	}
}

// request resolves the caller and the :id path parameter.
func request(c *gin.Context) (auth.Identity, int64, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Unauthorized access - please log in")
		return id, 0, false
	}
	queryID, err := cast.ToInt64E(c.Param("id"))
	if err != nil || queryID <= 0 {
		response.BadRequest(c, "Query ID is required")
		return id, 0, false
	}
	return id, queryID, true
}

// cursor reads a non-negative message id from the query string.
func cursor(c *gin.Context, key string) int64 {
	n, err := cast.ToInt64E(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Send handles POST /queries/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	id, queryID, ok := request(c)
	if !ok {
		return
	}
	var req SendRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, ErrEmptyMessage.Error())
		return
	}
	m, err := h.service.Send(c.Request.Context(), id, queryID, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, m)
}

// Messages handles GET /queries/:id/messages?last_id=.
func (h *Handler) Messages(c *gin.Context) {
	id, queryID, ok := request(c)
	if !ok {
		return
	}
	out, err := h.service.Messages(c.Request.Context(), id, queryID, cursor(c, "last_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, out)
}

// CheckNew handles GET /queries/:id/messages/new?since_id=.
func (h *Handler) CheckNew(c *gin.Context) {
	id, queryID, ok := request(c)
	if !ok {
		return
	}
	out, err := h.service.CheckNew(c.Request.Context(), id, queryID, cursor(c, "since_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, out)
}
