package notifications

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/pkg/response"
)

// BroadcastRequest is the body for POST /admin/notifications (JSON or form).
type BroadcastRequest struct {
	Title          string `json:"title" form:"title"`
	Message        string `json:"message" form:"message"`
	Type           string `json:"type" form:"type"`
	TargetAudience string `json:"target_audience" form:"target_audience"`
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a notification handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrEmptyFields), errors.Is(err, ErrTitleTooLong),
		errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidAudience):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("notification request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "An error occurred, please try again")
	}
}

// List handles GET /notifications.
func (h *Handler) List(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	inbox, err := h.service.List(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, inbox)
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	notificationID, err := cast.ToInt64E(c.Param("id"))
	if err != nil || notificationID <= 0 {
		response.BadRequest(c, "Notification ID is required")
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), id, notificationID); err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "Notification marked as read", nil)
}

// Broadcast handles POST /admin/notifications.
func (h *Handler) Broadcast(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req BroadcastRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}
	res, err := h.service.Broadcast(c.Request.Context(), id, BroadcastInput{
		Title:          req.Title,
		Message:        req.Message,
		Type:           req.Type,
		TargetAudience: req.TargetAudience,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "Notification sent successfully", res)
}
