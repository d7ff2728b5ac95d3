package queries

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/pkg/response"
)

// SubmitRequest is the body for POST /queries.
type SubmitRequest struct {
	Category     string `json:"category" binding:"required"`
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description" binding:"required"`
	UrgencyLevel string `json:"urgency_level"`
	Language     string `json:"language"`
}

// AcceptRequest is the body for POST /queries/:id/accept.
type AcceptRequest struct {
	PaymentAmount interface{} `json:"payment_amount"`
}

// Handler handles legal query HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a query handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// PathID parses the :id path parameter as a positive integer.
func PathID(c *gin.Context) (int64, bool) {
	id, err := cast.ToInt64E(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidUrgency), errors.Is(err, ErrInvalidLanguage),
		errors.Is(err, ErrTitleLength), errors.Is(err, ErrDescriptionLength), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrCannotStartChat), errors.Is(err, ErrPaymentRequired), errors.Is(err, ErrCannotCancel):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotAvailable), errors.Is(err, ErrCannotComplete):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrLawyerOnly):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrStatusChangedRetry):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("query request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "An error occurred, please try again")
	}
}

func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
	}
	return id, ok
}

// Submit handles POST /queries (client only).
func (h *Handler) Submit(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}
	q, err := h.service.Submit(c.Request.Context(), id.UserID, SubmitInput{
		Category:     req.Category,
		Title:        req.Title,
		Description:  req.Description,
		UrgencyLevel: req.UrgencyLevel,
		Language:     req.Language,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Body{Success: true, Message: "Legal query submitted successfully", Data: q})
}

// List handles GET /queries?status=.
func (h *Handler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), id, models.QueryStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Pending handles GET /queries/pending (lawyer only).
func (h *Handler) Pending(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.service.Pending(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /queries/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	queryID, ok := PathID(c)
	if !ok {
		response.BadRequest(c, "Query ID is required")
		return
	}
	q, err := h.service.Get(c.Request.Context(), id, queryID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

// Accept handles POST /queries/:id/accept (lawyer only).
func (h *Handler) Accept(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	queryID, ok := PathID(c)
	var req AcceptRequest
	if !ok || c.ShouldBindJSON(&req) != nil || req.PaymentAmount == nil {
		response.BadRequest(c, "Query ID and payment amount are required")
		return
	}
	cents, err := payhere.CoerceAmount(req.PaymentAmount)
	if err != nil {
		response.BadRequest(c, ErrInvalidAmount.Error())
		return
	}
	q, err := h.service.Accept(c.Request.Context(), id, queryID, cents)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "Query accepted successfully with payment amount of LKR "+payhere.FormatAmount(cents), q)
}

func (h *Handler) transition(c *gin.Context, message string, fn func(*gin.Context, auth.Identity, int64) (*models.LegalQuery, error)) {
	id, ok := identity(c)
	if !ok {
		return
	}
	queryID, ok := PathID(c)
	if !ok {
		response.BadRequest(c, "Query ID is required")
		return
	}
	q, err := fn(c, id, queryID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, message, q)
}

// StartChat handles POST /queries/:id/start-chat.
func (h *Handler) StartChat(c *gin.Context) {
	h.transition(c, "Chat started successfully", func(c *gin.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
		return h.service.StartChat(c.Request.Context(), id, queryID)
	})
}

// Complete handles POST /queries/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, "Query completed successfully", func(c *gin.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
		return h.service.Complete(c.Request.Context(), id, queryID)
	})
}

// Cancel handles POST /queries/:id/cancel (client only).
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, "Query cancelled", func(c *gin.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
		return h.service.Cancel(c.Request.Context(), id, queryID)
	})
}

// Categories handles GET /categories.
func (h *Handler) Categories(c *gin.Context) {
	list, err := h.service.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}
