package admin

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/response"
)

// StatusRequest is the body for PATCH /admin/users/:id/status.
type StatusRequest struct {
	Status string `json:"status" form:"status" binding:"required"`
}

// VerifyRequest is the body for POST /admin/lawyers/:id/verify.
type VerifyRequest struct {
	Action string `json:"action" form:"action" binding:"required"`
	Notes  string `json:"notes" form:"notes"`
}

// Handler handles admin HTTP endpoints. Routes are mounted behind RequireRole(admin).
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidUserType), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrCannotChangeSelf):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrLawyerNotFound), errors.Is(err, ErrVerificationMissing):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrStorageUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "An error occurred, please try again")
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := cast.ToInt64E(c.Param("id"))
	if err != nil || id <= 0 {
		response.BadRequest(c, name+" ID is required")
		return 0, false
	}
	return id, true
}

// Analytics handles GET /admin/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	a, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, a)
}

// Users handles GET /admin/users?user_type=&status=.
func (h *Handler) Users(c *gin.Context) {
	list, err := h.service.Users(c.Request.Context(), UserFilter{
		UserType: models.UserType(c.Query("user_type")),
		Status:   models.UserStatus(c.Query("status")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// SetUserStatus handles PATCH /admin/users/:id/status.
func (h *Handler) SetUserStatus(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	userID, ok := pathID(c, "User")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, ErrInvalidStatus.Error())
		return
	}
	if err := h.service.SetUserStatus(c.Request.Context(), id, userID, models.UserStatus(req.Status)); err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "User status updated", gin.H{"user_id": userID, "status": req.Status})
}

// Queries handles GET /admin/queries?status=.
func (h *Handler) Queries(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	list, err := h.service.Queries(c.Request.Context(), id, models.QueryStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Reviews handles GET /admin/reviews.
func (h *Handler) Reviews(c *gin.Context) {
	list, err := h.service.Reviews(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Verifications handles GET /admin/verifications?status=.
func (h *Handler) Verifications(c *gin.Context) {
	list, err := h.service.Verifications(c.Request.Context(), models.VerificationStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Document handles GET /admin/verifications/:id/document.
func (h *Handler) Document(c *gin.Context) {
	verificationID, ok := pathID(c, "Verification")
	if !ok {
		return
	}
	link, err := h.service.Document(c.Request.Context(), verificationID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, link)
}

// VerifyLawyer handles POST /admin/lawyers/:id/verify.
func (h *Handler) VerifyLawyer(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	lawyerUserID, ok := pathID(c, "Lawyer")
	if !ok {
		return
	}
	var req VerifyRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}
	status, err := h.service.VerifyLawyer(c.Request.Context(), id, lawyerUserID, req.Action, req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Advisor verification approved successfully"
	if status == models.VerificationRejected {
		message = "Advisor verification rejected"
	}
	response.OKMessage(c, message, gin.H{"lawyer_id": lawyerUserID, "verification_status": status})
}

// Logs handles GET /admin/logs.
func (h *Handler) Logs(c *gin.Context) {
	list, err := h.service.Logs(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}
