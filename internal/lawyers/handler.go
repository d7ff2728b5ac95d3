package lawyers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/pkg/response"
	"github.com/cyblex/backend/pkg/storage"
)

// UpdateRequest is the body for PUT /lawyers/me.
type UpdateRequest struct {
	Specialization   string      `json:"specialization" binding:"required"`
	ExperienceYears  interface{} `json:"experience_years"`
	BarCouncilNumber string      `json:"bar_council_number"`
	HourlyRate       interface{} `json:"hourly_rate"`
	Languages        []string    `json:"languages"`
	Bio              string      `json:"bio"`
}

// Handler handles lawyer profile HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a lawyer handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrLawyerOnly):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidSpecialization), errors.Is(err, ErrInvalidExperience),
		errors.Is(err, ErrInvalidBarNumber), errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidLanguages),
		errors.Is(err, ErrBioTooLong), errors.Is(err, ErrInvalidDocumentType), errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrFileTooLarge):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrStorageUnavailable):
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error("lawyer request failed", zap.String("path", c.FullPath()), zap.Error(err))
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

// Me handles GET /lawyers/me.
func (h *Handler) Me(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	me, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, me)
}

// Update handles PUT /lawyers/me.
func (h *Handler) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, ErrInvalidSpecialization.Error())
		return
	}
	p := Profile{
		Specialization:   req.Specialization,
		BarCouncilNumber: req.BarCouncilNumber,
		Languages:        req.Languages,
		Bio:              req.Bio,
	}
	if req.ExperienceYears != nil {
		years, err := cast.ToIntE(req.ExperienceYears)
		if err != nil {
			response.BadRequest(c, ErrInvalidExperience.Error())
			return
		}
		p.ExperienceYears = years
	}
	if req.HourlyRate != nil {
		cents, err := payhere.CoerceAmount(req.HourlyRate)
		if err != nil {
			response.BadRequest(c, ErrInvalidRate.Error())
			return
		}
		p.HourlyRateCents = cents
	}
	l, err := h.service.Update(c.Request.Context(), id, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OKMessage(c, "Profile updated successfully", l)
}

// SubmitVerification handles POST /lawyers/me/verification (multipart: document_type, document).
func (h *Handler) SubmitVerification(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxDocumentSize+1<<20)
	file, err := c.FormFile("document")
	if err != nil {
		response.BadRequest(c, "Missing document (form field: document)")
		return
	}
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded document failed", zap.Error(err))
		response.Internal(c, "Failed to read file")
		return
	}
	defer rc.Close()

	v, err := h.service.SubmitVerification(c.Request.Context(), id, Document{
		Type:        c.PostForm("document_type"),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Body:        rc,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Body{Success: true, Message: "Verification document submitted for review", Data: v})
}
