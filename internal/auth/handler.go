package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/response"
	"github.com/cyblex/backend/pkg/utils"
)

// Store is the user persistence the handler needs.
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
}

// Revoker invalidates tokens on logout.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username           string `json:"username" form:"username" binding:"required,username"`
	Email              string `json:"email" form:"email" binding:"required,email"`
	Password           string `json:"password" form:"password" binding:"required,min=6"`
	FullName           string `json:"full_name" form:"full_name" binding:"required,max=100"`
	UserType           string `json:"user_type" form:"user_type" binding:"required,oneof=client lawyer"`
	LanguagePreference string `json:"language_preference" form:"language_preference" binding:"omitempty,oneof=en si ta"`
}

// LoginRequest is the body for POST /auth/login. Login may be an email or a username.
type LoginRequest struct {
	Login    string `json:"login" form:"login" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      models.UserPublic `json:"user"`
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store   Store
	jwt     *JWTService
	revoker Revoker
	cookie  CookieConfig
	logger  *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, revoker Revoker, cookie CookieConfig, logger *zap.Logger) *Handler {
	return &Handler{store: store, jwt: jwt, revoker: revoker, cookie: cookie, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) || errors.Is(err, utils.ErrPasswordTooLong) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	userType := models.UserType(req.UserType)
	status := models.UserStatusActive
	if userType == models.UserTypeLawyer {
		status = models.UserStatusPending
	}
	lang := req.LanguagePreference
	if lang == "" {
		lang = "en"
	}

	user, err := h.store.Create(c.Request.Context(), CreateUserParams{
		Username:           strings.TrimSpace(req.Username),
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:       hash,
		FullName:           strings.TrimSpace(req.FullName),
		UserType:           userType,
		Status:             status,
		LanguagePreference: lang,
	})
	if errors.Is(err, ErrUserExists) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("register failed", zap.Error(err))
		response.Internal(c, "Registration failed")
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("user_type", string(user.UserType)))
	h.issue(c, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.store.GetByLogin(c.Request.Context(), strings.TrimSpace(req.Login))
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		response.Internal(c, "Login failed")
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "Invalid credentials")
		return
	}
	if user.Status == models.UserStatusSuspended {
		response.Forbidden(c, "Account suspended")
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *Handler) issue(c *gin.Context, status int, user *models.User) {
	token, claims, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	if h.cookie.Name != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookie.Name, token, int(h.jwt.TTL().Seconds()), "/", "", h.cookie.Secure, true)
	}
	c.JSON(status, response.Body{Success: true, Data: TokenResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user.ToPublic(),
	}})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	id, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	if h.revoker != nil && id.TokenID != "" {
		if err := h.revoker.Revoke(c.Request.Context(), id.TokenID, id.ExpiresAt); err != nil {
			h.logger.Error("token revoke failed", zap.Error(err))
			response.Internal(c, "Logout failed")
			return
		}
	}
	if h.cookie.Name != "" {
		c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	}
	response.OKMessage(c, "Logged out", nil)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	user, err := h.store.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		response.Internal(c, "failed to load user")
		return
	}
	if user == nil {
		response.NotFound(c, "User not found")
		return
	}
	response.OK(c, user.ToPublic())
}
