package payments

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/pkg/response"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const genericError = "An error occurred while processing the payment"

// InitializeRequest is the body for POST /payments/initialize. Values may be numbers or strings.
type InitializeRequest struct {
	QueryID interface{} `json:"query_id"`
	Amount  interface{} `json:"amount"`
}

// OverrideRequest is the body for POST /payments/override.
type OverrideRequest struct {
	OrderID string `json:"order_id" form:"order_id" binding:"required"`
	Status  string `json:"status" form:"status" binding:"required"`
}

// Handler serves the client-facing payment endpoints and pages.
type Handler struct {
	service     *Service
	logger      *zap.Logger
	frontendURL string
}

// NewHandler creates a payment handler. frontendURL is linked from the result pages.
func NewHandler(service *Service, frontendURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, frontendURL: frontendURL}
}

// parseInitialize coerces loosely typed ids and amounts; invalid input becomes zero,
// which Initialize rejects as an invalid request.
func parseInitialize(queryID, amount interface{}) (int64, int64) {
	id, err := cast.ToInt64E(queryID)
	if err != nil {
		id = 0
	}
	cents, err := payhere.CoerceAmount(amount)
	if err != nil {
		cents = 0
	}
	return id, cents
}

func (h *Handler) initialize(c *gin.Context, queryID, amount interface{}) (*Checkout, int, error) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return nil, http.StatusUnauthorized, errors.New("Authentication required")
	}
	qid, cents := parseInitialize(queryID, amount)
	out, err := h.service.Initialize(c.Request.Context(), qid, id.UserID, cents)
	switch {
	case err == nil:
		return out, http.StatusOK, nil
	case errors.Is(err, ErrInvalidRequest):
		return nil, http.StatusBadRequest, err
	case errors.Is(err, ErrQueryNotFound):
		return nil, http.StatusNotFound, err
	case errors.Is(err, ErrAlreadyCompleted):
		return nil, http.StatusConflict, err
	default:
		h.logger.Error("payment initialization failed", zap.Int64("query_id", qid), zap.Error(err))
		return nil, http.StatusInternalServerError, errors.New("Payment initialization failed")
	}
}

// Initialize handles POST /payments/initialize and returns the signed form as JSON.
func (h *Handler) Initialize(c *gin.Context) {
	var req InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, ErrInvalidRequest.Error())
		return
	}
	out, status, err := h.initialize(c, req.QueryID, req.Amount)
	if err != nil {
		response.Fail(c, status, err.Error())
		return
	}
	response.OK(c, gin.H{
		"payment_id":   out.PaymentID,
		"order_id":     out.OrderID,
		"amount":       out.Amount,
		"currency":     out.Currency,
		"checkout_url": out.Form.Action,
		"fields":       out.Form.Fields,
		"form":         out.Form.Map(),
	})
}

// Checkout handles POST /payments/checkout and renders the auto-submitting gateway form.
func (h *Handler) Checkout(c *gin.Context) {
	out, status, err := h.initialize(c, c.PostForm("query_id"), c.PostForm("amount"))
	if err != nil {
		h.page(c, status, resultPage{Title: "Payment could not be started", Message: err.Error()})
		return
	}
	c.Render(http.StatusOK, render.HTML{Template: pages, Name: "checkout.html", Data: out})
}

func param(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.PostForm(key))
}

// Status handles GET|POST /payments/status with order_id or query_id.
func (h *Handler) Status(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	ctx := c.Request.Context()
	if orderID := param(c, "order_id"); orderID != "" {
		out, err := h.service.StatusByOrder(ctx, id, orderID)
		if err != nil {
			h.statusError(c, err)
			return
		}
		response.OK(c, out)
		return
	}
	if raw := param(c, "query_id"); raw != "" {
		queryID, err := cast.ToInt64E(raw)
		if err != nil || queryID <= 0 {
			response.BadRequest(c, "Invalid query ID")
			return
		}
		out, err := h.service.StatusByQuery(ctx, id, queryID)
		if err != nil {
			h.statusError(c, err)
			return
		}
		response.OK(c, out)
		return
	}
	response.BadRequest(c, "Order ID or Query ID is required")
}

func (h *Handler) statusError(c *gin.Context, err error) {
	if errors.Is(err, ErrPaymentNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	h.logger.Error("payment status check failed", zap.Error(err))
	response.Internal(c, "Failed to get payment status")
}

// Override handles POST /payments/override.
func (h *Handler) Override(c *gin.Context) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req OverrideRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, "order_id and status are required")
		return
	}
	p, err := h.service.Override(c.Request.Context(), id, req.OrderID, models.PaymentStatus(req.Status))
	switch {
	case err == nil:
		response.OKMessage(c, "Payment status updated", p)
	case errors.Is(err, ErrInvalidStatus):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrPaymentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAlreadyPaid):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("payment override failed", zap.String("order_id", req.OrderID), zap.Error(err))
		response.Internal(c, genericError)
	}
}

type resultPage struct {
	Title   string
	Message string
	OrderID string
	Status  string
	BackURL string
}

func (h *Handler) page(c *gin.Context, status int, p resultPage) {
	if p.BackURL == "" {
		p.BackURL = h.frontendURL
	}
	c.Render(status, render.HTML{Template: pages, Name: "result.html", Data: p})
}

// Return handles GET /payments/return, where the gateway sends the browser after paying.
// The notification may still be in flight, so a pending payment is reported as processing.
func (h *Handler) Return(c *gin.Context) {
	orderID := param(c, "order_id")
	p := resultPage{Title: "Thank you", Message: "Your payment is being processed.", OrderID: orderID}
	if orderID != "" {
		status, err := h.service.OrderState(c.Request.Context(), orderID)
		switch {
		case err == nil:
			p.Status = payhere.Describe(status)
			if status == models.PaymentStatusSuccess {
				p.Message = "Your payment was received. You can now continue your consultation."
			}
		case errors.Is(err, ErrPaymentNotFound):
			p.Message = "We could not find this payment."
		default:
			h.logger.Error("return page lookup failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	h.page(c, http.StatusOK, p)
}

// Cancel handles GET /payments/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.page(c, http.StatusOK, resultPage{
		Title:   "Payment cancelled",
		Message: "You cancelled the payment. No money was taken and you can try again from your consultation.",
		OrderID: param(c, "order_id"),
	})
}
