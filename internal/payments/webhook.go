package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/payhere"
)

// WebhookHandler receives PayHere payment notifications.
type WebhookHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewWebhookHandler creates a webhook handler. logger should be the payment log.
func NewWebhookHandler(service *Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{service: service, logger: logger}
}

// RegisterCallbacks mounts the unauthenticated gateway routes. The notify route carries
// no rate limit; every signed delivery from PayHere must be answered "OK".
func RegisterCallbacks(r gin.IRouter, wh *WebhookHandler, h *Handler) {
	r.POST("/payments/notify", wh.Notify)
	r.GET("/payments/return", h.Return)
	r.GET("/payments/cancel", h.Cancel)
}

// Notify handles POST /payments/notify. Malformed requests get 400. Everything else is
// answered 200 "OK" and failures only reach the log.
func (h *WebhookHandler) Notify(c *gin.Context) {
	n, missing := payhere.NotificationFromForm(c.PostForm)
	if missing != "" {
		h.logger.Warn("notification rejected: missing field", zap.String("field", missing), zap.String("client_ip", c.ClientIP()))
		c.String(http.StatusBadRequest, "Missing required field: %s", missing)
		return
	}
	fields := []zap.Field{
		zap.String("order_id", n.OrderID),
		zap.String("payment_id", n.PaymentID),
		zap.String("status_code", n.StatusCode),
		zap.String("amount", n.Amount),
		zap.String("currency", n.Currency),
	}

	t, err := h.service.HandleNotification(c.Request.Context(), n)
	switch {
	case err == nil:
		h.logger.Info("notification applied", append(fields,
			zap.String("previous_status", string(t.Previous)),
			zap.String("status", string(t.Payment.Status)))...)
	case errors.Is(err, ErrUnknownMerchant):
		h.logger.Warn("notification rejected: unknown merchant", append(fields, zap.String("merchant_id", n.MerchantID))...)
		c.String(http.StatusBadRequest, ErrUnknownMerchant.Error())
		return
	case errors.Is(err, ErrInvalidSignature):
		h.logger.Warn("notification discarded: signature mismatch", fields...)
	case errors.Is(err, ErrUnknownStatusCode), errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrAlreadyPaid):
		h.logger.Warn("notification not applied", append(fields, zap.Error(err))...)
	default:
		h.logger.Error("notification processing failed", append(fields, zap.Error(err))...)
	}
	c.String(http.StatusOK, "OK")
}
