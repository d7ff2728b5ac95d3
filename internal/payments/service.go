package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/internal/realtime"
	"github.com/cyblex/backend/pkg/queue"
)

// Errors returned by the service. Their text is shown to users as-is.
var (
	ErrInvalidRequest    = errors.New("Invalid payment request")
	ErrQueryNotFound     = errors.New("Query not found or access denied")
	ErrAlreadyCompleted  = errors.New("Payment already completed for this query")
	ErrPaymentNotFound   = errors.New("Payment not found")
	ErrInvalidStatus     = errors.New("Invalid status")
	ErrAlreadyPaid       = errors.New("Another payment for this query already succeeded")
	ErrUnknownMerchant   = errors.New("Invalid merchant")
	ErrInvalidSignature  = errors.New("Payment verification failed")
	ErrUnknownStatusCode = errors.New("Unknown status code")
)

// Store is the persistence the service needs.
type Store interface {
	GetQueryForClient(ctx context.Context, queryID, clientID int64) (*models.LegalQuery, error)
	GetQuery(ctx context.Context, queryID int64) (*models.LegalQuery, error)
	Create(ctx context.Context, p *models.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	LatestForQuery(ctx context.Context, queryID int64) (*models.Payment, error)
	Apply(ctx context.Context, u Update) (*Transition, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatusChecker asks the gateway for the state of an order.
type StatusChecker interface {
	Configured() bool
	Retrieve(ctx context.Context, orderID string) (*payhere.PaymentDetails, error)
}

// Broadcaster pushes events into a query's chat room.
type Broadcaster interface {
	Publish(queryID int64, event string, payload interface{})
}

// EmailEnqueuer queues outgoing email for the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Config holds merchant settings and limits.
type Config struct {
	Merchant       payhere.Merchant
	MinAmountCents int64
	MaxAmountCents int64
	PendingTimeout time.Duration
}

// Service implements checkout, notification handling, status lookups and overrides.
type Service struct {
	store   Store
	cfg     Config
	checker StatusChecker
	events  Broadcaster
	emails  EmailEnqueuer
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a payment service. checker, events and emails may be nil.
func NewService(store Store, cfg Config, checker StatusChecker, events Broadcaster, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		checker: checker,
		events:  events,
		emails:  emails,
		logger:  logger,
		now:     time.Now,
	}
}

// Checkout is an initialized payment ready to be posted to the gateway.
type Checkout struct {
	PaymentID int64                `json:"payment_id"`
	OrderID   string               `json:"order_id"`
	Amount    string               `json:"amount"`
	Currency  string               `json:"currency"`
	Form      payhere.CheckoutForm `json:"form"`
}

// Initialize validates the request, records a pending payment and returns the signed form.
func (s *Service) Initialize(ctx context.Context, queryID, clientID, amountCents int64) (*Checkout, error) {
	if queryID <= 0 || clientID <= 0 || amountCents < s.cfg.MinAmountCents || amountCents > s.cfg.MaxAmountCents {
		return nil, ErrInvalidRequest
	}
	q, err := s.store.GetQueryForClient(ctx, queryID, clientID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil {
		return nil, ErrQueryNotFound
	}
	if q.IsPaid() {
		return nil, ErrAlreadyCompleted
	}

	p := &models.Payment{
		QueryID:     queryID,
		AmountCents: amountCents,
		Amount:      payhere.FormatAmount(amountCents),
		Currency:    s.cfg.Merchant.Currency,
		Status:      models.PaymentStatusPending,
		Method:      models.PaymentMethodPayHere,
		OrderID:     payhere.NewOrderID(queryID, s.now()),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	form := s.cfg.Merchant.Checkout(p.OrderID, amountCents, queryID, q.Title, payhere.Customer{
		ID:       clientID,
		FullName: q.ClientName,
		Email:    q.ClientEmail,
	})
	s.logger.Info("payment initialized",
		zap.String("order_id", p.OrderID),
		zap.Int64("query_id", queryID),
		zap.Int64("client_id", clientID),
		zap.String("amount", p.Amount))
	return &Checkout{PaymentID: p.ID, OrderID: p.OrderID, Amount: p.Amount, Currency: p.Currency, Form: form}, nil
}

// HandleNotification verifies a gateway notification and applies it.
// ErrUnknownMerchant and ErrInvalidSignature leave storage untouched.
func (s *Service) HandleNotification(ctx context.Context, n payhere.Notification) (*Transition, error) {
	if n.MerchantID != s.cfg.Merchant.ID {
		return nil, ErrUnknownMerchant
	}
	if !payhere.VerifyNotification(n, s.cfg.Merchant.Secret) {
		return nil, ErrInvalidSignature
	}
	status, ok := payhere.StatusFromCode(n.StatusCode)
	if !ok {
		return nil, ErrUnknownStatusCode
	}
	t, err := s.store.Apply(ctx, Update{
		OrderID:          n.OrderID,
		Status:           status,
		GatewayPaymentID: n.PaymentID,
		Method:           n.Method,
	})
	if err != nil {
		return nil, err
	}
	if t.Previous == models.PaymentStatusSuccess && status != models.PaymentStatusSuccess {
		s.logger.Warn("successful payment changed by gateway",
			zap.String("order_id", n.OrderID), zap.String("status", string(status)))
	}
	if status == models.PaymentStatusSuccess && t.Previous != models.PaymentStatusSuccess {
		s.paymentCompleted(ctx, t.Payment)
	}
	return t, nil
}

// paymentCompleted notifies the chat room and queues a receipt. Failures are only logged.
func (s *Service) paymentCompleted(ctx context.Context, p *models.Payment) {
	if s.events != nil {
		s.events.Publish(p.QueryID, realtime.EventPaymentCompleted, map[string]interface{}{
			"query_id": p.QueryID,
			"order_id": p.OrderID,
			"amount":   p.Amount,
			"currency": p.Currency,
		})
	}
	if s.emails == nil {
		return
	}
	q, err := s.store.GetQuery(ctx, p.QueryID)
	if err != nil || q == nil {
		s.logger.Warn("receipt skipped, query lookup failed", zap.Int64("query_id", p.QueryID), zap.Error(err))
		return
	}
	body := fmt.Sprintf("Dear %s,\n\nWe received your payment of %s %s for \"%s\".\nOrder ID: %s\n\nThank you for using Cyblex.",
		q.ClientName, p.Currency, p.Amount, q.Title, p.OrderID)
	if err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		Kind:           queue.EmailKindPaymentReceipt,
		RecipientEmail: q.ClientEmail,
		RecipientName:  q.ClientName,
		Subject:        "Payment received - " + q.Title,
		BodyText:       body,
		Reference:      p.OrderID,
	}); err != nil {
		s.logger.Error("enqueue receipt failed", zap.String("order_id", p.OrderID), zap.Error(err))
	}
}

// OrderStatus is the status-by-order view.
type OrderStatus struct {
	Payment           *models.Payment `json:"payment"`
	StatusDescription string          `json:"status_description"`
	GatewayStatus     string          `json:"gateway_status,omitempty"`
}

// QueryStatus is the status-by-query view.
type QueryStatus struct {
	Payment            *models.Payment `json:"payment"`
	StatusDescription  string          `json:"status_description"`
	QueryTitle         string          `json:"query_title"`
	QueryPaymentStatus string          `json:"query_payment_status"`
}

func canView(q *models.LegalQuery, id auth.Identity) bool {
	return id.IsAdmin() || q.IsParticipant(id.UserID)
}

// StatusByOrder returns a payment the caller may see. A pending payment is re-checked
// with the gateway when the merchant API is configured; the answer is logged, not applied.
func (s *Service) StatusByOrder(ctx context.Context, id auth.Identity, orderID string) (*OrderStatus, error) {
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	q, err := s.store.GetQuery(ctx, p.QueryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || !canView(q, id) {
		return nil, ErrPaymentNotFound
	}
	out := &OrderStatus{Payment: p, StatusDescription: payhere.Describe(p.Status)}
	if p.Status == models.PaymentStatusPending && s.checker != nil && s.checker.Configured() {
		details, err := s.checker.Retrieve(ctx, orderID)
		if err != nil {
			s.logger.Warn("gateway status check failed", zap.String("order_id", orderID), zap.Error(err))
		} else {
			out.GatewayStatus = details.Status
			s.logger.Info("gateway status checked",
				zap.String("order_id", orderID),
				zap.String("gateway_status", details.Status),
				zap.String("local_status", string(p.Status)))
		}
	}
	return out, nil
}

// StatusByQuery returns the latest payment of a query the caller may see.
func (s *Service) StatusByQuery(ctx context.Context, id auth.Identity, queryID int64) (*QueryStatus, error) {
	q, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || !canView(q, id) {
		return nil, ErrPaymentNotFound
	}
	p, err := s.store.LatestForQuery(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return nil, ErrPaymentNotFound
	}
	return &QueryStatus{
		Payment:            p,
		StatusDescription:  payhere.Describe(p.Status),
		QueryTitle:         q.Title,
		QueryPaymentStatus: q.PaymentStatus,
	}, nil
}

var overridable = map[models.PaymentStatus]bool{
	models.PaymentStatusPending:   true,
	models.PaymentStatusSuccess:   true,
	models.PaymentStatusFailed:    true,
	models.PaymentStatusCancelled: true,
}

// Override forces a payment into status without gateway verification. Any authenticated
// caller may use it, so every call is logged as a warning.
func (s *Service) Override(ctx context.Context, id auth.Identity, orderID string, status models.PaymentStatus) (*models.Payment, error) {
	if !overridable[status] {
		return nil, ErrInvalidStatus
	}
	s.logger.Warn("manual payment status override",
		zap.Int64("user_id", id.UserID),
		zap.String("user_type", string(id.UserType)),
		zap.String("order_id", orderID),
		zap.String("status", string(status)))
	t, err := s.store.Apply(ctx, Update{OrderID: orderID, Status: status})
	if err != nil {
		return nil, err
	}
	if status == models.PaymentStatusSuccess && t.Previous != models.PaymentStatusSuccess {
		s.paymentCompleted(ctx, t.Payment)
	}
	return t.Payment, nil
}

// ExpirePending cancels pending payments older than the configured timeout.
func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	if s.cfg.PendingTimeout <= 0 {
		return 0, nil
	}
	n, err := s.store.ExpirePending(ctx, s.now().Add(-s.cfg.PendingTimeout))
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired pending payments", zap.Int64("count", n))
	}
	return n, nil
}

// OrderState returns only the status of an order, for the unauthenticated return page.
func (s *Service) OrderState(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	p, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return "", ErrPaymentNotFound
	}
	return p.Status, nil
}
