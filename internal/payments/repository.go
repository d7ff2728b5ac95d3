package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/pkg/database"
)

const paymentColumns = `id, query_id, amount_cents, currency, payment_status, payment_method, transaction_id,
	COALESCE(payhere_payment_id, ''), created_at, updated_at`

// Repository handles payment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a payment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.QueryID, &p.AmountCents, &p.Currency, &p.Status, &p.Method, &p.OrderID,
		&p.GatewayPaymentID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Amount = payhere.FormatAmount(p.AmountCents)
	return &p, nil
}

func scanQuery(row pgx.Row) (*models.LegalQuery, error) {
	var q models.LegalQuery
	err := row.Scan(&q.ID, &q.ClientID, &q.LawyerID, &q.Title, &q.Status, &q.PaymentAmountCents, &q.PaymentStatus,
		&q.ClientName, &q.ClientEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

const queryWithClient = `SELECT lq.id, lq.client_id, lq.lawyer_id, lq.title, lq.status, lq.payment_amount_cents,
		lq.payment_status, u.full_name, u.email
	FROM legal_queries lq JOIN users u ON u.id = lq.client_id`

// GetQueryForClient returns the query joined with its client, or nil if it does not belong to clientID.
func (r *Repository) GetQueryForClient(ctx context.Context, queryID, clientID int64) (*models.LegalQuery, error) {
	return scanQuery(r.pool.QueryRow(ctx, queryWithClient+` WHERE lq.id = $1 AND lq.client_id = $2`, queryID, clientID))
}

// GetQuery returns the query joined with its client.
func (r *Repository) GetQuery(ctx context.Context, queryID int64) (*models.LegalQuery, error) {
	return scanQuery(r.pool.QueryRow(ctx, queryWithClient+` WHERE lq.id = $1`, queryID))
}

// Create inserts a pending payment attempt.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (query_id, amount_cents, currency, payment_status, payment_method, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, p.QueryID, p.AmountCents, p.Currency, p.Status, p.Method, p.OrderID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByOrderID returns the payment for a merchant order id.
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, orderID))
}

// LatestForQuery returns the most recent payment attempt of a query.
func (r *Repository) LatestForQuery(ctx context.Context, queryID int64) (*models.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE query_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, queryID))
}

// Transition is the outcome of a state change: the updated row and the status it had before.
type Transition struct {
	Payment  *models.Payment
	Previous models.PaymentStatus
}

// Update is a state change applied to one payment.
type Update struct {
	OrderID          string
	Status           models.PaymentStatus
	GatewayPaymentID string // empty keeps the stored value
	Method           string // empty keeps the stored value
}

// Apply locks the payment, writes the new state and, on success, marks the query paid,
// all in one transaction. It returns ErrPaymentNotFound and ErrAlreadyPaid.
func (r *Repository) Apply(ctx context.Context, u Update) (*Transition, error) {
	var t Transition
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var prev models.PaymentStatus
		var queryID int64
		err := tx.QueryRow(ctx, `SELECT payment_status, query_id FROM payments WHERE transaction_id = $1 FOR UPDATE`, u.OrderID).
			Scan(&prev, &queryID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		const upd = `UPDATE payments SET payment_status = $1,
				payhere_payment_id = COALESCE(NULLIF($2, ''), payhere_payment_id),
				payment_method = COALESCE(NULLIF($3, ''), payment_method),
				updated_at = NOW()
			WHERE transaction_id = $4
			RETURNING ` + paymentColumns
		p, err := scanPayment(tx.QueryRow(ctx, upd, u.Status, u.GatewayPaymentID, u.Method, u.OrderID))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyPaid
			}
			return fmt.Errorf("update payment: %w", err)
		}
		if u.Status == models.PaymentStatusSuccess {
			if _, err := tx.Exec(ctx, `UPDATE legal_queries SET payment_status = $1, updated_at = NOW() WHERE id = $2`,
				models.QueryPaymentCompleted, queryID); err != nil {
				return fmt.Errorf("mark query paid: %w", err)
			}
		}
		t = Transition{Payment: p, Previous: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ExpirePending cancels pending payments created before cutoff and returns how many changed.
func (r *Repository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE payments SET payment_status = $1, updated_at = NOW()
		WHERE payment_status = $2 AND created_at < $3`,
		models.PaymentStatusCancelled, models.PaymentStatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
