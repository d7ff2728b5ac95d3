package payments

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/payhere"
	"github.com/cyblex/backend/pkg/queue"
)

const (
	testMerchantID = "1211149"
	testSecret     = "test_secret"
)

type memStore struct {
	mu       sync.Mutex
	queries  map[int64]*models.LegalQuery
	payments map[string]*models.Payment
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{queries: map[int64]*models.LegalQuery{}, payments: map[string]*models.Payment{}}
}

func (m *memStore) addQuery(q models.LegalQuery) {
	if q.PaymentStatus == "" {
		q.PaymentStatus = models.QueryPaymentPending
	}
	m.queries[q.ID] = &q
}

func (m *memStore) GetQueryForClient(ctx context.Context, queryID, clientID int64) (*models.LegalQuery, error) {
	q, _ := m.GetQuery(ctx, queryID)
	if q == nil || q.ClientID != clientID {
		return nil, nil
	}
	return q, nil
}

func (m *memStore) GetQuery(_ context.Context, queryID int64) (*models.LegalQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.OrderID] = &cp
	return nil
}

func (m *memStore) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) LatestForQuery(_ context.Context, queryID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Payment
	for _, p := range m.payments {
		if p.QueryID == queryID && (latest == nil || p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) Apply(_ context.Context, u Update) (*Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[u.OrderID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if u.Status == models.PaymentStatusSuccess {
		for _, other := range m.payments {
			if other.QueryID == p.QueryID && other.OrderID != p.OrderID && other.Status == models.PaymentStatusSuccess {
				return nil, ErrAlreadyPaid
			}
		}
	}
	prev := p.Status
	p.Status = u.Status
	if u.GatewayPaymentID != "" {
		p.GatewayPaymentID = u.GatewayPaymentID
	}
	if u.Method != "" {
		p.Method = u.Method
	}
	if u.Status == models.PaymentStatusSuccess {
		m.queries[p.QueryID].PaymentStatus = models.QueryPaymentCompleted
	}
	cp := *p
	return &Transition{Payment: &cp, Previous: prev}, nil
}

func (m *memStore) ExpirePending(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.payments {
		if p.Status == models.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = models.PaymentStatusCancelled
			n++
		}
	}
	return n, nil
}

type recordedEvent struct {
	queryID int64
	event   string
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) Publish(queryID int64, event string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{queryID, event})
}

type fakeEmails struct {
	sent []queue.EmailPayload
}

func (f *fakeEmails) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.sent = append(f.sent, p)
	return nil
}

type fakeChecker struct {
	configured bool
	status     string
	calls      int
}

func (f *fakeChecker) Configured() bool { return f.configured }

func (f *fakeChecker) Retrieve(_ context.Context, orderID string) (*payhere.PaymentDetails, error) {
	f.calls++
	return &payhere.PaymentDetails{OrderID: orderID, Status: f.status}, nil
}

type fixture struct {
	store   *memStore
	events  *fakeEvents
	emails  *fakeEmails
	checker *fakeChecker
	svc     *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:   newMemStore(),
		events:  &fakeEvents{},
		emails:  &fakeEmails{},
		checker: &fakeChecker{},
	}
	f.store.addQuery(models.LegalQuery{
		ID: 5, ClientID: 10, Title: "Land dispute", Status: models.QueryStatusAssigned,
		ClientName: "Nimal Perera", ClientEmail: "nimal@example.com",
	})
	cfg := Config{
		Merchant: payhere.Merchant{
			ID:          testMerchantID,
			Secret:      testSecret,
			Currency:    "LKR",
			Environment: payhere.Sandbox,
			ReturnURL:   "http://localhost:8080/payments/return",
			CancelURL:   "http://localhost:8080/payments/cancel",
			NotifyURL:   "http://localhost:8080/payments/notify",
		},
		MinAmountCents: 10000,
		MaxAmountCents: 10000000,
		PendingTimeout: 5 * time.Minute,
	}
	f.svc = NewService(f.store, cfg, f.checker, f.events, f.emails, zap.NewNop())
	clock := time.Now()
	f.svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return f
}

func client10() auth.Identity {
	return auth.Identity{UserID: 10, UserType: models.UserTypeClient}
}

func signed(orderID, statusCode string) payhere.Notification {
	n := payhere.Notification{
		MerchantID: testMerchantID,
		OrderID:    orderID,
		PaymentID:  "320025071278",
		Amount:     "1500.00",
		Currency:   "LKR",
		StatusCode: statusCode,
		Method:     "VISA",
	}
	n.MD5Sig = payhere.NotificationSignature(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, testSecret)
	return n
}

var upperHex32 = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestInitialize(t *testing.T) {
	f := newFixture()
	out, err := f.svc.Initialize(context.Background(), 5, 10, 150000)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.OrderID, "CYB_5_"))
	assert.Equal(t, "1500.00", out.Amount)
	assert.Equal(t, payhere.Sandbox.CheckoutURL(), out.Form.Action)

	form := out.Form.Map()
	assert.Regexp(t, upperHex32, form["hash"])
	assert.Equal(t, payhere.FormHash(testMerchantID, out.OrderID, 150000, "LKR", testSecret), form["hash"])
	assert.Equal(t, "Nimal", form["first_name"])
	assert.Equal(t, "Perera", form["last_name"])
	assert.Equal(t, "Legal Consultation - Land dispute", form["items"])
	assert.Equal(t, "5", form["custom_1"])
	assert.Equal(t, "10", form["custom_2"])

	p, _ := f.store.GetByOrderID(context.Background(), out.OrderID)
	require.NotNil(t, p)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, models.PaymentMethodPayHere, p.Method)
}

func TestInitializeRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Initialize(ctx, 5, 10, 5000)
	assert.ErrorIs(t, err, ErrInvalidRequest, "below minimum")
	_, err = f.svc.Initialize(ctx, 5, 10, 10000001)
	assert.ErrorIs(t, err, ErrInvalidRequest, "above maximum")
	_, err = f.svc.Initialize(ctx, 0, 10, 150000)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Initialize(ctx, 5, 11, 150000)
	assert.ErrorIs(t, err, ErrQueryNotFound)

	f.store.queries[5].PaymentStatus = models.QueryPaymentCompleted
	_, err = f.svc.Initialize(ctx, 5, 10, 150000)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.Empty(t, f.store.payments)
}

func TestNotificationSuccessIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, err := f.svc.Initialize(ctx, 5, 10, 150000)
	require.NoError(t, err)

	tr, err := f.svc.HandleNotification(ctx, signed(out.OrderID, "2"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, tr.Previous)
	assert.Equal(t, models.PaymentStatusSuccess, tr.Payment.Status)
	assert.Equal(t, "320025071278", tr.Payment.GatewayPaymentID)
	assert.Equal(t, "VISA", tr.Payment.Method)

	q, _ := f.store.GetQuery(ctx, 5)
	assert.Equal(t, models.QueryPaymentCompleted, q.PaymentStatus)

	_, err = f.svc.HandleNotification(ctx, signed(out.OrderID, "2"))
	require.NoError(t, err)
	q, _ = f.store.GetQuery(ctx, 5)
	assert.Equal(t, models.QueryPaymentCompleted, q.PaymentStatus)

	assert.Len(t, f.events.events, 1, "one completion event across replays")
	require.Len(t, f.emails.sent, 1)
	assert.Equal(t, queue.EmailKindPaymentReceipt, f.emails.sent[0].Kind)
	assert.Equal(t, "nimal@example.com", f.emails.sent[0].RecipientEmail)
}

func TestNotificationNonSuccessLeavesQueryPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	tr, err := f.svc.HandleNotification(ctx, signed(out.OrderID, "-2"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, tr.Payment.Status)
	q, _ := f.store.GetQuery(ctx, 5)
	assert.Equal(t, models.QueryPaymentPending, q.PaymentStatus)
	assert.Empty(t, f.events.events)
}

func TestNotificationRejectedWithoutMutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	tampered := signed(out.OrderID, "2")
	tampered.MD5Sig = strings.Repeat("0", 32)
	_, err := f.svc.HandleNotification(ctx, tampered)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	other := signed(out.OrderID, "2")
	other.MerchantID = "999"
	_, err = f.svc.HandleNotification(ctx, other)
	assert.ErrorIs(t, err, ErrUnknownMerchant)

	_, err = f.svc.HandleNotification(ctx, signed(out.OrderID, "7"))
	assert.ErrorIs(t, err, ErrUnknownStatusCode)

	_, err = f.svc.HandleNotification(ctx, signed("CYB_5_1_1000", "2"))
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	p, _ := f.store.GetByOrderID(ctx, out.OrderID)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	q, _ := f.store.GetQuery(ctx, 5)
	assert.Equal(t, models.QueryPaymentPending, q.PaymentStatus)
}

func TestSecondSuccessForQueryIsRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first, _ := f.svc.Initialize(ctx, 5, 10, 150000)
	second, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	_, err := f.svc.HandleNotification(ctx, signed(first.OrderID, "2"))
	require.NoError(t, err)
	_, err = f.svc.HandleNotification(ctx, signed(second.OrderID, "2"))
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestStatusByOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	st, err := f.svc.StatusByOrder(ctx, client10(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Payment is pending confirmation", st.StatusDescription)
	assert.Empty(t, st.GatewayStatus)
	assert.Zero(t, f.checker.calls)

	f.checker.configured = true
	f.checker.status = "RECEIVED"
	st, err = f.svc.StatusByOrder(ctx, client10(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "RECEIVED", st.GatewayStatus)
	assert.Equal(t, models.PaymentStatusPending, st.Payment.Status, "gateway answer is not applied")

	_, err = f.svc.StatusByOrder(ctx, auth.Identity{UserID: 99, UserType: models.UserTypeClient}, out.OrderID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = f.svc.StatusByOrder(ctx, auth.Identity{UserID: 1, UserType: models.UserTypeAdmin}, out.OrderID)
	assert.NoError(t, err)

	_, err = f.svc.StatusByOrder(ctx, client10(), "CYB_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestStatusByQuery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.StatusByQuery(ctx, client10(), 5)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	f.svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	_, _ = f.svc.Initialize(ctx, 5, 10, 150000)
	f.svc.now = func() time.Time { return time.Unix(1700000100, 0) }
	latest, _ := f.svc.Initialize(ctx, 5, 10, 200000)

	st, err := f.svc.StatusByQuery(ctx, client10(), 5)
	require.NoError(t, err)
	assert.Equal(t, latest.OrderID, st.Payment.OrderID)
	assert.Equal(t, "Land dispute", st.QueryTitle)
	assert.Equal(t, models.QueryPaymentPending, st.QueryPaymentStatus)
}

func TestOverride(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	_, err := f.svc.Override(ctx, client10(), out.OrderID, "chargedback")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.Override(ctx, client10(), "CYB_missing", models.PaymentStatusFailed)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	p, err := f.svc.Override(ctx, client10(), out.OrderID, models.PaymentStatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccess, p.Status)
	q, _ := f.store.GetQuery(ctx, 5)
	assert.Equal(t, models.QueryPaymentCompleted, q.PaymentStatus)
	assert.Len(t, f.emails.sent, 1)
}

func TestExpirePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out, _ := f.svc.Initialize(ctx, 5, 10, 150000)
	f.store.payments[out.OrderID].CreatedAt = time.Now().Add(-time.Hour)
	fresh, _ := f.svc.Initialize(ctx, 5, 10, 150000)

	n, err := f.svc.ExpirePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	p, _ := f.store.GetByOrderID(ctx, out.OrderID)
	assert.Equal(t, models.PaymentStatusCancelled, p.Status)
	p, _ = f.store.GetByOrderID(ctx, fresh.OrderID)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}
