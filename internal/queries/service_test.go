package queries

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
)

type lawyerProfile struct {
	specialization string
	languages      []string
	verified       bool
}

type memStore struct {
	mu      sync.Mutex
	queries map[int64]*models.LegalQuery
	lawyers map[int64]lawyerProfile
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{queries: map[int64]*models.LegalQuery{}, lawyers: map[int64]lawyerProfile{}}
}

func (m *memStore) CategoryExists(_ context.Context, name string) (bool, error) {
	return name == "Family Law" || name == "Property Law", nil
}

func (m *memStore) Categories(_ context.Context) ([]models.Category, error) {
	return []models.Category{{ID: 1, Name: "Family Law"}, {ID: 2, Name: "Property Law"}}, nil
}

func (m *memStore) Create(_ context.Context, q *models.LegalQuery, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q.ID = m.nextID
	q.Status = models.QueryStatusPending
	q.PaymentStatus = models.QueryPaymentPending
	q.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Second)
	for id, l := range m.lawyers {
		if !l.verified || l.specialization != q.Category {
			continue
		}
		for _, lang := range l.languages {
			if lang == language {
				lawyerID := id
				q.LawyerID = &lawyerID
				q.Status = models.QueryStatusAssigned
			}
		}
	}
	cp := *q
	m.queries[q.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.LegalQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]models.LegalQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.LegalQuery{}
	for _, q := range m.queries {
		if f.ClientID > 0 && q.ClientID != f.ClientID {
			continue
		}
		if f.LawyerID > 0 && (q.LawyerID == nil || *q.LawyerID != f.LawyerID) {
			continue
		}
		if f.Status != "" && q.Status != f.Status {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

var urgencyRank = map[string]int{models.UrgencyHigh: 1, models.UrgencyMedium: 2, models.UrgencyLow: 3}

func (m *memStore) PendingForLawyer(_ context.Context, lawyerUserID int64) ([]models.LegalQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec := m.lawyers[lawyerUserID].specialization
	out := []models.LegalQuery{}
	for _, q := range m.queries {
		if q.Status == models.QueryStatusPending && q.LawyerID == nil && q.Category == spec {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := urgencyRank[out[i].UrgencyLevel], urgencyRank[out[j].UrgencyLevel]
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memStore) Accept(_ context.Context, queryID, lawyerUserID, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lawyers[lawyerUserID]; !ok {
		m.lawyers[lawyerUserID] = lawyerProfile{specialization: "General", languages: []string{"en"}}
	}
	q, ok := m.queries[queryID]
	if !ok || q.Status != models.QueryStatusPending {
		return ErrNotAvailable
	}
	q.LawyerID = &lawyerUserID
	q.Status = models.QueryStatusAssigned
	q.PaymentAmountCents = amountCents
	q.PaymentStatus = models.QueryPaymentPending
	return nil
}

func (m *memStore) Transition(_ context.Context, queryID int64, from []models.QueryStatus, to models.QueryStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if q.Status == s {
			q.Status = to
			return true, nil
		}
	}
	return false, nil
}

type fakeEvents struct{ events []string }

func (f *fakeEvents) Publish(_ int64, event string, _ interface{}) { f.events = append(f.events, event) }

var (
	client = auth.Identity{UserID: 10, UserType: models.UserTypeClient}
	lawyer = auth.Identity{UserID: 20, UserType: models.UserTypeLawyer}
	admin  = auth.Identity{UserID: 1, UserType: models.UserTypeAdmin}
)

func validInput() SubmitInput {
	return SubmitInput{
		Category:     "Family Law",
		Title:        "Child custody question",
		Description:  "I need advice about shared custody arrangements.",
		UrgencyLevel: "high",
	}
}

func newService() (*Service, *memStore, *fakeEvents) {
	store := newMemStore()
	events := &fakeEvents{}
	return NewService(store, events, zap.NewNop()), store, events
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	in := validInput()
	in.Title = "Hi"
	_, err := svc.Submit(ctx, 10, in)
	assert.ErrorIs(t, err, ErrTitleLength)

	in = validInput()
	in.Description = "too short"
	_, err = svc.Submit(ctx, 10, in)
	assert.ErrorIs(t, err, ErrDescriptionLength)

	in = validInput()
	in.UrgencyLevel = "urgent"
	_, err = svc.Submit(ctx, 10, in)
	assert.ErrorIs(t, err, ErrInvalidUrgency)

	in = validInput()
	in.Category = "Space Law"
	_, err = svc.Submit(ctx, 10, in)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	in = validInput()
	in.Language = "fr"
	_, err = svc.Submit(ctx, 10, in)
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	in = validInput()
	in.UrgencyLevel = ""
	q, err := svc.Submit(ctx, 10, in)
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyMedium, q.UrgencyLevel)
	assert.Equal(t, models.QueryStatusPending, q.Status)
	assert.Nil(t, q.LawyerID)
}

func TestSubmitMatchesVerifiedLawyerByLanguage(t *testing.T) {
	svc, store, _ := newService()
	store.lawyers[20] = lawyerProfile{specialization: "Family Law", languages: []string{"en", "si"}, verified: true}
	store.lawyers[21] = lawyerProfile{specialization: "Family Law", languages: []string{"ta"}, verified: false}

	in := validInput()
	in.Language = "si"
	q, err := svc.Submit(context.Background(), 10, in)
	require.NoError(t, err)
	require.NotNil(t, q.LawyerID)
	assert.Equal(t, int64(20), *q.LawyerID)
	assert.Equal(t, models.QueryStatusAssigned, q.Status)

	in.Language = "ta"
	q, err = svc.Submit(context.Background(), 10, in)
	require.NoError(t, err)
	assert.Nil(t, q.LawyerID, "unverified lawyers are never matched")
}

func TestPendingOrdering(t *testing.T) {
	svc, store, _ := newService()
	store.lawyers[20] = lawyerProfile{specialization: "Family Law"}
	ctx := context.Background()
	for _, u := range []string{"low", "high", "medium", "high"} {
		in := validInput()
		in.UrgencyLevel = u
		_, err := svc.Submit(ctx, 10, in)
		require.NoError(t, err)
	}
	other := validInput()
	other.Category = "Property Law"
	_, _ = svc.Submit(ctx, 10, other)

	list, err := svc.Pending(ctx, lawyer)
	require.NoError(t, err)
	require.Len(t, list, 4)
	got := make([]string, len(list))
	for i, q := range list {
		got[i] = q.UrgencyLevel
	}
	assert.Equal(t, []string{"high", "high", "medium", "low"}, got)
	assert.Less(t, list[0].ID, list[1].ID, "oldest first within an urgency")

	_, err = svc.Pending(ctx, client)
	assert.ErrorIs(t, err, ErrLawyerOnly)
}

func TestLifecycle(t *testing.T) {
	svc, store, events := newService()
	ctx := context.Background()
	q, err := svc.Submit(ctx, 10, validInput())
	require.NoError(t, err)

	_, err = svc.Accept(ctx, lawyer, q.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	accepted, err := svc.Accept(ctx, lawyer, q.ID, 150000)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusAssigned, accepted.Status)
	assert.Equal(t, int64(150000), accepted.PaymentAmountCents)
	_, hasProfile := store.lawyers[20]
	assert.True(t, hasProfile, "a default lawyer profile is created")

	_, err = svc.Accept(ctx, auth.Identity{UserID: 22, UserType: models.UserTypeLawyer}, q.ID, 150000)
	assert.ErrorIs(t, err, ErrNotAvailable)

	_, err = svc.StartChat(ctx, auth.Identity{UserID: 99}, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	started, err := svc.StartChat(ctx, client, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusInProgress, started.Status)
	again, err := svc.StartChat(ctx, lawyer, q.ID)
	require.NoError(t, err, "already in progress is accepted")
	assert.Equal(t, models.QueryStatusInProgress, again.Status)

	_, err = svc.Cancel(ctx, client, q.ID)
	assert.ErrorIs(t, err, ErrCannotCancel)

	_, err = svc.Complete(ctx, lawyer, q.ID)
	assert.ErrorIs(t, err, ErrPaymentRequired)

	store.queries[q.ID].PaymentStatus = models.QueryPaymentCompleted
	done, err := svc.Complete(ctx, lawyer, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusCompleted, done.Status)

	_, err = svc.Complete(ctx, client, q.ID)
	assert.ErrorIs(t, err, ErrCannotComplete)

	assert.Equal(t, []string{"query_status", "query_status", "query_status"}, events.events)
}

func TestCancel(t *testing.T) {
	svc, store, _ := newService()
	ctx := context.Background()
	q, _ := svc.Submit(ctx, 10, validInput())

	_, err := svc.Cancel(ctx, lawyer, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, err := svc.Cancel(ctx, client, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryStatusCancelled, cancelled.Status)

	_, err = svc.StartChat(ctx, client, q.ID)
	assert.ErrorIs(t, err, ErrCannotStartChat)

	paid, _ := svc.Submit(ctx, 10, validInput())
	store.queries[paid.ID].PaymentStatus = models.QueryPaymentCompleted
	_, err = svc.Cancel(ctx, client, paid.ID)
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestListAndGetVisibility(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	q, _ := svc.Submit(ctx, 10, validInput())
	_, _ = svc.Submit(ctx, 11, validInput())
	_, _ = svc.Accept(ctx, lawyer, q.ID, 100000)

	mine, err := svc.List(ctx, client, "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	assigned, _ := svc.List(ctx, lawyer, "")
	assert.Len(t, assigned, 1)
	all, _ := svc.List(ctx, admin, "")
	assert.Len(t, all, 2)
	pending, _ := svc.List(ctx, admin, models.QueryStatusPending)
	assert.Len(t, pending, 1)

	_, err = svc.Get(ctx, auth.Identity{UserID: 11, UserType: models.UserTypeClient}, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := svc.Get(ctx, admin, q.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Title, "Child"))
}
