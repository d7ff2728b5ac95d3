package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/internal/realtime"
)

// Errors returned by the service. Their text is shown to users as-is.
var (
	ErrInvalidCategory    = errors.New("Invalid category")
	ErrInvalidUrgency     = errors.New("Invalid urgency level")
	ErrInvalidLanguage    = errors.New("Invalid language")
	ErrTitleLength        = errors.New("Title must be between 5 and 255 characters")
	ErrDescriptionLength  = errors.New("Description must be at least 20 characters long")
	ErrNotFound           = errors.New("Query not found or unauthorized access")
	ErrNotAvailable       = errors.New("Query not found or already assigned")
	ErrInvalidAmount      = errors.New("Payment amount must be greater than 0")
	ErrCannotStartChat    = errors.New("Chat can only be started for assigned queries")
	ErrCannotComplete     = errors.New("Query not found or cannot be completed")
	ErrPaymentRequired    = errors.New("Payment must be completed before completing the query")
	ErrCannotCancel       = errors.New("Only pending or assigned queries that are not paid can be cancelled")
	ErrLawyerOnly         = errors.New("Only lawyers can view pending queries")
	ErrStatusChangedRetry = errors.New("Query status changed, please reload and try again")
)

// Store is the persistence the service needs.
type Store interface {
	CategoryExists(ctx context.Context, name string) (bool, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, q *models.LegalQuery, language string) error
	GetByID(ctx context.Context, id int64) (*models.LegalQuery, error)
	List(ctx context.Context, f Filter) ([]models.LegalQuery, error)
	PendingForLawyer(ctx context.Context, lawyerUserID int64) ([]models.LegalQuery, error)
	Accept(ctx context.Context, queryID, lawyerUserID, amountCents int64) error
	Transition(ctx context.Context, queryID int64, from []models.QueryStatus, to models.QueryStatus) (bool, error)
}

// Broadcaster pushes events into a query's chat room.
type Broadcaster interface {
	Publish(queryID int64, event string, payload interface{})
}

// Service implements the query lifecycle.
type Service struct {
	store  Store
	events Broadcaster
	logger *zap.Logger
}

// NewService creates a query service. events may be nil.
func NewService(store Store, events Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, logger: logger}
}

// SubmitInput is a new query from a client.
type SubmitInput struct {
	Category     string
	Title        string
	Description  string
	UrgencyLevel string
	Language     string
}

var (
	urgencies = map[string]bool{models.UrgencyLow: true, models.UrgencyMedium: true, models.UrgencyHigh: true}
	languages = map[string]bool{"en": true, "si": true, "ta": true}
)

func (in *SubmitInput) normalize() error {
	in.Category = strings.TrimSpace(in.Category)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.UrgencyLevel = strings.ToLower(strings.TrimSpace(in.UrgencyLevel))
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if in.UrgencyLevel == "" {
		in.UrgencyLevel = models.UrgencyMedium
	}
	if in.Language == "" {
		in.Language = "en"
	}
	if n := utf8.RuneCountInString(in.Title); n < 5 || n > 255 {
		return ErrTitleLength
	}
	if utf8.RuneCountInString(in.Description) < 20 {
		return ErrDescriptionLength
	}
	if !urgencies[in.UrgencyLevel] {
		return ErrInvalidUrgency
	}
	if !languages[in.Language] {
		return ErrInvalidLanguage
	}
	return nil
}

// Submit files a new query for clientID and tries to match a lawyer.
func (s *Service) Submit(ctx context.Context, clientID int64, in SubmitInput) (*models.LegalQuery, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ok, err := s.store.CategoryExists(ctx, in.Category)
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCategory
	}
	q := &models.LegalQuery{
		ClientID:     clientID,
		Category:     in.Category,
		Title:        in.Title,
		Description:  in.Description,
		UrgencyLevel: in.UrgencyLevel,
	}
	if err := s.store.Create(ctx, q, in.Language); err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}
	fields := []zap.Field{zap.Int64("query_id", q.ID), zap.Int64("client_id", clientID), zap.String("category", q.Category)}
	if q.LawyerID != nil {
		fields = append(fields, zap.Int64("lawyer_id", *q.LawyerID))
	}
	s.logger.Info("query submitted", fields...)
	return q, nil
}

// List returns the caller's queries: own for clients, assigned for lawyers, all for admins.
func (s *Service) List(ctx context.Context, id auth.Identity, status models.QueryStatus) ([]models.LegalQuery, error) {
	f := Filter{Status: status}
	switch id.UserType {
	case models.UserTypeClient:
		f.ClientID = id.UserID
	case models.UserTypeLawyer:
		f.LawyerID = id.UserID
	}
	return s.store.List(ctx, f)
}

// Get returns a query visible to the caller.
func (s *Service) Get(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.store.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || !(id.IsAdmin() || q.IsParticipant(id.UserID)) {
		return nil, ErrNotFound
	}
	return q, nil
}

// Pending returns the lawyer's queue of unassigned queries.
func (s *Service) Pending(ctx context.Context, id auth.Identity) ([]models.LegalQuery, error) {
	if id.UserType != models.UserTypeLawyer {
		return nil, ErrLawyerOnly
	}
	return s.store.PendingForLawyer(ctx, id.UserID)
}

// Accept assigns a pending query to the calling lawyer with the consultation fee.
func (s *Service) Accept(ctx context.Context, id auth.Identity, queryID, amountCents int64) (*models.LegalQuery, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.store.Accept(ctx, queryID, id.UserID, amountCents); err != nil {
		return nil, err
	}
	s.logger.Info("query accepted", zap.Int64("query_id", queryID), zap.Int64("lawyer_id", id.UserID), zap.Int64("amount_cents", amountCents))
	s.statusChanged(queryID, models.QueryStatusAssigned)
	return s.store.GetByID(ctx, queryID)
}

// StartChat moves an assigned query into progress. A query already in progress is accepted.
func (s *Service) StartChat(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.participantQuery(ctx, id, queryID)
	if err != nil {
		return nil, err
	}
	switch q.Status {
	case models.QueryStatusInProgress:
		return q, nil
	case models.QueryStatusAssigned:
	default:
		return nil, ErrCannotStartChat
	}
	if err := s.transition(ctx, q, []models.QueryStatus{models.QueryStatusAssigned}, models.QueryStatusInProgress); err != nil {
		return nil, err
	}
	return q, nil
}

// Complete closes a paid query that is assigned or in progress.
func (s *Service) Complete(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.participantQuery(ctx, id, queryID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrCannotComplete
	}
	if err != nil {
		return nil, err
	}
	open := []models.QueryStatus{models.QueryStatusAssigned, models.QueryStatusInProgress}
	if q.Status != open[0] && q.Status != open[1] {
		return nil, ErrCannotComplete
	}
	if !q.IsPaid() {
		return nil, ErrPaymentRequired
	}
	if err := s.transition(ctx, q, open, models.QueryStatusCompleted); err != nil {
		return nil, err
	}
	return q, nil
}

// Cancel withdraws a client's query before it is paid.
func (s *Service) Cancel(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.store.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || q.ClientID != id.UserID {
		return nil, ErrNotFound
	}
	cancellable := []models.QueryStatus{models.QueryStatusPending, models.QueryStatusAssigned}
	if (q.Status != cancellable[0] && q.Status != cancellable[1]) || q.IsPaid() {
		return nil, ErrCannotCancel
	}
	if err := s.transition(ctx, q, cancellable, models.QueryStatusCancelled); err != nil {
		return nil, err
	}
	return q, nil
}

// Categories lists the legal areas a query can be filed under.
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.Categories(ctx)
}

// participantQuery loads a query the caller is the client or assigned lawyer of.
func (s *Service) participantQuery(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.store.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || !q.IsParticipant(id.UserID) {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *Service) transition(ctx context.Context, q *models.LegalQuery, from []models.QueryStatus, to models.QueryStatus) error {
	ok, err := s.store.Transition(ctx, q.ID, from, to)
	if err != nil {
		return fmt.Errorf("update query status: %w", err)
	}
	if !ok {
		return ErrStatusChangedRetry
	}
	s.logger.Info("query status changed", zap.Int64("query_id", q.ID), zap.String("from", string(q.Status)), zap.String("to", string(to)))
	q.Status = to
	s.statusChanged(q.ID, to)
	return nil
}

func (s *Service) statusChanged(queryID int64, status models.QueryStatus) {
	if s.events == nil {
		return
	}
	s.events.Publish(queryID, realtime.EventQueryStatus, map[string]interface{}{
		"query_id": queryID,
		"status":   status,
	})
}
