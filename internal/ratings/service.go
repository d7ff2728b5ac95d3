package ratings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
)

var (
	ErrInvalidRating = errors.New("Rating must be between 1 and 5")
	ErrReviewTooLong = errors.New("Review must be at most 2000 characters")
	ErrNotFound      = errors.New("Query not found")
	ErrNotCompleted  = errors.New("Only completed queries can be rated")
	ErrNoLawyer      = errors.New("This query has no assigned lawyer")
	ErrAlreadyRated  = errors.New("You have already rated this query")
)

const maxReviewLength = 2000

// Store is the rating persistence the service needs.
type Store interface {
	Create(ctx context.Context, rt *models.Rating) error
	ForQuery(ctx context.Context, queryID int64) (*models.Rating, error)
	List(ctx context.Context, lawyerID int64, limit int) ([]models.Rating, error)
}

// QueryLoader loads the rated query.
type QueryLoader interface {
	GetByID(ctx context.Context, id int64) (*models.LegalQuery, error)
}

// Service implements client ratings of completed consultations.
type Service struct {
	store   Store
	queries QueryLoader
	logger  *zap.Logger
}

// NewService creates a rating service.
func NewService(store Store, queries QueryLoader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queries: queries, logger: logger}
}

// Submit records the caller's rating of their completed query.
func (s *Service) Submit(ctx context.Context, id auth.Identity, queryID int64, rating int, review string) (*models.Rating, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	review = strings.TrimSpace(review)
	if len([]rune(review)) > maxReviewLength {
		return nil, ErrReviewTooLong
	}
	q, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || q.ClientID != id.UserID {
		return nil, ErrNotFound
	}
	if q.Status != models.QueryStatusCompleted {
		return nil, ErrNotCompleted
	}
	if q.LawyerID == nil {
		return nil, ErrNoLawyer
	}
	rt := &models.Rating{
		QueryID:    queryID,
		ClientID:   id.UserID,
		LawyerID:   *q.LawyerID,
		Rating:     rating,
		Review:     review,
		ClientName: q.ClientName,
		LawyerName: q.LawyerName,
		QueryTitle: q.Title,
	}
	if err := s.store.Create(ctx, rt); err != nil {
		return nil, err
	}
	s.logger.Info("query rated", zap.Int64("query_id", queryID), zap.Int64("lawyer_id", rt.LawyerID), zap.Int("rating", rating))
	return rt, nil
}

// Status tells whether a query was rated and whether the caller can rate it now.
type Status struct {
	Exists  bool           `json:"exists"`
	CanRate bool           `json:"can_rate"`
	Rating  *models.Rating `json:"rating,omitempty"`
}

// Get returns the rating state of a query the caller takes part in.
func (s *Service) Get(ctx context.Context, id auth.Identity, queryID int64) (*Status, error) {
	q, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil || !(id.IsAdmin() || q.IsParticipant(id.UserID)) {
		return nil, ErrNotFound
	}
	rt, err := s.store.ForQuery(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load rating: %w", err)
	}
	if rt != nil {
		return &Status{Exists: true, Rating: rt}, nil
	}
	return &Status{
		CanRate: q.ClientID == id.UserID && q.Status == models.QueryStatusCompleted && q.LawyerID != nil,
	}, nil
}

// Recent returns the latest reviews, for moderation.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Rating, error) {
	return s.store.List(ctx, 0, limit)
}
