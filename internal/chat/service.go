package chat

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

// MaxMessageLength is the longest message accepted, in characters.
const MaxMessageLength = 5000

// pageSize bounds a single history fetch; clients keep polling with the returned last_id.
const pageSize = 500

var (
	ErrQueryNotFound  = errors.New("Query not found")
	ErrAccessDenied   = errors.New("Access denied to this query")
	ErrEmptyMessage   = errors.New("Message cannot be empty")
	ErrMessageTooLong = errors.New("Message is too long")
	ErrQueryCancelled = errors.New("Cannot send messages on a cancelled query")
)

// Store is the message persistence the service needs.
type Store interface {
	Create(ctx context.Context, m *models.Message) error
	ListAfter(ctx context.Context, queryID, afterID int64, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, queryID, readerID, upToID int64) (int64, error)
	CountAfter(ctx context.Context, queryID, afterID, excludeSender int64) (int, error)
}

// QueryLoader loads the query a conversation belongs to.
type QueryLoader interface {
	GetByID(ctx context.Context, id int64) (*models.LegalQuery, error)
}

// Broadcaster pushes events into a query's room.
type Broadcaster interface {
	Publish(queryID int64, event string, payload interface{})
}

// Service implements the per-query conversation.
type Service struct {
	store   Store
	queries QueryLoader
	events  Broadcaster
	logger  *zap.Logger
}

// NewService creates a chat service. events may be nil.
func NewService(store Store, queries QueryLoader, events Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queries: queries, events: events, logger: logger}
}

// access loads the query and checks the caller is its client, its lawyer or an admin.
func (s *Service) access(ctx context.Context, id auth.Identity, queryID int64) (*models.LegalQuery, error) {
	q, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("load query: %w", err)
	}
	if q == nil {
		return nil, ErrQueryNotFound
	}
	if !id.IsAdmin() && !q.IsParticipant(id.UserID) {
		return nil, ErrAccessDenied
	}
	return q, nil
}

// CanJoin reports whether the caller may join the query's live room.
func (s *Service) CanJoin(ctx context.Context, queryID int64, id auth.Identity) (bool, error) {
	_, err := s.access(ctx, id, queryID)
	if errors.Is(err, ErrQueryNotFound) || errors.Is(err, ErrAccessDenied) {
		return false, nil
	}
	return err == nil, err
}

// Send stores a message from the caller and pushes it to the room.
func (s *Service) Send(ctx context.Context, id auth.Identity, queryID int64, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	q, err := s.access(ctx, id, queryID)
	if err != nil {
		return nil, err
	}
	if q.Status == models.QueryStatusCancelled {
		return nil, ErrQueryCancelled
	}
	m := &models.Message{QueryID: queryID, SenderID: id.UserID, Message: text}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if s.events != nil {
		pushed := *m
		pushed.ForViewer(0)
		s.events.Publish(queryID, realtime.EventNewMessage, pushed)
	}
	m.ForViewer(id.UserID)
	return m, nil
}

// History is one poll of a conversation.
type History struct {
	Messages    []models.Message   `json:"messages"`
	LastID      int64              `json:"last_id"`
	QueryStatus models.QueryStatus `json:"query_status"`
}

// Messages returns messages after lastID. When the caller is a participant, the other
// party's messages up to the returned cursor are marked read; admins only look.
func (s *Service) Messages(ctx context.Context, id auth.Identity, queryID, lastID int64) (*History, error) {
	q, err := s.access(ctx, id, queryID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListAfter(ctx, queryID, lastID, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	h := &History{Messages: make([]models.Message, 0, len(list)), LastID: lastID, QueryStatus: q.Status}
	for _, m := range list {
		m.ForViewer(id.UserID)
		h.Messages = append(h.Messages, m)
		h.LastID = m.ID
	}
	if len(list) > 0 && q.IsParticipant(id.UserID) {
		if _, err := s.store.MarkRead(ctx, queryID, id.UserID, h.LastID); err != nil {
			s.logger.Warn("mark messages read failed", zap.Int64("query_id", queryID), zap.Error(err))
		}
	}
	return h, nil
}

// NewMessages reports unseen messages from others after sinceID without marking them read.
type NewMessages struct {
	HasNew bool `json:"has_new"`
	Count  int  `json:"count"`
}

// CheckNew counts messages from the other party after sinceID.
func (s *Service) CheckNew(ctx context.Context, id auth.Identity, queryID, sinceID int64) (*NewMessages, error) {
	if _, err := s.access(ctx, id, queryID); err != nil {
		return nil, err
	}
	n, err := s.store.CountAfter(ctx, queryID, sinceID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	return &NewMessages{HasNew: n > 0, Count: n}, nil
}
