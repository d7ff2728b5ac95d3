package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/queue"
)

var (
	ErrNotFound        = errors.New("Notification not found")
	ErrEmptyFields     = errors.New("Title and message cannot be empty")
	ErrTitleTooLong    = errors.New("Title must be at most 255 characters")
	ErrInvalidType     = errors.New("Invalid notification type")
	ErrInvalidAudience = errors.New("Invalid target audience")
)

// Types are the notification kinds the dashboard styles.
var Types = []string{"info", "success", "warning", "alert"}

var audiences = []string{models.AudienceAll, models.AudienceLawyers, models.AudienceClients}

const inboxLimit = 50

// Store is the notification persistence the service needs.
type Store interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.UserNotification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) (bool, error)
	Broadcast(ctx context.Context, n *models.Notification) ([]models.Recipient, error)
}

// EmailEnqueuer queues email jobs for the worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service implements user inboxes and admin broadcasts.
type Service struct {
	store  Store
	emails EmailEnqueuer
	logger *zap.Logger
}

// NewService creates a notification service. emails may be nil to skip email delivery.
func NewService(store Store, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, emails: emails, logger: logger}
}

// Inbox is a user's notification list.
type Inbox struct {
	Notifications []models.UserNotification `json:"notifications"`
	UnreadCount   int                       `json:"unread_count"`
}

// List returns the caller's latest notifications.
func (s *Service) List(ctx context.Context, id auth.Identity) (*Inbox, error) {
	list, err := s.store.ListForUser(ctx, id.UserID, inboxLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &Inbox{Notifications: list, UnreadCount: unread}, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *Service) MarkRead(ctx context.Context, id auth.Identity, notificationID int64) error {
	ok, err := s.store.MarkRead(ctx, id.UserID, notificationID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// BroadcastInput is an admin announcement.
type BroadcastInput struct {
	Title          string
	Message        string
	Type           string
	TargetAudience string
}

// BroadcastResult reports how far a broadcast reached.
type BroadcastResult struct {
	Notification *models.Notification `json:"notification"`
	Recipients   int                  `json:"recipients"`
	EmailsQueued int                  `json:"emails_queued"`
}

// Broadcast stores an announcement for every user in the audience and queues one
// email per recipient. Email queueing failures do not undo the broadcast.
func (s *Service) Broadcast(ctx context.Context, admin auth.Identity, in BroadcastInput) (*BroadcastResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Type == "" {
		in.Type = "info"
	}
	if in.TargetAudience == "" {
		in.TargetAudience = models.AudienceAll
	}
	switch {
	case in.Title == "" || in.Message == "":
		return nil, ErrEmptyFields
	case len(in.Title) > 255:
		return nil, ErrTitleTooLong
	case !slices.Contains(Types, in.Type):
		return nil, ErrInvalidType
	case !slices.Contains(audiences, in.TargetAudience):
		return nil, ErrInvalidAudience
	}

	n := &models.Notification{
		Title:          in.Title,
		Message:        in.Message,
		Type:           in.Type,
		TargetAudience: in.TargetAudience,
		CreatedBy:      admin.UserID,
	}
	recipients, err := s.store.Broadcast(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	res := &BroadcastResult{Notification: n, Recipients: len(recipients)}
	if s.emails != nil {
		for _, rc := range recipients {
			if rc.Email == "" {
				continue
			}
			if err := s.emails.EnqueueEmail(ctx, notificationEmail(n, rc)); err != nil {
				s.logger.Warn("queue notification email failed",
					zap.Int64("notification_id", n.ID), zap.Int64("user_id", rc.UserID), zap.Error(err))
				continue
			}
			res.EmailsQueued++
		}
	}
	s.logger.Info("notification broadcast",
		zap.Int64("notification_id", n.ID),
		zap.Int64("admin_id", admin.UserID),
		zap.String("audience", n.TargetAudience),
		zap.Int("recipients", res.Recipients),
		zap.Int("emails_queued", res.EmailsQueued))
	return res, nil
}

func notificationEmail(n *models.Notification, rc models.Recipient) queue.EmailPayload {
	return queue.EmailPayload{
		Kind:           queue.EmailKindNotification,
		RecipientEmail: rc.Email,
		RecipientName:  rc.FullName,
		Subject:        "[Cyblex] " + n.Title,
		BodyText:       fmt.Sprintf("Hello %s,\n\n%s\n\nThe Cyblex team", rc.FullName, n.Message),
		Reference:      "notification:" + strconv.FormatInt(n.ID, 10),
	}
}
