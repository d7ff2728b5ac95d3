package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
)

var (
	ErrInvalidUserType     = errors.New("Invalid user type")
	ErrInvalidStatus       = errors.New("Invalid status")
	ErrUserNotFound        = errors.New("User not found")
	ErrCannotChangeSelf    = errors.New("You cannot change your own status")
	ErrInvalidAction       = errors.New("Invalid action")
	ErrLawyerNotFound      = errors.New("Lawyer not found")
	ErrVerificationMissing = errors.New("Verification not found")
	ErrStorageUnavailable  = errors.New("Document storage is not configured")
)

const (
	reviewsLimit = 100
	logsLimit    = 100
)

// Totals are the headline counts of the dashboard.
type Totals struct {
	Users                int64   `json:"users"`
	Lawyers              int64   `json:"lawyers"`
	Clients              int64   `json:"clients"`
	PendingVerifications int64   `json:"pending_verifications"`
	Queries              int64   `json:"queries"`
	Ratings              int64   `json:"ratings"`
	AverageRating        float64 `json:"average_rating"`
}

// MonthCount is the number of sign-ups in a YYYY-MM month.
type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// CategoryCount is the number of queries filed under a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// PaymentTotals summarise consultation payments.
type PaymentTotals struct {
	Successful   int64 `json:"successful"`
	RevenueCents int64 `json:"revenue_cents"`
	Pending      int64 `json:"pending"`
	Failed       int64 `json:"failed"`
	Chargedback  int64 `json:"chargedback"`
}

// Analytics is the admin dashboard payload.
type Analytics struct {
	Totals          Totals           `json:"totals"`
	QueriesByStatus map[string]int64 `json:"queries_by_status"`
	UserGrowth      []MonthCount     `json:"user_growth"`
	Categories      []CategoryCount  `json:"categories"`
	Payments        PaymentTotals    `json:"payments"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// UserFilter narrows the user listing. Zero values are ignored.
type UserFilter struct {
	UserType models.UserType
	Status   models.UserStatus
}

// Decision is an admin verdict on a lawyer's verification.
type Decision struct {
	AdminID      int64
	LawyerUserID int64
	Status       models.VerificationStatus
	Notes        string
}

// Store is the admin persistence the service needs.
type Store interface {
	Analytics(ctx context.Context) (*Analytics, error)
	Users(ctx context.Context, f UserFilter) ([]models.UserPublic, error)
	SetUserStatus(ctx context.Context, adminID, userID int64, status models.UserStatus) (bool, error)
	Verifications(ctx context.Context, status models.VerificationStatus) ([]models.LawyerVerification, error)
	Verification(ctx context.Context, id int64) (*models.LawyerVerification, error)
	Verify(ctx context.Context, d Decision) error
	Logs(ctx context.Context, limit int) ([]models.AdminLog, error)
}

// QueryLister lists queries as seen by the caller.
type QueryLister interface {
	List(ctx context.Context, id auth.Identity, status models.QueryStatus) ([]models.LegalQuery, error)
}

// ReviewLister lists the latest client reviews.
type ReviewLister interface {
	Recent(ctx context.Context, limit int) ([]models.Rating, error)
}

// DocumentLinker hands out temporary links to stored documents.
type DocumentLinker interface {
	DocumentDownloadURL(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// Service implements the admin dashboard.
type Service struct {
	store   Store
	queries QueryLister
	reviews ReviewLister
	docs    DocumentLinker
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an admin service. docs may be nil when S3 is not configured.
func NewService(store Store, queries QueryLister, reviews ReviewLister, docs DocumentLinker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queries: queries, reviews: reviews, docs: docs, logger: logger, now: time.Now}
}

// Analytics returns the dashboard figures.
func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	a, err := s.store.Analytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	if a.UserGrowth == nil {
		a.UserGrowth = []MonthCount{}
	}
	if a.Categories == nil {
		a.Categories = []CategoryCount{}
	}
	a.GeneratedAt = s.now().UTC()
	return a, nil
}

// Users lists accounts by type and status.
func (s *Service) Users(ctx context.Context, f UserFilter) ([]models.UserPublic, error) {
	switch f.UserType {
	case "", models.UserTypeClient, models.UserTypeLawyer, models.UserTypeAdmin:
	default:
		return nil, ErrInvalidUserType
	}
	if f.Status != "" && !validUserStatus(f.Status) {
		return nil, ErrInvalidStatus
	}
	return s.store.Users(ctx, f)
}

func validUserStatus(st models.UserStatus) bool {
	switch st {
	case models.UserStatusPending, models.UserStatusActive, models.UserStatusSuspended:
		return true
	}
	return false
}

// SetUserStatus activates or suspends an account.
func (s *Service) SetUserStatus(ctx context.Context, admin auth.Identity, userID int64, status models.UserStatus) error {
	if !validUserStatus(status) {
		return ErrInvalidStatus
	}
	if userID == admin.UserID {
		return ErrCannotChangeSelf
	}
	ok, err := s.store.SetUserStatus(ctx, admin.UserID, userID, status)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	s.logger.Info("user status changed",
		zap.Int64("admin_id", admin.UserID), zap.Int64("user_id", userID), zap.String("status", string(status)))
	return nil
}

// Queries lists all queries, optionally by status.
func (s *Service) Queries(ctx context.Context, admin auth.Identity, status models.QueryStatus) ([]models.LegalQuery, error) {
	return s.queries.List(ctx, admin, status)
}

// Reviews lists the latest client reviews.
func (s *Service) Reviews(ctx context.Context) ([]models.Rating, error) {
	return s.reviews.Recent(ctx, reviewsLimit)
}

// Verifications lists submitted documents, optionally by status.
func (s *Service) Verifications(ctx context.Context, status models.VerificationStatus) ([]models.LawyerVerification, error) {
	switch status {
	case "", models.VerificationPending, models.VerificationVerified, models.VerificationRejected:
	default:
		return nil, ErrInvalidStatus
	}
	return s.store.Verifications(ctx, status)
}

// DocumentLink is a temporary download link for a verification document.
type DocumentLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Document returns a presigned link to a submitted verification document.
func (s *Service) Document(ctx context.Context, verificationID int64) (*DocumentLink, error) {
	if s.docs == nil {
		return nil, ErrStorageUnavailable
	}
	v, err := s.store.Verification(ctx, verificationID)
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	if v == nil {
		return nil, ErrVerificationMissing
	}
	url, err := s.docs.DocumentDownloadURL(ctx, v.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("presign document: %w", err)
	}
	return &DocumentLink{URL: url, ExpiresAt: s.now().Add(s.docs.PresignExpire()).UTC()}, nil
}

// VerifyLawyer approves or rejects a lawyer. lawyerUserID is the lawyer's user id.
func (s *Service) VerifyLawyer(ctx context.Context, admin auth.Identity, lawyerUserID int64, action, notes string) (models.VerificationStatus, error) {
	var status models.VerificationStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "approve":
		status = models.VerificationVerified
	case "reject":
		status = models.VerificationRejected
	default:
		return "", ErrInvalidAction
	}
	err := s.store.Verify(ctx, Decision{
		AdminID:      admin.UserID,
		LawyerUserID: lawyerUserID,
		Status:       status,
		Notes:        strings.TrimSpace(notes),
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("lawyer verification decided",
		zap.Int64("admin_id", admin.UserID), zap.Int64("lawyer_user_id", lawyerUserID), zap.String("status", string(status)))
	return status, nil
}

// Logs returns the latest moderation actions.
func (s *Service) Logs(ctx context.Context) ([]models.AdminLog, error) {
	return s.store.Logs(ctx, logsLimit)
}
